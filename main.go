package main

import (
	"log"

	"github.com/marangon/faultlog/config"
	"github.com/marangon/faultlog/db"
	"github.com/marangon/faultlog/server"
	"github.com/marangon/faultlog/services"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	sqliteDB := db.GetDB(conf)
	reportRepo := db.NewReportRepo(sqliteDB)

	mediaService := services.NewMediaService(conf)
	geoService := services.NewGeoService(conf)
	reportService, err := services.NewReportService(reportRepo, mediaService, conf)
	if err != nil {
		log.Fatalf("error loading reports: %v", err)
	}
	exportService := services.NewExportService(reportService, mediaService, conf)

	s := &server.Server{
		Config:           conf,
		DB:               sqliteDB,
		ReportRepository: reportRepo,
		ReportService:    reportService,
		MediaService:     mediaService,
		GeoService:       geoService,
		ExportService:    exportService,
	}

	s.Start()
}
