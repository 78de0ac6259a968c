package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marangon/faultlog/config"
	"github.com/marangon/faultlog/db"
	"github.com/marangon/faultlog/services"
)

// Server is the UI shell adapter: it translates HTTP requests from the
// on-device front end into core API calls. It binds loopback by default.
type Server struct {
	Config           *config.Config
	DB               *db.SqliteDB
	ReportRepository db.ReportRepository
	ReportService    services.ReportService
	MediaService     services.MediaService
	GeoService       services.GeoService
	ExportService    services.ExportService
}

func (s *Server) Start() {
	r := s.setupRouter()
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	if err := s.DB.Close(); err != nil {
		log.Printf("closing database: %v", err)
	}
}
