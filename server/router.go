package server

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if s.Config.AllowedOrigin != "" {
		corsConfig.AllowOrigins = []string{s.Config.AllowedOrigin}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	r.Use(cors.New(corsConfig))
	r.MaxMultipartMemory = 32 << 20
	s.defineRoutes(r)

	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	apirouter := router.Group("/api/v1")
	apirouter.GET("/sites", s.handleGetSites())
	apirouter.GET("/reports", s.handleListReports())
	apirouter.GET("/reports/counts", s.handleReportCounts())
	apirouter.GET("/reports/markers", s.handleReportMarkers())
	apirouter.POST("/reports", s.handleCreateReport())
	apirouter.GET("/reports/:id", s.handleGetReport())
	apirouter.PUT("/reports/:id", s.handleUpdateReport())
	apirouter.POST("/reports/:id/closing", s.handleStartClosing())
	apirouter.DELETE("/reports/:id/closing", s.handleCancelClosing())
	apirouter.POST("/reports/:id/complete", s.handleCompleteReport())
	apirouter.POST("/reports/:id/amend", s.handleAmendReport())
	apirouter.POST("/reports/:id/reopen", s.handleReopenReport())
	apirouter.DELETE("/reports/:id", s.handleDeleteReport())
	apirouter.GET("/export", s.handleExport())
	apirouter.GET("/position", s.handlePosition())
}
