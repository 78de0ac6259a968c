package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marangon/faultlog/errors"
	"github.com/marangon/faultlog/models"
)

func (s *Server) handleExport() gin.HandlerFunc {
	return func(c *gin.Context) {
		format := models.ExportFormat(c.DefaultQuery("format", string(models.ExportFormatCSV)))
		if !format.IsValid() {
			respondError(c, "unsupported export format", errors.ErrBadRequest)
			return
		}

		artifact, err := s.ExportService.Generate(format, filterFromQuery(c))
		if err != nil {
			respondError(c, "unable to generate export", err)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
		c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
	}
}
