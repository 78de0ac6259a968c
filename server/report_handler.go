package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leebenson/conform"

	"github.com/marangon/faultlog/errors"
	"github.com/marangon/faultlog/models"
	"github.com/marangon/faultlog/server/response"
)

type CreateReportRequest struct {
	Site    string `form:"site" conform:"trim"`
	Comment string `form:"comment" conform:"trim"`
	Lat     string `form:"lat"`
	Lng     string `form:"lng"`
}

type UpdateReportRequest struct {
	Site    *string `json:"site"`
	Comment *string `json:"comment"`
}

type CompleteReportRequest struct {
	ClosingComment string `form:"closing_comment" conform:"trim"`
}

func respondError(c *gin.Context, message string, err error) {
	response.JSON(c, message, errors.StatusOf(err), nil, err)
}

func parseReportID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, "invalid report id", errors.ErrBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func filterFromQuery(c *gin.Context) models.ReportFilter {
	return models.ReportFilter{
		TextQuery: c.Query("q"),
		Site:      c.Query("site"),
		Status:    c.Query("status"),
	}
}

// readPhotos drains the uploaded files for the given multipart field. The
// camera and the gallery picker both land here; the source distinction is
// a front-end concern.
func readPhotos(c *gin.Context, field string) ([]models.RawPhoto, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil
	}
	var photos []models.RawPhoto
	for _, fileHeader := range form.File[field] {
		file, err := fileHeader.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, err
		}
		photos = append(photos, models.RawPhoto{Data: data, Filename: fileHeader.Filename})
	}
	return photos, nil
}

func (s *Server) handleGetSites() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.JSON(c, "", http.StatusOK, models.Sites, nil)
	}
}

func (s *Server) handleListReports() gin.HandlerFunc {
	return func(c *gin.Context) {
		reports := s.ReportService.List(filterFromQuery(c))
		response.JSON(c, "", http.StatusOK, reports, nil)
	}
}

func (s *Server) handleReportCounts() gin.HandlerFunc {
	return func(c *gin.Context) {
		counts := s.ReportService.Counts(filterFromQuery(c))
		response.JSON(c, "", http.StatusOK, counts, nil)
	}
}

func (s *Server) handleReportMarkers() gin.HandlerFunc {
	return func(c *gin.Context) {
		markers := s.ReportService.Markers(filterFromQuery(c))
		response.JSON(c, "", http.StatusOK, markers, nil)
	}
}

func (s *Server) handleGetReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseReportID(c)
		if !ok {
			return
		}
		report, err := s.ReportService.Get(id)
		if err != nil {
			respondError(c, "unable to fetch report", err)
			return
		}
		response.JSON(c, "", http.StatusOK, report, nil)
	}
}

func (s *Server) handleCreateReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateReportRequest
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, "unable to parse report form", errors.ErrBadRequest)
			return
		}
		if err := conform.Strings(&req); err != nil {
			respondError(c, "unable to sanitize report form", errors.ErrBadRequest)
			return
		}

		photos, err := readPhotos(c, "photos")
		if err != nil {
			response.JSON(c, "unable to read photos", http.StatusInternalServerError, nil, errors.ErrInternalServerError)
			return
		}

		pos := positionFromForm(req.Lat, req.Lng)
		if pos == nil {
			// Sensor output missing: recover with the configured fallback.
			fallback := s.GeoService.Fallback()
			pos = &fallback
		}

		report, err := s.ReportService.Create(c.Request.Context(), req.Site, req.Comment, photos, pos)
		if err != nil {
			respondError(c, "unable to create report", err)
			return
		}
		response.JSON(c, "Report submitted successfully", http.StatusCreated, report, nil)
	}
}

func positionFromForm(latStr, lngStr string) *models.Position {
	if strings.TrimSpace(latStr) == "" || strings.TrimSpace(lngStr) == "" {
		return nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil
	}
	return &models.Position{Lat: lat, Lng: lng}
}

func (s *Server) handleUpdateReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseReportID(c)
		if !ok {
			return
		}
		var req UpdateReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, "unable to parse request body", errors.ErrBadRequest)
			return
		}
		report, err := s.ReportService.Update(c.Request.Context(), id, req.Site, req.Comment)
		if err != nil {
			respondError(c, "unable to update report", err)
			return
		}
		response.JSON(c, "Report updated", http.StatusOK, report, nil)
	}
}

func (s *Server) handleStartClosing() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseReportID(c)
		if !ok {
			return
		}
		if err := s.ReportService.StartClosing(id); err != nil {
			respondError(c, "unable to start closing step", err)
			return
		}
		response.JSON(c, "Closing step started", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleCancelClosing() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseReportID(c)
		if !ok {
			return
		}
		if err := s.ReportService.CancelClosing(id); err != nil {
			respondError(c, "unable to cancel closing step", err)
			return
		}
		response.JSON(c, "Closing step cancelled", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleCompleteReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseReportID(c)
		if !ok {
			return
		}
		var req CompleteReportRequest
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, "unable to parse closing form", errors.ErrBadRequest)
			return
		}
		if err := conform.Strings(&req); err != nil {
			respondError(c, "unable to sanitize closing form", errors.ErrBadRequest)
			return
		}
		photos, err := readPhotos(c, "photos")
		if err != nil {
			response.JSON(c, "unable to read photos", http.StatusInternalServerError, nil, errors.ErrInternalServerError)
			return
		}
		report, err := s.ReportService.Complete(c.Request.Context(), id, req.ClosingComment, photos)
		if err != nil {
			respondError(c, "unable to complete report", err)
			return
		}
		response.JSON(c, "Report completed", http.StatusOK, report, nil)
	}
}

func (s *Server) handleAmendReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseReportID(c)
		if !ok {
			return
		}
		var req CompleteReportRequest
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, "unable to parse closing form", errors.ErrBadRequest)
			return
		}
		if err := conform.Strings(&req); err != nil {
			respondError(c, "unable to sanitize closing form", errors.ErrBadRequest)
			return
		}
		photos, err := readPhotos(c, "photos")
		if err != nil {
			response.JSON(c, "unable to read photos", http.StatusInternalServerError, nil, errors.ErrInternalServerError)
			return
		}
		report, err := s.ReportService.AmendCompleted(c.Request.Context(), id, req.ClosingComment, photos)
		if err != nil {
			respondError(c, "unable to amend report", err)
			return
		}
		response.JSON(c, "Report amended", http.StatusOK, report, nil)
	}
}

func (s *Server) handleReopenReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseReportID(c)
		if !ok {
			return
		}
		report, err := s.ReportService.Reopen(c.Request.Context(), id)
		if err != nil {
			respondError(c, "unable to reopen report", err)
			return
		}
		response.JSON(c, "Report reopened", http.StatusOK, report, nil)
	}
}

// Deletion is irreversible; the front end asks the user for confirmation
// before calling this.
func (s *Server) handleDeleteReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseReportID(c)
		if !ok {
			return
		}
		if err := s.ReportService.Remove(c.Request.Context(), id); err != nil {
			respondError(c, "unable to delete report", err)
			return
		}
		response.JSON(c, "Report deleted", http.StatusOK, nil, nil)
	}
}

func (s *Server) handlePosition() gin.HandlerFunc {
	return func(c *gin.Context) {
		// No sensor stream is reachable from this process; the sampler
		// resolves to the configured fallback coordinate.
		pos := s.GeoService.BestPosition(c.Request.Context(), nil, nil)
		response.JSON(c, "", http.StatusOK, pos, nil)
	}
}
