package services

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marangon/faultlog/config"
	"github.com/marangon/faultlog/db"
	"github.com/marangon/faultlog/errors"
	"github.com/marangon/faultlog/models"
)

const (
	markerColorOpen      = "#f97316"
	markerColorCompleted = "#22c55e"
)

type ReportService interface {
	Create(ctx context.Context, site, comment string, photos []models.RawPhoto, pos *models.Position) (*models.Report, error)
	Update(ctx context.Context, id uuid.UUID, site, comment *string) (*models.Report, error)
	StartClosing(id uuid.UUID) error
	CancelClosing(id uuid.UUID) error
	ClosingInProgress() *uuid.UUID
	Complete(ctx context.Context, id uuid.UUID, closingComment string, closingPhotos []models.RawPhoto) (*models.Report, error)
	AmendCompleted(ctx context.Context, id uuid.UUID, closingComment string, additionalPhotos []models.RawPhoto) (*models.Report, error)
	Reopen(ctx context.Context, id uuid.UUID) (*models.Report, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Get(id uuid.UUID) (*models.Report, error)
	List(filter models.ReportFilter) []models.Report
	Counts(filter models.ReportFilter) models.ReportCounts
	Markers(filter models.ReportFilter) []models.Marker
}

// reportService owns the in-memory report collection and is its sole
// writer. All mutations run under the mutex and persist best-effort
// through the blob repository.
type reportService struct {
	Config     *config.Config
	reportRepo db.ReportRepository
	media      MediaService

	mu        sync.Mutex
	reports   []models.Report
	closingID *uuid.UUID
}

func NewReportService(reportRepo db.ReportRepository, media MediaService, conf *config.Config) (ReportService, error) {
	reports, err := reportRepo.Load(context.Background(), conf.StorageKey)
	if err != nil {
		return nil, err
	}
	return &reportService{
		Config:     conf,
		reportRepo: reportRepo,
		media:      media,
		reports:    reports,
	}, nil
}

// persist writes the whole collection through. A failure is surfaced as a
// warning only: the in-memory mutation stands and the next successful
// save wins.
func (s *reportService) persist(ctx context.Context) {
	snapshot := make([]models.Report, len(s.reports))
	copy(snapshot, s.reports)
	if err := s.reportRepo.Save(ctx, s.Config.StorageKey, snapshot); err != nil {
		log.Printf("warning: failed to persist reports: %v", err)
	}
}

func (s *reportService) findIndex(id uuid.UUID) int {
	for i := range s.reports {
		if s.reports[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *reportService) Create(ctx context.Context, site, comment string, photos []models.RawPhoto, pos *models.Position) (*models.Report, error) {
	if !models.IsValidSite(site) {
		return nil, errors.ErrInvalidSite
	}
	if len(photos) == 0 {
		return nil, errors.ErrEmptyPhotoSet
	}
	if s.Config.RequireComment && strings.TrimSpace(comment) == "" {
		return nil, errors.ErrEmptyComment
	}

	createdAt := time.Now().UTC()
	normalized, err := s.media.NormalizePhotos(photos, pos, createdAt)
	if err != nil {
		return nil, err
	}

	report := models.Report{
		ID:        uuid.New(),
		Site:      site,
		Comment:   comment,
		CreatedAt: createdAt,
		Photos:    normalized,
		Status:    models.ReportStatusOpen,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Most recent first.
	s.reports = append([]models.Report{report}, s.reports...)
	s.persist(ctx)
	return &report, nil
}

func (s *reportService) Update(ctx context.Context, id uuid.UUID, site, comment *string) (*models.Report, error) {
	if site != nil && !models.IsValidSite(*site) {
		return nil, errors.ErrInvalidSite
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(id)
	if i < 0 {
		return nil, errors.ErrNotFound
	}
	if !s.reports[i].IsOpen() {
		return nil, errors.ErrInvalidState
	}
	if site != nil {
		s.reports[i].Site = *site
	}
	if comment != nil {
		s.reports[i].Comment = *comment
	}
	s.persist(ctx)
	report := s.reports[i]
	return &report, nil
}

// StartClosing marks the report the closing form is collecting input for.
// Only one report may be in the closing step at a time; the report itself
// is not mutated.
func (s *reportService) StartClosing(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(id)
	if i < 0 {
		return errors.ErrNotFound
	}
	if !s.reports[i].IsOpen() {
		return errors.ErrInvalidState
	}
	if s.closingID != nil && *s.closingID != id {
		return errors.ErrInvalidState
	}
	closing := id
	s.closingID = &closing
	return nil
}

func (s *reportService) CancelClosing(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closingID == nil || *s.closingID != id {
		return errors.ErrNotFound
	}
	s.closingID = nil
	return nil
}

func (s *reportService) ClosingInProgress() *uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closingID == nil {
		return nil
	}
	id := *s.closingID
	return &id
}

func (s *reportService) Complete(ctx context.Context, id uuid.UUID, closingComment string, closingPhotos []models.RawPhoto) (*models.Report, error) {
	trimmed := strings.TrimSpace(closingComment)
	if trimmed == "" {
		return nil, errors.ErrEmptyClosingComment
	}

	completedAt := time.Now().UTC()
	normalized, err := s.media.NormalizePhotos(closingPhotos, nil, completedAt)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(id)
	if i < 0 {
		return nil, errors.ErrNotFound
	}
	if !s.reports[i].IsOpen() {
		return nil, errors.ErrInvalidState
	}

	s.reports[i].Status = models.ReportStatusCompleted
	s.reports[i].CompletedAt = &completedAt
	s.reports[i].ClosingComment = trimmed
	s.reports[i].ClosingPhotos = normalized
	if s.closingID != nil && *s.closingID == id {
		s.closingID = nil
	}
	s.persist(ctx)
	report := s.reports[i]
	return &report, nil
}

// AmendCompleted replaces the closing comment and appends extra closing
// photos without touching the lifecycle state.
func (s *reportService) AmendCompleted(ctx context.Context, id uuid.UUID, closingComment string, additionalPhotos []models.RawPhoto) (*models.Report, error) {
	trimmed := strings.TrimSpace(closingComment)
	if trimmed == "" {
		return nil, errors.ErrEmptyClosingComment
	}

	appended, err := s.media.NormalizePhotos(additionalPhotos, nil, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(id)
	if i < 0 {
		return nil, errors.ErrNotFound
	}
	if !s.reports[i].IsCompleted() {
		return nil, errors.ErrInvalidState
	}

	s.reports[i].ClosingComment = trimmed
	s.reports[i].ClosingPhotos = append(s.reports[i].ClosingPhotos, appended...)
	s.persist(ctx)
	report := s.reports[i]
	return &report, nil
}

func (s *reportService) Reopen(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(id)
	if i < 0 {
		return nil, errors.ErrNotFound
	}
	if !s.reports[i].IsCompleted() {
		return nil, errors.ErrInvalidState
	}

	// Reopening discards the closing data. Log what is lost so the
	// destruction is at least observable.
	log.Printf("reopening report %s: discarding closing comment (%d chars) and %d closing photos",
		id, len(s.reports[i].ClosingComment), len(s.reports[i].ClosingPhotos))

	s.reports[i].Status = models.ReportStatusOpen
	s.reports[i].CompletedAt = nil
	s.reports[i].ClosingComment = ""
	s.reports[i].ClosingPhotos = nil
	s.persist(ctx)
	report := s.reports[i]
	return &report, nil
}

// Remove deletes unconditionally from either status. User confirmation
// is the caller's concern.
func (s *reportService) Remove(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(id)
	if i < 0 {
		return errors.ErrNotFound
	}
	s.reports = append(s.reports[:i], s.reports[i+1:]...)
	if s.closingID != nil && *s.closingID == id {
		s.closingID = nil
	}
	s.persist(ctx)
	return nil
}

func (s *reportService) Get(id uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(id)
	if i < 0 {
		return nil, errors.ErrNotFound
	}
	report := s.reports[i]
	return &report, nil
}

// List returns the reports matching the filter, most recent first. The
// ordering is the insertion order and is stable under filtering.
func (s *reportService) List(filter models.ReportFilter) []models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.Report, 0, len(s.reports))
	for i := range s.reports {
		if filter.Matches(&s.reports[i]) {
			result = append(result, s.reports[i])
		}
	}
	return result
}

func (s *reportService) Counts(filter models.ReportFilter) models.ReportCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	var counts models.ReportCounts
	for i := range s.reports {
		if !filter.Matches(&s.reports[i]) {
			continue
		}
		if s.reports[i].IsCompleted() {
			counts.Completed++
		} else {
			counts.Open++
		}
	}
	return counts
}

// Markers builds the read-only marker list the external map widget
// consumes: one marker per geotagged photo, colored by lifecycle state.
func (s *reportService) Markers(filter models.ReportFilter) []models.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	var markers []models.Marker
	for i := range s.reports {
		r := &s.reports[i]
		if !filter.Matches(r) {
			continue
		}
		color := markerColorOpen
		if r.IsCompleted() {
			color = markerColorCompleted
		}
		for _, p := range r.Photos {
			if p.Latitude == nil || p.Longitude == nil {
				continue
			}
			markers = append(markers, models.Marker{
				Latitude:  *p.Latitude,
				Longitude: *p.Longitude,
				Color:     color,
				Popup:     r.Site + "\n" + r.Comment + "\n" + r.CreatedAt.Format(time.RFC1123),
			})
		}
	}
	return markers
}
