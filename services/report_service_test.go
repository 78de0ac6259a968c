package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marangon/faultlog/errors"
	"github.com/marangon/faultlog/models"
)

// memRepo keeps blobs in a map, standing in for the sqlite store.
type memRepo struct {
	blobs map[string][]models.Report
	fail  bool
}

func newMemRepo() *memRepo {
	return &memRepo{blobs: make(map[string][]models.Report)}
}

func (m *memRepo) Load(_ context.Context, key string) ([]models.Report, error) {
	reports, ok := m.blobs[key]
	if !ok {
		return nil, nil
	}
	out := make([]models.Report, len(reports))
	copy(out, reports)
	return out, nil
}

func (m *memRepo) Save(_ context.Context, key string, reports []models.Report) error {
	if m.fail {
		return fmt.Errorf("disk full")
	}
	stored := make([]models.Report, len(reports))
	copy(stored, reports)
	m.blobs[key] = stored
	return nil
}

func newTestReportService(t *testing.T, repo *memRepo) ReportService {
	t.Helper()
	conf := testConfig()
	svc, err := NewReportService(repo, NewMediaService(conf), conf)
	require.NoError(t, err)
	return svc
}

func onePhoto(t *testing.T, name string) []models.RawPhoto {
	t.Helper()
	return []models.RawPhoto{{Data: encodeJPEG(t, testImage(40, 40)), Filename: name}}
}

func mustCreate(t *testing.T, svc ReportService, site, comment string) *models.Report {
	t.Helper()
	report, err := svc.Create(context.Background(), site, comment, onePhoto(t, "capture.jpg"), &models.Position{Lat: 45.1, Lng: 9.3})
	require.NoError(t, err)
	return report
}

func TestCreateReport(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())

	report := mustCreate(t, svc, "Rovigo", "crack in wall")

	assert.Equal(t, "Rovigo", report.Site)
	assert.Equal(t, "crack in wall", report.Comment)
	assert.Equal(t, models.ReportStatusOpen, report.Status)
	assert.Nil(t, report.CompletedAt)
	require.Len(t, report.Photos, 1)
	require.NotNil(t, report.Photos[0].Latitude)
	assert.Equal(t, 45.1, *report.Photos[0].Latitude)
}

func TestCreateReportValidation(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())

	_, err := svc.Create(context.Background(), "Atlantis", "x", onePhoto(t, "a.jpg"), nil)
	assert.ErrorIs(t, err, errors.ErrInvalidSite)

	_, err = svc.Create(context.Background(), "Rovigo", "x", nil, nil)
	assert.ErrorIs(t, err, errors.ErrEmptyPhotoSet)
}

func TestCreateReportCommentPolicy(t *testing.T) {
	conf := testConfig()
	conf.RequireComment = true
	svc, err := NewReportService(newMemRepo(), NewMediaService(conf), conf)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "Rovigo", "   ", onePhoto(t, "a.jpg"), nil)
	assert.ErrorIs(t, err, errors.ErrEmptyComment)

	_, err = svc.Create(context.Background(), "Rovigo", "found it", onePhoto(t, "a.jpg"), nil)
	assert.NoError(t, err)
}

func TestListNewestFirst(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	mustCreate(t, svc, "Rovigo", "first")
	mustCreate(t, svc, "Uta", "second")
	mustCreate(t, svc, "Stomeo", "third")

	reports := svc.List(models.ReportFilter{})
	require.Len(t, reports, 3)
	assert.Equal(t, "third", reports[0].Comment)
	assert.Equal(t, "second", reports[1].Comment)
	assert.Equal(t, "first", reports[2].Comment)
}

func TestListFilters(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	mustCreate(t, svc, "Rovigo", "Broken drainage pipe")
	mustCreate(t, svc, "Uta", "cable tray loose")
	completed := mustCreate(t, svc, "Rovigo", "pipe joint leaking")
	_, err := svc.Complete(context.Background(), completed.ID, "sealed", onePhoto(t, "after.jpg"))
	require.NoError(t, err)

	// Text search is case-insensitive substring match on the comment.
	assert.Len(t, svc.List(models.ReportFilter{TextQuery: "PIPE"}), 2)
	assert.Len(t, svc.List(models.ReportFilter{Site: "Rovigo"}), 2)
	assert.Len(t, svc.List(models.ReportFilter{Site: models.FilterAll}), 3)
	assert.Len(t, svc.List(models.ReportFilter{Status: "completed"}), 1)
	assert.Len(t, svc.List(models.ReportFilter{Status: "open"}), 2)
	assert.Len(t, svc.List(models.ReportFilter{TextQuery: "pipe", Site: "Rovigo", Status: "open"}), 1)
}

func TestListFilterIsStable(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	mustCreate(t, svc, "Rovigo", "alpha")
	mustCreate(t, svc, "Uta", "beta")
	mustCreate(t, svc, "Rovigo", "gamma")

	first := svc.List(models.ReportFilter{Site: "Rovigo"})
	second := svc.List(models.ReportFilter{Site: "Rovigo"})
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "gamma", first[0].Comment)
	assert.Equal(t, "alpha", first[1].Comment)
}

func TestUpdateOpenReportOnly(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	report := mustCreate(t, svc, "Rovigo", "old comment")

	site := "Uta"
	comment := "new comment"
	updated, err := svc.Update(context.Background(), report.ID, &site, &comment)
	require.NoError(t, err)
	assert.Equal(t, "Uta", updated.Site)
	assert.Equal(t, "new comment", updated.Comment)

	bad := "Nowhere"
	_, err = svc.Update(context.Background(), report.ID, &bad, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidSite)

	_, err = svc.Complete(context.Background(), report.ID, "done", onePhoto(t, "after.jpg"))
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), report.ID, nil, &comment)
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestClosingStepSingleSlot(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	a := mustCreate(t, svc, "Rovigo", "a")
	b := mustCreate(t, svc, "Uta", "b")

	require.NoError(t, svc.StartClosing(a.ID))
	require.NotNil(t, svc.ClosingInProgress())
	assert.Equal(t, a.ID, *svc.ClosingInProgress())

	// A second report cannot enter the closing step concurrently.
	assert.ErrorIs(t, svc.StartClosing(b.ID), errors.ErrInvalidState)

	// Re-entering for the same report is a no-op.
	assert.NoError(t, svc.StartClosing(a.ID))

	require.NoError(t, svc.CancelClosing(a.ID))
	assert.Nil(t, svc.ClosingInProgress())
	assert.NoError(t, svc.StartClosing(b.ID))
}

func TestCompleteReport(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	report := mustCreate(t, svc, "Rovigo", "hole in fence")
	require.NoError(t, svc.StartClosing(report.ID))

	completed, err := svc.Complete(context.Background(), report.ID, "  patched with mesh  ", onePhoto(t, "after.jpg"))
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, "patched with mesh", completed.ClosingComment)
	require.Len(t, completed.ClosingPhotos, 1)
	// Closing photos carry no geotag.
	assert.Nil(t, completed.ClosingPhotos[0].Latitude)
	// Completing releases the closing slot.
	assert.Nil(t, svc.ClosingInProgress())
}

func TestCompleteRequiresClosingComment(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	report := mustCreate(t, svc, "Rovigo", "x")

	_, err := svc.Complete(context.Background(), report.ID, "   ", onePhoto(t, "after.jpg"))
	assert.ErrorIs(t, err, errors.ErrEmptyClosingComment)

	got, err := svc.Get(report.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOpen())
}

func TestCompleteInvalidTransitions(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	report := mustCreate(t, svc, "Rovigo", "x")

	_, err := svc.Complete(context.Background(), uuid.New(), "done", nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = svc.Complete(context.Background(), report.ID, "done", nil)
	require.NoError(t, err)
	_, err = svc.Complete(context.Background(), report.ID, "done again", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestAmendCompletedReport(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	report := mustCreate(t, svc, "Rovigo", "x")

	// Amending an open report is rejected.
	_, err := svc.AmendCompleted(context.Background(), report.ID, "fix", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	_, err = svc.Complete(context.Background(), report.ID, "first pass", onePhoto(t, "one.jpg"))
	require.NoError(t, err)

	amended, err := svc.AmendCompleted(context.Background(), report.ID, "second pass", onePhoto(t, "two.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "second pass", amended.ClosingComment)
	require.Len(t, amended.ClosingPhotos, 2)
	assert.Equal(t, "one.jpg", amended.ClosingPhotos[0].Filename)
	assert.Equal(t, "two.jpg", amended.ClosingPhotos[1].Filename)
	assert.True(t, amended.IsCompleted())

	_, err = svc.AmendCompleted(context.Background(), report.ID, "  ", nil)
	assert.ErrorIs(t, err, errors.ErrEmptyClosingComment)
}

func TestReopenDiscardsClosingData(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	report := mustCreate(t, svc, "Rovigo", "to reopen")

	_, err := svc.Reopen(context.Background(), report.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	_, err = svc.Complete(context.Background(), report.ID, "fixed", onePhoto(t, "after.jpg"))
	require.NoError(t, err)

	reopened, err := svc.Reopen(context.Background(), report.ID)
	require.NoError(t, err)
	assert.True(t, reopened.IsOpen())
	assert.Nil(t, reopened.CompletedAt)
	assert.Empty(t, reopened.ClosingComment)
	assert.Empty(t, reopened.ClosingPhotos)
	// The original report data survives.
	assert.Equal(t, "to reopen", reopened.Comment)
	require.Len(t, reopened.Photos, 1)
}

func TestRemoveReport(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	open := mustCreate(t, svc, "Rovigo", "open one")
	done := mustCreate(t, svc, "Uta", "done one")
	_, err := svc.Complete(context.Background(), done.ID, "done", nil)
	require.NoError(t, err)

	// Removal works from either status.
	require.NoError(t, svc.Remove(context.Background(), open.ID))
	require.NoError(t, svc.Remove(context.Background(), done.ID))
	assert.Empty(t, svc.List(models.ReportFilter{}))

	assert.ErrorIs(t, svc.Remove(context.Background(), open.ID), errors.ErrNotFound)
}

func TestRemoveClearsClosingSlot(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	report := mustCreate(t, svc, "Rovigo", "x")
	require.NoError(t, svc.StartClosing(report.ID))

	require.NoError(t, svc.Remove(context.Background(), report.ID))
	assert.Nil(t, svc.ClosingInProgress())
}

func TestCounts(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	mustCreate(t, svc, "Rovigo", "a")
	mustCreate(t, svc, "Uta", "b")
	done := mustCreate(t, svc, "Rovigo", "c")
	_, err := svc.Complete(context.Background(), done.ID, "done", nil)
	require.NoError(t, err)

	counts := svc.Counts(models.ReportFilter{})
	assert.Equal(t, models.ReportCounts{Open: 2, Completed: 1}, counts)

	counts = svc.Counts(models.ReportFilter{Site: "Rovigo"})
	assert.Equal(t, models.ReportCounts{Open: 1, Completed: 1}, counts)
}

func TestMarkers(t *testing.T) {
	svc := newTestReportService(t, newMemRepo())
	mustCreate(t, svc, "Rovigo", "open fault")
	done := mustCreate(t, svc, "Uta", "closed fault")
	_, err := svc.Complete(context.Background(), done.ID, "done", nil)
	require.NoError(t, err)

	// A report without geotagged photos contributes no marker.
	_, err = svc.Create(context.Background(), "Stomeo", "no gps", onePhoto(t, "x.jpg"), nil)
	require.NoError(t, err)

	markers := svc.Markers(models.ReportFilter{})
	require.Len(t, markers, 2)
	for _, m := range markers {
		assert.Equal(t, 45.1, m.Latitude)
		assert.Equal(t, 9.3, m.Longitude)
		assert.NotEmpty(t, m.Popup)
	}

	colors := map[string]int{}
	for _, m := range markers {
		colors[m.Color]++
	}
	assert.Equal(t, 1, colors["#f97316"])
	assert.Equal(t, 1, colors["#22c55e"])
}

func TestStateSurvivesReload(t *testing.T) {
	repo := newMemRepo()
	svc := newTestReportService(t, repo)
	report := mustCreate(t, svc, "Villacidro 1", "persisted")
	_, err := svc.Complete(context.Background(), report.ID, "fixed", onePhoto(t, "after.jpg"))
	require.NoError(t, err)

	reloaded := newTestReportService(t, repo)
	got, err := reloaded.Get(report.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Comment)
	assert.True(t, got.IsCompleted())
	assert.Equal(t, "fixed", got.ClosingComment)
}

func TestSaveFailureKeepsInMemoryState(t *testing.T) {
	repo := newMemRepo()
	repo.fail = true
	svc := newTestReportService(t, repo)

	report := mustCreate(t, svc, "Rovigo", "unsaved")

	// Persistence is best-effort; the mutation stands.
	got, err := svc.Get(report.ID)
	require.NoError(t, err)
	assert.Equal(t, "unsaved", got.Comment)
	assert.Empty(t, repo.blobs)
}
