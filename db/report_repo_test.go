package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marangon/faultlog/config"
	"github.com/marangon/faultlog/models"
)

func testDB(t *testing.T) *SqliteDB {
	t.Helper()
	conf := &config.Config{DataPath: filepath.Join(t.TempDir(), "faultlog_test.db")}
	s := GetDB(conf)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReports() []models.Report {
	lat, lng := 45.123456, 9.654321
	return []models.Report{
		{
			ID:        uuid.New(),
			Site:      "Rovigo",
			Comment:   "crack in retaining wall",
			CreatedAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
			Status:    models.ReportStatusOpen,
			Photos: []models.Photo{{
				DataURL:    "data:image/jpeg;base64,AAAA",
				Filename:   "wall.jpg",
				CapturedAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
				Latitude:   &lat,
				Longitude:  &lng,
			}},
		},
	}
}

func TestLoadMissingKeyReturnsEmpty(t *testing.T) {
	repo := NewReportRepo(testDB(t))

	reports, err := repo.Load(context.Background(), "construction_fault_reports_v17")
	require.NoError(t, err)
	assert.Nil(t, reports)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	repo := NewReportRepo(testDB(t))
	ctx := context.Background()
	in := sampleReports()

	require.NoError(t, repo.Save(ctx, "construction_fault_reports_v17", in))

	out, err := repo.Load(ctx, "construction_fault_reports_v17")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].ID, out[0].ID)
	assert.Equal(t, "Rovigo", out[0].Site)
	assert.Equal(t, "crack in retaining wall", out[0].Comment)
	require.Len(t, out[0].Photos, 1)
	require.NotNil(t, out[0].Photos[0].Latitude)
	assert.Equal(t, 45.123456, *out[0].Photos[0].Latitude)
}

func TestSaveOverwritesLastWriteWins(t *testing.T) {
	repo := NewReportRepo(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "k", sampleReports()))
	require.NoError(t, repo.Save(ctx, "k", nil))

	out, err := repo.Load(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestKeysAreIndependent(t *testing.T) {
	repo := NewReportRepo(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "v16", sampleReports()))

	out, err := repo.Load(ctx, "v17")
	require.NoError(t, err)
	assert.Nil(t, out)
}
