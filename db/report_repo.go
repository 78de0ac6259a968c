package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/marangon/faultlog/models"
)

// ReportRepository is the persistent key-value contract the report store
// writes through: the full report set serializes into a single keyed blob,
// last write wins. A missing key reads back as an empty list.
type ReportRepository interface {
	Load(ctx context.Context, key string) ([]models.Report, error)
	Save(ctx context.Context, key string, reports []models.Report) error
}

type reportRepo struct {
	DB *sql.DB
}

func NewReportRepo(s *SqliteDB) ReportRepository {
	return &reportRepo{DB: s.DB}
}

func (r *reportRepo) Load(ctx context.Context, key string) ([]models.Report, error) {
	var raw []byte
	query := `SELECT value FROM blobs WHERE key = ?`
	err := r.DB.QueryRowContext(ctx, query, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load report blob")
	}

	var reports []models.Report
	if err := json.Unmarshal(raw, &reports); err != nil {
		return nil, errors.Wrap(err, "failed to decode report blob")
	}
	return reports, nil
}

func (r *reportRepo) Save(ctx context.Context, key string, reports []models.Report) error {
	raw, err := json.Marshal(reports)
	if err != nil {
		return errors.Wrap(err, "failed to encode report blob")
	}

	query := `INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := r.DB.ExecContext(ctx, query, key, raw, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return errors.Wrap(err, "failed to save report blob")
	}
	return nil
}
