package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sites is the fixed vocabulary of construction sites a report can belong to.
var Sites = []string{
	"A6", "Altamura", "Borgonovo", "Rovigo",
	"Serrotti EST", "Stomeo", "Stornarella", "Uta",
	"Villacidro 1", "Villacidro 2",
}

func IsValidSite(name string) bool {
	for _, s := range Sites {
		if s == name {
			return true
		}
	}
	return false
}

type ReportStatus string

const (
	ReportStatusOpen      ReportStatus = "open"
	ReportStatusCompleted ReportStatus = "completed"
)

func (s ReportStatus) IsValid() bool {
	return s == ReportStatusOpen || s == ReportStatusCompleted
}

// Photo is a normalized, geotagged image attached to a report. The payload
// is stored inline as a base64 data URL so the whole report set serializes
// into a single blob.
type Photo struct {
	DataURL    string    `json:"data_url"`
	Filename   string    `json:"filename"`
	CapturedAt time.Time `json:"captured_at"`
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
}

type Report struct {
	ID             uuid.UUID    `json:"id"`
	Site           string       `json:"site"`
	Comment        string       `json:"comment"`
	CreatedAt      time.Time    `json:"created_at"`
	Photos         []Photo      `json:"photos"`
	Status         ReportStatus `json:"status"`
	CompletedAt    *time.Time   `json:"completed_at"`
	ClosingComment string       `json:"closing_comment"`
	ClosingPhotos  []Photo      `json:"closing_photos"`
}

func (r *Report) IsOpen() bool {
	return r.Status == ReportStatusOpen
}

func (r *Report) IsCompleted() bool {
	return r.Status == ReportStatusCompleted
}

// Coordinates returns the position of the first geotagged photo. Photos
// inherit the report-level position sampled at creation, so the first one
// stands for the whole report.
func (r *Report) Coordinates() (lat, lng float64, ok bool) {
	for _, p := range r.Photos {
		if p.Latitude != nil && p.Longitude != nil {
			return *p.Latitude, *p.Longitude, true
		}
	}
	return 0, 0, false
}

// FilterAll matches every site or status in a ReportFilter.
const FilterAll = "all"

// ReportFilter narrows a listing. Zero values match everything.
type ReportFilter struct {
	TextQuery string
	Site      string
	Status    string
}

func (f ReportFilter) Matches(r *Report) bool {
	if f.TextQuery != "" &&
		!strings.Contains(strings.ToLower(r.Comment), strings.ToLower(f.TextQuery)) {
		return false
	}
	if f.Site != "" && f.Site != FilterAll && f.Site != r.Site {
		return false
	}
	if f.Status != "" && f.Status != FilterAll && ReportStatus(f.Status) != r.Status {
		return false
	}
	return true
}

// RawPhoto is an un-normalized image as delivered by the camera or the
// gallery picker.
type RawPhoto struct {
	Data     []byte
	Filename string
}

type ReportCounts struct {
	Open      int `json:"open"`
	Completed int `json:"completed"`
}

// Marker is the read-only shape consumed by the external map widget.
type Marker struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Color     string  `json:"color"`
	Popup     string  `json:"popup"`
}
