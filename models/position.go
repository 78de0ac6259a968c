package models

import "fmt"

// Position is a resolved coordinate pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PositionFix is a single reading from the geolocation sensor. Smaller
// AccuracyMeters means a better fix.
type PositionFix struct {
	Lat            float64
	Lng            float64
	AccuracyMeters float64
}

func (f PositionFix) Position() Position {
	return Position{Lat: f.Lat, Lng: f.Lng}
}

// FormatCoordinate renders a coordinate component with the 6-decimal-place
// precision used everywhere coordinates appear in text (CSV, PDF, QR payload).
func FormatCoordinate(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
