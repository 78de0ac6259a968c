package services

import (
	"context"
	"log"
	"time"

	"github.com/marangon/faultlog/config"
	"github.com/marangon/faultlog/models"
)

// FixStream is a live subscription to the geolocation sensor. Close
// releases the underlying sensor callback and must always be called.
type FixStream interface {
	Fixes() <-chan models.PositionFix
	Errors() <-chan error
	Close()
}

// SampleProgress receives the best accuracy seen so far, for UI display.
type SampleProgress func(bestAccuracyMeters float64, observed int)

type GeoService interface {
	// SampleBest watches the stream and returns the most accurate of the
	// first n fixes, or the best seen when the timeout fires first. A nil
	// or failing stream resolves to the fallback coordinate.
	SampleBest(ctx context.Context, stream FixStream, n int, timeout time.Duration, fallback models.Position, onProgress SampleProgress) models.Position

	// BestPosition is SampleBest with the configured sample count, timeout
	// and fallback.
	BestPosition(ctx context.Context, stream FixStream, onProgress SampleProgress) models.Position

	Fallback() models.Position
}

type geoService struct {
	Config *config.Config
}

func NewGeoService(conf *config.Config) GeoService {
	return &geoService{Config: conf}
}

func (g *geoService) Fallback() models.Position {
	return models.Position{Lat: g.Config.DefaultLatitude, Lng: g.Config.DefaultLongitude}
}

func (g *geoService) BestPosition(ctx context.Context, stream FixStream, onProgress SampleProgress) models.Position {
	timeout := time.Duration(g.Config.GeoTimeoutMs) * time.Millisecond
	return g.SampleBest(ctx, stream, g.Config.GeoSampleCount, timeout, g.Fallback(), onProgress)
}

func (g *geoService) SampleBest(ctx context.Context, stream FixStream, n int, timeout time.Duration, fallback models.Position, onProgress SampleProgress) models.Position {
	if stream == nil {
		return fallback
	}
	defer stream.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var best *models.PositionFix
	observed := 0

	for {
		select {
		case fix, ok := <-stream.Fixes():
			if !ok {
				return resolve(best, fallback)
			}
			observed++
			if best == nil || fix.AccuracyMeters < best.AccuracyMeters {
				f := fix
				best = &f
			}
			if onProgress != nil {
				onProgress(best.AccuracyMeters, observed)
			}
			if observed >= n {
				return best.Position()
			}
		case err := <-stream.Errors():
			if err != nil {
				log.Printf("geolocation stream error: %v", err)
			}
			return resolve(best, fallback)
		case <-timer.C:
			return resolve(best, fallback)
		case <-ctx.Done():
			return resolve(best, fallback)
		}
	}
}

func resolve(best *models.PositionFix, fallback models.Position) models.Position {
	if best == nil {
		return fallback
	}
	return best.Position()
}
