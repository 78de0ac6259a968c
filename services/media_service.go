package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/marangon/faultlog/config"
	"github.com/marangon/faultlog/errors"
	"github.com/marangon/faultlog/models"
)

// ImageConstraints bound the size and quality of a normalized photo.
type ImageConstraints struct {
	MaxDimensionPx     int
	QualityHigh        int
	QualityLow         int
	SizeThresholdBytes int64
}

// NormalizedImage is the result of running a raw capture through the
// normalizer. WasCompressed reports whether the low-quality branch was
// taken because the original exceeded the size threshold.
type NormalizedImage struct {
	Data          []byte
	Width         int
	Height        int
	WasCompressed bool
}

type MediaService interface {
	Normalize(raw []byte, c ImageConstraints) (*NormalizedImage, error)
	NormalizePhotos(raws []models.RawPhoto, pos *models.Position, capturedAt time.Time) ([]models.Photo, error)
	Thumbnail(raw []byte, widthPx int) ([]byte, error)
	Constraints() ImageConstraints
}

type mediaService struct {
	Config *config.Config
}

func NewMediaService(conf *config.Config) MediaService {
	return &mediaService{Config: conf}
}

func (m *mediaService) Constraints() ImageConstraints {
	return ImageConstraints{
		MaxDimensionPx:     m.Config.PhotoMaxDimension,
		QualityHigh:        m.Config.PhotoQualityHigh,
		QualityLow:         m.Config.PhotoQualityLow,
		SizeThresholdBytes: m.Config.PhotoSizeThreshold,
	}
}

// decodeImage attempts the photographic codec first, then the lossless
// fallback. Exhaustion of the list means the input is not a usable image.
func decodeImage(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, errors.ErrImageDecode
	}
	decoders := []func(*bytes.Reader) (image.Image, error){
		func(r *bytes.Reader) (image.Image, error) { return jpeg.Decode(r) },
		func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) },
	}
	for _, decode := range decoders {
		img, err := decode(bytes.NewReader(raw))
		if err == nil {
			b := img.Bounds()
			if b.Dx() == 0 || b.Dy() == 0 {
				return nil, errors.ErrImageDecode
			}
			return img, nil
		}
	}
	return nil, errors.ErrImageDecode
}

func (m *mediaService) Normalize(raw []byte, c ImageConstraints) (*NormalizedImage, error) {
	img, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}

	// Fit never upscales, so the downscale factor is capped at 1.0.
	b := img.Bounds()
	if b.Dx() > c.MaxDimensionPx || b.Dy() > c.MaxDimensionPx {
		img = imaging.Fit(img, c.MaxDimensionPx, c.MaxDimensionPx, imaging.Lanczos)
	}

	wasCompressed := int64(len(raw)) > c.SizeThresholdBytes
	quality := c.QualityHigh
	if wasCompressed {
		quality = c.QualityLow
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode normalized image: %v", err)
	}

	out := img.Bounds()
	return &NormalizedImage{
		Data:          buf.Bytes(),
		Width:         out.Dx(),
		Height:        out.Dy(),
		WasCompressed: wasCompressed,
	}, nil
}

// NormalizePhotos runs the normalizer over each raw capture concurrently,
// stamping every photo with the shared position and timestamp. Output
// order matches capture order regardless of goroutine completion order.
func (m *mediaService) NormalizePhotos(raws []models.RawPhoto, pos *models.Position, capturedAt time.Time) ([]models.Photo, error) {
	c := m.Constraints()
	photos := make([]models.Photo, len(raws))
	errs := make([]error, len(raws))

	var wg sync.WaitGroup
	for i, raw := range raws {
		wg.Add(1)
		go func(i int, raw models.RawPhoto) {
			defer wg.Done()
			normalized, err := m.Normalize(raw.Data, c)
			if err != nil {
				errs[i] = fmt.Errorf("photo %q: %w", raw.Filename, err)
				return
			}
			photo := models.Photo{
				DataURL:    EncodeDataURL(normalized.Data),
				Filename:   raw.Filename,
				CapturedAt: capturedAt,
			}
			if pos != nil {
				lat, lng := pos.Lat, pos.Lng
				photo.Latitude = &lat
				photo.Longitude = &lng
			}
			photos[i] = photo
		}(i, raw)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return photos, nil
}

// Thumbnail produces a fixed-width JPEG for export embedding.
func (m *mediaService) Thumbnail(raw []byte, widthPx int) ([]byte, error) {
	img, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	thumbnail := resize.Resize(uint(widthPx), 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumbnail, nil); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %v", err)
	}
	return buf.Bytes(), nil
}

const dataURLPrefix = "data:image/jpeg;base64,"

func EncodeDataURL(data []byte) string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(data)
}

func DecodeDataURL(dataURL string) ([]byte, error) {
	idx := strings.Index(dataURL, ",")
	if !strings.HasPrefix(dataURL, "data:") || idx < 0 {
		return nil, errors.ErrImageDecode
	}
	raw, err := base64.StdEncoding.DecodeString(dataURL[idx+1:])
	if err != nil {
		return nil, errors.ErrImageDecode
	}
	return raw, nil
}
