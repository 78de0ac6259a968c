package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Debug              bool    `envconfig:"debug"`
	Host               string  `envconfig:"host" default:"127.0.0.1"`
	Port               int     `envconfig:"port" default:"8750"`
	Env                string  `envconfig:"env"`
	DataPath           string  `envconfig:"data_path" default:"faultlog.db"`
	StorageKey         string  `envconfig:"storage_key" default:"construction_fault_reports_v17"`
	PhotoMaxDimension  int     `envconfig:"photo_max_dimension" default:"1600"`
	PhotoQualityHigh   int     `envconfig:"photo_quality_high" default:"90"`
	PhotoQualityLow    int     `envconfig:"photo_quality_low" default:"70"`
	PhotoSizeThreshold int64   `envconfig:"photo_size_threshold" default:"2097152"`
	GeoSampleCount     int     `envconfig:"geo_sample_count" default:"3"`
	GeoTimeoutMs       int     `envconfig:"geo_timeout_ms" default:"10000"`
	DefaultLatitude    float64 `envconfig:"default_latitude" default:"41.8719"`
	DefaultLongitude   float64 `envconfig:"default_longitude" default:"12.5674"`
	MapLinkBase        string  `envconfig:"map_link_base" default:"https://maps.google.com/"`
	RequireComment     bool    `envconfig:"require_comment"`
	AllowedOrigin      string  `envconfig:"allowed_origin"`
}

func Load() (*Config, error) {
	env := os.Getenv("GIN_MODE")
	if env != "release" {
		if err := godotenv.Load("./.env"); err != nil {
			log.Printf("couldn't load env vars: %v", err)
		}
	}

	c := &Config{}
	err := envconfig.Process("faultlog", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}
