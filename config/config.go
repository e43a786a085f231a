// Package config reads the server configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/PhuocnhQn/photo-frame-editor/scene"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every environment driven setting.
type Config struct {
	// StorageType selects the asset store: memory, filesystem, sqlite or s3.
	StorageType      string `env:"STORAGE_TYPE" envDefault:"memory"`
	LocalStoragePath string `env:"LOCAL_STORAGE_PATH" envDefault:"./data"`
	DataSourceName   string `env:"DATA_SOURCE_NAME" envDefault:"photo-frame.db"`
	S3BucketName     string `env:"S3_BUCKET_NAME"`

	// CanvasWidth and CanvasHeight are used for sessions created without
	// explicit dimensions.
	CanvasWidth  int    `env:"CANVAS_WIDTH" envDefault:"800"`
	CanvasHeight int    `env:"CANVAS_HEIGHT" envDefault:"600"`
	Stacking     string `env:"STACKING" envDefault:"frame"`
	JPEGQuality  int    `env:"JPEG_QUALITY" envDefault:"92"`

	// MaxCanvasSide caps session canvases; MaxImagePixels caps decoded frames
	// and photos.
	MaxCanvasSide  int   `env:"MAX_CANVAS_SIDE" envDefault:"8192"`
	MaxImagePixels int64 `env:"MAX_IMAGE_PIXELS" envDefault:"50000000"`

	SessionIdleTimeout   time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	SessionSweepSchedule string        `env:"SESSION_SWEEP_SCHEDULE" envDefault:"@every 5m"`

	// JWTSecret enables the bearer token guard on catalog mutations when set.
	JWTSecret      string   `env:"JWT_SECRET"`
	CORSOrigins    []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	MaxUploadBytes int64    `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`
}

// Load reads the given .env files (".env" when none are given) into the
// process environment and parses Config from it. Missing .env files are not an
// error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment.
func Parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that the environment parser cannot express.
func (c *Config) Validate() error {
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		return fmt.Errorf("canvas size %dx%d: %w", c.CanvasWidth, c.CanvasHeight, scene.ErrInvalidDimension)
	}
	if c.MaxCanvasSide <= 0 || c.MaxCanvasSide > scene.MaxCanvasSide {
		return fmt.Errorf("MAX_CANVAS_SIDE must be between 1 and %d, got %d", scene.MaxCanvasSide, c.MaxCanvasSide)
	}
	if c.CanvasWidth > c.MaxCanvasSide || c.CanvasHeight > c.MaxCanvasSide {
		return fmt.Errorf("canvas size %dx%d exceeds MAX_CANVAS_SIDE %d: %w", c.CanvasWidth, c.CanvasHeight, c.MaxCanvasSide, scene.ErrInvalidDimension)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be positive, got %d", c.MaxImagePixels)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if _, err := scene.ParseStacking(c.Stacking); err != nil {
		return err
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive, got %s", c.SessionIdleTimeout)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	switch c.StorageType {
	case "", "memory", "filesystem", "sqlite", "s3":
	default:
		return fmt.Errorf("unknown STORAGE_TYPE %q", c.StorageType)
	}
	if c.StorageType == "s3" && c.S3BucketName == "" {
		return errors.New("S3_BUCKET_NAME environment variable must be set for s3 storage type")
	}
	return nil
}

// StackingOrder returns the parsed stacking policy.
func (c *Config) StackingOrder() scene.Stacking {
	s, _ := scene.ParseStacking(c.Stacking)
	return s
}
