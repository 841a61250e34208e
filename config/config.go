// Package config loads the YAML configuration of the OCR engines, the HTTP
// server and logging.
//
// A minimal file selecting the detection and recognition models served by
// TensorFlow Serving:
//
//	engine: doctr
//	detection:
//	  arch: db_resnet50
//	  url: http://localhost:8501/v1/models/db_resnet50:predict
//	recognition:
//	  arch: crnn_vgg16_bn
//	  url: http://localhost:8501/v1/models/crnn_vgg16_bn:predict
//
// ${VAR} references in the file are expanded from the environment and
// DOCTR_* variables override individual settings, see [Config.ApplyEnv].
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/publicMindee/doctr/detection"
	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/reader"
	"github.com/publicMindee/doctr/recognition"
)

// Engine names
const (
	EngineDoctr     = "doctr"
	EngineTesseract = "tesseract"
)

type Config struct {
	Engine string `yaml:"engine"`

	Detection   ModelConfig `yaml:"detection"`
	Recognition ModelConfig `yaml:"recognition"`

	Tesseract TesseractConfig `yaml:"tesseract"`
	Builder   BuilderConfig   `yaml:"builder"`

	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// ModelConfig selects an architecture and the endpoint serving its weights
type ModelConfig struct {
	Arch string `yaml:"arch"`
	URL  string `yaml:"url"`

	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`

	BatchSize int `yaml:"batch_size"`

	// Vocab names a builtin character set, recognition only
	Vocab string `yaml:"vocab"`
}

type TesseractConfig struct {
	Languages []string `yaml:"languages"`
	PSM       int      `yaml:"psm"`
}

type BuilderConfig struct {
	LineTolerance  float64 `yaml:"line_tolerance"`
	ParagraphBreak float64 `yaml:"paragraph_break"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	MaxUploadMB int           `yaml:"max_upload_mb"`
	Timeout     time.Duration `yaml:"timeout"`

	// MaxPixels bounds each decoded page, MaxPages each uploaded PDF
	MaxPixels int `yaml:"max_pixels"`
	MaxPages  int `yaml:"max_pages"`

	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Engine: EngineDoctr,

		Detection: ModelConfig{
			Arch:      "db_resnet50",
			Timeout:   60 * time.Second,
			BatchSize: 2,
		},
		Recognition: ModelConfig{
			Arch:      "crnn_vgg16_bn",
			Timeout:   60 * time.Second,
			BatchSize: 32,
		},

		Tesseract: TesseractConfig{
			Languages: []string{"eng"},
			PSM:       3,
		},
		Builder: BuilderConfig{
			LineTolerance:  0.5,
			ParagraphBreak: 0.035,
		},

		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 20,
			Timeout:     2 * time.Minute,
			MaxPixels:   reader.DefaultMaxPixels,
			MaxPages:    reader.DefaultMaxPages,
			CORSOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path on top of the defaults, applies environment
// overrides and validates the result. An empty path only uses the defaults
// and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML content on top of the defaults. ${VAR} references are
// expanded first.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	content := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", nn.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from DOCTR_* environment variables:
//
//	DOCTR_ENGINE
//	DOCTR_DETECTION_ARCH, DOCTR_DETECTION_URL
//	DOCTR_RECOGNITION_ARCH, DOCTR_RECOGNITION_URL
//	DOCTR_MODEL_TOKEN
//	DOCTR_TESSERACT_LANGUAGES (comma separated), DOCTR_TESSERACT_PSM
//	DOCTR_SERVER_ADDR, DOCTR_SERVER_MAX_UPLOAD_MB
//	DOCTR_LOG_LEVEL, DOCTR_LOG_FORMAT
func (c *Config) ApplyEnv() error {
	setString(&c.Engine, "DOCTR_ENGINE")
	setString(&c.Detection.Arch, "DOCTR_DETECTION_ARCH")
	setString(&c.Detection.URL, "DOCTR_DETECTION_URL")
	setString(&c.Recognition.Arch, "DOCTR_RECOGNITION_ARCH")
	setString(&c.Recognition.URL, "DOCTR_RECOGNITION_URL")
	setString(&c.Server.Addr, "DOCTR_SERVER_ADDR")
	setString(&c.Log.Level, "DOCTR_LOG_LEVEL")
	setString(&c.Log.Format, "DOCTR_LOG_FORMAT")

	if token := os.Getenv("DOCTR_MODEL_TOKEN"); token != "" {
		c.Detection.Token = token
		c.Recognition.Token = token
	}

	if langs := os.Getenv("DOCTR_TESSERACT_LANGUAGES"); langs != "" {
		c.Tesseract.Languages = nil
		for _, l := range strings.Split(langs, ",") {
			if l = strings.TrimSpace(l); l != "" {
				c.Tesseract.Languages = append(c.Tesseract.Languages, l)
			}
		}
	}

	if err := setInt(&c.Tesseract.PSM, "DOCTR_TESSERACT_PSM"); err != nil {
		return err
	}
	if err := setInt(&c.Server.MaxUploadMB, "DOCTR_SERVER_MAX_UPLOAD_MB"); err != nil {
		return err
	}
	if err := setInt(&c.Server.MaxPixels, "DOCTR_SERVER_MAX_PIXELS"); err != nil {
		return err
	}
	return setInt(&c.Server.MaxPages, "DOCTR_SERVER_MAX_PAGES")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", nn.ErrInvalidConfig, key, v)
	}
	*dst = n
	return nil
}

// Validate reports the first unusable setting
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineDoctr:
		if _, err := detection.Arch(c.Detection.Arch); err != nil {
			return fmt.Errorf("detection: %w", err)
		}
		if _, err := recognition.Arch(c.Recognition.Arch); err != nil {
			return fmt.Errorf("recognition: %w", err)
		}
		if c.Detection.URL == "" || c.Recognition.URL == "" {
			return fmt.Errorf("%w: detection.url and recognition.url are required by the doctr engine", nn.ErrInvalidConfig)
		}
		if c.Detection.BatchSize < 0 || c.Recognition.BatchSize < 0 {
			return fmt.Errorf("%w: batch sizes must not be negative", nn.ErrInvalidConfig)
		}
		if c.Recognition.Vocab != "" {
			if _, err := recognition.BuiltinVocab(c.Recognition.Vocab); err != nil {
				return fmt.Errorf("recognition: %w", err)
			}
		}
	case EngineTesseract:
		if len(c.Tesseract.Languages) == 0 {
			return fmt.Errorf("%w: tesseract.languages must not be empty", nn.ErrInvalidConfig)
		}
		if c.Tesseract.PSM < 0 || c.Tesseract.PSM > 13 {
			return fmt.Errorf("%w: tesseract.psm must be within [0, 13], got %d", nn.ErrInvalidConfig, c.Tesseract.PSM)
		}
	default:
		return fmt.Errorf("%w: unknown engine %q", nn.ErrInvalidConfig, c.Engine)
	}

	if c.Builder.LineTolerance <= 0 || c.Builder.ParagraphBreak < 0 {
		return fmt.Errorf("%w: builder.line_tolerance must be positive and builder.paragraph_break not negative", nn.ErrInvalidConfig)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: server.max_upload_mb must be positive", nn.ErrInvalidConfig)
	}
	if c.Server.MaxPixels <= 0 || c.Server.MaxPages <= 0 {
		return fmt.Errorf("%w: server.max_pixels and server.max_pages must be positive", nn.ErrInvalidConfig)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", nn.ErrInvalidConfig, c.Log.Format)
	}
	return nil
}
