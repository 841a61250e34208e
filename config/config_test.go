package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/ocr"
	"github.com/publicMindee/doctr/reader"
)

const sampleYAML = `
engine: doctr
detection:
  arch: linknet
  url: ${TEST_SERVING}/v1/models/linknet:predict
  batch_size: 4
recognition:
  arch: sar_resnet31
  url: ${TEST_SERVING}/v1/models/sar:predict
  timeout: 5s
  vocab: latin
server:
  addr: ":9000"
  cors_origins: ["https://example.com"]
log:
  level: debug
  format: json
`

func withModels(c *Config) *Config {
	c.Detection.URL = "http://localhost:8501/v1/models/db:predict"
	c.Recognition.URL = "http://localhost:8501/v1/models/crnn:predict"
	return c
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, EngineDoctr, cfg.Engine)
	assert.Equal(t, "db_resnet50", cfg.Detection.Arch)
	assert.Equal(t, "crnn_vgg16_bn", cfg.Recognition.Arch)
	assert.Equal(t, 2, cfg.Detection.BatchSize)
	assert.Equal(t, 32, cfg.Recognition.BatchSize)

	// model endpoints have no default
	assert.ErrorIs(t, cfg.Validate(), nn.ErrInvalidConfig)
	assert.NoError(t, withModels(cfg).Validate())
}

func TestParse(t *testing.T) {
	t.Setenv("TEST_SERVING", "http://serving:8501")

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "linknet", cfg.Detection.Arch)
	assert.Equal(t, "http://serving:8501/v1/models/linknet:predict", cfg.Detection.URL)
	assert.Equal(t, 4, cfg.Detection.BatchSize)
	assert.Equal(t, 60*time.Second, cfg.Detection.Timeout)

	assert.Equal(t, "sar_resnet31", cfg.Recognition.Arch)
	assert.Equal(t, 5*time.Second, cfg.Recognition.Timeout)
	assert.Equal(t, 32, cfg.Recognition.BatchSize)
	assert.Equal(t, "latin", cfg.Recognition.Vocab)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 20, cfg.Server.MaxUploadMB)
	assert.Equal(t, reader.DefaultMaxPixels, cfg.Server.MaxPixels)
	assert.Equal(t, reader.DefaultMaxPages, cfg.Server.MaxPages)
	assert.Equal(t, []string{"https://example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)

	assert.NoError(t, cfg.Validate())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("detection: [unterminated"))
	assert.ErrorIs(t, err, nn.ErrInvalidConfig)
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_SERVING", "http://serving:8501")
	t.Setenv("DOCTR_SERVER_ADDR", ":7000")

	path := filepath.Join(t.TempDir(), "doctr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "linknet", cfg.Detection.Arch)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// defaults alone lack model endpoints
	_, err = Load("")
	assert.ErrorIs(t, err, nn.ErrInvalidConfig)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DOCTR_ENGINE", "tesseract")
	t.Setenv("DOCTR_DETECTION_ARCH", "linknet")
	t.Setenv("DOCTR_DETECTION_URL", "http://det")
	t.Setenv("DOCTR_RECOGNITION_ARCH", "sar_vgg16_bn")
	t.Setenv("DOCTR_RECOGNITION_URL", "http://reco")
	t.Setenv("DOCTR_MODEL_TOKEN", "secret")
	t.Setenv("DOCTR_TESSERACT_LANGUAGES", "eng, fra,,deu")
	t.Setenv("DOCTR_TESSERACT_PSM", "6")
	t.Setenv("DOCTR_SERVER_MAX_UPLOAD_MB", "5")
	t.Setenv("DOCTR_SERVER_MAX_PIXELS", "1000000")
	t.Setenv("DOCTR_SERVER_MAX_PAGES", "3")
	t.Setenv("DOCTR_LOG_LEVEL", "warn")
	t.Setenv("DOCTR_LOG_FORMAT", "json")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, EngineTesseract, cfg.Engine)
	assert.Equal(t, "linknet", cfg.Detection.Arch)
	assert.Equal(t, "http://det", cfg.Detection.URL)
	assert.Equal(t, "sar_vgg16_bn", cfg.Recognition.Arch)
	assert.Equal(t, "http://reco", cfg.Recognition.URL)
	assert.Equal(t, "secret", cfg.Detection.Token)
	assert.Equal(t, "secret", cfg.Recognition.Token)
	assert.Equal(t, []string{"eng", "fra", "deu"}, cfg.Tesseract.Languages)
	assert.Equal(t, 6, cfg.Tesseract.PSM)
	assert.Equal(t, 5, cfg.Server.MaxUploadMB)
	assert.Equal(t, 1000000, cfg.Server.MaxPixels)
	assert.Equal(t, 3, cfg.Server.MaxPages)
	assert.Equal(t, LogConfig{Level: "warn", Format: "json"}, cfg.Log)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvInvalidInteger(t *testing.T) {
	t.Setenv("DOCTR_TESSERACT_PSM", "auto")
	assert.ErrorIs(t, Default().ApplyEnv(), nn.ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		is     error
	}{
		{"unknown engine", func(c *Config) { c.Engine = "easyocr" }, nn.ErrInvalidConfig},
		{"unknown detection arch", func(c *Config) { c.Detection.Arch = "fast_tiny" }, nn.ErrUnknownArchitecture},
		{"unknown recognition arch", func(c *Config) { c.Recognition.Arch = "vitstr" }, nn.ErrUnknownArchitecture},
		{"missing url", func(c *Config) { c.Recognition.URL = "" }, nn.ErrInvalidConfig},
		{"negative batch", func(c *Config) { c.Detection.BatchSize = -1 }, nn.ErrInvalidConfig},
		{"unknown vocab", func(c *Config) { c.Recognition.Vocab = "klingon" }, nn.ErrInvalidConfig},
		{"no languages", func(c *Config) { c.Engine = EngineTesseract; c.Tesseract.Languages = nil }, nn.ErrInvalidConfig},
		{"psm out of range", func(c *Config) { c.Engine = EngineTesseract; c.Tesseract.PSM = 14 }, nn.ErrInvalidConfig},
		{"line tolerance", func(c *Config) { c.Builder.LineTolerance = 0 }, nn.ErrInvalidConfig},
		{"paragraph break", func(c *Config) { c.Builder.ParagraphBreak = -1 }, nn.ErrInvalidConfig},
		{"upload size", func(c *Config) { c.Server.MaxUploadMB = 0 }, nn.ErrInvalidConfig},
		{"max pixels", func(c *Config) { c.Server.MaxPixels = 0 }, nn.ErrInvalidConfig},
		{"max pages", func(c *Config) { c.Server.MaxPages = -1 }, nn.ErrInvalidConfig},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, nn.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := withModels(Default())
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.is)
		})
	}
}

func TestNewEngine(t *testing.T) {
	cfg := withModels(Default())
	cfg.Recognition.Vocab = "french"

	engine, err := cfg.NewEngine(nil)
	require.NoError(t, err)
	assert.Equal(t, "doctr", engine.Name())
	assert.IsType(t, &ocr.Predictor{}, engine)
}

func TestNewEngineErrors(t *testing.T) {
	cfg := withModels(Default())
	cfg.Engine = "easyocr"
	_, err := cfg.NewEngine(nil)
	assert.ErrorIs(t, err, nn.ErrInvalidConfig)

	cfg = withModels(Default())
	cfg.Detection.URL = "ftp://models"
	_, err = cfg.NewEngine(nil)
	assert.ErrorIs(t, err, nn.ErrInvalidConfig)
}

func TestNewEngineTesseract(t *testing.T) {
	cfg := Default()
	cfg.Engine = EngineTesseract

	engine, err := cfg.NewEngine(nil)
	if errors.Is(err, ocr.ErrOCRNotEnabled) {
		t.Skip("built without the ocr tag")
	}
	if err != nil {
		t.Skipf("tesseract unavailable: %v", err)
	}
	defer engine.(*ocr.TesseractEngine).Close()
	assert.Equal(t, "tesseract", engine.Name())
}
