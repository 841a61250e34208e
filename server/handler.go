package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/publicMindee/doctr/config"
	"github.com/publicMindee/doctr/format"
	"github.com/publicMindee/doctr/model"
	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/ocr"
	"github.com/publicMindee/doctr/reader"
)

var errNoPages = fmt.Errorf("%w: no page images in request", reader.ErrInvalidImage)

type Handler struct {
	engine ocr.Engine
	logger *slog.Logger

	maxUpload int64
	maxPixels int
	maxPages  int

	// engines are not required to be safe for concurrent use
	mu sync.Mutex
}

func NewHandler(engine ocr.Engine, cfg config.ServerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxUpload := int64(cfg.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	maxPixels, maxPages := cfg.MaxPixels, cfg.MaxPages
	if maxPixels <= 0 {
		maxPixels = reader.DefaultMaxPixels
	}
	if maxPages <= 0 {
		maxPages = reader.DefaultMaxPages
	}
	return &Handler{
		engine:    engine,
		logger:    logger,
		maxUpload: maxUpload,
		maxPixels: maxPixels,
		maxPages:  maxPages,
	}
}

func (h *Handler) Attach(r chi.Router) {
	r.Post("/ocr", h.handleOCR)
	r.Get("/engine", h.handleEngine)
}

func (h *Handler) handleEngine(w http.ResponseWriter, r *http.Request) {
	writeJson(w, EngineInfo{
		Name:    h.engine.Name(),
		Formats: []string{FormatJSON, FormatText, FormatHOCR},
	})
}

func (h *Handler) handleOCR(w http.ResponseWriter, r *http.Request) {
	outFormat := strings.ToLower(r.URL.Query().Get("format"))
	if outFormat == "" {
		outFormat = FormatJSON
	}
	if outFormat != FormatJSON && outFormat != FormatText && outFormat != FormatHOCR {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported format %q", outFormat))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	pages, err := h.readPages(r)
	if err != nil {
		writeError(w, statusCode(err), err)
		return
	}

	doc, err := h.process(pages)
	if err != nil {
		h.logger.Error("ocr failed", "engine", h.engine.Name(), "pages", len(pages), "error", err)
		writeError(w, statusCode(err), err)
		return
	}

	switch outFormat {
	case FormatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, doc.Render())

	case FormatHOCR:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := doc.WriteHOCR(w); err != nil {
			h.logger.Error("hocr rendering failed", "error", err)
		}

	default:
		stats := doc.Stats()
		writeJson(w, Result{
			ID:     uuid.New().String(),
			Engine: h.engine.Name(),

			Text:     doc.Render(),
			Document: doc.Export(),

			Stats: Stats{
				Pages:          stats.PageCount,
				Blocks:         stats.BlockCount,
				Lines:          stats.LineCount,
				Words:          stats.WordCount,
				MeanConfidence: stats.MeanConfidence,
			},
		})
	}
}

func (h *Handler) process(pages []image.Image) (*model.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.engine.Process(pages)
}

// readPages decodes the multipart "file" fields, or the raw body when the
// request is not multipart. A PDF contributes each of its pages.
func (h *Handler) readPages(r *http.Request) ([]image.Image, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, errNoPages
		}
		return h.decode(data, nil)
	}

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		return nil, errNoPages
	}

	pages := make([]image.Image, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}

		named, got := format.Detect(fh.Filename), format.DetectFromMagic(data)
		if named != format.Unknown && named != got {
			h.logger.Warn("upload content does not match its file name",
				"file", fh.Filename, "name_format", named, "content_format", got)
		}

		pages, err = h.decode(data, pages)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
	}
	return pages, nil
}

// decode appends the pages held in data, keeping the request within the
// page limit
func (h *Handler) decode(data []byte, pages []image.Image) ([]image.Image, error) {
	if len(pages) >= h.maxPages {
		return nil, fmt.Errorf("%w: request holds more than %d pages", reader.ErrTooManyPages, h.maxPages)
	}
	imgs, err := reader.ReadPagesBytes(data,
		reader.WithMaxPixels(h.maxPixels),
		reader.WithMaxPages(h.maxPages-len(pages)),
	)
	if err != nil {
		return nil, err
	}
	for _, img := range imgs {
		pages = append(pages, img)
	}
	if len(pages) > h.maxPages {
		return nil, fmt.Errorf("%w: request holds more than %d pages", reader.ErrTooManyPages, h.maxPages)
	}
	return pages, nil
}

func statusCode(err error) int {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, reader.ErrInvalidImage), errors.Is(err, nn.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJson(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	errorType := "invalid_request_error"

	if code == http.StatusRequestEntityTooLarge {
		errorType = "request_too_large"
	} else if code >= 500 {
		errorType = "engine_error"
	}

	resp := ErrorResponse{
		Error: Error{
			Type:    errorType,
			Message: err.Error(),
		},
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(resp)
}
