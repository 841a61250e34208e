// Package datasets downloads and loads labelled OCR datasets.
//
// Archives are fetched once into a cache directory, verified against their
// SHA-256 checksum and extracted next to the archive. Loaders then read the
// extracted files and return samples as (H, W, C) tensors plus targets.
package datasets

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/publicMindee/doctr/format"
)

var (
	// ErrChecksum is returned when a downloaded archive does not match its
	// expected SHA-256 digest.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrNoTargets is returned when an annotation file holds no usable target.
	ErrNoTargets = errors.New("no targets")
)

// Archive locates a remote dataset archive.
type Archive struct {
	URL    string
	SHA256 string
}

// Option configures downloads and loaders.
type Option func(*options)

type options struct {
	client *http.Client
	logger *slog.Logger
}

func defaultOptions() options {
	return options{
		client: http.DefaultClient,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithHTTPClient sets the client used to fetch archives.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithLogger sets the logger reporting download progress.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Download fetches the zip archive at rawURL into dir, verifies it against
// sha256sum when one is given and extracts it into dir/<archive name>.
// The extraction directory is returned. An archive extracted by a previous
// call is reused without any network access. The archive is saved with a
// .zip extension even when the URL has none.
func Download(ctx context.Context, rawURL, sha256sum, dir string, opts ...Option) (string, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid archive url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return "", fmt.Errorf("invalid archive url %q: no file name", rawURL)
	}

	stem := name
	if format.Detect(name) == format.ZIP {
		stem = strings.TrimSuffix(name, path.Ext(name))
	}
	root := filepath.Join(dir, stem)
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		o.logger.Debug("dataset already extracted", "root", root)
		return root, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	archive := filepath.Join(dir, stem+format.ZIP.Extension())
	if err := fetch(ctx, o, rawURL, archive, sha256sum); err != nil {
		return "", err
	}

	if err := extract(archive, root); err != nil {
		os.RemoveAll(root)
		return "", fmt.Errorf("failed to extract %s: %w", name, err)
	}
	o.logger.Info("dataset extracted", "archive", archive, "root", root)

	return root, nil
}

// fetch streams the archive to disk while hashing it
func fetch(ctx context.Context, o options, rawURL, dst, sha256sum string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	o.logger.Info("downloading dataset", "url", rawURL)
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: %s", rawURL, resp.Status)
	}

	f, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	h := sha256.New()
	_, err = io.Copy(io.MultiWriter(f, h), resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", rawURL, err)
	}

	if sum := hex.EncodeToString(h.Sum(nil)); sha256sum != "" && !strings.EqualFold(sum, sha256sum) {
		return fmt.Errorf("%w: %s has sha256 %s, expected %s", ErrChecksum, path.Base(dst), sum, sha256sum)
	}

	return os.Rename(f.Name(), dst)
}

func extract(archive, root string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	if kind, err := format.DetectFromReader(f); err != nil {
		return err
	} else if kind != format.ZIP {
		return fmt.Errorf("expected a ZIP archive, got %v", kind)
	}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if err := extractEntry(entry, root); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(entry *zip.File, root string) error {
	target := filepath.Join(root, filepath.FromSlash(entry.Name))
	if target != filepath.Clean(root) && !strings.HasPrefix(target, filepath.Clean(root)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal path in archive: %s", entry.Name)
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
