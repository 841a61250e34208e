// Command doctr runs OCR on page images and PDF files, serves the OCR
// engine over HTTP or downloads the SROIE dataset.
//
//	doctr -config doctr.yaml -format text page-1.png invoice.pdf
//	doctr -config doctr.yaml -serve
//	doctr -download-sroie ./data
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/publicMindee/doctr"
	"github.com/publicMindee/doctr/config"
	"github.com/publicMindee/doctr/datasets"
	"github.com/publicMindee/doctr/internal/logging"
	"github.com/publicMindee/doctr/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to the YAML configuration")
		envFile    = flag.String("env", ".env", "environment file loaded before the configuration")
		format     = flag.String("format", "text", "output format: text, json or hocr")
		serve      = flag.Bool("serve", false, "serve the engine over HTTP")
		pages      = flag.String("pages", "", "1-indexed page range, e.g. 2-4")
		minConf    = flag.Float64("min-confidence", 0, "drop words below this confidence")
		sroieDir   = flag.String("download-sroie", "", "download and extract the SROIE dataset into this directory")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", *envFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *sroieDir != "" {
		return downloadSROIE(ctx, *sroieDir)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	engine, err := cfg.NewEngine(logger)
	if err != nil {
		return err
	}
	if c, ok := engine.(io.Closer); ok {
		defer c.Close()
	}

	if *serve {
		return server.New(engine, cfg.Server, server.WithLogger(logger)).ListenAndServe(ctx)
	}

	if flag.NArg() == 0 {
		return fmt.Errorf("no page images or PDF files given")
	}

	ext := doctr.Open(flag.Args()...).WithEngine(engine).MinConfidence(*minConf)
	if *pages != "" {
		var start, end int
		if _, err := fmt.Sscanf(*pages, "%d-%d", &start, &end); err != nil {
			return fmt.Errorf("invalid page range %q", *pages)
		}
		ext = ext.PageRange(start, end)
	}

	doc, warnings, err := ext.Document()
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn(w.Message, "page", w.Page)
	}

	switch *format {
	case "text":
		_, err = fmt.Println(doc.Render())
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		err = enc.Encode(doc.Export())
	case "hocr":
		err = doc.WriteHOCR(os.Stdout)
	default:
		err = fmt.Errorf("unsupported format %q", *format)
	}
	return err
}

func downloadSROIE(ctx context.Context, dir string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	for _, train := range []bool{true, false} {
		ds, err := datasets.DownloadSROIE(ctx, dir, train, []datasets.Option{datasets.WithLogger(logger)})
		if err != nil {
			return err
		}
		logger.Info("dataset ready", "dataset", ds.String(), "samples", ds.Len())
	}
	return nil
}
