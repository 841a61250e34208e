package doctr_test

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/publicMindee/doctr"
	"github.com/publicMindee/doctr/config"
	"github.com/publicMindee/doctr/ocr"
)

// These examples verify the README code samples compile correctly.
// They are not meant to be run as actual tests since they require model servers.

func Example_extractText() {
	cfg, err := config.Load("doctr.yaml")
	if err != nil {
		log.Fatal(err)
	}
	engine, err := cfg.NewEngine(slog.Default())
	if err != nil {
		log.Fatal(err)
	}

	text, warnings, err := doctr.Open("receipt.jpg").WithEngine(engine).Text()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(text)

	if len(warnings) > 0 {
		log.Println("Warnings:", doctr.FormatWarnings(warnings))
	}
}

func Example_extractWithOptions() {
	var engine ocr.Engine // from config.NewEngine

	words, _, err := doctr.Open("page-1.png", "page-2.png", "page-3.png").
		WithEngine(engine).
		PageRange(2, 3).
		Resize(1024, 768).
		MinConfidence(0.6).
		Words()
	if err != nil {
		log.Fatal(err)
	}
	for _, w := range words {
		fmt.Printf("%s (%.2f)\n", w.Value(), w.Confidence())
	}
}

func Example_hocr() {
	var engine ocr.Engine // from config.NewEngine

	data, _, err := doctr.Open("scan.tiff").WithEngine(engine).HOCR()
	if err != nil {
		log.Fatal(err)
	}
	os.Stdout.Write(data)
}
