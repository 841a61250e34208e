package datasets

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/publicMindee/doctr/format"
	"github.com/publicMindee/doctr/reader"
	"github.com/publicMindee/doctr/tensor"
	"github.com/publicMindee/doctr/transforms"
)

// Archives of the ICDAR 2019 Scanned Receipt OCR (SROIE) dataset
var (
	SROIETrain = Archive{
		URL:    "https://github.com/mindee/doctr/releases/download/v0.1.1/sroie2019_train_task1.zip",
		SHA256: "d4fa9e60abb03500d83299c845b9c87fd9c9430d1aeac96b83c5d0bb0ab27f6f",
	}
	SROIETest = Archive{
		URL:    "https://github.com/mindee/doctr/releases/download/v0.1.1/sroie2019_test.zip",
		SHA256: "41b3c746a20226fddc80d86d4b2a903d43b5be4f521dd1bbe759dbf8844745e2",
	}
)

// Target holds the annotations of one image: a box per label, in absolute
// pixel coordinates [xmin, ymin, xmax, ymax].
type Target struct {
	Boxes  [][4]float32
	Labels []string
}

// Sample is an image tensor with its annotations.
type Sample struct {
	Image  *tensor.Tensor
	Target Target
}

type sroieItem struct {
	image  string
	target Target
}

// SROIE is the receipt dataset. The root directory holds images/ and
// annotations/, where annotations/<stem>.txt describes images/<stem>.*
// with one Latin-1 encoded "x1,y1,x2,y2,x3,y3,x4,y4,label" row per word.
type SROIE struct {
	root      string
	train     bool
	items     []sroieItem
	transform transforms.Transform
	rng       *rand.Rand
}

// SROIEOption configures a SROIE dataset.
type SROIEOption func(*SROIE)

// WithTransform applies t to every image returned by Get.
func WithTransform(t transforms.Transform) SROIEOption {
	return func(s *SROIE) {
		s.transform = t
	}
}

// WithRand sets the random source given to the transform.
func WithRand(rng *rand.Rand) SROIEOption {
	return func(s *SROIE) {
		s.rng = rng
	}
}

// WithTrain marks the dataset as the training split.
func WithTrain(train bool) SROIEOption {
	return func(s *SROIE) {
		s.train = train
	}
}

// DownloadSROIE downloads the training or test split into dir and loads it.
func DownloadSROIE(ctx context.Context, dir string, train bool, dl []Option, opts ...SROIEOption) (*SROIE, error) {
	archive := SROIETest
	if train {
		archive = SROIETrain
	}
	root, err := Download(ctx, archive.URL, archive.SHA256, dir, dl...)
	if err != nil {
		return nil, err
	}
	return NewSROIE(root, append([]SROIEOption{WithTrain(train)}, opts...)...)
}

// NewSROIE loads the annotations of an extracted SROIE split. Images are
// decoded lazily by Get. Files of the images directory that are not images
// by their extension are skipped.
func NewSROIE(root string, opts ...SROIEOption) (*SROIE, error) {
	s := &SROIE{root: root, train: true}
	for _, opt := range opts {
		opt(s)
	}

	entries, err := os.ReadDir(filepath.Join(root, "images"))
	if err != nil {
		return nil, fmt.Errorf("failed to list SROIE images: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !format.Detect(name).IsImage() {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		target, err := readSROIEAnnotations(filepath.Join(root, "annotations", stem+".txt"))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		s.items = append(s.items, sroieItem{image: name, target: target})
	}
	return s, nil
}

// readSROIEAnnotations parses one annotation file. Labels may contain
// commas, the four corners are reduced to an axis-aligned box.
func readSROIEAnnotations(path string) (Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return Target{}, err
	}
	defer f.Close()

	r := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(f))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var target Target
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Target{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		if len(row) < 8 {
			line, _ := r.FieldPos(0)
			return Target{}, fmt.Errorf("failed to parse %s: line %d has %d fields, expected at least 8", filepath.Base(path), line, len(row))
		}

		var coords [8]int
		for i := range coords {
			coords[i], err = strconv.Atoi(strings.TrimSpace(row[i]))
			if err != nil {
				return Target{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
			}
		}

		label := strings.Join(row[8:], ",")
		if label == "" {
			continue
		}
		xs := []int{coords[0], coords[2], coords[4], coords[6]}
		ys := []int{coords[1], coords[3], coords[5], coords[7]}
		target.Labels = append(target.Labels, label)
		target.Boxes = append(target.Boxes, [4]float32{
			float32(min(xs[0], xs[1], xs[2], xs[3])),
			float32(min(ys[0], ys[1], ys[2], ys[3])),
			float32(max(xs[0], xs[1], xs[2], xs[3])),
			float32(max(ys[0], ys[1], ys[2], ys[3])),
		})
	}

	if len(target.Labels) == 0 {
		return Target{}, fmt.Errorf("%w in %s", ErrNoTargets, filepath.Base(path))
	}
	return target, nil
}

// Len returns the number of images.
func (s *SROIE) Len() int {
	return len(s.items)
}

// Get decodes the i-th image as an (H, W, 3) tensor, applies the transform
// and returns it with its target.
func (s *SROIE) Get(i int) (Sample, error) {
	if i < 0 || i >= len(s.items) {
		return Sample{}, fmt.Errorf("index %d out of range [0, %d)", i, len(s.items))
	}
	item := s.items[i]

	img, err := reader.ReadImage(filepath.Join(s.root, "images", item.image))
	if err != nil {
		return Sample{}, err
	}
	t := tensor.FromImage(img)
	if s.transform != nil {
		t = s.transform.Apply(t, s.rng)
	}
	return Sample{Image: t, Target: item.target}, nil
}

func (s *SROIE) String() string {
	return fmt.Sprintf("SROIE(train=%t)", s.train)
}

// Collate stacks the images of samples sharing a shape into an
// (N, H, W, C) batch and returns their targets in order.
func Collate(samples []Sample) (*tensor.Tensor, []Target, error) {
	images := make([]*tensor.Tensor, len(samples))
	targets := make([]Target, len(samples))
	for i, s := range samples {
		images[i] = s.Image
		targets[i] = s.Target
	}
	batch, err := tensor.Stack(images)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to collate samples: %w", err)
	}
	return batch, targets, nil
}
