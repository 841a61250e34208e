package nn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/publicMindee/doctr/tensor"
)

// RemoteModel runs a network hosted behind a TensorFlow Serving compatible
// REST endpoint, e.g. http://localhost:8501/v1/models/db_resnet50:predict.
//
// Each batch is posted as {"instances": [...]} with one nested array per
// image and the "predictions" of the response are read back as a tensor.
type RemoteModel struct {
	url     string
	token   string
	timeout time.Duration
	client  *http.Client
}

// RemoteOption configures a RemoteModel.
type RemoteOption func(*RemoteModel)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(m *RemoteModel) {
		m.client = c
	}
}

// WithToken sends the token as a bearer Authorization header.
func WithToken(token string) RemoteOption {
	return func(m *RemoteModel) {
		m.token = token
	}
}

// WithTimeout bounds every call made through Forward. Zero disables it.
func WithTimeout(d time.Duration) RemoteOption {
	return func(m *RemoteModel) {
		m.timeout = d
	}
}

// NewRemoteModel returns a model calling the endpoint at rawURL.
func NewRemoteModel(rawURL string, opts ...RemoteOption) (*RemoteModel, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: model url %q must be an absolute http(s) url", ErrInvalidConfig, rawURL)
	}

	m := &RemoteModel{
		url:     rawURL,
		timeout: 60 * time.Second,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// URL returns the endpoint the model posts to.
func (m *RemoteModel) URL() string {
	return m.url
}

// Forward implements Model.
func (m *RemoteModel) Forward(batch *tensor.Tensor) (*tensor.Tensor, error) {
	ctx := context.Background()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	return m.ForwardContext(ctx, batch)
}

type predictRequest struct {
	Instances []any `json:"instances"`
}

type predictResponse struct {
	Predictions []any  `json:"predictions"`
	Error       string `json:"error"`
}

// ForwardContext posts the batch and waits for the predictions.
func (m *RemoteModel) ForwardContext(ctx context.Context, batch *tensor.Tensor) (*tensor.Tensor, error) {
	if batch == nil || batch.Rank() < 2 {
		return nil, fmt.Errorf("%w: batch must have a batch axis and at least one more", ErrInvalidInput)
	}

	n := batch.Dim(0)
	body, err := json.Marshal(predictRequest{Instances: nest(batch.Data(), batch.Shape())})
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote model: %w", err)
	}
	defer resp.Body.Close()

	var result predictResponse
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote model: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &result) == nil && result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("remote model: %s: %s", resp.Status, msg)
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: undecodable predictions: %v", ErrShapeMismatch, err)
	}
	if len(result.Predictions) != n {
		return nil, fmt.Errorf("%w: got %d predictions for a batch of %d", ErrShapeMismatch, len(result.Predictions), n)
	}

	shape, values, err := flatten(result.Predictions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	out, err := tensor.FromData(values, shape...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	return out, nil
}

// nest turns row-major data into nested slices following the shape
func nest(data []float32, shape []int) []any {
	if len(shape) == 1 {
		out := make([]any, shape[0])
		for i := range out {
			out[i] = data[i]
		}
		return out
	}

	stride := len(data) / max(shape[0], 1)
	out := make([]any, shape[0])
	for i := range out {
		out[i] = nest(data[i*stride:(i+1)*stride], shape[1:])
	}
	return out
}

// flatten infers the shape of nested JSON arrays and returns their values in
// row-major order. Ragged arrays are rejected.
func flatten(v []any) ([]int, []float32, error) {
	shape := []int{len(v)}
	if len(v) == 0 {
		return shape, nil, nil
	}

	var inner []int
	var values []float32
	for i, item := range v {
		var itemShape []int
		switch x := item.(type) {
		case float64:
			values = append(values, float32(x))
		case []any:
			s, vals, err := flatten(x)
			if err != nil {
				return nil, nil, err
			}
			itemShape = s
			values = append(values, vals...)
		default:
			return nil, nil, fmt.Errorf("unexpected value %v", item)
		}

		if i == 0 {
			inner = itemShape
		} else if !equalShape(inner, itemShape) {
			return nil, nil, fmt.Errorf("ragged predictions: %v vs %v", inner, itemShape)
		}
	}
	return append(shape, inner...), values, nil
}

func equalShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
