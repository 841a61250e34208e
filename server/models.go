package server

// Output formats of POST /v1/ocr
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatHOCR = "hocr"
)

type Result struct {
	ID     string `json:"id"`
	Engine string `json:"engine"`

	Text     string         `json:"text"`
	Document map[string]any `json:"document"`

	Stats Stats `json:"stats"`
}

type Stats struct {
	Pages  int `json:"pages"`
	Blocks int `json:"blocks"`
	Lines  int `json:"lines"`
	Words  int `json:"words"`

	MeanConfidence float64 `json:"mean_confidence"`
}

type EngineInfo struct {
	Name    string   `json:"name"`
	Formats []string `json:"formats"`
}

type ErrorResponse struct {
	Error Error `json:"error"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
