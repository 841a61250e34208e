package doctr

import (
	"fmt"
	"strings"
)

// Warning is a non-fatal issue found while extracting a page. Page is
// 1-indexed, 0 when the warning concerns the whole document.
type Warning struct {
	Page    int
	Message string
}

func (w Warning) String() string {
	if w.Page == 0 {
		return w.Message
	}
	return fmt.Sprintf("page %d: %s", w.Page, w.Message)
}

// FormatWarnings joins warnings into a single line
func FormatWarnings(warnings []Warning) string {
	parts := make([]string, len(warnings))
	for i, w := range warnings {
		parts[i] = w.String()
	}
	return strings.Join(parts, "; ")
}
