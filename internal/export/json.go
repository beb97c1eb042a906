package export

import (
	"encoding/json"
	"io"

	"github.com/haniff/arena/internal/core"
)

// JSONExporter writes the full debate state as indented JSON.
type JSONExporter struct{}

// Export writes the debate as JSON.
func (e *JSONExporter) Export(state *core.DebateState, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(state)
}

// ContentType returns the MIME type for JSON.
func (e *JSONExporter) ContentType() string {
	return "application/json"
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return "json"
}
