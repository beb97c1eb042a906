// Package export renders debates to client-facing formats.
package export

import (
	"io"
	"strings"

	"github.com/haniff/arena/internal/core"
)

// Format represents an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatPDF      Format = "pdf"
)

// Exporter defines the interface for rendering a debate snapshot.
type Exporter interface {
	Export(state *core.DebateState, w io.Writer) error
	ContentType() string
	FileExtension() string
}

// GetExporter returns an exporter for the given format, or an
// unsupported_format error.
func GetExporter(format Format) (Exporter, error) {
	switch format {
	case FormatJSON:
		return &JSONExporter{}, nil
	case FormatMarkdown:
		return &MarkdownExporter{}, nil
	case FormatText:
		return &TextExporter{}, nil
	case FormatPDF:
		return &PDFExporter{}, nil
	default:
		return nil, core.NewError(core.KindUnsupportedFormat, "unsupported export format: %s", format)
	}
}

// GenerateFilename creates a download filename from the topic.
func GenerateFilename(state *core.DebateState, ext string) string {
	topic := state.Config.Topic
	if len(topic) > 50 {
		topic = topic[:50]
	}

	replacer := strings.NewReplacer(
		" ", "_",
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	topic = replacer.Replace(topic)

	return "debate_" + state.CreatedAt.Format("20060102") + "_" + topic + "." + ext
}
