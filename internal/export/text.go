package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/haniff/arena/internal/core"
)

// TextExporter renders the same information as the Markdown exporter with
// plain separators and no formatting.
type TextExporter struct{}

// Export writes the debate as plain text.
func (e *TextExporter) Export(state *core.DebateState, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("DEBATE: %s\n", state.Config.Topic))
	sb.WriteString(strings.Repeat("=", 80) + "\n\n")
	sb.WriteString(fmt.Sprintf("Date: %s\n", state.CreatedAt.Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString(fmt.Sprintf("Rounds: %d\n", state.Config.NumRounds))
	sb.WriteString(fmt.Sprintf("Status: %s\n\n", state.Status))

	sb.WriteString("PARTICIPANTS:\n")
	sb.WriteString(strings.Repeat("-", 80) + "\n")
	for _, agent := range state.Config.Agents {
		sb.WriteString(fmt.Sprintf("%s (%s)\n", agent.Name, agent.Stance))
		sb.WriteString(fmt.Sprintf("  Model: %s\n", agent.Binding))
		sb.WriteString(fmt.Sprintf("  Role: %s\n", agent.Role))
	}
	sb.WriteString("\n")

	sb.WriteString("DEBATE TRANSCRIPT:\n")
	sb.WriteString(strings.Repeat("-", 80) + "\n")
	currentRound := 0
	for _, msg := range state.History {
		if msg.RoundNumber != currentRound {
			currentRound = msg.RoundNumber
			sb.WriteString(fmt.Sprintf("\nROUND %d\n", currentRound))
			sb.WriteString(strings.Repeat("-", 40) + "\n\n")
		}
		sb.WriteString(fmt.Sprintf("%s (%s):\n\n", msg.AgentName, msg.Stance))
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}

	if state.JudgeResult != nil {
		jr := state.JudgeResult
		sb.WriteString("JUDGE'S DECISION:\n")
		sb.WriteString(strings.Repeat("-", 80) + "\n\n")
		sb.WriteString(fmt.Sprintf("Winner: %s\n\n", jr.WinnerName))
		sb.WriteString("Summary:\n")
		sb.WriteString(jr.Summary)
		sb.WriteString("\n\nScores:\n")
		for _, score := range jr.AgentScores {
			sb.WriteString(fmt.Sprintf("  %s: %.1f/10\n", score.AgentName, score.Score))
			sb.WriteString(fmt.Sprintf("    %s\n\n", score.Reasoning))
		}
		if len(jr.KeyArguments) > 0 {
			sb.WriteString("Key Arguments:\n")
			for _, arg := range jr.KeyArguments {
				sb.WriteString(fmt.Sprintf("  - %s\n", arg))
			}
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// ContentType returns the MIME type for plain text.
func (e *TextExporter) ContentType() string {
	return "text/plain"
}

// FileExtension returns the file extension for plain text.
func (e *TextExporter) FileExtension() string {
	return "txt"
}
