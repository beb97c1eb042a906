package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/haniff/arena/internal/core"
)

// MarkdownExporter renders the debate as a Markdown document: metadata,
// participants, transcript grouped by round, and the judge's decision.
type MarkdownExporter struct{}

// Export writes the debate as Markdown.
func (e *MarkdownExporter) Export(state *core.DebateState, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Debate: %s\n\n", state.Config.Topic))
	sb.WriteString(fmt.Sprintf("**Date:** %s\n", state.CreatedAt.Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString(fmt.Sprintf("**Rounds:** %d\n", state.Config.NumRounds))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n\n", state.Status))

	sb.WriteString("## Participants\n\n")
	for _, agent := range state.Config.Agents {
		sb.WriteString(fmt.Sprintf("- **%s** (%s)\n", agent.Name, agent.Stance))
		sb.WriteString(fmt.Sprintf("  - Model: %s\n", agent.Binding))
		sb.WriteString(fmt.Sprintf("  - Role: %s\n", agent.Role))
	}
	sb.WriteString("\n")

	sb.WriteString("## Debate Transcript\n\n")
	if len(state.History) == 0 {
		sb.WriteString("*No messages recorded.*\n\n")
	}
	currentRound := 0
	for _, msg := range state.History {
		if msg.RoundNumber != currentRound {
			currentRound = msg.RoundNumber
			sb.WriteString(fmt.Sprintf("### Round %d\n\n", currentRound))
		}
		sb.WriteString(fmt.Sprintf("**%s (%s):**\n\n", msg.AgentName, msg.Stance))
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}

	if state.JudgeResult != nil {
		jr := state.JudgeResult
		sb.WriteString("## Judge's Decision\n\n")
		sb.WriteString(fmt.Sprintf("**Winner:** %s\n\n", jr.WinnerName))
		sb.WriteString("### Summary\n\n")
		sb.WriteString(jr.Summary)
		sb.WriteString("\n\n### Scores\n\n")
		for _, score := range jr.AgentScores {
			sb.WriteString(fmt.Sprintf("- **%s:** %.1f/10\n", score.AgentName, score.Score))
			sb.WriteString(fmt.Sprintf("  - %s\n", score.Reasoning))
		}
		if len(jr.KeyArguments) > 0 {
			sb.WriteString("\n### Key Arguments\n\n")
			for _, arg := range jr.KeyArguments {
				sb.WriteString(fmt.Sprintf("- %s\n", arg))
			}
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// ContentType returns the MIME type for Markdown.
func (e *MarkdownExporter) ContentType() string {
	return "text/markdown"
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}
