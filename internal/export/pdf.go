package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/haniff/arena/internal/core"
)

// PDFExporter renders the debate as a PDF document.
type PDFExporter struct{}

// palette cycled through per-agent for message headers.
var agentColors = [][3]int{
	{200, 230, 255}, // light blue
	{200, 255, 200}, // light green
	{255, 230, 200}, // light orange
	{230, 210, 255}, // light purple
	{255, 255, 200}, // light yellow
}

// Export writes the debate as PDF.
func (e *PDFExporter) Export(state *core.DebateState, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, e.sanitizeText(state.Config.Topic), "", "C", false)
	pdf.Ln(5)

	// Metadata
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate Information")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	e.addMetadataRow(pdf, "ID:", state.DebateID[:8]+"...")
	e.addMetadataRow(pdf, "Rounds:", fmt.Sprintf("%d", state.Config.NumRounds))
	e.addMetadataRow(pdf, "Status:", string(state.Status))
	e.addMetadataRow(pdf, "Created:", state.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	pdf.Ln(5)

	// Participants
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Participants")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	colorIndex := make(map[string]int, len(state.Config.Agents))
	for i, agent := range state.Config.Agents {
		colorIndex[agent.AgentID] = i % len(agentColors)
		c := agentColors[colorIndex[agent.AgentID]]
		e.addParticipantBox(pdf, agent, c[0], c[1], c[2])
		pdf.Ln(3)
	}
	pdf.Ln(5)

	// Transcript
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate Transcript")
	pdf.Ln(8)

	if len(state.History) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No messages recorded.")
		pdf.Ln(6)
	}
	currentRound := 0
	for _, msg := range state.History {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}
		if msg.RoundNumber != currentRound {
			currentRound = msg.RoundNumber
			pdf.SetFont("Arial", "B", 11)
			pdf.Cell(0, 7, fmt.Sprintf("Round %d", currentRound))
			pdf.Ln(7)
		}

		c := agentColors[colorIndex[msg.AgentID]]
		pdf.SetFillColor(c[0], c[1], c[2])
		pdf.SetFont("Arial", "B", 10)
		header := fmt.Sprintf("%s (%s) - %s", msg.AgentName, msg.Stance, msg.Timestamp.Format("3:04 PM"))
		pdf.CellFormat(0, 7, e.sanitizeText(header), "", 1, "", true, 0, "")

		pdf.SetFont("Arial", "", 9)
		pdf.SetFillColor(255, 255, 255)
		pdf.MultiCell(0, 5, e.sanitizeText(msg.Content), "", "", false)
		pdf.Ln(5)
	}

	// Judge's decision
	if jr := state.JudgeResult; jr != nil {
		if pdf.GetY() > 230 {
			pdf.AddPage()
		}

		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Judge's Decision")
		pdf.Ln(8)

		pdf.SetFillColor(200, 255, 200)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, e.sanitizeText("Winner: "+jr.WinnerName), "", 1, "", true, 0, "")

		pdf.SetFont("Arial", "", 10)
		pdf.SetFillColor(255, 255, 255)
		pdf.MultiCell(0, 5, e.sanitizeText(jr.Summary), "", "", false)
		pdf.Ln(3)

		for _, score := range jr.AgentScores {
			pdf.SetFont("Arial", "B", 10)
			pdf.Cell(0, 6, e.sanitizeText(fmt.Sprintf("%s: %.1f/10", score.AgentName, score.Score)))
			pdf.Ln(6)
			pdf.SetFont("Arial", "", 9)
			pdf.MultiCell(0, 5, e.sanitizeText(score.Reasoning), "", "", false)
			pdf.Ln(3)
		}

		if len(jr.KeyArguments) > 0 {
			pdf.SetFont("Arial", "B", 10)
			pdf.Cell(0, 6, "Key Arguments:")
			pdf.Ln(6)
			pdf.SetFont("Arial", "", 9)
			for _, arg := range jr.KeyArguments {
				pdf.MultiCell(0, 5, e.sanitizeText("- "+arg), "", "", false)
			}
			pdf.Ln(3)
		}
	}

	// Footer
	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 10, "Exported from arena", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// ContentType returns the MIME type for PDF.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}

// Helper to add a metadata row
func (e *PDFExporter) addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, value)
	pdf.Ln(5)
}

// Helper to add a participant box
func (e *PDFExporter) addParticipantBox(pdf *gofpdf.Fpdf, agent core.AgentConfig, r, g, b int) {
	pdf.SetFillColor(r, g, b)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, e.sanitizeText(agent.Name), "", 1, "", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetFillColor(255, 255, 255)
	pdf.Cell(25, 5, "Stance:")
	pdf.Cell(0, 5, e.sanitizeText(agent.Stance))
	pdf.Ln(5)
	pdf.Cell(25, 5, "Model:")
	pdf.Cell(0, 5, agent.Binding.String())
	pdf.Ln(5)
	pdf.Cell(25, 5, "Role:")
	pdf.Cell(0, 5, string(agent.Role))
	pdf.Ln(5)
}

// Sanitize text for PDF (remove problematic characters)
func (e *PDFExporter) sanitizeText(text string) string {
	// gofpdf uses Windows-1252 encoding by default
	replacer := strings.NewReplacer(
		"\u2018", "'", // Left single quote
		"\u2019", "'", // Right single quote
		"\u201C", "\"", // Left double quote
		"\u201D", "\"", // Right double quote
		"\u2013", "-", // En dash
		"\u2014", "--", // Em dash
		"\u2026", "...", // Ellipsis
		"\u2022", "*", // Bullet
		"\u00A0", " ", // Non-breaking space
	)
	return replacer.Replace(text)
}
