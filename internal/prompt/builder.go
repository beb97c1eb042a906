// Package prompt builds the prompts sent to debater and judge models and
// parses the judge's structured verdict. Everything here is pure: no I/O,
// deterministic output for a given input.
package prompt

import (
	"fmt"
	"strings"

	"github.com/haniff/arena/internal/core"
)

// BuildDebaterPrompt composes the system prompt for one debater turn. The
// context block format is fixed and stable across versions; clients and
// stored transcripts depend on it.
func BuildDebaterPrompt(agent core.AgentConfig, topic string, currentRound, totalRounds int) string {
	var sb strings.Builder

	sb.WriteString(agent.SystemPrompt)
	sb.WriteString("\n\nDEBATE CONTEXT:\n")
	sb.WriteString(fmt.Sprintf("- Topic: %s\n", topic))
	sb.WriteString(fmt.Sprintf("- Your stance: %s\n", agent.Stance))
	sb.WriteString(fmt.Sprintf("- Current round: %d of %d\n", currentRound, totalRounds))
	sb.WriteString("\nINSTRUCTIONS:\n")
	sb.WriteString("- Present clear arguments supporting your position\n")
	sb.WriteString("- Respond to opposing arguments from previous turns\n")
	sb.WriteString("- Maintain your persona and debate style\n")
	sb.WriteString("- Be persuasive but respectful\n")
	sb.WriteString("- Aim for 200-400 words per response")

	return sb.String()
}

// FormatHistoryContext renders the debate history as the single user
// message handed to the next debater. Turn numbers are shown 1-indexed for
// the model; stored messages remain 0-indexed.
func FormatHistoryContext(history []core.Message, topic string, currentRound, totalRounds int) string {
	if len(history) == 0 {
		return fmt.Sprintf(`DEBATE TOPIC: %s
ROUND: %d of %d

DEBATE HISTORY:
(No previous messages)

YOUR TURN: Please provide your opening statement.`, topic, currentRound, totalRounds)
	}

	formatted := make([]string, 0, len(history))
	for _, msg := range history {
		formatted = append(formatted, fmt.Sprintf(
			"[Round %d, Turn %d] %s (%s): %s",
			msg.RoundNumber, msg.TurnNumber+1, msg.AgentName, msg.Stance, msg.Content,
		))
	}

	return fmt.Sprintf(`DEBATE TOPIC: %s
ROUND: %d of %d

DEBATE HISTORY:
%s

YOUR TURN: Please provide your response.`, topic, currentRound, totalRounds, strings.Join(formatted, "\n\n"))
}

// BuildJudgePrompt composes the system prompt for the judge, including the
// participant list and the required JSON output contract.
func BuildJudgePrompt(topic string, agents []core.AgentConfig, judge core.AgentConfig) string {
	participants := make([]string, 0, len(agents))
	for _, agent := range agents {
		participants = append(participants, fmt.Sprintf("- %s (%s)", agent.Name, agent.Stance))
	}

	return fmt.Sprintf(`%s

DEBATE TOPIC: %s

PARTICIPANTS:
%s

TASK:
1. Score each participant 0-10 on: argument quality, logic, evidence, rebuttals, persuasiveness
2. Provide detailed reasoning for each score
3. Identify key arguments from each side
4. Declare the winner (highest score)

Respond in JSON format:
{
  "summary": "Overall debate analysis",
  "agent_scores": [
    {"agent_id": "...", "agent_name": "...", "score": 8.5, "reasoning": "..."}
  ],
  "winner_id": "...",
  "winner_name": "...",
  "key_arguments": ["...", "..."]
}`, judge.SystemPrompt, topic, strings.Join(participants, "\n"))
}

// FormatHistoryForJudge renders the complete transcript for judge
// evaluation.
func FormatHistoryForJudge(history []core.Message, topic string) string {
	formatted := make([]string, 0, len(history))
	for _, msg := range history {
		formatted = append(formatted, fmt.Sprintf(
			"[Round %d, Turn %d] %s (%s):\n%s",
			msg.RoundNumber, msg.TurnNumber+1, msg.AgentName, msg.Stance, msg.Content,
		))
	}

	return fmt.Sprintf(`DEBATE TOPIC: %s

FULL TRANSCRIPT:
%s

Please evaluate the debate and provide your judgment in the specified JSON format.`,
		topic, strings.Join(formatted, "\n\n---\n\n"))
}
