package prompt

import (
	"encoding/json"
	"strings"

	"github.com/haniff/arena/internal/core"
)

// ParseJudgeResult extracts the first well-formed JSON block from the
// judge's response and turns it into a JudgeResult.
//
// The salvage rules are deliberate and fixed: when agent_scores parse but
// other fields are missing or malformed, the winner is derived as the
// highest-scoring debater (ties broken by earliest agent_id in config
// order), summary defaults to empty and key_arguments to an empty list.
// Only a response with no parseable scores fails, with judge_unparseable.
func ParseJudgeResult(raw string, agents []core.AgentConfig) (*core.JudgeResult, error) {
	block, ok := extractJSONBlock(raw)
	if !ok {
		return nil, core.NewError(core.KindJudgeUnparseable, "no JSON block found in judge response")
	}

	var parsed struct {
		Summary      string            `json:"summary"`
		AgentScores  []core.AgentScore `json:"agent_scores"`
		WinnerID     string            `json:"winner_id"`
		WinnerName   string            `json:"winner_name"`
		KeyArguments []string          `json:"key_arguments"`
	}
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		// A field of the wrong type is left at its zero value and the
		// rest still decodes; only invalid JSON is fatal here.
		if _, typeErr := err.(*json.UnmarshalTypeError); !typeErr {
			return nil, core.WrapError(core.KindJudgeUnparseable, err, "judge response is not valid JSON")
		}
	}
	if len(parsed.AgentScores) == 0 {
		return nil, core.NewError(core.KindJudgeUnparseable, "judge response contains no agent scores")
	}

	result := &core.JudgeResult{
		Summary:      parsed.Summary,
		AgentScores:  parsed.AgentScores,
		WinnerID:     parsed.WinnerID,
		WinnerName:   parsed.WinnerName,
		KeyArguments: parsed.KeyArguments,
	}
	if result.KeyArguments == nil {
		result.KeyArguments = []string{}
	}

	// Clamp scores into range and backfill names from the configuration.
	for i := range result.AgentScores {
		s := &result.AgentScores[i]
		if s.Score < 0 {
			s.Score = 0
		}
		if s.Score > 10 {
			s.Score = 10
		}
		if s.AgentName == "" {
			if agent := agentByID(agents, s.AgentID); agent != nil {
				s.AgentName = agent.Name
			}
		}
	}

	if winner := agentByID(agents, result.WinnerID); winner == nil {
		// Missing or unknown winner: derive it from the scores.
		result.WinnerID, result.WinnerName = deriveWinner(result, agents)
	} else if result.WinnerName == "" {
		result.WinnerName = winner.Name
	}

	return result, nil
}

// deriveWinner picks the highest-scoring debater, breaking ties by the
// earliest agent in configuration order.
func deriveWinner(result *core.JudgeResult, agents []core.AgentConfig) (string, string) {
	winnerID, winnerName := "", ""
	best := -1.0
	for _, agent := range agents {
		score := result.ScoreFor(agent.AgentID)
		if score > best {
			best = score
			winnerID = agent.AgentID
			winnerName = agent.Name
		}
	}
	return winnerID, winnerName
}

func agentByID(agents []core.AgentConfig, agentID string) *core.AgentConfig {
	if agentID == "" {
		return nil
	}
	for i := range agents {
		if agents[i].AgentID == agentID {
			return &agents[i]
		}
	}
	return nil
}

// extractJSONBlock strips markdown code fences and returns the first
// balanced JSON object in the text.
func extractJSONBlock(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
