package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haniff/arena/internal/broadcast"
	"github.com/haniff/arena/internal/core"
	"github.com/haniff/arena/internal/gateway"
	"github.com/haniff/arena/internal/prompt"
)

// executeTurn runs one debater's turn as a single logical unit: thinking
// event, prompt build from a snapshot, gateway call, message commit, then
// message and completion events. Nothing else mutates the debate between
// the thinking event and the commit because turns run strictly
// sequentially.
//
// Cancellation propagates without committing. Any other gateway error
// propagates without a message_received event; the committed history is
// untouched.
func (m *Manager) executeTurn(ctx context.Context, id string, config core.DebateConfig, agent core.AgentConfig, round, turn int) error {
	m.broadcaster.Publish(broadcast.EventAgentThinking, id, map[string]any{
		"agent_id":     agent.AgentID,
		"agent_name":   agent.Name,
		"round_number": round,
		"turn_number":  turn,
	})
	slog.Debug("Executing turn", "debate_id", id, "agent_id", agent.AgentID,
		"round", round, "turn", turn)

	snap, err := m.store.Get(id)
	if err != nil {
		return err
	}

	text, err := m.gateway.Generate(ctx, gateway.Request{
		Binding:      agent.Binding,
		SystemPrompt: prompt.BuildDebaterPrompt(agent, config.Topic, round, config.NumRounds),
		Messages: []gateway.ChatMessage{
			{Role: "user", Content: prompt.FormatHistoryContext(snap.History, config.Topic, round, config.NumRounds)},
		},
		Temperature: agent.Temperature,
		MaxTokens:   agent.MaxTokens,
	})
	if err != nil {
		if core.IsKind(err, core.KindCancelled) {
			return err
		}
		return fmt.Errorf("turn (%d,%d) failed for agent %s: %w", round, turn, agent.AgentID, err)
	}

	msg := core.Message{
		AgentID:     agent.AgentID,
		AgentName:   agent.Name,
		Stance:      agent.Stance,
		RoundNumber: round,
		TurnNumber:  turn,
		Content:     text,
		Timestamp:   time.Now().UTC(),
	}

	if _, err := m.store.Update(id, func(d *core.DebateState) error {
		d.AddMessage(msg)
		d.CurrentRound = round
		d.CurrentTurn = turn
		return nil
	}); err != nil {
		return err
	}

	m.broadcaster.Publish(broadcast.EventMessageReceived, id, map[string]any{
		"message": msg,
	})
	m.broadcaster.Publish(broadcast.EventTurnComplete, id, map[string]any{
		"round_number": round,
		"turn_number":  turn,
		"agent_id":     agent.AgentID,
	})

	slog.Info("Turn complete", "debate_id", id, "agent_id", agent.AgentID,
		"round", round, "turn", turn, "content_len", len(text))
	return nil
}
