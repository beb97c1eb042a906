// Package engine drives debates through their lifecycle: validation,
// round and turn sequencing, judge invocation, and terminal transitions.
// One background task owns each running debate; everything observable goes
// through the store (snapshots) and the broadcaster (events).
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/haniff/arena/internal/broadcast"
	"github.com/haniff/arena/internal/catalog"
	"github.com/haniff/arena/internal/core"
	"github.com/haniff/arena/internal/gateway"
	"github.com/haniff/arena/internal/prompt"
	"github.com/haniff/arena/internal/store"
)

// DefaultTurnDelay is the fixed pause between turns, smoothing provider
// rate limits.
const DefaultTurnDelay = 1 * time.Second

// Manager is the lifecycle state machine and the sole writer for any
// debate it is executing.
type Manager struct {
	store       store.Store
	gateway     gateway.Gateway
	broadcaster *broadcast.Broadcaster
	turnDelay   time.Duration

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New creates a debate manager.
func New(st store.Store, gw gateway.Gateway, bc *broadcast.Broadcaster) *Manager {
	return &Manager{
		store:       st,
		gateway:     gw,
		broadcaster: bc,
		turnDelay:   DefaultTurnDelay,
		running:     make(map[string]context.CancelFunc),
	}
}

// CreateDebate validates the configuration and persists a CREATED record.
func (m *Manager) CreateDebate(config core.DebateConfig) (*core.DebateState, error) {
	if err := core.ValidateConfig(config, catalog.IsKnown); err != nil {
		return nil, err
	}

	state := core.NewDebateState(config)
	if err := m.store.Create(state); err != nil {
		return nil, err
	}

	slog.Info("Created debate", "debate_id", state.DebateID, "topic", config.Topic,
		"num_rounds", config.NumRounds, "num_agents", len(config.Agents))
	return state, nil
}

// GetDebate returns a snapshot of the debate.
func (m *Manager) GetDebate(id string) (*core.DebateState, error) {
	return m.store.Get(id)
}

// ListDebates returns snapshots of all debates.
func (m *Manager) ListDebates() ([]*core.DebateState, error) {
	return m.store.List()
}

// Status summarizes a debate's progress for polling clients.
type Status struct {
	DebateID     string            `json:"debate_id"`
	Status       core.DebateStatus `json:"status"`
	CurrentRound int               `json:"current_round"`
	CurrentTurn  int               `json:"current_turn"`
	TotalRounds  int               `json:"total_rounds"`
	MessageCount int               `json:"message_count"`
}

// GetStatus returns the progress summary for a debate.
func (m *Manager) GetStatus(id string) (*Status, error) {
	snap, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	return &Status{
		DebateID:     snap.DebateID,
		Status:       snap.Status,
		CurrentRound: snap.CurrentRound,
		CurrentTurn:  snap.CurrentTurn,
		TotalRounds:  snap.Config.NumRounds,
		MessageCount: len(snap.History),
	}, nil
}

// StartDebate transitions a CREATED debate to IN_PROGRESS and spawns the
// background task that runs it. The call returns immediately; execution
// errors surface through the record and the event stream, never here.
// Starting a debate in any other status fails with invalid_transition.
func (m *Manager) StartDebate(id string) error {
	m.mu.Lock()
	if _, alreadyRunning := m.running[id]; alreadyRunning {
		m.mu.Unlock()
		return core.NewError(core.KindInvalidTransition, "debate %s is already running", id)
	}
	m.mu.Unlock()

	snap, err := m.store.Update(id, func(d *core.DebateState) error {
		if d.Status != core.StatusCreated {
			return core.NewError(core.KindInvalidTransition,
				"debate %s cannot start from status %s", id, d.Status)
		}
		now := time.Now().UTC()
		d.Status = core.StatusInProgress
		d.StartedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.running[id] = cancel
	m.mu.Unlock()

	slog.Info("Starting debate execution", "debate_id", id, "topic", snap.Config.Topic)
	go m.run(ctx, id, snap.Config)
	return nil
}

// DeleteDebate cancels the debate's task if it is running, then removes
// the record and its topic.
func (m *Manager) DeleteDebate(id string) error {
	m.mu.Lock()
	if cancel, ok := m.running[id]; ok {
		cancel()
		delete(m.running, id)
	}
	m.mu.Unlock()

	if err := m.store.Delete(id); err != nil {
		return err
	}
	m.broadcaster.Remove(id)
	slog.Info("Deleted debate", "debate_id", id)
	return nil
}

// Subscribe attaches to a debate's event stream. The snapshot and the
// stream together give the subscriber a consistent, gap-free view: the
// stream replays the retained log from the beginning, then follows live.
func (m *Manager) Subscribe(id string) (*core.DebateState, *broadcast.Subscription, error) {
	snap, err := m.store.Get(id)
	if err != nil {
		return nil, nil, err
	}
	return snap, m.broadcaster.Subscribe(id), nil
}

// run executes the debate to a terminal state. It is the only goroutine
// mutating this debate while it runs.
func (m *Manager) run(ctx context.Context, id string, config core.DebateConfig) {
	defer func() {
		m.mu.Lock()
		delete(m.running, id)
		m.mu.Unlock()
	}()

	m.broadcaster.Publish(broadcast.EventDebateStarted, id, map[string]any{
		"topic":      config.Topic,
		"num_rounds": config.NumRounds,
		"num_agents": len(config.Agents),
	})

	for round := 1; round <= config.NumRounds; round++ {
		if err := m.runRound(ctx, id, config, round); err != nil {
			m.finish(id, err)
			return
		}
	}

	var judgeResult *core.JudgeResult
	if config.Judge != nil {
		result, err := m.invokeJudge(ctx, id, config)
		if err != nil {
			m.finish(id, err)
			return
		}
		judgeResult = result
	}

	snap, err := m.store.Update(id, func(d *core.DebateState) error {
		now := time.Now().UTC()
		d.Status = core.StatusCompleted
		d.JudgeResult = judgeResult
		d.CompletedAt = &now
		return nil
	})
	if err != nil {
		slog.Error("Failed to commit terminal state", "debate_id", id, "error", err)
		return
	}

	payload := map[string]any{
		"winner_id":      "",
		"winner_name":    "",
		"total_messages": len(snap.History),
	}
	if judgeResult != nil {
		payload["winner_id"] = judgeResult.WinnerID
		payload["winner_name"] = judgeResult.WinnerName
	}
	m.broadcaster.Publish(broadcast.EventDebateComplete, id, payload)
	m.broadcaster.Seal(id)

	slog.Info("Debate completed", "debate_id", id, "messages", len(snap.History))
}

// runRound executes every agent's turn for one round, in configured
// order, strictly sequentially.
func (m *Manager) runRound(ctx context.Context, id string, config core.DebateConfig, round int) error {
	m.broadcaster.Publish(broadcast.EventRoundStarted, id, map[string]any{
		"round_number": round,
		"total_rounds": config.NumRounds,
	})
	slog.Info("Starting round", "debate_id", id, "round", round, "total_rounds", config.NumRounds)

	for turn := range config.Agents {
		agent := config.Agents[turn]
		if err := m.executeTurn(ctx, id, config, agent, round, turn); err != nil {
			return err
		}

		// Pause between turns, except after the very last turn.
		lastTurn := turn == len(config.Agents)-1 && round == config.NumRounds
		if !lastTurn {
			select {
			case <-time.After(m.turnDelay):
			case <-ctx.Done():
				return core.WrapError(core.KindCancelled, ctx.Err(), "debate %s cancelled", id)
			}
		}
	}

	m.broadcaster.Publish(broadcast.EventRoundComplete, id, map[string]any{
		"round_number": round,
	})
	return nil
}

// invokeJudge runs the evaluation phase and returns the parsed result.
func (m *Manager) invokeJudge(ctx context.Context, id string, config core.DebateConfig) (*core.JudgeResult, error) {
	snap, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}

	m.broadcaster.Publish(broadcast.EventJudgingStarted, id, map[string]any{
		"total_messages": len(snap.History),
	})
	slog.Info("Invoking judge", "debate_id", id, "messages", len(snap.History))

	judge := *config.Judge
	text, err := m.gateway.Generate(ctx, gateway.Request{
		Binding:      judge.Binding,
		SystemPrompt: prompt.BuildJudgePrompt(config.Topic, config.Agents, judge),
		Messages: []gateway.ChatMessage{
			{Role: "user", Content: prompt.FormatHistoryForJudge(snap.History, config.Topic)},
		},
		Temperature: judge.Temperature,
		MaxTokens:   judge.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	result, err := prompt.ParseJudgeResult(text, config.Agents)
	if err != nil {
		return nil, err
	}

	m.broadcaster.Publish(broadcast.EventJudgeResult, id, map[string]any{
		"judge_result": result,
	})
	slog.Info("Judge evaluation complete", "debate_id", id, "winner", result.WinnerName)
	return result, nil
}

// finish handles a failed or cancelled run. Cancellation means the debate
// is being deleted: exit without committing. Anything else commits FAILED
// with the error recorded, publishes the error event, and seals the topic.
// Messages committed before the failure are preserved.
func (m *Manager) finish(id string, cause error) {
	if core.IsKind(cause, core.KindCancelled) {
		slog.Info("Debate task cancelled", "debate_id", id)
		return
	}

	kind := core.KindOf(cause)
	if kind == "" {
		kind = core.KindUpstreamUnavailable
	}

	_, err := m.store.Update(id, func(d *core.DebateState) error {
		now := time.Now().UTC()
		d.Status = core.StatusFailed
		d.ErrorMessage = cause.Error()
		d.CompletedAt = &now
		return nil
	})
	if err != nil {
		slog.Error("Failed to record debate failure", "debate_id", id, "error", err)
		return
	}

	m.broadcaster.Publish(broadcast.EventError, id, map[string]any{
		"error_kind":    string(kind),
		"error_message": cause.Error(),
	})
	m.broadcaster.Seal(id)

	slog.Error("Debate failed", "debate_id", id, "kind", kind, "error", cause)
}
