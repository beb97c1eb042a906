package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/haniff/arena/internal/broadcast"
	"github.com/haniff/arena/internal/core"
	"github.com/haniff/arena/internal/gateway"
	"github.com/haniff/arena/internal/store"
)

// mockGateway scripts generation responses by call number (1-based).
type mockGateway struct {
	mu       sync.Mutex
	calls    []gateway.Request
	generate func(ctx context.Context, call int, req gateway.Request) (string, error)
}

func (m *mockGateway) Generate(ctx context.Context, req gateway.Request) (string, error) {
	if ctx.Err() != nil {
		return "", core.WrapError(core.KindCancelled, ctx.Err(), "generation cancelled")
	}
	m.mu.Lock()
	m.calls = append(m.calls, req)
	n := len(m.calls)
	m.mu.Unlock()
	return m.generate(ctx, n, req)
}

func (m *mockGateway) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func setupManager(t *testing.T, gw gateway.Gateway) (*Manager, *broadcast.Broadcaster) {
	t.Helper()

	bc := broadcast.New()
	m := New(store.NewMemoryStore(), gw, bc)
	m.turnDelay = time.Millisecond
	return m, bc
}

func debaterConfig(id, name, stance string) core.AgentConfig {
	return core.AgentConfig{
		AgentID:      id,
		Name:         name,
		Stance:       stance,
		Role:         core.RoleDebater,
		SystemPrompt: "You are a debater.",
		Temperature:  0.7,
		MaxTokens:    1024,
		Binding:      core.ModelBinding{Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"},
	}
}

func judgeConfig() *core.AgentConfig {
	return &core.AgentConfig{
		AgentID:      "judge",
		Name:         "Judge",
		Stance:       "Neutral",
		Role:         core.RoleJudge,
		SystemPrompt: "You are an impartial judge.",
		Temperature:  0.3,
		MaxTokens:    2048,
		Binding:      core.ModelBinding{Provider: "openai", Model: "gpt-4o"},
	}
}

func twoAgentConfig(rounds int, withJudge bool) core.DebateConfig {
	config := core.DebateConfig{
		Topic:     "T",
		NumRounds: rounds,
		Agents: []core.AgentConfig{
			debaterConfig("agent-a", "A", "Pro"),
			debaterConfig("agent-b", "B", "Con"),
		},
	}
	if withJudge {
		config.Judge = judgeConfig()
	}
	return config
}

func judgeVerdict(winnerID, winnerName string, scoreA, scoreB float64) string {
	return fmt.Sprintf(`{
		"summary": "A close debate.",
		"agent_scores": [
			{"agent_id": "agent-a", "agent_name": "A", "score": %g, "reasoning": "ra"},
			{"agent_id": "agent-b", "agent_name": "B", "score": %g, "reasoning": "rb"}
		],
		"winner_id": %q,
		"winner_name": %q,
		"key_arguments": ["k1", "k2"]
	}`, scoreA, scoreB, winnerID, winnerName)
}

func waitForTerminal(t *testing.T, m *Manager, id string) *core.DebateState {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := m.GetDebate(id)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("debate never reached terminal state")
	return nil
}

func drainEvents(t *testing.T, sub *broadcast.Subscription) []broadcast.Event {
	t.Helper()

	var events []broadcast.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, open := <-sub.Events:
			if !open {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("event stream never ended (got %d events)", len(events))
		}
	}
}

func countByType(events []broadcast.Event) map[broadcast.EventType]int {
	counts := make(map[broadcast.EventType]int)
	for _, ev := range events {
		counts[ev.Type]++
	}
	return counts
}

// Two agents, two rounds, judge completes: the full happy path.
func TestRunDebateTwoAgentsTwoRoundsJudged(t *testing.T) {
	gw := &mockGateway{generate: func(ctx context.Context, call int, req gateway.Request) (string, error) {
		switch call {
		case 1:
			return "t_A1", nil
		case 2:
			return "t_B1", nil
		case 3:
			return "t_A2", nil
		case 4:
			return "t_B2", nil
		case 5:
			return judgeVerdict("agent-a", "A", 7.5, 6.0), nil
		}
		return "", fmt.Errorf("unexpected call %d", call)
	}}
	m, _ := setupManager(t, gw)

	state, err := m.CreateDebate(twoAgentConfig(2, true))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if state.Status != core.StatusCreated {
		t.Fatalf("wrong initial status: %s", state.Status)
	}

	_, sub, err := m.Subscribe(state.DebateID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := m.StartDebate(state.DebateID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	final := waitForTerminal(t, m, state.DebateID)
	if final.Status != core.StatusCompleted {
		t.Fatalf("wrong status: %s (%s)", final.Status, final.ErrorMessage)
	}

	// History: 4 messages in (round, turn) order.
	if len(final.History) != 4 {
		t.Fatalf("wrong history length: %d", len(final.History))
	}
	expected := []struct {
		agentID string
		round   int
		turn    int
		content string
	}{
		{"agent-a", 1, 0, "t_A1"},
		{"agent-b", 1, 1, "t_B1"},
		{"agent-a", 2, 0, "t_A2"},
		{"agent-b", 2, 1, "t_B2"},
	}
	for i, want := range expected {
		got := final.History[i]
		if got.AgentID != want.agentID || got.RoundNumber != want.round ||
			got.TurnNumber != want.turn || got.Content != want.content {
			t.Errorf("message %d: got (%s, %d, %d, %q)", i, got.AgentID, got.RoundNumber, got.TurnNumber, got.Content)
		}
	}

	if final.JudgeResult == nil {
		t.Fatal("judge result missing")
	}
	if final.JudgeResult.WinnerID != "agent-a" {
		t.Errorf("wrong winner: %s", final.JudgeResult.WinnerID)
	}
	if final.StartedAt == nil || final.CompletedAt == nil {
		t.Error("lifecycle timestamps missing")
	}

	events := drainEvents(t, sub)
	counts := countByType(events)
	for eventType, want := range map[broadcast.EventType]int{
		broadcast.EventDebateStarted:   1,
		broadcast.EventRoundStarted:    2,
		broadcast.EventAgentThinking:   4,
		broadcast.EventMessageReceived: 4,
		broadcast.EventTurnComplete:    4,
		broadcast.EventRoundComplete:   2,
		broadcast.EventJudgingStarted:  1,
		broadcast.EventJudgeResult:     1,
		broadcast.EventDebateComplete:  1,
		broadcast.EventError:           0,
	} {
		if counts[eventType] != want {
			t.Errorf("event %s: got %d, want %d", eventType, counts[eventType], want)
		}
	}

	// Exactly one message_received per committed message, in commit order.
	var received []string
	for _, ev := range events {
		if ev.Type == broadcast.EventMessageReceived {
			msg := ev.Payload["message"].(core.Message)
			received = append(received, msg.Content)
		}
	}
	for i, want := range []string{"t_A1", "t_B1", "t_A2", "t_B2"} {
		if received[i] != want {
			t.Errorf("message_received %d: got %q, want %q", i, received[i], want)
		}
	}

	if events[0].Type != broadcast.EventDebateStarted {
		t.Errorf("first event should be debate_started, got %s", events[0].Type)
	}
	if events[len(events)-1].Type != broadcast.EventDebateComplete {
		t.Errorf("last event should be debate_complete, got %s", events[len(events)-1].Type)
	}

	// Four turns plus one judge call, nothing more.
	if gw.callCount() != 5 {
		t.Errorf("wrong gateway call count: %d", gw.callCount())
	}
}

// Three agents speak in configured order within the round.
func TestRunDebateThreeAgentOrdering(t *testing.T) {
	gw := &mockGateway{generate: func(ctx context.Context, call int, req gateway.Request) (string, error) {
		return fmt.Sprintf("response-%d", call), nil
	}}
	m, _ := setupManager(t, gw)

	config := core.DebateConfig{
		Topic:     "T",
		NumRounds: 1,
		Agents: []core.AgentConfig{
			debaterConfig("agent-x", "X", "Pro"),
			debaterConfig("agent-y", "Y", "Con"),
			debaterConfig("agent-z", "Z", "Neutral"),
		},
	}
	state, err := m.CreateDebate(config)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.StartDebate(state.DebateID); err != nil {
		t.Fatal(err)
	}

	final := waitForTerminal(t, m, state.DebateID)
	if final.Status != core.StatusCompleted {
		t.Fatalf("wrong status: %s (%s)", final.Status, final.ErrorMessage)
	}
	if len(final.History) != 3 {
		t.Fatalf("wrong history length: %d", len(final.History))
	}

	wantOrder := []struct {
		agentID string
		turn    int
	}{
		{"agent-x", 0}, {"agent-y", 1}, {"agent-z", 2},
	}
	for i, want := range wantOrder {
		got := final.History[i]
		if got.AgentID != want.agentID || got.RoundNumber != 1 || got.TurnNumber != want.turn {
			t.Errorf("message %d: got (%s, %d, %d)", i, got.AgentID, got.RoundNumber, got.TurnNumber)
		}
	}

	// No judge configured: the debate completes without a verdict.
	if final.JudgeResult != nil {
		t.Error("judge result should be nil without a judge")
	}
}

// Permanent upstream failure on the second turn: partial history is
// preserved, the record fails, the terminal event is error.
func TestRunDebateUpstreamFailure(t *testing.T) {
	gw := &mockGateway{generate: func(ctx context.Context, call int, req gateway.Request) (string, error) {
		if call == 1 {
			return "t_A1", nil
		}
		return "", core.NewError(core.KindUpstreamUnavailable, "anthropic/claude unavailable after 3 attempts")
	}}
	m, _ := setupManager(t, gw)

	state, _ := m.CreateDebate(twoAgentConfig(2, true))
	_, sub, _ := m.Subscribe(state.DebateID)

	if err := m.StartDebate(state.DebateID); err != nil {
		t.Fatal(err)
	}

	final := waitForTerminal(t, m, state.DebateID)
	if final.Status != core.StatusFailed {
		t.Fatalf("wrong status: %s", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Error("error message missing")
	}
	if len(final.History) != 1 {
		t.Errorf("partial history not preserved: %d messages", len(final.History))
	}
	if final.JudgeResult != nil {
		t.Error("failed debate must not carry a judge result")
	}

	events := drainEvents(t, sub)
	last := events[len(events)-1]
	if last.Type != broadcast.EventError {
		t.Errorf("terminal event should be error, got %s", last.Type)
	}
	if last.Payload["error_kind"] != string(core.KindUpstreamUnavailable) {
		t.Errorf("wrong error kind: %v", last.Payload["error_kind"])
	}
	counts := countByType(events)
	if counts[broadcast.EventMessageReceived] != 1 {
		t.Errorf("no message_received may be emitted for uncommitted turns: got %d", counts[broadcast.EventMessageReceived])
	}
	if counts[broadcast.EventJudgeResult] != 0 {
		t.Errorf("judge_result must not be emitted: got %d", counts[broadcast.EventJudgeResult])
	}
}

// Judge returns only scores; the salvage path completes the debate.
func TestRunDebateJudgeSalvage(t *testing.T) {
	gw := &mockGateway{generate: func(ctx context.Context, call int, req gateway.Request) (string, error) {
		if call <= 2 {
			return fmt.Sprintf("turn-%d", call), nil
		}
		return `{"agent_scores": [
			{"agent_id": "agent-a", "agent_name": "A", "score": 8.2, "reasoning": "ra"},
			{"agent_id": "agent-b", "agent_name": "B", "score": 8.1, "reasoning": "rb"}
		]}`, nil
	}}
	m, _ := setupManager(t, gw)

	state, _ := m.CreateDebate(twoAgentConfig(1, true))
	if err := m.StartDebate(state.DebateID); err != nil {
		t.Fatal(err)
	}

	final := waitForTerminal(t, m, state.DebateID)
	if final.Status != core.StatusCompleted {
		t.Fatalf("wrong status: %s (%s)", final.Status, final.ErrorMessage)
	}
	jr := final.JudgeResult
	if jr == nil {
		t.Fatal("judge result missing")
	}
	if jr.WinnerID != "agent-a" {
		t.Errorf("winner should be highest scorer, got %s", jr.WinnerID)
	}
	if jr.Summary != "" {
		t.Errorf("summary should default empty, got %q", jr.Summary)
	}
	if len(jr.KeyArguments) != 0 {
		t.Errorf("key_arguments should default empty, got %v", jr.KeyArguments)
	}
}

// Judge output with no parseable scores fails the debate.
func TestRunDebateJudgeUnparseable(t *testing.T) {
	gw := &mockGateway{generate: func(ctx context.Context, call int, req gateway.Request) (string, error) {
		if call <= 2 {
			return "turn", nil
		}
		return "I refuse to answer in JSON.", nil
	}}
	m, _ := setupManager(t, gw)

	state, _ := m.CreateDebate(twoAgentConfig(1, true))
	if err := m.StartDebate(state.DebateID); err != nil {
		t.Fatal(err)
	}

	final := waitForTerminal(t, m, state.DebateID)
	if final.Status != core.StatusFailed {
		t.Fatalf("wrong status: %s", final.Status)
	}
	// The debater messages survive the judge failure.
	if len(final.History) != 2 {
		t.Errorf("history not preserved: %d", len(final.History))
	}
}

// A subscriber attaching after terminal state receives the full event log
// and end-of-stream.
func TestLateSubscriberOnTerminalDebate(t *testing.T) {
	gw := &mockGateway{generate: func(ctx context.Context, call int, req gateway.Request) (string, error) {
		if call <= 4 {
			return fmt.Sprintf("turn-%d", call), nil
		}
		return judgeVerdict("agent-a", "A", 7.5, 6.0), nil
	}}
	m, _ := setupManager(t, gw)

	state, _ := m.CreateDebate(twoAgentConfig(2, true))
	if err := m.StartDebate(state.DebateID); err != nil {
		t.Fatal(err)
	}
	waitForTerminal(t, m, state.DebateID)

	snapshot, sub, err := m.Subscribe(state.DebateID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if snapshot.Status != core.StatusCompleted || snapshot.JudgeResult == nil {
		t.Errorf("snapshot should reflect the terminal state: %s", snapshot.Status)
	}

	events := drainEvents(t, sub)
	counts := countByType(events)
	if counts[broadcast.EventDebateStarted] != 1 || counts[broadcast.EventMessageReceived] != 4 ||
		counts[broadcast.EventDebateComplete] != 1 {
		t.Errorf("late subscriber log incomplete: %v", counts)
	}
	if events[0].Type != broadcast.EventDebateStarted {
		t.Errorf("log should start with debate_started, got %s", events[0].Type)
	}
}

// The first start wins; repeats are invalid transitions with no side
// effects.
func TestStartDebateIdempotence(t *testing.T) {
	release := make(chan struct{})
	gw := &mockGateway{generate: func(ctx context.Context, call int, req gateway.Request) (string, error) {
		<-release
		return judgeVerdict("agent-a", "A", 7.0, 6.0), nil
	}}
	m, _ := setupManager(t, gw)

	state, _ := m.CreateDebate(twoAgentConfig(1, true))

	if err := m.StartDebate(state.DebateID); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := m.StartDebate(state.DebateID); !core.IsKind(err, core.KindInvalidTransition) {
		t.Errorf("second start: got kind %s, want %s", core.KindOf(err), core.KindInvalidTransition)
	}
	close(release)

	final := waitForTerminal(t, m, state.DebateID)
	if final.Status != core.StatusFailed && final.Status != core.StatusCompleted {
		t.Fatalf("unexpected status: %s", final.Status)
	}

	// Starting a terminal debate is also rejected.
	if err := m.StartDebate(state.DebateID); !core.IsKind(err, core.KindInvalidTransition) {
		t.Errorf("start on terminal: got kind %s", core.KindOf(err))
	}

	if err := m.StartDebate("nonexistent"); !core.IsKind(err, core.KindNotFound) {
		t.Errorf("start on unknown id: got kind %s", core.KindOf(err))
	}
}

// Deleting an in-progress debate cancels its task; no further state is
// committed and the record disappears.
func TestDeleteCancelsRunningDebate(t *testing.T) {
	firstTurnDone := make(chan struct{})
	gw := &mockGateway{generate: func(ctx context.Context, call int, req gateway.Request) (string, error) {
		if call == 1 {
			defer close(firstTurnDone)
			return "t_A1", nil
		}
		// Block until cancellation.
		<-ctx.Done()
		return "", core.WrapError(core.KindCancelled, ctx.Err(), "generation cancelled")
	}}
	m, _ := setupManager(t, gw)

	state, _ := m.CreateDebate(twoAgentConfig(3, true))
	if err := m.StartDebate(state.DebateID); err != nil {
		t.Fatal(err)
	}

	<-firstTurnDone
	if err := m.DeleteDebate(state.DebateID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := m.GetDebate(state.DebateID); !core.IsKind(err, core.KindNotFound) {
		t.Errorf("record should be gone: got kind %s", core.KindOf(err))
	}

	// The task exits without committing anything further; give it a
	// moment and confirm the manager no longer tracks it.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		_, running := m.running[state.DebateID]
		m.mu.Unlock()
		if !running {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("task still tracked after delete")
}

// One round with many agents completes and still invokes the judge.
func TestRunDebateManyAgents(t *testing.T) {
	gw := &mockGateway{generate: func(ctx context.Context, call int, req gateway.Request) (string, error) {
		if call <= 10 {
			return fmt.Sprintf("turn-%d", call), nil
		}
		return `{"agent_scores": [{"agent_id": "agent-0", "agent_name": "Agent 0", "score": 9.0, "reasoning": "r"}]}`, nil
	}}
	m, _ := setupManager(t, gw)

	config := core.DebateConfig{Topic: "T", NumRounds: 1, Judge: judgeConfig()}
	for i := 0; i < 10; i++ {
		config.Agents = append(config.Agents,
			debaterConfig(fmt.Sprintf("agent-%d", i), fmt.Sprintf("Agent %d", i), "Neutral"))
	}

	state, err := m.CreateDebate(config)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.StartDebate(state.DebateID); err != nil {
		t.Fatal(err)
	}

	final := waitForTerminal(t, m, state.DebateID)
	if final.Status != core.StatusCompleted {
		t.Fatalf("wrong status: %s (%s)", final.Status, final.ErrorMessage)
	}
	if len(final.History) != 10 {
		t.Errorf("wrong history length: %d", len(final.History))
	}
	if final.JudgeResult == nil {
		t.Error("judge result missing")
	}
	for i, msg := range final.History {
		if msg.TurnNumber != i {
			t.Errorf("message %d: wrong turn number %d", i, msg.TurnNumber)
		}
	}
}

// Terminal snapshots are stable: repeated gets serialize identically.
func TestTerminalSnapshotsAreStable(t *testing.T) {
	gw := &mockGateway{generate: func(ctx context.Context, call int, req gateway.Request) (string, error) {
		if call <= 2 {
			return "turn", nil
		}
		return judgeVerdict("agent-a", "A", 7.0, 6.0), nil
	}}
	m, _ := setupManager(t, gw)

	state, _ := m.CreateDebate(twoAgentConfig(1, true))
	if err := m.StartDebate(state.DebateID); err != nil {
		t.Fatal(err)
	}
	waitForTerminal(t, m, state.DebateID)

	first, err := m.GetDebate(state.DebateID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.GetDebate(state.DebateID)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Error("terminal snapshots differ between gets")
	}
}

func TestCreateDebateRejectsInvalidConfig(t *testing.T) {
	m, _ := setupManager(t, &mockGateway{generate: func(context.Context, int, gateway.Request) (string, error) {
		return "", nil
	}})

	config := twoAgentConfig(0, true)
	if _, err := m.CreateDebate(config); !core.IsKind(err, core.KindInvalidConfig) {
		t.Errorf("wrong kind: %s", core.KindOf(err))
	}
}

func TestGetStatus(t *testing.T) {
	m, _ := setupManager(t, &mockGateway{generate: func(context.Context, int, gateway.Request) (string, error) {
		return "", nil
	}})

	state, _ := m.CreateDebate(twoAgentConfig(3, true))
	status, err := m.GetStatus(state.DebateID)
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != core.StatusCreated || status.TotalRounds != 3 || status.MessageCount != 0 {
		t.Errorf("wrong status: %+v", status)
	}

	if _, err := m.GetStatus("nonexistent"); !core.IsKind(err, core.KindNotFound) {
		t.Errorf("wrong kind: %s", core.KindOf(err))
	}
}
