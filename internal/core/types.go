// Package core contains the core domain types for arena.
package core

import (
	"time"

	"github.com/google/uuid"
)

// DebateStatus represents the current status of a debate.
type DebateStatus string

const (
	StatusCreated    DebateStatus = "created"
	StatusInProgress DebateStatus = "in_progress"
	StatusCompleted  DebateStatus = "completed"
	StatusFailed     DebateStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s DebateStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AgentRole is the role an agent plays in a debate.
type AgentRole string

const (
	RoleDebater AgentRole = "debater"
	RoleJudge   AgentRole = "judge"
)

// ModelBinding identifies how to reach a model: provider tag, model name,
// and optionally the environment variable holding the API key and an
// endpoint override for local providers.
type ModelBinding struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	APIKeyEnvVar string `json:"api_key_env_var,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"`
}

// String renders the binding as "provider/model".
func (b ModelBinding) String() string {
	return b.Provider + "/" + b.Model
}

// AgentConfig is the immutable configuration of one participant.
type AgentConfig struct {
	AgentID      string       `json:"agent_id"`
	Name         string       `json:"name"`
	Stance       string       `json:"stance"`
	Role         AgentRole    `json:"role"`
	SystemPrompt string       `json:"system_prompt"`
	Temperature  float64      `json:"temperature"`
	MaxTokens    int          `json:"max_tokens"`
	Binding      ModelBinding `json:"binding"`
}

// DebateConfig is the immutable configuration of a debate.
type DebateConfig struct {
	Topic     string        `json:"topic"`
	NumRounds int           `json:"num_rounds"`
	Agents    []AgentConfig `json:"agents"`
	Judge     *AgentConfig  `json:"judge_config,omitempty"`
}

// AgentByID returns the debater with the given ID, or nil.
func (c *DebateConfig) AgentByID(agentID string) *AgentConfig {
	for i := range c.Agents {
		if c.Agents[i].AgentID == agentID {
			return &c.Agents[i]
		}
	}
	return nil
}

// Message is a single contribution in a debate. Round numbers are
// 1-indexed; turn numbers are 0-indexed within a round.
type Message struct {
	AgentID     string    `json:"agent_id"`
	AgentName   string    `json:"agent_name"`
	Stance      string    `json:"stance"`
	RoundNumber int       `json:"round_number"`
	TurnNumber  int       `json:"turn_number"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

// AgentScore is the judge's score for a single debater.
type AgentScore struct {
	AgentID   string  `json:"agent_id"`
	AgentName string  `json:"agent_name"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// JudgeResult is the judge's evaluation of a completed debate.
type JudgeResult struct {
	Summary      string       `json:"summary"`
	AgentScores  []AgentScore `json:"agent_scores"`
	WinnerID     string       `json:"winner_id"`
	WinnerName   string       `json:"winner_name"`
	KeyArguments []string     `json:"key_arguments"`
}

// ScoreFor returns the score for the given agent, or 0 if absent.
func (r *JudgeResult) ScoreFor(agentID string) float64 {
	for _, s := range r.AgentScores {
		if s.AgentID == agentID {
			return s.Score
		}
	}
	return 0
}

// DebateState is the full state of a debate. The history is append-only
// and ordered by (round_number, turn_number). Exactly one executor mutates
// a state at a time; everyone else sees deep-copied snapshots.
type DebateState struct {
	DebateID     string       `json:"debate_id"`
	Config       DebateConfig `json:"config"`
	Status       DebateStatus `json:"status"`
	CurrentRound int          `json:"current_round"`
	CurrentTurn  int          `json:"current_turn"`
	History      []Message    `json:"history"`
	JudgeResult  *JudgeResult `json:"judge_result,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// NewDebateState creates a fresh CREATED state for the given configuration.
func NewDebateState(config DebateConfig) *DebateState {
	return &DebateState{
		DebateID:  uuid.New().String(),
		Config:    config,
		Status:    StatusCreated,
		History:   []Message{},
		CreatedAt: time.Now().UTC(),
	}
}

// AddMessage appends a message to the history.
func (d *DebateState) AddMessage(msg Message) {
	d.History = append(d.History, msg)
}

// Clone returns a deep copy of the state, safe to hand to readers while
// the executor keeps mutating the original.
func (d *DebateState) Clone() *DebateState {
	out := *d

	out.Config.Agents = append([]AgentConfig(nil), d.Config.Agents...)
	if d.Config.Judge != nil {
		judge := *d.Config.Judge
		out.Config.Judge = &judge
	}

	out.History = append([]Message(nil), d.History...)

	if d.JudgeResult != nil {
		jr := *d.JudgeResult
		jr.AgentScores = append([]AgentScore(nil), d.JudgeResult.AgentScores...)
		jr.KeyArguments = append([]string(nil), d.JudgeResult.KeyArguments...)
		out.JudgeResult = &jr
	}

	if d.StartedAt != nil {
		t := *d.StartedAt
		out.StartedAt = &t
	}
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		out.CompletedAt = &t
	}

	return &out
}
