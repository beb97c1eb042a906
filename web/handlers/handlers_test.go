package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haniff/arena/internal/broadcast"
	"github.com/haniff/arena/internal/core"
	"github.com/haniff/arena/internal/engine"
	"github.com/haniff/arena/internal/gateway"
	"github.com/haniff/arena/internal/store"
)

// scriptedGateway answers debater calls with canned text and judge calls
// (recognized by the judge's model) with a fixed verdict.
type scriptedGateway struct{}

func (g *scriptedGateway) Generate(ctx context.Context, req gateway.Request) (string, error) {
	if req.Binding.Model == "gpt-4o" {
		return `{
			"summary": "Alice takes it.",
			"agent_scores": [
				{"agent_id": "agent-a", "agent_name": "Alice", "score": 8.0, "reasoning": "r"},
				{"agent_id": "agent-b", "agent_name": "Bob", "score": 6.5, "reasoning": "r"}
			],
			"winner_id": "agent-a",
			"winner_name": "Alice",
			"key_arguments": ["k"]
		}`, nil
	}
	return "a fine argument", nil
}

func setupServer(t *testing.T) (*httptest.Server, *engine.Manager) {
	t.Helper()

	manager := engine.New(store.NewMemoryStore(), &scriptedGateway{}, broadcast.New())
	server := httptest.NewServer(New(manager).Routes())
	t.Cleanup(server.Close)
	return server, manager
}

func debateConfigJSON() string {
	return `{
		"config": {
			"topic": "Cats are better than dogs",
			"num_rounds": 1,
			"agents": [
				{
					"agent_id": "agent-a", "name": "Alice", "stance": "Pro", "role": "debater",
					"system_prompt": "Argue for cats.", "temperature": 0.7, "max_tokens": 1024,
					"binding": {"provider": "anthropic", "model": "claude-3-5-sonnet-20241022"}
				},
				{
					"agent_id": "agent-b", "name": "Bob", "stance": "Con", "role": "debater",
					"system_prompt": "Argue for dogs.", "temperature": 0.7, "max_tokens": 1024,
					"binding": {"provider": "anthropic", "model": "claude-3-5-sonnet-20241022"}
				}
			],
			"judge_config": {
				"agent_id": "judge", "name": "Judge", "stance": "Neutral", "role": "judge",
				"system_prompt": "Judge fairly.", "temperature": 0.3, "max_tokens": 2048,
				"binding": {"provider": "openai", "model": "gpt-4o"}
			}
		}
	}`
}

func createDebate(t *testing.T, server *httptest.Server) string {
	t.Helper()

	resp, err := http.Post(server.URL+"/api/debates", "application/json",
		strings.NewReader(debateConfigJSON()))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("wrong status: %d", resp.StatusCode)
	}

	var created struct {
		DebateID string `json:"debate_id"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.DebateID == "" || created.Status != "created" {
		t.Fatalf("bad creation response: %+v", created)
	}
	return created.DebateID
}

func startAndWait(t *testing.T, server *httptest.Server, manager *engine.Manager, id string) {
	t.Helper()

	resp, err := http.Post(server.URL+"/api/debates/"+id+"/start", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("wrong start status: %d", resp.StatusCode)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := manager.GetDebate(id)
		if err != nil {
			t.Fatal(err)
		}
		if snap.Status.Terminal() {
			if snap.Status != core.StatusCompleted {
				t.Fatalf("debate failed: %s", snap.ErrorMessage)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("debate never finished")
}

func TestCreateDebateEndpoint(t *testing.T) {
	server, _ := setupServer(t)

	t.Run("Valid", func(t *testing.T) {
		createDebate(t, server)
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		body := `{"config": {"topic": "", "num_rounds": 1, "agents": []}}`
		resp, err := http.Post(server.URL+"/api/debates", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("wrong status: %d", resp.StatusCode)
		}

		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "invalid_config" {
			t.Errorf("wrong error kind: %s", errResp.Error)
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/api/debates", "application/json", strings.NewReader("{nope"))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("wrong status: %d", resp.StatusCode)
		}
	})
}

func TestDebateLifecycleOverHTTP(t *testing.T) {
	server, manager := setupServer(t)
	id := createDebate(t, server)

	// Status before start.
	resp, err := http.Get(server.URL + "/api/debates/" + id + "/status")
	if err != nil {
		t.Fatal(err)
	}
	var status engine.Status
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if status.Status != core.StatusCreated || status.TotalRounds != 1 {
		t.Errorf("wrong status payload: %+v", status)
	}

	startAndWait(t, server, manager, id)

	// Repeated start is rejected without side effects.
	resp, err = http.Post(server.URL+"/api/debates/"+id+"/start", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("restart should conflict: %d", resp.StatusCode)
	}

	// Full snapshot.
	resp, err = http.Get(server.URL + "/api/debates/" + id)
	if err != nil {
		t.Fatal(err)
	}
	var wrapper struct {
		Debate core.DebateState `json:"debate"`
	}
	json.NewDecoder(resp.Body).Decode(&wrapper)
	resp.Body.Close()
	if wrapper.Debate.Status != core.StatusCompleted || len(wrapper.Debate.History) != 2 {
		t.Errorf("wrong snapshot: status %s, %d messages", wrapper.Debate.Status, len(wrapper.Debate.History))
	}
	if wrapper.Debate.JudgeResult == nil || wrapper.Debate.JudgeResult.WinnerID != "agent-a" {
		t.Errorf("judge result missing from snapshot")
	}

	// List contains it.
	resp, err = http.Get(server.URL + "/api/debates")
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Total int `json:"total"`
	}
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if list.Total != 1 {
		t.Errorf("wrong list total: %d", list.Total)
	}

	// Delete, then everything 404s.
	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/debates/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("wrong delete status: %d", resp.StatusCode)
	}

	resp, _ = http.Get(server.URL + "/api/debates/" + id)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted debate should 404: %d", resp.StatusCode)
	}
}

func TestExportEndpoint(t *testing.T) {
	server, manager := setupServer(t)
	id := createDebate(t, server)
	startAndWait(t, server, manager, id)

	t.Run("JSONDefault", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/debates/" + id + "/export")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("wrong content type: %s", ct)
		}
		var state core.DebateState
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			t.Fatalf("export does not parse: %v", err)
		}
		if state.DebateID != id {
			t.Errorf("wrong debate: %s", state.DebateID)
		}
	})

	t.Run("Markdown", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/debates/" + id + "/export?format=markdown")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		if !strings.Contains(buf.String(), "# Debate: Cats are better than dogs") {
			t.Error("markdown export missing title")
		}
		if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, ".md") {
			t.Errorf("wrong disposition: %s", cd)
		}
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/debates/" + id + "/export?format=xml")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("wrong status: %d", resp.StatusCode)
		}
	})

	t.Run("UnknownDebate", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/debates/nonexistent/export")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("wrong status: %d", resp.StatusCode)
		}
	})
}

func TestProvidersEndpoint(t *testing.T) {
	server, _ := setupServer(t)

	resp, err := http.Get(server.URL + "/api/providers")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var payload struct {
		Providers []struct {
			ProviderID string `json:"provider_id"`
		} `json:"providers"`
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Total < 3 {
		t.Errorf("expected at least 3 providers, got %d", payload.Total)
	}
}

func TestStreamEndpoint(t *testing.T) {
	server, manager := setupServer(t)
	id := createDebate(t, server)
	startAndWait(t, server, manager, id)

	// A subscriber attaching after terminal state gets the snapshot frame
	// plus the full retained log, then the server ends the stream.
	resp, err := http.Get(server.URL + "/api/debates/" + id + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("wrong content type: %s", ct)
	}

	var eventTypes []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventTypes = append(eventTypes, strings.TrimPrefix(line, "event: "))
		}
	}

	if len(eventTypes) == 0 {
		t.Fatal("no events received")
	}
	if eventTypes[0] != "connection_established" {
		t.Errorf("first event should be connection_established, got %s", eventTypes[0])
	}
	if eventTypes[len(eventTypes)-1] != "debate_complete" {
		t.Errorf("last event should be debate_complete, got %s", eventTypes[len(eventTypes)-1])
	}

	counts := map[string]int{}
	for _, et := range eventTypes {
		counts[et]++
	}
	if counts["message_received"] != 2 {
		t.Errorf("wrong message_received count: %d", counts["message_received"])
	}

	t.Run("UnknownDebate", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/debates/nonexistent/stream")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("wrong status: %d", resp.StatusCode)
		}
	})
}

func TestWebSocketEndpoint(t *testing.T) {
	server, manager := setupServer(t)
	id := createDebate(t, server)
	startAndWait(t, server, manager, id)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws/" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first broadcast.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if first.Type != broadcast.EventConnectionEstablished {
		t.Fatalf("first frame should be connection_established, got %s", first.Type)
	}
	if fmt.Sprint(first.Payload["status"]) != "completed" {
		t.Errorf("wrong snapshot status: %v", first.Payload["status"])
	}
	if fmt.Sprint(first.Payload["message_count"]) != "2" {
		t.Errorf("wrong message count: %v", first.Payload["message_count"])
	}

	// Ping is answered out-of-band with a pong.
	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatal(err)
	}

	sawPong := false
	sawComplete := false
	for {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		switch frame["type"] {
		case "pong":
			sawPong = true
		case "debate_complete":
			sawComplete = true
		}
	}

	if !sawPong {
		t.Error("never received pong")
	}
	if !sawComplete {
		t.Error("never received debate_complete")
	}
}
