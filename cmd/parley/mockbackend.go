package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/odvcencio/parley/pkg/agentapi"
	"github.com/odvcencio/parley/pkg/observability"
)

// runMockBackendCommand serves a local agent backend with scripted runs:
// each run reports pending for a couple of polls, optionally pauses on a
// fake tool approval, then completes with a structured payload echoing the
// last user message.
func runMockBackendCommand(args []string) error {
	fs := flag.NewFlagSet("mock-backend", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:8787", "listen address")
	pause := fs.Bool("pause", false, "script an approval pause into each run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := observability.NewLogger("mock-backend", 0)
	srv := newMockServer(*pause, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/api/agent", srv.handle)

	log.Info("mock backend listening", "addr", *addr, "pause", *pause)
	return http.ListenAndServe(*addr, r)
}

// mockRun walks a fixed phase sequence, one step per poll.
type mockRun struct {
	agentID  string
	phase    int
	paused   bool
	rejected bool
	lastUser string
	toolExec string
}

type mockServer struct {
	pause bool
	log   *observability.Logger

	mu   sync.Mutex
	runs map[string]*mockRun
}

func newMockServer(pause bool, log *observability.Logger) *mockServer {
	return &mockServer{pause: pause, log: log, runs: make(map[string]*mockRun)}
}

type actionRequest struct {
	Action      string                  `json:"action"`
	AgentID     string                  `json:"agentId"`
	AgentRunID  string                  `json:"agentRunId"`
	LastLogUUID string                  `json:"lastLogUUID"`
	Messages    []agentapi.Message      `json:"messages"`
	Decisions   []agentapi.ToolDecision `json:"decisions"`
}

func (s *mockServer) handle(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("bad request: %v", err))
		return
	}

	switch req.Action {
	case "invoke":
		s.invoke(w, req)
	case "getLogs":
		s.getLogs(w, req)
	case "submitToolApproval":
		s.submitToolApproval(w, req)
	default:
		httpError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (s *mockServer) invoke(w http.ResponseWriter, req actionRequest) {
	runID := uuid.NewString()
	run := &mockRun{agentID: req.AgentID}
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			run.lastUser = msg.Content
		}
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	s.log.Info("run started", "agent_run_id", runID, "messages", len(req.Messages))
	writeSnapshot(w, &agentapi.Snapshot{
		Status:     agentapi.StatusPending,
		AgentID:    req.AgentID,
		AgentRunID: runID,
	})
}

func (s *mockServer) getLogs(w http.ResponseWriter, req actionRequest) {
	s.mu.Lock()
	run, ok := s.runs[req.AgentRunID]
	if ok {
		run.phase++
	}
	s.mu.Unlock()
	if !ok {
		httpError(w, http.StatusNotFound, fmt.Sprintf("unknown run %q", req.AgentRunID))
		return
	}

	snap := &agentapi.Snapshot{
		AgentID:    run.agentID,
		AgentRunID: req.AgentRunID,
		Pagination: &agentapi.Pagination{LastLogUUID: uuid.NewString()},
	}

	switch {
	case run.phase < 2:
		snap.Status = agentapi.StatusPending
	case s.pause && !run.paused:
		run.paused = true
		run.toolExec = uuid.NewString()
		snap.Status = agentapi.StatusPausedForApproval
		snap.Trace = []agentapi.TraceSpan{{
			SpanType: agentapi.SpanToolWaitingForApproval,
			ToolData: &agentapi.ToolData{
				ToolExecutionID: run.toolExec,
				ToolID:          "tool-search",
				ToolName:        "search",
				Reasoning:       "need fresh data to answer",
				Parameters:      map[string]any{"query": run.lastUser},
			},
		}}
	default:
		snap.Status = agentapi.StatusCompleted
		snap.Content = completionPayload(run)
	}
	writeSnapshot(w, snap)
}

func (s *mockServer) submitToolApproval(w http.ResponseWriter, req actionRequest) {
	s.mu.Lock()
	run, ok := s.runs[req.AgentRunID]
	if ok {
		for _, d := range req.Decisions {
			if d.ToolExecutionID == run.toolExec && d.Decision == agentapi.DecisionReject {
				run.rejected = true
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		httpError(w, http.StatusNotFound, fmt.Sprintf("unknown run %q", req.AgentRunID))
		return
	}

	s.log.Info("decision received", "agent_run_id", req.AgentRunID, "decisions", len(req.Decisions))
	writeSnapshot(w, &agentapi.Snapshot{
		Success:    true,
		Status:     agentapi.StatusPending,
		AgentID:    run.agentID,
		AgentRunID: req.AgentRunID,
	})
}

func completionPayload(run *mockRun) string {
	text := fmt.Sprintf("echo: %s", run.lastUser)
	if run.rejected {
		text = "understood, skipping that tool."
	}
	payload, _ := json.Marshal(map[string]any{"type": "text", "source": text})
	return string(payload)
}

func writeSnapshot(w http.ResponseWriter, snap *agentapi.Snapshot) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
