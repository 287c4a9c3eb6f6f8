package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func initAuditTest(t *testing.T) string {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "audit_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	configDir := filepath.Join(tempDir, ".webconcolic")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configContent := `{"logging": {"level": "debug", "debug_mode": true}}`
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	resetLoggingState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}
	if err := InitAudit(); err != nil {
		t.Fatalf("failed to init audit: %v", err)
	}
	return tempDir
}

func readAuditEvents(t *testing.T, tempDir string) []AuditEvent {
	t.Helper()
	logsPath := filepath.Join(tempDir, ".webconcolic", "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("failed to read logs dir: %v", err)
	}

	var auditFileName string
	for _, e := range entries {
		if strings.Contains(e.Name(), "_audit.log") {
			auditFileName = e.Name()
			break
		}
	}
	if auditFileName == "" {
		t.Fatalf("no audit log file found in %s", logsPath)
	}

	f, err := os.Open(filepath.Join(logsPath, auditFileName))
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var ev AuditEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("failed to unmarshal audit line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestAuditIterationLifecycle(t *testing.T) {
	tempDir := initAuditTest(t)
	defer os.RemoveAll(tempDir)

	a := AuditWithIteration("iter-1")
	a.IterationStart("iter-1")
	a.TargetSelected("iter-1", "node-42")
	a.SolveAttempted("iter-1", "SAT", 12)
	a.InputInjected("iter-1", "field=username value=\"alice\"")
	a.IterationComplete("iter-1", 57)

	CloseAudit()

	events := readAuditEvents(t, tempDir)
	if len(events) != 5 {
		t.Fatalf("expected 5 audit events, got %d", len(events))
	}

	if events[0].EventType != AuditIterationStart || events[0].IterationID != "iter-1" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].EventType != AuditTargetSelected || events[1].Target != "node-42" {
		t.Errorf("unexpected target-selected event: %+v", events[1])
	}
	if events[2].EventType != AuditSolveSucceeded || !events[2].Success {
		t.Errorf("expected solve to be recorded as succeeded: %+v", events[2])
	}
	if events[4].EventType != AuditIterationComplete || events[4].DurationMs != 57 {
		t.Errorf("unexpected completion event: %+v", events[4])
	}

	for _, ev := range events {
		if ev.ReplayedFact == "" {
			t.Errorf("event %s missing generated fact string", ev.EventType)
		}
	}
}

func TestAuditIterationMissedAndSolveFailed(t *testing.T) {
	tempDir := initAuditTest(t)
	defer os.RemoveAll(tempDir)

	a := AuditWithIteration("iter-2")
	a.SolveAttempted("iter-2", "UNSAT", 3)
	a.IterationMissed("iter-2", "browser session crashed")

	CloseAudit()

	events := readAuditEvents(t, tempDir)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != AuditSolveFailed || events[0].Success {
		t.Errorf("UNSAT should record as solve_failed, not success: %+v", events[0])
	}
	if events[1].EventType != AuditIterationMissed || events[1].Error != "browser session crashed" {
		t.Errorf("unexpected missed event: %+v", events[1])
	}
}

func TestGenerateFactFormats(t *testing.T) {
	ev := AuditEvent{
		EventType:   AuditTargetSelected,
		IterationID: "iter-3",
		Target:      "node-7",
	}
	fact := generateFact(ev)
	if !strings.HasPrefix(fact, "frontier_event(") {
		t.Errorf("expected frontier_event fact, got %q", fact)
	}

	errEv := AuditEvent{
		EventType: AuditErrorCritical,
		Category:  "solver",
		Error:     `bad "quote" here`,
	}
	errFact := generateFact(errEv)
	if !strings.Contains(errFact, `\"quote\"`) {
		t.Errorf("expected escaped quotes in error fact, got %q", errFact)
	}
}

func TestAuditDisabledInProductionMode(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "audit_test_disabled")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".webconcolic")
	os.MkdirAll(configDir, 0755)
	os.WriteFile(filepath.Join(configDir, "config.json"), []byte(`{"logging": {"debug_mode": false}}`), 0644)

	resetLoggingState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}
	if err := InitAudit(); err != nil {
		t.Fatalf("InitAudit should not error in production mode: %v", err)
	}

	Audit().IterationStart("iter-x")
	CloseAudit()

	logsPath := filepath.Join(tempDir, ".webconcolic", "logs")
	if _, err := os.Stat(logsPath); err == nil {
		entries, _ := os.ReadDir(logsPath)
		for _, e := range entries {
			if strings.Contains(e.Name(), "_audit.log") {
				t.Errorf("expected no audit log in production mode, found %s", e.Name())
			}
		}
	}
}
