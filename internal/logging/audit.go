// Package logging also provides audit logging: structured JSONL events for
// the iteration driver's lifecycle, queryable after the fact without
// re-parsing free-text log lines.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names one kind of driver-lifecycle event.
type AuditEventType string

const (
	// Iteration lifecycle -> iteration_event/5
	AuditIterationStart    AuditEventType = "iteration_start"
	AuditIterationComplete AuditEventType = "iteration_complete"
	AuditIterationMissed   AuditEventType = "iteration_missed"

	// Trace building/merging -> trace_event/5
	AuditTraceBuilt   AuditEventType = "trace_built"
	AuditTraceMerged  AuditEventType = "trace_merged"
	AuditTraceCorrupt AuditEventType = "trace_corrupt"
	AuditClassified   AuditEventType = "classified"

	// Frontier/selection -> frontier_event/4
	AuditFrontierRederived AuditEventType = "frontier_rederived"
	AuditTargetSelected    AuditEventType = "target_selected"
	AuditFrontierExhausted AuditEventType = "frontier_exhausted"

	// Solving -> solve_event/5
	AuditSolveAttempted AuditEventType = "solve_attempted"
	AuditSolveSucceeded AuditEventType = "solve_succeeded"
	AuditSolveFailed    AuditEventType = "solve_failed"

	// Injection -> inject_event/4
	AuditInputInjected AuditEventType = "input_injected"

	// Errors -> error_event/4
	AuditErrorGeneric  AuditEventType = "error_generic"
	AuditErrorCritical AuditEventType = "error_critical"
)

// =============================================================================
// AUDIT EVENT STRUCTURE
// =============================================================================

// AuditEvent is one structured audit log entry.
type AuditEvent struct {
	Timestamp    int64                  `json:"ts"`
	EventType    AuditEventType         `json:"event"`
	Category     string                 `json:"cat"`
	IterationID  string                 `json:"iteration"`
	Target       string                 `json:"target"`  // node/entry identity, human-readable
	Outcome      string                 `json:"outcome"` // e.g. solver outcome, classify result
	Success      bool                   `json:"success"`
	DurationMs   int64                  `json:"dur_ms"`
	Error        string                 `json:"error"`
	Message      string                 `json:"msg"`
	Fields       map[string]interface{} `json:"fields"`
	ReplayedFact string                 `json:"fact"` // pre-formatted Prolog-style fact, for offline analysis
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger handles structured audit logging.
type AuditLogger struct {
	iterationID string
	category    Category
}

// InitAudit initializes the audit logging system.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Audit log started at %s\n# Format: one JSON AuditEvent per line\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger.
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithIteration creates an audit logger scoped to one driver iteration.
func AuditWithIteration(iterationID string) *AuditLogger {
	return &AuditLogger{iterationID: iterationID}
}

// AuditWithContext creates a fully-scoped audit logger.
func AuditWithContext(iterationID string, category Category) *AuditLogger {
	return &AuditLogger{iterationID: iterationID, category: category}
}

// Log writes an audit event.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.IterationID == "" && a.iterationID != "" {
		event.IterationID = a.iterationID
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}
	if event.Fields == nil {
		event.Fields = make(map[string]interface{})
	}

	event.ReplayedFact = generateFact(event)

	auditMu.Lock()
	defer auditMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// generateFact renders a compact Prolog-style fact string from an event, for
// grep/awk-friendly offline analysis without decoding JSON.
func generateFact(e AuditEvent) string {
	switch e.EventType {
	case AuditIterationStart, AuditIterationComplete, AuditIterationMissed:
		return fmt.Sprintf("iteration_event(%d, /%s, \"%s\", %v, %d).",
			e.Timestamp, e.EventType, e.IterationID, e.Success, e.DurationMs)

	case AuditTraceBuilt, AuditTraceMerged, AuditTraceCorrupt, AuditClassified:
		return fmt.Sprintf("trace_event(%d, /%s, \"%s\", \"%s\", %v).",
			e.Timestamp, e.EventType, e.IterationID, e.Outcome, e.Success)

	case AuditFrontierRederived, AuditTargetSelected, AuditFrontierExhausted:
		return fmt.Sprintf("frontier_event(%d, /%s, \"%s\", \"%s\").",
			e.Timestamp, e.EventType, e.IterationID, e.Target)

	case AuditSolveAttempted, AuditSolveSucceeded, AuditSolveFailed:
		return fmt.Sprintf("solve_event(%d, /%s, \"%s\", \"%s\", %d).",
			e.Timestamp, e.EventType, e.IterationID, e.Outcome, e.DurationMs)

	case AuditInputInjected:
		return fmt.Sprintf("inject_event(%d, \"%s\", \"%s\", %v).",
			e.Timestamp, e.IterationID, e.Target, e.Success)

	case AuditErrorGeneric, AuditErrorCritical:
		return fmt.Sprintf("error_event(%d, /%s, \"%s\", \"%s\").",
			e.Timestamp, e.EventType, e.Category, escapeString(e.Error))

	default:
		return fmt.Sprintf("audit_event(%d, /%s, \"%s\", %v).",
			e.Timestamp, e.EventType, escapeString(e.Message), e.Success)
	}
}

// escapeString escapes quotes/backslashes/control characters for fact
// strings. Uses strings.Builder to stay linear in input size.
func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/10)

	for _, c := range s {
		switch c {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// =============================================================================
// CONVENIENCE METHODS FOR DRIVER LIFECYCLE EVENTS
// =============================================================================

// IterationStart logs the beginning of one driver iteration.
func (a *AuditLogger) IterationStart(iterationID string) {
	a.Log(AuditEvent{
		EventType:   AuditIterationStart,
		IterationID: iterationID,
		Success:     true,
		Message:     fmt.Sprintf("iteration %s started", iterationID),
	})
}

// IterationComplete logs a normal end-of-iteration.
func (a *AuditLogger) IterationComplete(iterationID string, durationMs int64) {
	a.Log(AuditEvent{
		EventType:   AuditIterationComplete,
		IterationID: iterationID,
		Success:     true,
		DurationMs:  durationMs,
		Message:     fmt.Sprintf("iteration %s completed (%dms)", iterationID, durationMs),
	})
}

// IterationMissed logs an iteration abandoned due to a collaborator failure
// (browser crash/timeout, or a merge-time structural mismatch).
func (a *AuditLogger) IterationMissed(iterationID, reason string) {
	a.Log(AuditEvent{
		EventType:   AuditIterationMissed,
		IterationID: iterationID,
		Success:     false,
		Error:       reason,
		Message:     fmt.Sprintf("iteration %s missed: %s", iterationID, reason),
	})
}

// TraceMerged logs a trace merge outcome.
func (a *AuditLogger) TraceMerged(iterationID string, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType:   AuditTraceMerged,
		IterationID: iterationID,
		Success:     success,
		Error:       errMsg,
		Message:     fmt.Sprintf("iteration %s merge success=%v", iterationID, success),
	})
}

// Classified logs a trace classification result.
func (a *AuditLogger) Classified(iterationID, result string) {
	a.Log(AuditEvent{
		EventType:   AuditClassified,
		IterationID: iterationID,
		Outcome:     result,
		Success:     true,
		Message:     fmt.Sprintf("iteration %s classified %s", iterationID, result),
	})
}

// TargetSelected logs the frontier entry the policy picked.
func (a *AuditLogger) TargetSelected(iterationID, target string) {
	a.Log(AuditEvent{
		EventType:   AuditTargetSelected,
		IterationID: iterationID,
		Target:      target,
		Success:     true,
		Message:     fmt.Sprintf("iteration %s selected target %s", iterationID, target),
	})
}

// FrontierExhausted logs that the frontier had nothing left to explore.
func (a *AuditLogger) FrontierExhausted(iterationID string) {
	a.Log(AuditEvent{
		EventType:   AuditFrontierExhausted,
		IterationID: iterationID,
		Success:     true,
		Message:     fmt.Sprintf("iteration %s: frontier exhausted", iterationID),
	})
}

// SolveAttempted logs the outcome of a solve call.
func (a *AuditLogger) SolveAttempted(iterationID, outcome string, durationMs int64) {
	eventType := AuditSolveSucceeded
	if outcome != "SAT" {
		eventType = AuditSolveFailed
	}
	a.Log(AuditEvent{
		EventType:   eventType,
		IterationID: iterationID,
		Outcome:     outcome,
		Success:     outcome == "SAT",
		DurationMs:  durationMs,
		Message:     fmt.Sprintf("iteration %s solve -> %s (%dms)", iterationID, outcome, durationMs),
	})
}

// InputInjected logs the concrete next-input that was handed to the
// collaborator for the following execution.
func (a *AuditLogger) InputInjected(iterationID, description string) {
	a.Log(AuditEvent{
		EventType:   AuditInputInjected,
		IterationID: iterationID,
		Target:      description,
		Success:     true,
		Message:     fmt.Sprintf("iteration %s injected %s", iterationID, description),
	})
}

// Error logs an error event.
func (a *AuditLogger) Error(category string, err error, critical bool) {
	eventType := AuditErrorGeneric
	if critical {
		eventType = AuditErrorCritical
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Category:  category,
		Success:   false,
		Error:     errMsg,
		Message:   fmt.Sprintf("error in %s: %s (critical=%v)", category, errMsg, critical),
	})
}
