// Package ingest turns a directory of heterogeneous agent and system log
// files into a normalized, time-ordered event feed plus a derived per-agent
// health state. Agents never report structured health data directly; status
// is inferred purely from file recency and textual evidence.
package ingest

import "time"

// Level is the normalized severity of a log entry.
type Level string

// Normalized log levels, ordered by classification priority.
const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Source identifies where a log entry originated.
type Source string

// Log entry sources.
const (
	SourceAgent  Source = "agent"
	SourceSystem Source = "system"
)

// Display bounds applied at construction time. Entries are immutable once
// built, so the bounds are enforced exactly once.
const (
	// maxMessageLen is the upper bound on Message, ellipsis included.
	maxMessageLen = 150
	// maxDetailsLen is the upper bound on Details, ellipsis included.
	maxDetailsLen = 500
)

// LogEntry is one normalized unit of observability data. Entries are
// immutable after construction; the aggregator only filters, sorts and
// slices them.
type LogEntry struct {
	// Timestamp is never zero; resolution falls back to file mtime and
	// finally to time.Now on total failure.
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Source    Source    `json:"source"`
	// Agent is set iff Source == SourceAgent.
	Agent   string `json:"agent,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// AgentStatus is the inferred operational state of an agent.
type AgentStatus string

// Agent statuses, from the status inference decision order.
const (
	StatusActive   AgentStatus = "active"
	StatusWarning  AgentStatus = "warning"
	StatusError    AgentStatus = "error"
	StatusInactive AgentStatus = "inactive"
)

// AgentDescriptor describes one discovered agent. Descriptors are recomputed
// on every directory scan; an agent exists for exactly as long as at least
// one log file carries its name prefix.
type AgentDescriptor struct {
	Name          string      `json:"name"`
	Type          string      `json:"type"`
	Status        AgentStatus `json:"status"`
	LastExecution time.Time   `json:"last_execution"`
}

// truncate bounds s to max runes-as-bytes, appending an ellipsis marker when
// content was dropped. A max below the marker length returns the marker alone.
func truncate(s string, max int) string {
	const marker = "..."
	if len(s) <= max {
		return s
	}
	if max <= len(marker) {
		return marker
	}
	return s[:max-len(marker)] + marker
}
