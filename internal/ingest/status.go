package ingest

import "time"

// defaultStaleAfter is the staleness threshold beyond which a quiet agent is
// inferred inactive.
const defaultStaleAfter = 6 * time.Hour

// StatusInferencer derives an agent's operational status from its most
// recent log file only. A single recent error file marks the agent in error
// even if prior runs were clean, and a long-idle agent degrades to inactive
// regardless of how clean its last run was.
type StatusInferencer struct {
	classifier *ContentClassifier
	staleAfter time.Duration
	now        func() time.Time
}

// NewStatusInferencer creates an inferencer with the given staleness
// threshold; zero selects the 6-hour default.
func NewStatusInferencer(classifier *ContentClassifier, staleAfter time.Duration) *StatusInferencer {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &StatusInferencer{
		classifier: classifier,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Infer derives a status from the newest log file's content and timestamp.
// Decision order: error tokens, warning tokens, staleness, active.
func (s *StatusInferencer) Infer(newestContent string, newestTimestamp time.Time) AgentStatus {
	switch s.classifier.Level(newestContent) {
	case LevelError:
		return StatusError
	case LevelWarning:
		return StatusWarning
	}
	if s.now().Sub(newestTimestamp) > s.staleAfter {
		return StatusInactive
	}
	return StatusActive
}

// InferUnreadable is the fail-safe status for an agent whose newest file
// could not be read.
func (s *StatusInferencer) InferUnreadable() AgentStatus {
	return StatusInactive
}
