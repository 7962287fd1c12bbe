package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// JSONLogParser turns a structured JSON analysis dump into a summary entry
// plus one entry per top-level key. Object values are summarized by a
// truncated serialization; scalar values are rendered inline.
type JSONLogParser struct {
	classifier *ContentClassifier
}

// NewJSONLogParser creates a JSON log parser.
func NewJSONLogParser(classifier *ContentClassifier) *JSONLogParser {
	return &JSONLogParser{classifier: classifier}
}

// Parse normalizes one JSON dump. A file that does not parse as a JSON
// object degrades to a single generic entry with a contained error instead
// of propagating the failure.
func (p *JSONLogParser) Parse(content []byte, filename string, ts time.Time) FileResult {
	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		return FileResult{
			File: filename,
			Entries: []LogEntry{{
				Timestamp: ts,
				Level:     LevelInfo,
				Source:    SourceSystem,
				Message:   fmt.Sprintf("analysis data in %s (unreadable)", filename),
			}},
			Err: &ParseError{File: filename, Err: err},
		}
	}

	entries := []LogEntry{{
		Timestamp: ts,
		Level:     p.classifier.Level(string(content)),
		Source:    SourceSystem,
		Message:   fmt.Sprintf("analysis data in %s", filename),
		Details:   summarizeJSON(payload),
	}}

	// Key order is sorted so identical input always yields identical output.
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entries = append(entries, p.keyEntry(key, payload[key], ts))
	}

	return FileResult{File: filename, Entries: entries}
}

// keyEntry renders one top-level key. Nested objects get a summarized
// details payload; scalars and arrays are rendered inline with no details.
func (p *JSONLogParser) keyEntry(key string, value any, ts time.Time) LogEntry {
	if obj, ok := value.(map[string]any); ok {
		return LogEntry{
			Timestamp: ts,
			Level:     LevelInfo,
			Source:    SourceSystem,
			Message:   truncate(key, maxMessageLen),
			Details:   summarizeJSON(obj),
		}
	}
	return LogEntry{
		Timestamp: ts,
		Level:     LevelInfo,
		Source:    SourceSystem,
		Message:   truncate(fmt.Sprintf("%s: %v", key, value), maxMessageLen),
	}
}

// summarizeJSON serializes a value and bounds the result.
func summarizeJSON(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return truncate(string(raw), maxDetailsLen)
}
