package ingest

import (
	"fmt"
	"strings"
	"time"
)

// maxSystemEntries bounds how many lines of one system log file are
// surfaced as entries.
const maxSystemEntries = 5

// SystemLogParser turns a free-text system log file into entries, one per
// significant line, capped. The first entry carries the file's classified
// level; the rest are informational.
type SystemLogParser struct {
	classifier *ContentClassifier
}

// NewSystemLogParser creates a system log parser.
func NewSystemLogParser(classifier *ContentClassifier) *SystemLogParser {
	return &SystemLogParser{classifier: classifier}
}

// Parse normalizes one system log file. Total: any content yields at least
// one entry.
func (p *SystemLogParser) Parse(content, filename string, ts time.Time) FileResult {
	significant := significantLines(content)

	if len(significant) == 0 {
		return FileResult{File: filename, Entries: []LogEntry{{
			Timestamp: ts,
			Level:     LevelInfo,
			Source:    SourceSystem,
			Message:   fmt.Sprintf("system activity recorded in %s", filename),
		}}}
	}

	if len(significant) > maxSystemEntries {
		significant = significant[:maxSystemEntries]
	}

	entries := make([]LogEntry, 0, len(significant))
	for i, line := range significant {
		level := LevelInfo
		if i == 0 {
			level = p.classifier.Level(content)
		}
		entries = append(entries, LogEntry{
			Timestamp: ts,
			Level:     level,
			Source:    SourceSystem,
			Message:   truncate(line, maxMessageLen),
		})
	}

	return FileResult{File: filename, Entries: entries}
}

// significantLines filters content to lines long enough to carry signal,
// excluding separators and timestamp-prefixed lines.
func significantLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); isSignificantLine(trimmed) {
			out = append(out, trimmed)
		}
	}
	return out
}
