package ingest

import (
	"strings"
	"time"
)

const (
	// sectionDelimiter separates logical phases inside one agent run.
	sectionDelimiter = "==="
	// maxSupplementaryEntries bounds the fan-out per agent file.
	maxSupplementaryEntries = 2
)

// AgentLogParser turns one agent's free-text log file into a primary entry
// plus up to two supplementary entries, one per leading content section.
// Agent logs often bundle multiple logical phases in one file; surfacing the
// first few sections gives visibility without unbounded fan-out.
type AgentLogParser struct {
	classifier *ContentClassifier
}

// NewAgentLogParser creates an agent log parser.
func NewAgentLogParser(classifier *ContentClassifier) *AgentLogParser {
	return &AgentLogParser{classifier: classifier}
}

// Parse normalizes one agent log file. It is total: any content, including
// empty or binary garbage, yields at least one entry and never panics.
func (p *AgentLogParser) Parse(content, agent string, ts time.Time) FileResult {
	level, message := p.classifier.Classify(content, agent)

	entries := []LogEntry{{
		Timestamp: ts,
		Level:     level,
		Source:    SourceAgent,
		Agent:     agent,
		Message:   message,
		Details:   truncate(strings.TrimSpace(content), maxDetailsLen),
	}}

	entries = append(entries, p.sectionEntries(content, agent, ts)...)

	return FileResult{File: agent, Entries: entries}
}

// sectionEntries derives supplementary entries from the sections after the
// first delimiter, each carrying its own first line as message.
func (p *AgentLogParser) sectionEntries(content, agent string, ts time.Time) []LogEntry {
	sections := strings.Split(content, sectionDelimiter)
	if len(sections) < 2 {
		return nil
	}

	var entries []LogEntry
	for _, section := range sections[1:] {
		if len(entries) == maxSupplementaryEntries {
			break
		}
		first := firstNonEmptyLine(section)
		if first == "" {
			continue
		}
		entries = append(entries, LogEntry{
			Timestamp: ts,
			Level:     LevelInfo,
			Source:    SourceAgent,
			Agent:     agent,
			Message:   truncate(first, maxMessageLen),
		})
	}
	return entries
}

// firstNonEmptyLine returns the first line of s with visible content, or "".
func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
