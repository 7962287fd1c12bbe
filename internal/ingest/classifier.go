package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

// levelRule is one (token, level) pair of the ordered classification table.
// Rules are evaluated top-to-bottom and the first hit wins, so
// error-indicating tokens dominate warning tokens, which dominate success
// tokens. New keywords are additive rows, not structural changes.
type levelRule struct {
	token string
	// fold makes the match case-insensitive.
	fold  bool
	level Level
}

// levelRules is the classification table. The lowercase "error" rule matches
// the substring anywhere in the block, which can false-positive on benign
// text such as "no error detected"; kept for parity with the observed
// behavior of the agents' own tooling.
var levelRules = []levelRule{
	{token: "ERROR", level: LevelError},
	{token: "FAILED", level: LevelError},
	{token: "Exception", level: LevelError},
	{token: "error", fold: true, level: LevelError},
	{token: "WARNING", level: LevelWarning},
	{token: "WARN", level: LevelWarning},
	{token: "SUCCESS", level: LevelSuccess},
	{token: "COMPLETED", level: LevelSuccess},
}

// statusMessages maps structured "Status: <TOKEN>" fields to canonical
// messages. A recognized status field takes precedence over free-text
// message extraction.
var statusMessages = map[string]string{
	"COMPLETED":   "operation succeeded",
	"FAILED":      "operation failed",
	"IN_PROGRESS": "operation in progress",
}

var statusFieldRe = regexp.MustCompile(`(?m)^\s*Status\s*:\s*([A-Z_]+)`)

const (
	// messageScanLines bounds how deep message extraction looks.
	messageScanLines = 20
	// minSignificantLen is the shortest line worth surfacing.
	minSignificantLen = 10
)

// ContentClassifier derives a normalized level and a short human-readable
// message from a block of raw log text using ordered keyword matching.
type ContentClassifier struct{}

// NewContentClassifier creates a classifier.
func NewContentClassifier() *ContentClassifier {
	return &ContentClassifier{}
}

// Level classifies a block of text against the ordered keyword table.
// Returns LevelInfo when no rule matches.
func (c *ContentClassifier) Level(text string) Level {
	lower := strings.ToLower(text)
	for _, rule := range levelRules {
		if rule.fold {
			if strings.Contains(lower, strings.ToLower(rule.token)) {
				return rule.level
			}
		} else if strings.Contains(text, rule.token) {
			return rule.level
		}
	}
	return LevelInfo
}

// Classify returns the level and a bounded message for a block of text.
// subject names the agent or file the text came from; it is only used when
// no message can be extracted from the content itself.
func (c *ContentClassifier) Classify(text, subject string) (Level, string) {
	level := c.Level(text)

	if m := statusFieldRe.FindStringSubmatch(text); m != nil {
		if msg, ok := statusMessages[m[1]]; ok {
			return level, msg
		}
	}

	if msg := firstSignificantLine(text, messageScanLines); msg != "" {
		return level, truncate(msg, maxMessageLen)
	}

	return level, fmt.Sprintf("activity recorded by %s", subject)
}

// firstSignificantLine scans at most maxLines lines and returns the first
// one that carries human-readable signal, or "".
func firstSignificantLine(text string, maxLines int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); isSignificantLine(trimmed) {
			return trimmed
		}
	}
	return ""
}

// isSignificantLine reports whether a trimmed line is worth surfacing as a
// message: long enough, not a separator or banner, not a timestamp line,
// and not structural JSON-ish content.
func isSignificantLine(line string) bool {
	if len(line) <= minSignificantLen {
		return false
	}
	if isSeparatorLine(line) {
		return false
	}
	if isoStampRe.MatchString(line[:min(len(line), 24)]) {
		return false
	}
	if strings.ContainsAny(line, "{}") {
		return false
	}
	return true
}

// isSeparatorLine reports whether a line is purely banner punctuation.
func isSeparatorLine(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		switch r {
		case '=', '-', '#', '*', ' ':
		default:
			return false
		}
	}
	return true
}
