package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/olegiv/agentwatch-go/internal/logging"
	"github.com/olegiv/agentwatch-go/pkg/logger"
)

func newTestAggregator(t *testing.T, dir string, opts Options) *Aggregator {
	t.Helper()
	return NewAggregator(dir, opts, logging.NewSecure(logger.NewNop()))
}

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", name, err)
	}
}

// fixtureDir builds a small mixed log directory: two agents, one free-text
// system log and one JSON dump.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFixture(t, dir, "ScraperAgent_2025-04-27_01-03-53.log",
		"Status: COMPLETED\nScraped 42 leads from source directory\n")
	writeFixture(t, dir, "ScraperAgent_2025-04-26_23-00-00.log",
		"Status: COMPLETED\nScraped 17 leads from source directory\n")
	writeFixture(t, dir, "CleanerAgent_2025-04-25_10-00-00.log",
		"ERROR deduplication pass crashed\nStatus: FAILED\n")
	writeFixture(t, dir, "system_20250426120000.log",
		"scheduler dispatched all agents\nqueue drained without incident\n")
	writeFixture(t, dir, "system_20250427010353.json",
		`{"foo": {"bar": 1}, "baz": "x"}`)
	writeFixture(t, dir, "notes.txt", "not a log file at all\n")

	return dir
}

func assertNewestFirst(t *testing.T, entries []LogEntry) {
	t.Helper()
	for i := 0; i+1 < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i+1].Timestamp) {
			t.Fatalf("Ordering violated at %d: %v < %v", i, entries[i].Timestamp, entries[i+1].Timestamp)
		}
	}
}

func TestAllLogs_MergedAndOrdered(t *testing.T) {
	aggregator := newTestAggregator(t, fixtureDir(t), Options{})

	entries := aggregator.AllLogs()

	if len(entries) == 0 {
		t.Fatal("Expected entries from mixed directory")
	}
	if len(entries) > defaultMaxEntries {
		t.Errorf("Global cap violated: %d entries", len(entries))
	}
	assertNewestFirst(t, entries)

	var sawAgent, sawSystem bool
	for _, entry := range entries {
		switch entry.Source {
		case SourceAgent:
			sawAgent = true
		case SourceSystem:
			sawSystem = true
		}
	}
	if !sawAgent || !sawSystem {
		t.Errorf("Expected both sources in merge, agent=%v system=%v", sawAgent, sawSystem)
	}
}

func TestAllLogs_GlobalCap(t *testing.T) {
	aggregator := newTestAggregator(t, fixtureDir(t), Options{MaxEntries: 3})

	entries := aggregator.AllLogs()
	if len(entries) != 3 {
		t.Errorf("Expected exactly 3 entries under cap, got %d", len(entries))
	}
	assertNewestFirst(t, entries)
}

func TestAllLogs_AgentBudget(t *testing.T) {
	dir := fixtureDir(t)
	aggregator := newTestAggregator(t, dir, Options{MaxAgents: 1})

	entries := aggregator.AllLogs()

	// Agents are taken in name order, so only CleanerAgent contributes.
	for _, entry := range entries {
		if entry.Source == SourceAgent && entry.Agent != "CleanerAgent" {
			t.Errorf("Unexpected agent %q beyond agent budget", entry.Agent)
		}
	}
}

func TestAllLogs_Idempotent(t *testing.T) {
	aggregator := newTestAggregator(t, fixtureDir(t), Options{})

	first := aggregator.AllLogs()
	second := aggregator.AllLogs()

	if !reflect.DeepEqual(first, second) {
		t.Error("Repeated scans of an unchanged directory differ")
	}
}

func TestAllLogs_MissingDirectory(t *testing.T) {
	aggregator := newTestAggregator(t, "/nonexistent/agent/logs", Options{})

	entries := aggregator.AllLogs()
	if entries == nil || len(entries) != 0 {
		t.Errorf("Expected empty non-nil result, got %v", entries)
	}
}

func TestSystemLogs_OnlySystemSources(t *testing.T) {
	aggregator := newTestAggregator(t, fixtureDir(t), Options{})

	entries := aggregator.SystemLogs()
	if len(entries) == 0 {
		t.Fatal("Expected system entries")
	}
	assertNewestFirst(t, entries)
	for _, entry := range entries {
		if entry.Source != SourceSystem {
			t.Errorf("Non-system entry in system feed: %+v", entry)
		}
	}
}

func TestSystemLogs_JSONFileExpanded(t *testing.T) {
	aggregator := newTestAggregator(t, fixtureDir(t), Options{})

	entries := aggregator.SystemLogs()

	// The JSON dump contributes a summary plus one entry per top-level key.
	var sawSummary, sawScalar, sawObject bool
	for _, entry := range entries {
		switch {
		case strings.Contains(entry.Message, "system_20250427010353.json"):
			sawSummary = true
		case entry.Message == "baz: x":
			sawScalar = true
		case entry.Message == "foo" && strings.Contains(entry.Details, "bar"):
			sawObject = true
		}
	}
	if !sawSummary || !sawScalar || !sawObject {
		t.Errorf("JSON expansion incomplete: summary=%v scalar=%v object=%v",
			sawSummary, sawScalar, sawObject)
	}
}

func TestAgentLogs_SingleAgent(t *testing.T) {
	aggregator := newTestAggregator(t, fixtureDir(t), Options{})

	entries := aggregator.AgentLogs("ScraperAgent")
	if len(entries) == 0 {
		t.Fatal("Expected ScraperAgent entries")
	}
	assertNewestFirst(t, entries)
	for _, entry := range entries {
		if entry.Agent != "ScraperAgent" || entry.Source != SourceAgent {
			t.Errorf("Unexpected entry in single-agent feed: %+v", entry)
		}
	}
}

func TestAgentLogs_AllAgents(t *testing.T) {
	aggregator := newTestAggregator(t, fixtureDir(t), Options{})

	entries := aggregator.AgentLogs("")

	agents := map[string]bool{}
	for _, entry := range entries {
		agents[entry.Agent] = true
	}
	if !agents["ScraperAgent"] || !agents["CleanerAgent"] {
		t.Errorf("Expected both agents, got %v", agents)
	}
}

func TestAgentLogs_UnknownAgent(t *testing.T) {
	aggregator := newTestAggregator(t, fixtureDir(t), Options{})

	entries := aggregator.AgentLogs("GhostAgent")
	if entries == nil || len(entries) != 0 {
		t.Errorf("Expected empty non-nil result for unknown agent, got %v", entries)
	}
}

func TestAgentLogs_PerAgentFileBudget(t *testing.T) {
	dir := t.TempDir()
	for day := 10; day <= 19; day++ {
		writeFixture(t, dir,
			fmt.Sprintf("BusyAgent_2025-04-%02d_08-00-00.log", day),
			"Status: COMPLETED\nanother routine run finished cleanly\n")
	}
	aggregator := newTestAggregator(t, dir, Options{FilesPerSource: 3})

	entries := aggregator.AgentLogs("BusyAgent")

	// One primary entry per file, capped at the file budget, newest first.
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries under file budget, got %d", len(entries))
	}
	if !strings.Contains(entries[0].Details, "routine run") {
		t.Errorf("Unexpected entry %+v", entries[0])
	}
	want := []int{19, 18, 17}
	for i, day := range want {
		if entries[i].Timestamp.Day() != day {
			t.Errorf("Entry %d from day %d, want %d (recency must win)", i, entries[i].Timestamp.Day(), day)
		}
	}
}

func TestErrorLogs_LineLevelWithContext(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "ScraperAgent_2025-04-27_01-03-53.log", strings.Join([]string{
		"line zero far outside the window",
		"run one context two lines before",
		"run two context directly before",
		"ERROR scrape target unreachable",
		"run three context directly after",
		"run four context two lines after",
	}, "\n"))
	writeFixture(t, dir, "system_20250426120000.log",
		"scheduler booted cleanly this morning\nFAILED to reap zombie worker\n")

	aggregator := newTestAggregator(t, dir, Options{})
	entries := aggregator.ErrorLogs()

	if len(entries) != 2 {
		t.Fatalf("Expected 2 error entries, got %d", len(entries))
	}
	assertNewestFirst(t, entries)

	for _, entry := range entries {
		if entry.Level != LevelError {
			t.Errorf("Error feed entry has level %s", entry.Level)
		}
	}

	agentEntry := entries[0]
	if agentEntry.Agent != "ScraperAgent" || agentEntry.Source != SourceAgent {
		t.Errorf("Expected agent attribution from filename, got %+v", agentEntry)
	}
	if !strings.Contains(agentEntry.Message, "scrape target unreachable") {
		t.Errorf("Unexpected message %q", agentEntry.Message)
	}
	// Context window: two lines either side of the match.
	if !strings.Contains(agentEntry.Details, "context directly before") ||
		!strings.Contains(agentEntry.Details, "context two lines after") ||
		strings.Contains(agentEntry.Details, "line zero far outside") {
		t.Errorf("Context window wrong: %q", agentEntry.Details)
	}

	systemEntry := entries[1]
	if systemEntry.Source != SourceSystem || systemEntry.Agent != "" {
		t.Errorf("Expected system attribution, got %+v", systemEntry)
	}
}

func TestErrorLogs_NoErrors(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "CalmAgent_2025-04-27_01-00-00.log",
		"Status: COMPLETED\neverything ran without incident today\n")

	aggregator := newTestAggregator(t, dir, Options{})
	if entries := aggregator.ErrorLogs(); len(entries) != 0 {
		t.Errorf("Expected no error entries, got %d", len(entries))
	}
}

func TestListAgents_SingleAgentExample(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "CleanerAgent_2025-04-27_01-03-53.log",
		"Status: COMPLETED\ncleaning pass finished without incident\n")

	aggregator := newTestAggregator(t, dir, Options{})
	agents := aggregator.ListAgents()

	if len(agents) != 1 {
		t.Fatalf("Expected exactly one agent, got %d", len(agents))
	}
	agent := agents[0]
	if agent.Name != "CleanerAgent" {
		t.Errorf("Name = %q, want CleanerAgent", agent.Name)
	}
	if agent.Type != "Processing" {
		t.Errorf("Type = %q, want Processing", agent.Type)
	}
	// Clean content from April 2025 is long past the staleness threshold.
	if agent.Status != StatusInactive {
		t.Errorf("Status = %s, want inactive", agent.Status)
	}
	if agent.LastExecution.Year() != 2025 || agent.LastExecution.Month() != 4 {
		t.Errorf("LastExecution = %v, want the filename timestamp", agent.LastExecution)
	}
}

func TestListAgents_StatusFromNewestFileOnly(t *testing.T) {
	dir := t.TempDir()
	// Older file is clean; the newest one carries an error and must decide.
	writeFixture(t, dir, "ScraperAgent_2025-04-26_10-00-00.log",
		"Status: COMPLETED\nall good on this earlier run\n")
	writeFixture(t, dir, "ScraperAgent_2025-04-27_10-00-00.log",
		"ERROR scrape source returned 500\nStatus: FAILED\n")

	aggregator := newTestAggregator(t, dir, Options{})
	agents := aggregator.ListAgents()

	if len(agents) != 1 {
		t.Fatalf("Expected one agent, got %d", len(agents))
	}
	if agents[0].Status != StatusError {
		t.Errorf("Status = %s, want error from newest file", agents[0].Status)
	}
}

func TestListAgents_MissingDirectory(t *testing.T) {
	aggregator := newTestAggregator(t, "/nonexistent/agent/logs", Options{})

	agents := aggregator.ListAgents()
	if agents == nil || len(agents) != 0 {
		t.Errorf("Expected empty non-nil result, got %v", agents)
	}
}

func TestReadFile_SkipsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "HugeAgent_2025-04-27_01-00-00.log",
		strings.Repeat("x", 2*1024*1024))

	aggregator := newTestAggregator(t, dir, Options{MaxFileSizeMB: 1})

	if entries := aggregator.AgentLogs("HugeAgent"); len(entries) != 0 {
		t.Errorf("Expected oversized file to be skipped, got %d entries", len(entries))
	}
}
