package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/olegiv/agentwatch-go/internal/logging"
)

// Aggregation caps. Caps bound worst-case I/O and response size on
// directories that may contain thousands of files; truncation always favors
// recency, never arbitrary listing order.
const (
	// defaultMaxEntries is the global cap on a merged all-logs response.
	defaultMaxEntries = 100
	// defaultMaxAgents is how many discovered agents the all-logs merge reads.
	defaultMaxAgents = 5
	// defaultFilesPerSource is the per-call file budget for one source.
	defaultFilesPerSource = 10
	// defaultErrorScanFiles is the file budget of the line-level error scan.
	defaultErrorScanFiles = 50
	// defaultErrorLinesPerFile caps matches surfaced from a single file.
	defaultErrorLinesPerFile = 20
	// errorContextLines is the context window around a matching line.
	errorContextLines = 2
	// defaultMaxFileSizeMB bounds how large a single log file may be before
	// it is skipped instead of read.
	defaultMaxFileSizeMB = 10
)

// Options tunes the aggregator's caps. The zero value selects the defaults.
type Options struct {
	MaxEntries        int
	MaxAgents         int
	FilesPerSource    int
	ErrorScanFiles    int
	ErrorLinesPerFile int
	MaxFileSizeMB     int
	StaleAfter        time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxEntries <= 0 {
		o.MaxEntries = defaultMaxEntries
	}
	if o.MaxAgents <= 0 {
		o.MaxAgents = defaultMaxAgents
	}
	if o.FilesPerSource <= 0 {
		o.FilesPerSource = defaultFilesPerSource
	}
	if o.ErrorScanFiles <= 0 {
		o.ErrorScanFiles = defaultErrorScanFiles
	}
	if o.ErrorLinesPerFile <= 0 {
		o.ErrorLinesPerFile = defaultErrorLinesPerFile
	}
	if o.MaxFileSizeMB <= 0 {
		o.MaxFileSizeMB = defaultMaxFileSizeMB
	}
}

// Aggregator orchestrates directory scanning, per-source parsing, volume
// capping, merging and descending-timestamp ordering. It is synchronous and
// holds no mutable state between requests: each operation is independently
// consistent with the filesystem at the moment of its own reads. The log
// directory is read-only from its perspective; files disappearing between
// listing and reading are per-file failures, never fatal.
type Aggregator struct {
	dir  string
	opts Options
	log  *logging.SecureLogger

	resolver   *TimestampResolver
	classifier *ContentClassifier
	directory  *AgentDirectory
	status     *StatusInferencer

	agentParser  *AgentLogParser
	systemParser *SystemLogParser
	jsonParser   *JSONLogParser
}

// NewAggregator creates an aggregator reading from dir. The directory is
// injected here rather than taken from a package constant so tests and
// multi-directory deployments can construct independent instances.
func NewAggregator(dir string, opts Options, log *logging.SecureLogger) *Aggregator {
	opts.applyDefaults()

	classifier := NewContentClassifier()
	return &Aggregator{
		dir:          dir,
		opts:         opts,
		log:          log,
		resolver:     NewTimestampResolver(),
		classifier:   classifier,
		directory:    NewAgentDirectory(),
		status:       NewStatusInferencer(classifier, opts.StaleAfter),
		agentParser:  NewAgentLogParser(classifier),
		systemParser: NewSystemLogParser(classifier),
		jsonParser:   NewJSONLogParser(classifier),
	}
}

// AllLogs returns the merged system and agent feed, newest first, capped at
// the global entry budget. System logs and the first discovered agents each
// contribute up to one per-source file budget.
func (a *Aggregator) AllLogs() []LogEntry {
	files, err := a.listFiles()
	if err != nil {
		a.log.Warn().Err(err).Str("dir", a.dir).Msg("Log directory scan failed")
		return []LogEntry{}
	}

	entries := a.systemEntries(files)

	names := a.directory.Names(files)
	if len(names) > a.opts.MaxAgents {
		names = names[:a.opts.MaxAgents]
	}
	groups := a.directory.Group(files)
	for _, name := range names {
		entries = append(entries, a.agentEntries(name, groups[name])...)
	}

	sortNewestFirst(entries)
	if len(entries) > a.opts.MaxEntries {
		entries = entries[:a.opts.MaxEntries]
	}
	return entries
}

// SystemLogs returns entries from the system log family only, newest first.
func (a *Aggregator) SystemLogs() []LogEntry {
	files, err := a.listFiles()
	if err != nil {
		a.log.Warn().Err(err).Str("dir", a.dir).Msg("Log directory scan failed")
		return []LogEntry{}
	}

	entries := a.systemEntries(files)
	sortNewestFirst(entries)
	return entries
}

// AgentLogs returns entries for one named agent, or for every discovered
// agent when name is empty, newest first.
func (a *Aggregator) AgentLogs(name string) []LogEntry {
	files, err := a.listFiles()
	if err != nil {
		a.log.Warn().Err(err).Str("dir", a.dir).Msg("Log directory scan failed")
		return []LogEntry{}
	}

	groups := a.directory.Group(files)
	entries := []LogEntry{}

	if name != "" {
		entries = a.agentEntries(name, groups[name])
	} else {
		for _, agent := range a.directory.Names(files) {
			entries = append(entries, a.agentEntries(agent, groups[agent])...)
		}
	}

	sortNewestFirst(entries)
	return entries
}

// ErrorLogs re-reads the most recent files at the line level and returns one
// entry per error-matching line, with surrounding context as details. Source
// and agent attribution is derived from the filename prefix.
func (a *Aggregator) ErrorLogs() []LogEntry {
	files, err := a.listFiles()
	if err != nil {
		a.log.Warn().Err(err).Str("dir", a.dir).Msg("Log directory scan failed")
		return []LogEntry{}
	}

	// Filenames sort chronologically, so descending order is newest first.
	sorted := append([]string(nil), files...)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
	if len(sorted) > a.opts.ErrorScanFiles {
		sorted = sorted[:a.opts.ErrorScanFiles]
	}

	entries := []LogEntry{}
	for _, name := range sorted {
		entries = append(entries, a.errorLines(name)...)
	}

	sortNewestFirst(entries)
	return entries
}

// ListAgents discovers agents from the current directory listing and derives
// each one's status and last execution from its newest file only.
func (a *Aggregator) ListAgents() []AgentDescriptor {
	files, err := a.listFiles()
	if err != nil {
		a.log.Warn().Err(err).Str("dir", a.dir).Msg("Log directory scan failed")
		return []AgentDescriptor{}
	}

	groups := a.directory.Group(files)
	agents := make([]AgentDescriptor, 0, len(groups))

	for _, name := range a.directory.Names(files) {
		bucket := groups[name]
		newest := bucket[len(bucket)-1]

		desc := AgentDescriptor{Name: name, Type: AgentType(name)}

		content, modTime, err := a.readFile(newest)
		if err != nil {
			a.log.Warn().Err(err).Str("file", newest).Msg("Newest agent log unreadable")
			desc.Status = a.status.InferUnreadable()
			desc.LastExecution = a.resolver.Resolve(newest, modTime, "")
		} else {
			desc.LastExecution = a.resolver.Resolve(newest, modTime, string(content))
			desc.Status = a.status.Infer(string(content), desc.LastExecution)
		}

		agents = append(agents, desc)
	}

	return agents
}

// systemEntries parses the system log family, newest files first, up to the
// per-source file budget.
func (a *Aggregator) systemEntries(files []string) []LogEntry {
	var system []string
	for _, f := range files {
		if isSystemFileName(f) {
			system = append(system, f)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(system)))
	if len(system) > a.opts.FilesPerSource {
		system = system[:a.opts.FilesPerSource]
	}

	entries := []LogEntry{}
	for _, name := range system {
		content, modTime, err := a.readFile(name)
		if err != nil {
			a.log.Warn().Err(err).Str("file", name).Msg("Skipping unreadable system log")
			continue
		}
		ts := a.resolver.Resolve(name, modTime, string(content))

		var res FileResult
		if strings.HasSuffix(name, ".json") {
			res = a.jsonParser.Parse(content, name, ts)
		} else {
			res = a.systemParser.Parse(string(content), name, ts)
		}
		if res.Failed() {
			a.log.Debug().Err(res.Err).Str("file", name).Msg("System log degraded to fallback entry")
		}
		entries = append(entries, res.Entries...)
	}
	return entries
}

// agentEntries parses one agent's newest files up to the per-source budget.
func (a *Aggregator) agentEntries(name string, bucket []string) []LogEntry {
	if len(bucket) > a.opts.FilesPerSource {
		bucket = bucket[len(bucket)-a.opts.FilesPerSource:]
	}

	entries := []LogEntry{}
	// Walk newest first so capping favors recency.
	for i := len(bucket) - 1; i >= 0; i-- {
		file := bucket[i]
		content, modTime, err := a.readFile(file)
		if err != nil {
			a.log.Warn().Err(err).Str("file", file).Msg("Skipping unreadable agent log")
			continue
		}
		ts := a.resolver.Resolve(file, modTime, string(content))
		res := a.agentParser.Parse(string(content), name, ts)
		entries = append(entries, res.Entries...)
	}
	return entries
}

// errorLines scans one file line by line and emits an entry for every
// error-classified line, each carrying a small context window.
func (a *Aggregator) errorLines(name string) []LogEntry {
	content, modTime, err := a.readFile(name)
	if err != nil {
		a.log.Warn().Err(err).Str("file", name).Msg("Skipping unreadable log in error scan")
		return nil
	}

	ts := a.resolver.Resolve(name, modTime, string(content))

	source, agent := SourceSystem, ""
	if parsed, ok := parseAgentFileName(name); ok {
		source, agent = SourceAgent, parsed.Agent
	}

	lines := strings.Split(string(content), "\n")
	var entries []LogEntry
	for i, line := range lines {
		if len(entries) == a.opts.ErrorLinesPerFile {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || a.classifier.Level(trimmed) != LevelError {
			continue
		}
		entries = append(entries, LogEntry{
			Timestamp: ts,
			Level:     LevelError,
			Source:    source,
			Agent:     agent,
			Message:   truncate(trimmed, maxMessageLen),
			Details:   truncate(contextWindow(lines, i, errorContextLines), maxDetailsLen),
		})
	}
	return entries
}

// contextWindow joins the lines around index i, window lines on each side.
func contextWindow(lines []string, i, window int) string {
	lo := i - window
	if lo < 0 {
		lo = 0
	}
	hi := i + window + 1
	if hi > len(lines) {
		hi = len(lines)
	}
	return strings.TrimSpace(strings.Join(lines[lo:hi], "\n"))
}

// listFiles returns the names of regular files in the log directory.
func (a *Aggregator) listFiles() ([]string, error) {
	dirEntries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// readFile reads one log file, refusing files over the size bound. The
// modification time is returned even on read failure when stat succeeded.
func (a *Aggregator) readFile(name string) ([]byte, time.Time, error) {
	path := filepath.Join(a.dir, name)

	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	if info.Size() > int64(a.opts.MaxFileSizeMB)*1024*1024 {
		return nil, info.ModTime(), &ParseError{File: name, Err: errFileTooLarge}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, info.ModTime(), err
	}
	return content, info.ModTime(), nil
}

// sortNewestFirst orders entries by timestamp descending. The sort is stable
// so equal timestamps keep their deterministic processing order, which keeps
// repeated scans of an unchanged directory byte-identical.
func sortNewestFirst(entries []LogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}
