// Package watch keeps a log directory under observation and rescans it when
// files change. The ingestion engine itself stays synchronous; this package
// is a consumer loop in front of it, diffing agent statuses between scans
// and forwarding degradations to a notifier.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/olegiv/agentwatch-go/internal/ingest"
	"github.com/olegiv/agentwatch-go/internal/logging"
	"github.com/olegiv/agentwatch-go/internal/notification"
)

// Scanner is the slice of the aggregator watch mode needs.
type Scanner interface {
	ListAgents() []ingest.AgentDescriptor
}

// Notifier receives status transitions observed between scans.
type Notifier interface {
	SendStatusChanges(changes []notification.StatusChange) error
}

// Recorder persists the descriptor set of each scan.
type Recorder interface {
	SaveScan(scannedAt time.Time, agents []ingest.AgentDescriptor) error
}

// Watcher debounces directory events into rescans. Notifier and Recorder are
// optional; a nil value disables the corresponding side effect.
type Watcher struct {
	dir      string
	debounce time.Duration
	scanner  Scanner
	notifier Notifier
	recorder Recorder
	log      *logging.SecureLogger

	// last holds the status baseline from the previous scan. The first scan
	// only establishes the baseline and never notifies.
	last map[string]ingest.AgentStatus
}

// New creates a watcher over dir.
func New(dir string, debounce time.Duration, scanner Scanner, notifier Notifier, recorder Recorder, log *logging.SecureLogger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		scanner:  scanner,
		notifier: notifier,
		recorder: recorder,
		log:      log,
	}
}

// Run scans once to establish a baseline, then blocks rescanning on
// directory changes until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.rescan()

	// The timer stays stopped until an event arrives; every further event
	// within the debounce window pushes the rescan back.
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Log directory changed")
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("Watcher error")

		case <-timer.C:
			w.rescan()
		}
	}
}

// rescan lists agents, records the snapshot, and notifies on degradations.
func (w *Watcher) rescan() {
	agents := w.scanner.ListAgents()
	w.log.Info().Int("agents", len(agents)).Msg("Directory scan completed")

	if w.recorder != nil {
		if err := w.recorder.SaveScan(time.Now(), agents); err != nil {
			w.log.Warn().Err(err).Msg("Failed to record scan snapshot")
		}
	}

	changes := diffStatuses(w.last, agents)
	if w.last != nil && w.notifier != nil && anyAlerting(changes) {
		if err := w.notifier.SendStatusChanges(changes); err != nil {
			w.log.Warn().Err(err).Msg("Failed to send status change alert")
		}
	}

	baseline := make(map[string]ingest.AgentStatus, len(agents))
	for _, agent := range agents {
		baseline[agent.Name] = agent.Status
	}
	w.last = baseline
}

// diffStatuses returns the transitions of agents whose status changed since
// the previous scan. Agents seen for the first time establish a baseline
// without producing a transition.
func diffStatuses(prev map[string]ingest.AgentStatus, agents []ingest.AgentDescriptor) []notification.StatusChange {
	var changes []notification.StatusChange
	for _, agent := range agents {
		before, seen := prev[agent.Name]
		if !seen || before == agent.Status {
			continue
		}
		changes = append(changes, notification.StatusChange{
			Agent: agent.Name,
			From:  before,
			To:    agent.Status,
		})
	}
	return changes
}

// anyAlerting reports whether at least one transition warrants an alert.
func anyAlerting(changes []notification.StatusChange) bool {
	for _, c := range changes {
		if c.Alerting() {
			return true
		}
	}
	return false
}
