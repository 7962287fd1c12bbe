package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Filename and content timestamp patterns, tried in precedence order.
var (
	// delimitedStampRe matches NAME_YYYY-MM-DD[_HH-MM-SS].ext filenames.
	delimitedStampRe = regexp.MustCompile(`_(\d{4}-\d{2}-\d{2})(?:_(\d{2}-\d{2}-\d{2}))?`)

	// compactStampRe matches a bare 14-digit YYYYMMDDHHMMSS token.
	compactStampRe = regexp.MustCompile(`^\d{14}$`)

	// labeledStampRe matches an explicit "Timestamp: <ISO8601>" content field.
	labeledStampRe = regexp.MustCompile(`(?i)timestamp\s*:\s*(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2})`)

	// isoStampRe matches any bare ISO-8601-looking substring.
	isoStampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}`)
)

// timeFormatDateTime is the canonical wall-clock layout used throughout.
const timeFormatDateTime = "2006-01-02 15:04:05"

// TimestampResolver extracts a best-effort timestamp from a log filename or,
// failing that, from file content or the file's modification time. It never
// fails: every strategy that cannot produce a result demotes to the next one,
// ending at time.Now.
type TimestampResolver struct {
	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewTimestampResolver creates a resolver using the real clock.
func NewTimestampResolver() *TimestampResolver {
	return &TimestampResolver{now: time.Now}
}

// Resolve returns the best timestamp for a log file. Precedence: delimited
// filename stamp, compact filename stamp, labeled content stamp, bare ISO
// content stamp, file mtime, current time. content may be empty when the
// caller has not read the file.
func (r *TimestampResolver) Resolve(filename string, modTime time.Time, content string) time.Time {
	if ts, ok := r.fromDelimitedName(filename); ok {
		return ts
	}
	if ts, ok := r.fromCompactName(filename); ok {
		return ts
	}
	if ts, ok := r.fromContent(content); ok {
		return ts
	}
	if !modTime.IsZero() {
		return modTime
	}
	return r.now()
}

// fromDelimitedName parses NAME_YYYY-MM-DD[_HH-MM-SS].ext, substituting
// midnight when the time segment is absent.
func (r *TimestampResolver) fromDelimitedName(filename string) (time.Time, bool) {
	m := delimitedStampRe.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return time.Time{}, false
	}

	timePart := "00-00-00"
	if m[2] != "" {
		timePart = m[2]
	}

	ts, err := time.ParseInLocation("2006-01-02 15-04-05", m[1]+" "+timePart, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// fromCompactName parses filenames whose second underscore-delimited token is
// a 14-digit YYYYMMDDHHMMSS stamp, e.g. system_20250427010353.json. A
// malformed token falls through rather than failing.
func (r *TimestampResolver) fromCompactName(filename string) (time.Time, bool) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.Split(base, "_")
	if len(parts) < 2 || !compactStampRe.MatchString(parts[1]) {
		return time.Time{}, false
	}

	ts, err := time.ParseInLocation("20060102150405", parts[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// fromContent scans content top-to-bottom for a labeled Timestamp field,
// then for any bare ISO-8601 substring, using the first match found.
func (r *TimestampResolver) fromContent(content string) (time.Time, bool) {
	if content == "" {
		return time.Time{}, false
	}

	raw := ""
	if m := labeledStampRe.FindStringSubmatch(content); m != nil {
		raw = m[1]
	} else if m := isoStampRe.FindString(content); m != "" {
		raw = m
	}
	if raw == "" {
		return time.Time{}, false
	}

	raw = strings.Replace(raw, "T", " ", 1)
	ts, err := time.ParseInLocation(timeFormatDateTime, raw, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
