package ingest

import (
	"sort"
	"strings"
)

// agentFileName is the parsed form of a filename following the agent log
// convention <AgentName>_<dateToken>[_<timeToken>].log. A filename that does
// not follow the convention simply fails to parse; discovery treats that as
// "no match, try next convention", never as an error.
type agentFileName struct {
	Agent string
	Date  string
	Time  string
}

// parseAgentFileName splits a filename against the agent log convention.
func parseAgentFileName(name string) (agentFileName, bool) {
	if !strings.HasSuffix(name, ".log") {
		return agentFileName{}, false
	}
	if isSystemFileName(name) {
		return agentFileName{}, false
	}

	base := strings.TrimSuffix(name, ".log")
	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 || parts[0] == "" {
		return agentFileName{}, false
	}

	parsed := agentFileName{Agent: parts[0], Date: parts[1]}
	if len(parts) == 3 {
		parsed.Time = parts[2]
	}
	return parsed, true
}

// isSystemFileName reports whether a filename belongs to the system log
// family: system_*, *_analysis_*, or any *.json.
func isSystemFileName(name string) bool {
	return strings.HasPrefix(name, "system_") ||
		strings.Contains(name, "_analysis_") ||
		strings.HasSuffix(name, ".json")
}

// typeRule maps a name substring to an agent category. Rules are evaluated
// in order; the first hit wins.
type typeRule struct {
	keyword  string
	category string
}

// agentTypeRules is the ordered keyword-to-category table. Adding a category
// is an additive row change.
var agentTypeRules = []typeRule{
	{keyword: "Scraper", category: "Collection"},
	{keyword: "Cleaner", category: "Processing"},
	{keyword: "Analyzer", category: "Analysis"},
	{keyword: "Analysis", category: "Analysis"},
	{keyword: "Sender", category: "Delivery"},
	{keyword: "Notifier", category: "Delivery"},
	{keyword: "Monitor", category: "Monitoring"},
	{keyword: "Watcher", category: "Monitoring"},
}

// defaultAgentType is used when no keyword rule matches.
const defaultAgentType = "General"

// AgentType derives an agent's category from its name via the ordered
// keyword table.
func AgentType(name string) string {
	for _, rule := range agentTypeRules {
		if strings.Contains(name, rule.keyword) {
			return rule.category
		}
	}
	return defaultAgentType
}

// AgentDirectory discovers the set of known agents from log filenames.
// There is no persisted registry: an agent exists for exactly as long as at
// least one file carries its name prefix.
type AgentDirectory struct{}

// NewAgentDirectory creates an agent directory.
func NewAgentDirectory() *AgentDirectory {
	return &AgentDirectory{}
}

// Group buckets filenames by agent name. Each bucket is sorted ascending;
// filenames are designed to sort chronologically, so the last element of a
// bucket is the agent's newest file.
func (d *AgentDirectory) Group(files []string) map[string][]string {
	groups := make(map[string][]string)
	for _, f := range files {
		parsed, ok := parseAgentFileName(f)
		if !ok {
			continue
		}
		groups[parsed.Agent] = append(groups[parsed.Agent], f)
	}
	for _, bucket := range groups {
		sort.Strings(bucket)
	}
	return groups
}

// Names returns the discovered agent names in a stable order.
func (d *AgentDirectory) Names(files []string) []string {
	groups := d.Group(files)
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
