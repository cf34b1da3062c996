// Package pipeline runs the research pipeline: a fixed sequence of stages
// that thread a State through search and report generation, exposed to
// callers as a lazy sequence of Events.
package pipeline

import "slices"

// State is the record threaded through a run. Stages never mutate it; they
// return an Update which Apply merges in.
type State struct {
	Topic         string   `json:"topic"`
	SearchResults []string `json:"searchResults"`
	Report        string   `json:"report"`
	Logs          []string `json:"logs"`
}

// Update is the partial state a stage returns. Zero fields leave the running
// state untouched.
type Update struct {
	Topic         string   `json:"topic,omitempty"`
	SearchResults []string `json:"searchResults,omitempty"`
	Report        string   `json:"report,omitempty"`
	Logs          []string `json:"logs,omitempty"`
}

// NewState returns the initial state of a run for topic.
func NewState(topic string) State {
	return State{}.Apply(Update{Topic: topic})
}

// Apply reduces u into s and returns the merged state. Topic and Report are
// replaced only by non-empty values; SearchResults and Logs are appended.
// The receiver's slices are never shared with the result.
func (s State) Apply(u Update) State {
	next := State{
		Topic:         replaceIfNonEmpty(s.Topic, u.Topic),
		SearchResults: appendCopy(s.SearchResults, u.SearchResults),
		Report:        replaceIfNonEmpty(s.Report, u.Report),
		Logs:          appendCopy(s.Logs, u.Logs),
	}
	return next
}

func replaceIfNonEmpty(current, next string) string {
	if next != "" {
		return next
	}
	return current
}

func appendCopy(current, next []string) []string {
	out := make([]string, 0, len(current)+len(next))
	out = append(out, current...)
	return append(out, next...)
}

// LastLog returns the final log entry of the update, or "" if it has none.
func (u Update) LastLog() string {
	if len(u.Logs) == 0 {
		return ""
	}
	return u.Logs[len(u.Logs)-1]
}

// Clone returns a deep copy of the update.
func (u Update) Clone() Update {
	u.SearchResults = slices.Clone(u.SearchResults)
	u.Logs = slices.Clone(u.Logs)
	return u
}
