package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"rsextract/internal/logging"
)

// Event types that close a take or a run.
const (
	EventTakeCompleted = "take_completed"
	EventTakeSkipped   = "take_skipped"
	EventTakeFailed    = "take_failed"
	EventRunComplete   = "run_complete"
)

// Entry is one decoded log record.
type Entry struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	RunID     string
	Action    string
	Take      int
	Fields    map[string]any
}

// reserved keys are rendered in the line prefix rather than as fields.
var reserved = map[string]struct{}{
	"ts": {}, "level": {}, "msg": {}, "source": {},
	logging.FieldComponent: {}, logging.FieldRunID: {},
	logging.FieldAction: {}, logging.FieldTake: {},
}

// ParseEntry decodes a JSON log line.
func ParseEntry(line string) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, fmt.Errorf("decode log line: %w", err)
	}
	e := Entry{Fields: make(map[string]any)}
	if ts, ok := raw["ts"].(string); ok {
		e.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}
	e.Level, _ = raw["level"].(string)
	e.Message, _ = raw["msg"].(string)
	e.Component, _ = raw[logging.FieldComponent].(string)
	e.RunID, _ = raw[logging.FieldRunID].(string)
	e.Action, _ = raw[logging.FieldAction].(string)
	if take, ok := raw[logging.FieldTake].(float64); ok {
		e.Take = int(take)
	}
	for k, v := range raw {
		if _, skip := reserved[k]; !skip {
			e.Fields[k] = v
		}
	}
	return e, nil
}

// Format renders e the way the console handler does.
func (e Entry) Format() string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	b.WriteString(strings.ToUpper(e.Level))
	b.WriteByte(' ')
	if e.Component != "" {
		b.WriteString(e.Component)
		b.WriteString(": ")
	}
	if e.Action != "" && e.Take > 0 {
		fmt.Fprintf(&b, "[%s/take_%02d] ", e.Action, e.Take)
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	return b.String()
}

// Filter selects entries. Zero fields match everything.
type Filter struct {
	RunID    string
	Action   string
	Take     int
	MinLevel string
}

// Match reports whether e passes f.
func (f Filter) Match(e Entry) bool {
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Take > 0 && e.Take != f.Take {
		return false
	}
	if f.MinLevel != "" && logging.ParseLevel(e.Level) < logging.ParseLevel(f.MinLevel) {
		return false
	}
	return true
}

// EventType returns the record's event_type field, if any.
func (e Entry) EventType() string {
	v, _ := e.Fields[logging.FieldEventType].(string)
	return v
}

// Final reports whether e is the last record the filter's scope produces: a
// take's outcome when filtering by take, or run completion when filtering by
// run alone. Unscoped filters have no final record.
func (f Filter) Final(e Entry) bool {
	event := e.EventType()
	switch {
	case f.Take > 0:
		return event == EventTakeCompleted || event == EventTakeSkipped || event == EventTakeFailed
	case f.RunID != "":
		return event == EventRunComplete
	default:
		return false
	}
}
