package history

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/dennisdiepolder/xferlink/internal/types"
)

// millisThreshold separates second from millisecond timestamps. Anything
// above it arrived in milliseconds and is divided by 1,000 exactly once.
const millisThreshold = 10_000_000_000

// NormalizeTimestamp converts a source timestamp to whole seconds.
func NormalizeTimestamp(ts int64) int64 {
	if ts > millisThreshold {
		return ts / 1000
	}
	return ts
}

// Normalize turns a call's raw history field into a uniform ordered event
// sequence. The raw value is either a structured list of loosely-typed
// records, a serialized-list string, or an inline markup table. Absent,
// malformed or placeholder histories normalize to an empty slice, never an
// error.
func Normalize(raw any) []types.HistoryEvent {
	switch v := raw.(type) {
	case nil:
		return []types.HistoryEvent{}
	case string:
		return normalizeString(v)
	case []any:
		events := make([]types.HistoryEvent, 0, len(v))
		for _, entry := range v {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if evt, ok := eventFromMap(m); ok {
				events = append(events, evt)
			}
		}
		return sortByTime(events)
	case []map[string]any:
		events := make([]types.HistoryEvent, 0, len(v))
		for _, m := range v {
			if evt, ok := eventFromMap(m); ok {
				events = append(events, evt)
			}
		}
		return sortByTime(events)
	default:
		return []types.HistoryEvent{}
	}
}

func normalizeString(s string) []types.HistoryEvent {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" || s == "null" {
		return []types.HistoryEvent{}
	}
	if strings.HasPrefix(s, "<") {
		return ParseMarkupTable(s)
	}
	var list []map[string]any
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return []types.HistoryEvent{}
	}
	events := make([]types.HistoryEvent, 0, len(list))
	for _, m := range list {
		if evt, ok := eventFromMap(m); ok {
			events = append(events, evt)
		}
	}
	return sortByTime(events)
}

// eventFromMap maps one loosely-typed record into the closed event
// vocabulary. The sources disagree on field names (type/event pairs,
// Transfer vs transfer); every variant is folded here.
func eventFromMap(m map[string]any) (types.HistoryEvent, bool) {
	evt := types.HistoryEvent{
		Kind:       mapKind(stringField(m, "event", "kind", "action")),
		Subject:    strings.ToLower(stringField(m, "type", "role", "subject")),
		Extension:  stringField(m, "ext", "extension", "exten"),
		PersonName: personName(m),
		QueueName:  stringField(m, "queue", "queue_name", "queueName"),
	}

	ts, ok := timestampField(m, "time", "timestamp", "ts")
	if !ok && evt.Kind == "" {
		return types.HistoryEvent{}, false
	}
	evt.Timestamp = NormalizeTimestamp(ts)

	for _, key := range []string{"connected", "is_connected", "isConnected"} {
		if v, present := m[key]; present {
			c := truthy(v)
			evt.Connected = &c
			break
		}
	}

	if evt.Kind == "" {
		return types.HistoryEvent{}, false
	}
	return evt, true
}

var kindAliases = map[string]types.EventKind{
	"transfer":       types.EventTransfer,
	"transfer_enter": types.EventTransferEnter,
	"transferenter":  types.EventTransferEnter,
	"agent_enter":    types.EventAgentEnter,
	"agententer":     types.EventAgentEnter,
	"agent_hangup":   types.EventAgentHangup,
	"hangup":         types.EventAgentHangup,
	"hold_start":     types.EventHoldStart,
	"hold":           types.EventHoldStart,
	"hold_stop":      types.EventHoldStop,
	"hold_end":       types.EventHoldStop,
	"unhold":         types.EventHoldStop,
	"dial":           types.EventDial,
	"dial_attempt":   types.EventDial,
	"lead_answer":    types.EventLeadAnswer,
	"csat":           types.EventCSAT,
}

func mapKind(s string) types.EventKind {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if kind, ok := kindAliases[s]; ok {
		return kind
	}
	return types.EventKind(s)
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func personName(m map[string]any) string {
	if name := stringField(m, "name", "person_name", "personName"); name != "" {
		return name
	}
	first := stringField(m, "first_name", "firstName")
	last := stringField(m, "last_name", "lastName")
	return strings.TrimSpace(first + " " + last)
}

func timestampField(m map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int64(n), true
		case int64:
			return n, true
		case int:
			return int64(n), true
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i, true
			}
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return i, true
			}
		}
	}
	return 0, false
}

// truthy folds the boolean variants the sources use ("true", "Yes", 1).
func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y", "1", "connected":
			return true
		}
		return false
	case float64:
		return b != 0
	case int:
		return b != 0
	default:
		return false
	}
}

func sortByTime(events []types.HistoryEvent) []types.HistoryEvent {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
	return events
}
