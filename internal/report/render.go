package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dennisdiepolder/xferlink/internal/types"
)

// Leg is the display view of one call inside a report row.
type Leg struct {
	CallID         string   `json:"callId"`
	Role           string   `json:"role"`
	CalledTime     int64    `json:"calledTime"`
	AgentExtension string   `json:"agentExtension"`
	AgentName      string   `json:"agentName,omitempty"`
	CallerNumber   string   `json:"callerNumber,omitempty"`
	CalleeNumber   string   `json:"calleeNumber,omitempty"`
	CustomerNumber string   `json:"customerNumber,omitempty"`
	History        []string `json:"history"`
	RecordingURL   string   `json:"recordingUrl,omitempty"`
}

// Row is one reconstructed transfer in a report.
type Row struct {
	Status             string              `json:"status"`
	StatusReason       string              `json:"statusReason,omitempty"`
	QueueExtension     string              `json:"queueExtension"`
	TransferTime       int64               `json:"transferTime"`
	TransferredTime    int64               `json:"transferredTime,omitempty"`
	FirstLeg           Leg                 `json:"firstLeg"`
	SecondLeg          *Leg                `json:"secondLeg,omitempty"`
	FailedDialAttempts []types.FailedAgent `json:"failedDialAttempts,omitempty"`
}

// FailedTransferRow is one detected failed transfer in a report.
type FailedTransferRow struct {
	CallID             string              `json:"callId"`
	Role               string              `json:"role"`
	AgentExtension     string              `json:"agentExtension"`
	AgentName          string              `json:"agentName,omitempty"`
	CalledTime         int64               `json:"calledTime"`
	HoldPeriods        []types.HoldPeriod  `json:"holdPeriods"`
	AttemptIDs         []string            `json:"attemptIds"`
	FailedDialAttempts []types.FailedAgent `json:"failedDialAttempts,omitempty"`
}

func buildFailedRow(record types.FailedTransferRecord) FailedTransferRow {
	row := FailedTransferRow{
		CallID:             record.FirstLeg.ID,
		Role:               string(record.FirstLeg.Role),
		AgentExtension:     record.FirstLeg.AgentExtension,
		AgentName:          record.FirstLeg.AgentName,
		CalledTime:         record.FirstLeg.CalledTime,
		HoldPeriods:        record.HoldPeriods,
		FailedDialAttempts: record.FailedDialAttempts,
	}
	for _, attempt := range record.Attempts {
		row.AttemptIDs = append(row.AttemptIDs, attempt.ID)
	}
	return row
}

// RenderHistory produces a compact one-line-per-event rendering of a
// normalized history for display. Never persisted.
func RenderHistory(events []types.HistoryEvent) []string {
	lines := make([]string, 0, len(events))
	for _, evt := range events {
		lines = append(lines, renderEvent(evt))
	}
	return lines
}

func renderEvent(evt types.HistoryEvent) string {
	var b strings.Builder
	b.WriteString(time.Unix(evt.Timestamp, 0).UTC().Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(string(evt.Kind))
	if evt.Subject != "" {
		fmt.Fprintf(&b, ":%s", evt.Subject)
	}
	if evt.Extension != "" {
		fmt.Fprintf(&b, " ext=%s", evt.Extension)
	}
	if evt.PersonName != "" {
		fmt.Fprintf(&b, " (%s)", evt.PersonName)
	}
	if evt.QueueName != "" {
		fmt.Fprintf(&b, " queue=%s", evt.QueueName)
	}
	if evt.Connected != nil {
		if *evt.Connected {
			b.WriteString(" connected")
		} else {
			b.WriteString(" not-connected")
		}
	}
	return b.String()
}
