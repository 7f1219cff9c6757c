package types

// EventKind is the closed vocabulary every source history is normalized into.
// The three call roles use different field names and casing for the same
// concepts; after normalization the matching logic never branches on
// source-specific strings.
type EventKind string

const (
	EventHoldStart     EventKind = "hold_start"
	EventHoldStop      EventKind = "hold_stop"
	EventTransfer      EventKind = "transfer"
	EventTransferEnter EventKind = "transfer_enter"
	EventAgentEnter    EventKind = "agent_enter"
	EventAgentHangup   EventKind = "agent_hangup"
	EventDial          EventKind = "dial"
	EventLeadAnswer    EventKind = "lead_answer"
	EventCSAT          EventKind = "csat"
)

// HistoryEvent is one normalized state-change record from a call's history.
type HistoryEvent struct {
	Kind       EventKind `json:"kind"`
	Subject    string    `json:"subject,omitempty"` // role tag, e.g. "attended", "agent"
	Extension  string    `json:"extension,omitempty"`
	Timestamp  int64     `json:"timestamp"` // unix seconds, always whole seconds
	Connected  *bool     `json:"connected,omitempty"`
	PersonName string    `json:"personName,omitempty"`
	QueueName  string    `json:"queueName,omitempty"`
}

// IsConnected reports whether the event was recorded as connected.
func (e HistoryEvent) IsConnected() bool {
	return e.Connected != nil && *e.Connected
}

// CallRole identifies which of the three call streams a record came from.
type CallRole string

const (
	RoleCampaign CallRole = "campaign"
	RoleOutbound CallRole = "outbound"
	RoleInbound  CallRole = "inbound"
)

// CallRecord is one call from any of the three streams, with its history
// already normalized.
type CallRecord struct {
	ID             string         `json:"id"`
	Role           CallRole       `json:"role"`
	CallerNumber   string         `json:"callerNumber"`
	CalleeNumber   string         `json:"calleeNumber"`
	CustomerNumber string         `json:"customerNumber,omitempty"`
	CalledTime     int64          `json:"calledTime"` // unix seconds
	AgentExtension string         `json:"agentExtension"`
	AgentName      string         `json:"agentName,omitempty"`
	History        []HistoryEvent `json:"history"`
	LeadHistory    []HistoryEvent `json:"leadHistory,omitempty"` // campaign only
	Abandoned      bool           `json:"abandoned"`
	RecordingURL   string         `json:"recordingUrl,omitempty"`
}

// HoldPeriod is the interval between a hold_start and its paired hold_stop.
// Stop == 0 means the hold never closed.
type HoldPeriod struct {
	Start int64 `json:"start"`
	Stop  int64 `json:"stop,omitempty"`
}

// DefaultHoldWindowSeconds is assumed for hold periods that never closed.
const DefaultHoldWindowSeconds = 300

// EffectiveStop returns the stop time, substituting Start+300s for holds
// that never closed.
func (p HoldPeriod) EffectiveStop() int64 {
	if p.Stop == 0 {
		return p.Start + DefaultHoldWindowSeconds
	}
	return p.Stop
}

// TransferStatus classifies the outcome of a reconstructed transfer.
type TransferStatus string

const (
	StatusSuccess TransferStatus = "Success"
	StatusFailed  TransferStatus = "Failed"
	StatusError   TransferStatus = "Error"
)

// FailedAgent is one unanswered dial attempt toward a queue agent.
type FailedAgent struct {
	Extension string `json:"extension"`
	Name      string `json:"name,omitempty"`
	DialTime  int64  `json:"dialTime"`
	QueueName string `json:"queueName,omitempty"`
	Reason    string `json:"reason"`
}

// TransferLink pairs an originating first leg with the inbound record the
// queue delivered it to. SecondLeg may be nil when the system shows a
// transfer but no matching inbound record exists.
type TransferLink struct {
	FirstLeg           *CallRecord    `json:"firstLeg"`
	SecondLeg          *CallRecord    `json:"secondLeg,omitempty"`
	QueueExtension     string         `json:"queueExtension"`
	TransferTime       int64          `json:"transferTime"`
	TransferredTime    int64          `json:"transferredTime,omitempty"` // second leg's agent_enter
	Status             TransferStatus `json:"status"`
	StatusReason       string         `json:"statusReason,omitempty"`
	FailedDialAttempts []FailedAgent  `json:"failedDialAttempts,omitempty"`
}

// FailedTransferRecord is a first-leg call whose hold periods never produced
// a completed transfer, explained by the abandoned queue attempts found
// inside its hold windows.
type FailedTransferRecord struct {
	FirstLeg           *CallRecord   `json:"firstLeg"`
	HoldPeriods        []HoldPeriod  `json:"holdPeriods"`
	Attempts           []*CallRecord `json:"attempts,omitempty"`
	FailedDialAttempts []FailedAgent `json:"failedDialAttempts,omitempty"`
}
