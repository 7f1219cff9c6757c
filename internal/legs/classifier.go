package legs

import (
	"github.com/dennisdiepolder/xferlink/internal/queues"
	"github.com/dennisdiepolder/xferlink/internal/types"
)

// Info is the classification of one call's event history: which side of a
// transfer the call sits on, plus the decisive timestamps the matcher needs.
type Info struct {
	FirstLeg       bool
	SecondLeg      bool
	QueueExtension string
	TransferTime   int64 // last matching transfer event
	AgentEnterTime int64 // the "transferred call time", not the call's own start
	HoldStartTime  int64
	ReceivingAgent string // named by transfer_enter, if any
}

// Classify decides whether a call is a first leg (transfer initiated), a
// second leg (transfer received), or neither.
//
// First-leg signature: a queue-extension transfer event plus a
// transfer_enter event (for inbound calls the transfer_enter must carry the
// agent role tag). Second-leg signature: an agent_enter event and no
// transfer_enter at all. A transfer_enter always makes the call a first-leg
// candidate, so the two signatures cannot both hold.
func Classify(call *types.CallRecord) Info {
	var info Info

	transferEvents := TransferHistory(call)
	for _, evt := range transferEvents {
		if isQueueTransfer(call.Role, evt) {
			// Campaigns may retry; the last transfer event wins.
			info.QueueExtension = evt.Extension
			info.TransferTime = evt.Timestamp
		}
	}

	var transferEnter *types.HistoryEvent
	firstLegEnter := false
	for i, evt := range call.History {
		switch evt.Kind {
		case types.EventTransferEnter:
			if transferEnter == nil {
				transferEnter = &call.History[i]
			}
			if call.Role != types.RoleInbound || evt.Subject == "agent" {
				firstLegEnter = true
			}
		case types.EventAgentEnter:
			if info.AgentEnterTime == 0 {
				info.AgentEnterTime = evt.Timestamp
			}
		}
	}

	if transferEnter != nil {
		info.ReceivingAgent = transferEnter.PersonName
		if info.ReceivingAgent == "" {
			info.ReceivingAgent = transferEnter.Extension
		}
	}

	info.FirstLeg = info.QueueExtension != "" && firstLegEnter
	info.SecondLeg = info.AgentEnterTime != 0 && transferEnter == nil

	for _, evt := range HoldHistory(call) {
		if evt.Kind == types.EventHoldStart {
			info.HoldStartTime = evt.Timestamp
			break
		}
	}

	return info
}

// TransferHistory selects the stream transfer detection runs on. A
// campaign's lead history takes precedence over its agent history.
func TransferHistory(call *types.CallRecord) []types.HistoryEvent {
	if call.Role == types.RoleCampaign && len(call.LeadHistory) > 0 {
		return call.LeadHistory
	}
	return call.History
}

// HoldHistory selects the stream hold periods come from: the lead stream
// for campaigns, the agent stream otherwise.
func HoldHistory(call *types.CallRecord) []types.HistoryEvent {
	if call.Role == types.RoleCampaign {
		return call.LeadHistory
	}
	return call.History
}

// isQueueTransfer applies each role's own vocabulary for "a transfer to a
// queue happened".
func isQueueTransfer(role types.CallRole, evt types.HistoryEvent) bool {
	if evt.Kind != types.EventTransfer || !queues.IsQueueExtension(evt.Extension) {
		return false
	}
	switch role {
	case types.RoleCampaign:
		return true
	case types.RoleOutbound:
		return evt.Subject == "transfer" || evt.Subject == "attended"
	case types.RoleInbound:
		return evt.Subject == "attended"
	default:
		return false
	}
}

// QueueFromAttendedTransfer recovers a queue extension from a call's own
// attended transfer event, used when a second-leg candidate's callee number
// does not directly name the queue.
func QueueFromAttendedTransfer(call *types.CallRecord) string {
	for _, evt := range call.History {
		if evt.Kind == types.EventTransfer && evt.Subject == "attended" && queues.IsQueueExtension(evt.Extension) {
			return evt.Extension
		}
	}
	return ""
}
