package match

import "github.com/dennisdiepolder/xferlink/internal/types"

// ClassifySecondLeg decides the outcome of a delivered transfer from the
// second leg's history: Success when an agent answered, Failed otherwise,
// with the reason distinguishing a recorded unanswered dial from a generic
// missing connection.
func ClassifySecondLeg(second *types.CallRecord) (types.TransferStatus, string) {
	sawDial := false
	for _, evt := range second.History {
		switch evt.Kind {
		case types.EventAgentEnter:
			if evt.IsConnected() {
				return types.StatusSuccess, ""
			}
		case types.EventDial:
			sawDial = true
		}
	}

	if sawDial {
		return types.StatusFailed, "agent did not answer"
	}
	return types.StatusFailed, "no connection to agent"
}

// isAbandoned reports whether an inbound call was abandoned, either by
// explicit flag or effectively: every dial attempt failed and no agent
// connected.
func isAbandoned(call *types.CallRecord) bool {
	if call.Abandoned {
		return true
	}
	for _, evt := range call.History {
		if (evt.Kind == types.EventDial || evt.Kind == types.EventAgentEnter) && evt.IsConnected() {
			return false
		}
	}
	return true
}

// failedDialAttempts extracts the unanswered dial attempts of a call.
func failedDialAttempts(call *types.CallRecord) []types.FailedAgent {
	var attempts []types.FailedAgent
	for _, evt := range call.History {
		if evt.Kind != types.EventDial {
			continue
		}
		if evt.Connected == nil || *evt.Connected {
			continue
		}
		attempts = append(attempts, types.FailedAgent{
			Extension: evt.Extension,
			Name:      evt.PersonName,
			DialTime:  evt.Timestamp,
			QueueName: evt.QueueName,
			Reason:    "No Answer",
		})
	}
	return attempts
}
