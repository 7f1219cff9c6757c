package match

import (
	"github.com/dennisdiepolder/xferlink/internal/holds"
	"github.com/dennisdiepolder/xferlink/internal/legs"
	"github.com/dennisdiepolder/xferlink/internal/queues"
	"github.com/dennisdiepolder/xferlink/internal/types"
)

// DetectFailedTransfers finds hold periods that never produced a completed
// transfer: calls with at least one hold period and no transfer event in
// their history at all. A call with a transfer event belongs to the
// matching passes, never here. Each candidate is explained by the abandoned
// queue attempts found inside any of its hold windows.
func (m *Matcher) DetectFailedTransfers(firsts, inbound []*types.CallRecord, used UsedSet) []types.FailedTransferRecord {
	var records []types.FailedTransferRecord

	for _, call := range firsts {
		if hasTransferEvent(legs.TransferHistory(call)) {
			continue
		}
		periods := holds.Periods(legs.HoldHistory(call))
		if len(periods) == 0 {
			continue
		}

		record := types.FailedTransferRecord{
			FirstLeg:    call,
			HoldPeriods: periods,
		}

		for _, cand := range inbound {
			if used.Used(cand.ID) {
				continue
			}
			if cand.CallerNumber != call.AgentExtension {
				continue
			}
			if !queues.IsQueueExtension(cand.CalleeNumber) {
				continue
			}
			if !isAbandoned(cand) {
				continue
			}
			if !holds.InAnyWindow(periods, cand.CalledTime, holdLeadIn) {
				continue
			}

			record.Attempts = append(record.Attempts, cand)
			record.FailedDialAttempts = append(record.FailedDialAttempts, failedDialAttempts(cand)...)
			used.Mark(cand.ID)
		}

		if len(record.Attempts) > 0 {
			records = append(records, record)
			m.logger.Debug().Str("call_id", call.ID).Int("attempts", len(record.Attempts)).
				Msg("failed transfer detected")
		}
	}

	return records
}

func hasTransferEvent(events []types.HistoryEvent) bool {
	for _, evt := range events {
		if evt.Kind == types.EventTransfer {
			return true
		}
	}
	return false
}
