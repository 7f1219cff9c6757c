package holds

import "github.com/dennisdiepolder/xferlink/internal/types"

// Periods reconstructs hold intervals from a history by pairing every
// hold_start with the hold_stop at the same chronological index. Retry
// attempts produce multiple periods. An unmatched open stays open; callers
// treat it as a 5-minute window via EffectiveStop.
func Periods(events []types.HistoryEvent) []types.HoldPeriod {
	var starts, stops []int64
	for _, evt := range events {
		switch evt.Kind {
		case types.EventHoldStart:
			starts = append(starts, evt.Timestamp)
		case types.EventHoldStop:
			stops = append(stops, evt.Timestamp)
		}
	}

	periods := make([]types.HoldPeriod, 0, len(starts))
	for i, start := range starts {
		p := types.HoldPeriod{Start: start}
		if i < len(stops) {
			p.Stop = stops[i]
		}
		periods = append(periods, p)
	}
	return periods
}

// InAnyWindow reports whether ts falls inside any hold period, extended by
// the given lead-in tolerance before each start.
func InAnyWindow(periods []types.HoldPeriod, ts int64, leadIn int64) bool {
	for _, p := range periods {
		if ts >= p.Start-leadIn && ts <= p.EffectiveStop() {
			return true
		}
	}
	return false
}
