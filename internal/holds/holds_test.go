package holds

import (
	"testing"

	"github.com/dennisdiepolder/xferlink/internal/types"
)

func TestPeriodsSameIndexPairing(t *testing.T) {
	events := []types.HistoryEvent{
		{Kind: types.EventHoldStart, Timestamp: 1000},
		{Kind: types.EventHoldStop, Timestamp: 1040},
		{Kind: types.EventDial, Timestamp: 1050},
		{Kind: types.EventHoldStart, Timestamp: 1100},
		{Kind: types.EventHoldStop, Timestamp: 1180},
	}

	periods := Periods(events)
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}
	if periods[0].Start != 1000 || periods[0].Stop != 1040 {
		t.Errorf("expected [1000,1040], got [%d,%d]", periods[0].Start, periods[0].Stop)
	}
	if periods[1].Start != 1100 || periods[1].Stop != 1180 {
		t.Errorf("expected [1100,1180], got [%d,%d]", periods[1].Start, periods[1].Stop)
	}
}

func TestPeriodsUnmatchedOpen(t *testing.T) {
	events := []types.HistoryEvent{
		{Kind: types.EventHoldStart, Timestamp: 1000},
	}

	periods := Periods(events)
	if len(periods) != 1 {
		t.Fatalf("expected 1 period, got %d", len(periods))
	}
	if periods[0].Stop != 0 {
		t.Errorf("expected open period, got stop %d", periods[0].Stop)
	}
	if periods[0].EffectiveStop() != 1300 {
		t.Errorf("expected effective stop 1300 (start+300), got %d", periods[0].EffectiveStop())
	}
}

func TestPeriodsEmpty(t *testing.T) {
	if got := Periods(nil); len(got) != 0 {
		t.Errorf("expected no periods, got %d", len(got))
	}
	stopOnly := []types.HistoryEvent{{Kind: types.EventHoldStop, Timestamp: 1000}}
	if got := Periods(stopOnly); len(got) != 0 {
		t.Errorf("expected no periods from lone hold_stop, got %d", len(got))
	}
}

func TestInAnyWindow(t *testing.T) {
	periods := []types.HoldPeriod{
		{Start: 1000, Stop: 1100},
		{Start: 2000}, // open, effective stop 2300
	}

	cases := []struct {
		ts   int64
		want bool
	}{
		{970, true},  // inside lead-in
		{969, false}, // before lead-in
		{1100, true},
		{1101, false},
		{2300, true}, // effective stop of open period
		{2301, false},
	}

	for _, tc := range cases {
		if got := InAnyWindow(periods, tc.ts, 30); got != tc.want {
			t.Errorf("InAnyWindow(%d) = %v, want %v", tc.ts, got, tc.want)
		}
	}
}
