package match

import (
	"strings"
	"testing"

	"github.com/dennisdiepolder/xferlink/internal/queues"
	"github.com/dennisdiepolder/xferlink/internal/types"
	"github.com/rs/zerolog"
)

func boolPtr(b bool) *bool { return &b }

func newTestMatcher() *Matcher {
	return NewMatcher(queues.NewResolver(), zerolog.Nop())
}

// campaignFirstLeg builds a campaign call that transferred its lead into the
// given queue at transferAt.
func campaignFirstLeg(id, lead, queue string, transferAt int64) *types.CallRecord {
	return &types.CallRecord{
		ID:             id,
		Role:           types.RoleCampaign,
		CustomerNumber: lead,
		AgentExtension: "7001",
		CalledTime:     transferAt - 120,
		LeadHistory: []types.HistoryEvent{
			{Kind: types.EventHoldStart, Timestamp: transferAt - 60},
			{Kind: types.EventTransfer, Extension: queue, Timestamp: transferAt},
			{Kind: types.EventHoldStop, Timestamp: transferAt + 20},
		},
		History: []types.HistoryEvent{
			{Kind: types.EventTransferEnter, Subject: "agent", PersonName: "Receiving Agent", Timestamp: transferAt + 5},
		},
	}
}

// inboundDelivery builds an inbound call delivered from a queue to an agent.
func inboundDelivery(id, caller, callee string, agentEnterAt int64, connected bool) *types.CallRecord {
	return &types.CallRecord{
		ID:           id,
		Role:         types.RoleInbound,
		CallerNumber: caller,
		CalleeNumber: callee,
		CalledTime:   agentEnterAt - 10,
		History: []types.HistoryEvent{
			{Kind: types.EventAgentEnter, Subject: "agent", Timestamp: agentEnterAt, Connected: boolPtr(connected)},
		},
	}
}

func TestScenarioASuccessfulCampaignTransfer(t *testing.T) {
	m := newTestMatcher()
	used := NewUsedSet()

	campaign := campaignFirstLeg("c1", "491712345678", "8005", 1000)
	inbound := inboundDelivery("i1", "1712345678", "7017", 1050, true)

	links := m.MatchCampaign(
		[]*types.CallRecord{campaign},
		[]*types.CallRecord{inbound},
		used,
	)

	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	link := links[0]
	if link.Status != types.StatusSuccess {
		t.Errorf("expected Success, got %s (%s)", link.Status, link.StatusReason)
	}
	if link.SecondLeg == nil || link.SecondLeg.ID != "i1" {
		t.Fatal("expected i1 as second leg")
	}
	if link.TransferredTime != 1050 {
		t.Errorf("expected transferred call time 1050, got %d", link.TransferredTime)
	}
	if link.QueueExtension != "8005" {
		t.Errorf("expected queue 8005, got %s", link.QueueExtension)
	}
	if !used.Used("i1") {
		t.Error("expected i1 marked used")
	}
}

func TestScenarioBAbandonedDelivery(t *testing.T) {
	m := newTestMatcher()

	campaign := campaignFirstLeg("c1", "491712345678", "8005", 1000)
	inbound := &types.CallRecord{
		ID:           "i1",
		Role:         types.RoleInbound,
		CallerNumber: "1712345678",
		CalleeNumber: "7017",
		CalledTime:   1040,
		Abandoned:    true,
		History: []types.HistoryEvent{
			{Kind: types.EventDial, Extension: "7020", Timestamp: 1045, Connected: boolPtr(false)},
			{Kind: types.EventAgentEnter, Subject: "agent", Timestamp: 1050, Connected: boolPtr(false)},
		},
	}

	links := m.MatchCampaign([]*types.CallRecord{campaign}, []*types.CallRecord{inbound}, NewUsedSet())
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].Status != types.StatusFailed {
		t.Errorf("expected Failed, got %s", links[0].Status)
	}
	if !strings.Contains(links[0].StatusReason, "answer") {
		t.Errorf("expected reason to mention no answer, got %q", links[0].StatusReason)
	}
}

func TestScenarioCFailedTransferNotLink(t *testing.T) {
	m := newTestMatcher()
	used := NewUsedSet()

	// Hold pair but no transfer event anywhere: handled by the detector,
	// not the matcher.
	campaign := &types.CallRecord{
		ID:             "c1",
		Role:           types.RoleCampaign,
		CustomerNumber: "491712345678",
		AgentExtension: "7001",
		LeadHistory: []types.HistoryEvent{
			{Kind: types.EventHoldStart, Timestamp: 1000},
			{Kind: types.EventHoldStop, Timestamp: 1200},
		},
	}
	attempt := &types.CallRecord{
		ID:           "i1",
		Role:         types.RoleInbound,
		CallerNumber: "7001",
		CalleeNumber: "8005",
		CalledTime:   1050,
		Abandoned:    true,
		History: []types.HistoryEvent{
			{Kind: types.EventDial, Extension: "7017", PersonName: "Maria Schmidt", Timestamp: 1060, Connected: boolPtr(false)},
		},
	}

	pool := []*types.CallRecord{attempt}
	links := m.MatchCampaign([]*types.CallRecord{campaign}, pool, used)
	if len(links) != 0 {
		t.Fatalf("expected no transfer links, got %d", len(links))
	}

	records := m.DetectFailedTransfers([]*types.CallRecord{campaign}, pool, used)
	if len(records) != 1 {
		t.Fatalf("expected 1 failed-transfer record, got %d", len(records))
	}
	rec := records[0]
	if len(rec.Attempts) != 1 || rec.Attempts[0].ID != "i1" {
		t.Fatal("expected i1 attached as abandoned attempt")
	}
	if len(rec.FailedDialAttempts) != 1 {
		t.Fatalf("expected 1 failed dial attempt, got %d", len(rec.FailedDialAttempts))
	}
	fa := rec.FailedDialAttempts[0]
	if fa.Extension != "7017" || fa.Reason != "No Answer" {
		t.Errorf("unexpected failed agent: %+v", fa)
	}
	if !used.Used("i1") {
		t.Error("expected attempt marked used")
	}
}

func TestScenarioDEarliestTransferClaimsEarliestDelivery(t *testing.T) {
	m := newTestMatcher()

	c1 := campaignFirstLeg("c1", "491712345678", "8005", 1000)
	c2 := campaignFirstLeg("c2", "491712345678", "8005", 1200)
	i1 := inboundDelivery("i1", "1712345678", "7017", 1050, true)
	i2 := inboundDelivery("i2", "1712345678", "7017", 1250, true)

	// Present the pool and the first legs in reverse order; processing
	// order must come from the transfer timestamps.
	links := m.MatchCampaign(
		[]*types.CallRecord{c2, c1},
		[]*types.CallRecord{i2, i1},
		NewUsedSet(),
	)

	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	got := map[string]string{}
	for _, l := range links {
		got[l.FirstLeg.ID] = l.SecondLeg.ID
	}
	if got["c1"] != "i1" {
		t.Errorf("expected c1 -> i1, got %s", got["c1"])
	}
	if got["c2"] != "i2" {
		t.Errorf("expected c2 -> i2, got %s", got["c2"])
	}
}

func TestTimingWindowBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		enterAt int64
		want    bool
	}{
		{"600s after matches", 1600, true},
		{"601s after does not", 1601, false},
		{"60s before matches", 940, true},
		{"61s before does not", 939, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestMatcher()
			campaign := campaignFirstLeg("c1", "491712345678", "8005", 1000)
			inbound := inboundDelivery("i1", "1712345678", "7017", tc.enterAt, true)

			links := m.MatchCampaign([]*types.CallRecord{campaign}, []*types.CallRecord{inbound}, NewUsedSet())
			if got := len(links) == 1; got != tc.want {
				t.Errorf("match = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExclusivityAcrossFirstLegs(t *testing.T) {
	m := newTestMatcher()
	used := NewUsedSet()

	c1 := campaignFirstLeg("c1", "491712345678", "8005", 1000)
	c2 := campaignFirstLeg("c2", "491712345678", "8005", 1010)
	only := inboundDelivery("i1", "1712345678", "7017", 1050, true)

	links := m.MatchCampaign([]*types.CallRecord{c1, c2}, []*types.CallRecord{only}, used)

	if len(links) != 1 {
		t.Fatalf("expected exactly 1 link for a single inbound call, got %d", len(links))
	}
	if links[0].FirstLeg.ID != "c1" {
		t.Errorf("expected the earlier transfer to claim the delivery, got %s", links[0].FirstLeg.ID)
	}

	seen := map[string]int{}
	for _, l := range links {
		if l.SecondLeg != nil {
			seen[l.SecondLeg.ID]++
		}
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("inbound %s consumed %d times", id, n)
		}
	}
}

func TestClosestAgentEnterWins(t *testing.T) {
	m := newTestMatcher()

	campaign := campaignFirstLeg("c1", "491712345678", "8005", 1000)
	far := inboundDelivery("i-far", "1712345678", "7017", 1400, true)
	near := inboundDelivery("i-near", "1712345678", "7017", 1030, true)

	links := m.MatchCampaign([]*types.CallRecord{campaign}, []*types.CallRecord{far, near}, NewUsedSet())
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].SecondLeg.ID != "i-near" {
		t.Errorf("expected closest agent_enter to win, got %s", links[0].SecondLeg.ID)
	}
}

func TestUnresolvedQueueSkipsCall(t *testing.T) {
	m := newTestMatcher()

	// 8123 is a valid queue extension with no configured callee mapping
	campaign := campaignFirstLeg("c1", "491712345678", "8123", 1000)
	inbound := inboundDelivery("i1", "1712345678", "8123", 1050, true)

	links := m.MatchCampaign([]*types.CallRecord{campaign}, []*types.CallRecord{inbound}, NewUsedSet())
	if len(links) != 0 {
		t.Errorf("expected configuration gap to skip the call, got %d links", len(links))
	}
}

func TestCustomerNumberMismatchRejects(t *testing.T) {
	m := newTestMatcher()

	campaign := campaignFirstLeg("c1", "491712345678", "8005", 1000)
	other := inboundDelivery("i1", "499998887766", "7017", 1050, true)

	links := m.MatchCampaign([]*types.CallRecord{campaign}, []*types.CallRecord{other}, NewUsedSet())
	if len(links) != 0 {
		t.Error("expected customer number mismatch to reject the pairing")
	}
}

func TestNoCustomerIdentityCannotStealCustomerDelivery(t *testing.T) {
	m := newTestMatcher()

	// First leg with no lead number; the candidate was delivered directly
	// under a customer phone number and belongs to some other first leg.
	campaign := campaignFirstLeg("c1", "", "8005", 1000)
	delivery := inboundDelivery("i1", "1712345678", "491712345678", 1050, true)

	links := m.MatchCampaign([]*types.CallRecord{campaign}, []*types.CallRecord{delivery}, NewUsedSet())
	if len(links) != 0 {
		t.Error("expected first leg without customer identity to be rejected")
	}
}

func TestWrongCustomerCalleeRejected(t *testing.T) {
	m := newTestMatcher()

	// The candidate was delivered directly under another customer's phone
	// number; its caller is a plain extension. The delivery belongs to that
	// other customer's first leg, not this one.
	campaign := campaignFirstLeg("c1", "491712345678", "8005", 1000)
	other := inboundDelivery("i1", "7005", "493334445556", 1050, true)

	links := m.MatchCampaign([]*types.CallRecord{campaign}, []*types.CallRecord{other}, NewUsedSet())
	if len(links) != 0 {
		t.Errorf("expected delivery addressed to another customer to be rejected, got %d links", len(links))
	}
}

func TestOwnCustomerCalleeAccepted(t *testing.T) {
	m := newTestMatcher()

	campaign := campaignFirstLeg("c1", "491712345678", "8005", 1000)
	direct := inboundDelivery("i1", "7005", "491712345678", 1050, true)

	links := m.MatchCampaign([]*types.CallRecord{campaign}, []*types.CallRecord{direct}, NewUsedSet())
	if len(links) != 1 {
		t.Fatalf("expected direct delivery to the first leg's customer to link, got %d", len(links))
	}
	if links[0].SecondLeg == nil || links[0].SecondLeg.ID != "i1" {
		t.Error("expected i1 as second leg")
	}
}

func TestQueueRecoveredFromAttendedTransfer(t *testing.T) {
	m := newTestMatcher()

	campaign := campaignFirstLeg("c1", "491712345678", "8005", 1000)
	cand := &types.CallRecord{
		ID:           "i1",
		Role:         types.RoleInbound,
		CallerNumber: "1712345678",
		CalleeNumber: "7777", // names neither the queue nor its callee
		CalledTime:   1040,
		History: []types.HistoryEvent{
			{Kind: types.EventAgentEnter, Subject: "agent", Timestamp: 1050, Connected: boolPtr(true)},
			{Kind: types.EventTransfer, Subject: "attended", Extension: "8005", Timestamp: 1100},
		},
	}

	links := m.MatchCampaign([]*types.CallRecord{campaign}, []*types.CallRecord{cand}, NewUsedSet())
	if len(links) != 1 {
		t.Fatalf("expected attended transfer to recover the queue, got %d links", len(links))
	}
}

func TestSiblingAbandonedAttemptsFolded(t *testing.T) {
	m := newTestMatcher()
	used := NewUsedSet()

	campaign := campaignFirstLeg("c1", "491712345678", "8005", 1000)
	delivered := inboundDelivery("i1", "1712345678", "7017", 1050, true)
	sibling := &types.CallRecord{
		ID:           "i2",
		Role:         types.RoleInbound,
		CallerNumber: "7001", // the first leg's agent extension
		CalleeNumber: "8005",
		CalledTime:   950, // inside [holdStart-30, holdStop]
		Abandoned:    true,
		History: []types.HistoryEvent{
			{Kind: types.EventDial, Extension: "7020", Timestamp: 955, Connected: boolPtr(false)},
		},
	}

	links := m.MatchCampaign([]*types.CallRecord{campaign}, []*types.CallRecord{delivered, sibling}, used)
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if len(links[0].FailedDialAttempts) != 1 {
		t.Fatalf("expected sibling dial attempt folded in, got %d", len(links[0].FailedDialAttempts))
	}
	if links[0].FailedDialAttempts[0].Extension != "7020" {
		t.Errorf("unexpected failed agent extension %s", links[0].FailedDialAttempts[0].Extension)
	}
	if !used.Used("i2") {
		t.Error("expected sibling marked used")
	}
}

func TestInternalTransferLinkedFirst(t *testing.T) {
	m := newTestMatcher()
	used := NewUsedSet()

	internal := &types.CallRecord{
		ID:           "i1",
		Role:         types.RoleInbound,
		CallerNumber: "491712345678",
		CalleeNumber: "7017",
		CalledTime:   900,
		History: []types.HistoryEvent{
			{Kind: types.EventTransfer, Subject: "attended", Extension: "8005", Timestamp: 1000},
			{Kind: types.EventTransferEnter, Subject: "agent", Timestamp: 1005},
			{Kind: types.EventAgentEnter, Subject: "agent", Timestamp: 1010, Connected: boolPtr(true)},
		},
	}

	pool := []*types.CallRecord{internal}
	links := m.MatchInternal(pool, used)
	if len(links) != 1 {
		t.Fatalf("expected 1 internal link, got %d", len(links))
	}
	if links[0].FirstLeg.ID != "i1" || links[0].SecondLeg.ID != "i1" {
		t.Error("expected same-call link")
	}
	if links[0].Status != types.StatusSuccess {
		t.Errorf("expected Success, got %s", links[0].Status)
	}
	if !used.Used("i1") {
		t.Fatal("expected internal transfer marked used")
	}

	// The later inbound pass must not produce a second link for it
	if again := m.MatchInbound(pool, used); len(again) != 0 {
		t.Errorf("expected consumed internal transfer to be skipped, got %d links", len(again))
	}
}

func TestInboundToInboundMatch(t *testing.T) {
	m := newTestMatcher()

	first := &types.CallRecord{
		ID:           "i1",
		Role:         types.RoleInbound,
		CallerNumber: "491712345678",
		CalleeNumber: "7001",
		CalledTime:   900,
		History: []types.HistoryEvent{
			{Kind: types.EventHoldStart, Timestamp: 995},
			{Kind: types.EventTransfer, Subject: "attended", Extension: "8005", Timestamp: 1000},
			{Kind: types.EventTransferEnter, Subject: "agent", PersonName: "Maria Schmidt", Timestamp: 1005},
		},
	}
	second := inboundDelivery("i2", "1712345678", "7017", 1050, true)

	links := m.MatchInbound([]*types.CallRecord{first, second}, NewUsedSet())
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].SecondLeg == nil || links[0].SecondLeg.ID != "i2" {
		t.Fatal("expected i2 as second leg")
	}
}

func TestInboundToInboundStrictPositiveWindow(t *testing.T) {
	m := newTestMatcher()

	first := &types.CallRecord{
		ID:           "i1",
		Role:         types.RoleInbound,
		CallerNumber: "491712345678",
		CalledTime:   900,
		History: []types.HistoryEvent{
			{Kind: types.EventHoldStart, Timestamp: 1000},
			{Kind: types.EventTransfer, Subject: "attended", Extension: "8005", Timestamp: 1010},
			{Kind: types.EventTransferEnter, Subject: "agent", Timestamp: 1015},
		},
	}
	// agent_enter before the hold start: no negative tolerance here
	early := inboundDelivery("i2", "1712345678", "7017", 990, true)

	links := m.MatchInbound([]*types.CallRecord{first, early}, NewUsedSet())
	if len(links) != 1 {
		t.Fatalf("expected 1 link (no second leg), got %d", len(links))
	}
	if links[0].SecondLeg != nil {
		t.Error("expected no second leg for pre-hold agent_enter")
	}
}

func TestInboundNoCandidateStatuses(t *testing.T) {
	m := newTestMatcher()

	named := &types.CallRecord{
		ID:   "i1",
		Role: types.RoleInbound,
		History: []types.HistoryEvent{
			{Kind: types.EventHoldStart, Timestamp: 995},
			{Kind: types.EventTransfer, Subject: "attended", Extension: "8005", Timestamp: 1000},
			{Kind: types.EventTransferEnter, Subject: "agent", PersonName: "Maria Schmidt", Timestamp: 1005},
		},
	}
	anonymous := &types.CallRecord{
		ID:   "i2",
		Role: types.RoleInbound,
		History: []types.HistoryEvent{
			{Kind: types.EventHoldStart, Timestamp: 1995},
			{Kind: types.EventTransfer, Subject: "attended", Extension: "8005", Timestamp: 2000},
			{Kind: types.EventTransferEnter, Subject: "agent", Timestamp: 2005},
		},
	}

	links := m.MatchInbound([]*types.CallRecord{named, anonymous}, NewUsedSet())
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}

	byID := map[string]types.TransferLink{}
	for _, l := range links {
		byID[l.FirstLeg.ID] = l
	}
	if byID["i1"].Status != types.StatusError {
		t.Errorf("expected Error when a receiving agent is named, got %s", byID["i1"].Status)
	}
	if !strings.Contains(byID["i1"].StatusReason, "Maria Schmidt") {
		t.Errorf("expected reason to name the receiving agent, got %q", byID["i1"].StatusReason)
	}
	if byID["i2"].Status != types.StatusFailed {
		t.Errorf("expected Failed without a named agent, got %s", byID["i2"].Status)
	}
}

func TestDetectFailedTransfersSkipsHandledCalls(t *testing.T) {
	m := newTestMatcher()

	// A transfer event anywhere means the matching pass owns this call
	withTransfer := campaignFirstLeg("c1", "491712345678", "8005", 1000)
	records := m.DetectFailedTransfers([]*types.CallRecord{withTransfer}, nil, NewUsedSet())
	if len(records) != 0 {
		t.Errorf("expected no failed-transfer records, got %d", len(records))
	}
}

func TestEffectivelyAbandoned(t *testing.T) {
	// No explicit flag, every dial unconnected, no connected agent_enter
	call := &types.CallRecord{
		ID:           "i1",
		CallerNumber: "7001",
		CalleeNumber: "8005",
		CalledTime:   1050,
		History: []types.HistoryEvent{
			{Kind: types.EventDial, Extension: "7017", Timestamp: 1055, Connected: boolPtr(false)},
			{Kind: types.EventDial, Extension: "7018", Timestamp: 1060, Connected: boolPtr(false)},
		},
	}
	if !isAbandoned(call) {
		t.Error("expected effectively abandoned")
	}

	answered := &types.CallRecord{
		History: []types.HistoryEvent{
			{Kind: types.EventDial, Timestamp: 1055, Connected: boolPtr(false)},
			{Kind: types.EventAgentEnter, Timestamp: 1060, Connected: boolPtr(true)},
		},
	}
	if isAbandoned(answered) {
		t.Error("expected answered call to not be abandoned")
	}
}
