package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dennisdiepolder/xferlink/internal/queues"
	"github.com/dennisdiepolder/xferlink/internal/types"
	"github.com/rs/zerolog"
)

type fakeSource struct {
	campaign []*types.CallRecord
	outbound []*types.CallRecord
	inbound  []*types.CallRecord

	campaignErr error
	outboundErr error
	inboundErr  error
}

func (f *fakeSource) CampaignCalls(_ context.Context, _, _ time.Time) ([]*types.CallRecord, error) {
	return f.campaign, f.campaignErr
}
func (f *fakeSource) OutboundCalls(_ context.Context, _, _ time.Time) ([]*types.CallRecord, error) {
	return f.outbound, f.outboundErr
}
func (f *fakeSource) InboundCalls(_ context.Context, _, _ time.Time) ([]*types.CallRecord, error) {
	return f.inbound, f.inboundErr
}

type fakeRecordings struct {
	urls map[string]string
}

func (f *fakeRecordings) RecordingURL(_ context.Context, callID string) (string, error) {
	url, ok := f.urls[callID]
	if !ok {
		return "", errors.New("not found")
	}
	return url, nil
}

func boolPtr(b bool) *bool { return &b }

func campaignCall(id string, transferAt int64) *types.CallRecord {
	return &types.CallRecord{
		ID:             id,
		Role:           types.RoleCampaign,
		CustomerNumber: "4915712345678",
		CalledTime:     transferAt - 120,
		AgentExtension: "7001",
		AgentName:      "Origin Agent",
		LeadHistory: []types.HistoryEvent{
			{Kind: types.EventHoldStart, Timestamp: transferAt - 60},
			{Kind: types.EventTransfer, Extension: "8005", Timestamp: transferAt},
			{Kind: types.EventHoldStop, Timestamp: transferAt + 20},
		},
		History: []types.HistoryEvent{
			{Kind: types.EventTransferEnter, PersonName: "Receiving Agent", Timestamp: transferAt + 5},
		},
	}
}

func inboundCall(id string, enterAt int64) *types.CallRecord {
	return &types.CallRecord{
		ID:             id,
		Role:           types.RoleInbound,
		CallerNumber:   "4915712345678",
		CalleeNumber:   "7017",
		CalledTime:     enterAt - 10,
		AgentExtension: "7017",
		AgentName:      "Queue Agent",
		History: []types.HistoryEvent{
			{Kind: types.EventDial, Extension: "7017", Timestamp: enterAt - 5, Connected: boolPtr(true)},
			{Kind: types.EventAgentEnter, Extension: "7017", Timestamp: enterAt, Connected: boolPtr(true)},
		},
	}
}

func testEngine(src *fakeSource) *Engine {
	return NewEngine(src, queues.NewResolver(), zerolog.Nop())
}

func window() Window {
	return Window{From: time.Unix(0, 0), To: time.Unix(100000, 0)}
}

func TestRunLinksCampaignTransfer(t *testing.T) {
	src := &fakeSource{
		campaign: []*types.CallRecord{campaignCall("camp-1", 1000)},
		inbound:  []*types.CallRecord{inboundCall("in-1", 1050)},
	}

	report, err := testEngine(src).Run(context.Background(), window())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Summary.Links != 1 || report.Summary.CampaignLinks != 1 {
		t.Fatalf("expected one campaign link, got summary %+v", report.Summary)
	}
	if report.Summary.Success != 1 {
		t.Errorf("expected one success, got %d", report.Summary.Success)
	}
	if report.Summary.Calls.Campaign != 1 || report.Summary.Calls.Inbound != 1 {
		t.Errorf("stream counts wrong: %+v", report.Summary.Calls)
	}
	if report.Summary.RunID == "" {
		t.Error("expected a run id")
	}

	if len(report.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(report.Rows))
	}
	row := report.Rows[0]
	if row.Status != string(types.StatusSuccess) {
		t.Errorf("row status = %q", row.Status)
	}
	if row.FirstLeg.CallID != "camp-1" {
		t.Errorf("first leg = %q", row.FirstLeg.CallID)
	}
	if row.SecondLeg == nil || row.SecondLeg.CallID != "in-1" {
		t.Fatalf("second leg = %+v", row.SecondLeg)
	}
	if row.TransferredTime != 1050 {
		t.Errorf("transferred time = %d, want 1050", row.TransferredTime)
	}
	if len(row.SecondLeg.History) != 2 {
		t.Errorf("expected rendered history, got %v", row.SecondLeg.History)
	}
}

func TestRunDegradesOnSingleStreamFailure(t *testing.T) {
	src := &fakeSource{
		campaignErr: errors.New("table offline"),
		inbound:     []*types.CallRecord{inboundCall("in-1", 1050)},
	}

	report, err := testEngine(src).Run(context.Background(), window())
	if err != nil {
		t.Fatalf("Run should degrade, got error: %v", err)
	}
	if len(report.Summary.DegradedStreams) != 1 || report.Summary.DegradedStreams[0] != "campaign" {
		t.Errorf("degraded streams = %v", report.Summary.DegradedStreams)
	}
	if report.Summary.Links != 0 {
		t.Errorf("expected no links, got %d", report.Summary.Links)
	}
}

func TestRunFailsWhenAllStreamsFail(t *testing.T) {
	src := &fakeSource{
		campaignErr: errors.New("down"),
		outboundErr: errors.New("down"),
		inboundErr:  errors.New("down"),
	}

	if _, err := testEngine(src).Run(context.Background(), window()); err == nil {
		t.Fatal("expected error when every stream fails")
	}
}

func TestRunInternalLinkHasNoSecondLegView(t *testing.T) {
	// A same-call transfer: the delivery lives inside the first leg's own
	// history, so the row carries only one leg view.
	call := &types.CallRecord{
		ID:             "in-self",
		Role:           types.RoleInbound,
		CallerNumber:   "4915712345678",
		AgentExtension: "7001",
		CalledTime:     900,
		History: []types.HistoryEvent{
			{Kind: types.EventTransfer, Subject: "attended", Extension: "8005", Timestamp: 1000},
			{Kind: types.EventTransferEnter, Subject: "agent", PersonName: "Anna", Timestamp: 1005},
			{Kind: types.EventAgentEnter, Extension: "7017", Timestamp: 1010, Connected: boolPtr(true)},
		},
	}
	src := &fakeSource{inbound: []*types.CallRecord{call}}

	report, err := testEngine(src).Run(context.Background(), window())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Summary.InternalLinks != 1 {
		t.Fatalf("expected one internal link, got summary %+v", report.Summary)
	}
	if report.Rows[0].SecondLeg != nil {
		t.Errorf("internal link should not duplicate the leg, got %+v", report.Rows[0].SecondLeg)
	}
}

func TestRunDetectsFailedTransfers(t *testing.T) {
	// A call that held but never transferred, with an abandoned queue
	// attempt inside the hold window.
	first := &types.CallRecord{
		ID:             "out-1",
		Role:           types.RoleOutbound,
		CalleeNumber:   "4915712345678",
		AgentExtension: "7001",
		CalledTime:     900,
		History: []types.HistoryEvent{
			{Kind: types.EventHoldStart, Timestamp: 1000},
			{Kind: types.EventHoldStop, Timestamp: 1120},
		},
	}
	attempt := &types.CallRecord{
		ID:           "in-attempt",
		Role:         types.RoleInbound,
		CallerNumber: "7001",
		CalleeNumber: "8005",
		CalledTime:   1030,
		Abandoned:    true,
		History: []types.HistoryEvent{
			{Kind: types.EventDial, Extension: "7017", PersonName: "Queue Agent", Timestamp: 1035, Connected: boolPtr(false)},
		},
	}
	src := &fakeSource{
		outbound: []*types.CallRecord{first},
		inbound:  []*types.CallRecord{attempt},
	}

	report, err := testEngine(src).Run(context.Background(), window())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Summary.FailedTransfers != 1 {
		t.Fatalf("expected one failed transfer, got summary %+v", report.Summary)
	}
	row := report.FailedTransfers[0]
	if row.CallID != "out-1" {
		t.Errorf("failed transfer call = %q", row.CallID)
	}
	if len(row.AttemptIDs) != 1 || row.AttemptIDs[0] != "in-attempt" {
		t.Errorf("attempt ids = %v", row.AttemptIDs)
	}
	if len(row.FailedDialAttempts) != 1 || row.FailedDialAttempts[0].Reason != "No Answer" {
		t.Errorf("failed dial attempts = %+v", row.FailedDialAttempts)
	}
}

func TestRunEnrichesRecordings(t *testing.T) {
	src := &fakeSource{
		campaign: []*types.CallRecord{campaignCall("camp-1", 1000)},
		inbound:  []*types.CallRecord{inboundCall("in-1", 1050)},
	}
	engine := testEngine(src).WithRecordings(&fakeRecordings{
		urls: map[string]string{"camp-1": "https://recordings/camp-1.wav"},
	})

	report, err := engine.Run(context.Background(), window())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	row := report.Rows[0]
	if row.FirstLeg.RecordingURL != "https://recordings/camp-1.wav" {
		t.Errorf("first leg recording = %q", row.FirstLeg.RecordingURL)
	}
	// Lookup failure for the second leg is tolerated.
	if row.SecondLeg.RecordingURL != "" {
		t.Errorf("second leg recording = %q", row.SecondLeg.RecordingURL)
	}
}

func TestRenderHistory(t *testing.T) {
	lines := RenderHistory([]types.HistoryEvent{
		{Kind: types.EventTransfer, Subject: "attended", Extension: "8005", Timestamp: 3661},
		{Kind: types.EventAgentEnter, Extension: "7017", PersonName: "Anna", Timestamp: 3700, Connected: boolPtr(true)},
	})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
	if lines[0] != "01:01:01 transfer:attended ext=8005" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "01:01:40 agent_enter ext=7017 (Anna) connected" {
		t.Errorf("line 1 = %q", lines[1])
	}
}
