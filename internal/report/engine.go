package report

import (
	"context"
	"fmt"
	"time"

	"github.com/dennisdiepolder/xferlink/internal/match"
	"github.com/dennisdiepolder/xferlink/internal/metrics"
	"github.com/dennisdiepolder/xferlink/internal/queues"
	"github.com/dennisdiepolder/xferlink/internal/source"
	"github.com/dennisdiepolder/xferlink/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Window is the half-open time range one correlation run covers.
type Window struct {
	From time.Time
	To   time.Time
}

// StreamCounts holds one integer per call stream.
type StreamCounts struct {
	Campaign int `json:"campaign"`
	Outbound int `json:"outbound"`
	Inbound  int `json:"inbound"`
}

// Summary is the aggregate view of one correlation run.
type Summary struct {
	RunID           string       `json:"runId"`
	From            int64        `json:"from"`
	To              int64        `json:"to"`
	GeneratedAt     int64        `json:"generatedAt"`
	Calls           StreamCounts `json:"calls"`
	Links           int          `json:"links"`
	InternalLinks   int          `json:"internalLinks"`
	CampaignLinks   int          `json:"campaignLinks"`
	OutboundLinks   int          `json:"outboundLinks"`
	InboundLinks    int          `json:"inboundLinks"`
	Success         int          `json:"success"`
	Failed          int          `json:"failed"`
	Errors          int          `json:"errors"`
	FailedTransfers int          `json:"failedTransfers"`
	DegradedStreams []string     `json:"degradedStreams,omitempty"`
}

// Report is the full result of one correlation run.
type Report struct {
	Summary         Summary             `json:"summary"`
	Rows            []Row               `json:"rows"`
	FailedTransfers []FailedTransferRow `json:"failedTransfers,omitempty"`
}

// Engine runs correlation over a time window: fetch the three call streams,
// run the matching passes in their fixed order, aggregate the result.
type Engine struct {
	source     source.CallSource
	matcher    *match.Matcher
	recordings source.RecordingLookup
	logger     zerolog.Logger
}

// NewEngine creates a report engine over a call source and queue mapping.
func NewEngine(src source.CallSource, resolver *queues.Resolver, logger zerolog.Logger) *Engine {
	return &Engine{
		source:  src,
		matcher: match.NewMatcher(resolver, logger),
		logger:  logger.With().Str("component", "report-engine").Logger(),
	}
}

// WithRecordings attaches an optional recording lookup used to enrich rows.
func (e *Engine) WithRecordings(lookup source.RecordingLookup) *Engine {
	e.recordings = lookup
	return e
}

// Run executes one correlation run. A stream that fails to load degrades to
// empty; only all three streams failing aborts the run.
func (e *Engine) Run(ctx context.Context, window Window) (*Report, error) {
	var campaign, outbound, inbound []*types.CallRecord
	var campaignErr, outboundErr, inboundErr error

	// The streams are independent; fetch them concurrently and collect the
	// errors instead of returning them, so one slow or broken table does not
	// cancel the others.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		campaign, campaignErr = e.source.CampaignCalls(gctx, window.From, window.To)
		return nil
	})
	g.Go(func() error {
		outbound, outboundErr = e.source.OutboundCalls(gctx, window.From, window.To)
		return nil
	})
	g.Go(func() error {
		inbound, inboundErr = e.source.InboundCalls(gctx, window.From, window.To)
		return nil
	})
	_ = g.Wait()

	var degraded []string
	for _, s := range []struct {
		name string
		err  error
	}{
		{"campaign", campaignErr},
		{"outbound", outboundErr},
		{"inbound", inboundErr},
	} {
		if s.err != nil {
			degraded = append(degraded, s.name)
			e.logger.Warn().Err(s.err).Str("stream", s.name).
				Msg("call stream unavailable, continuing without it")
		}
	}
	if campaignErr != nil && outboundErr != nil && inboundErr != nil {
		return nil, fmt.Errorf("all call streams failed: %w", inboundErr)
	}

	used := match.NewUsedSet()

	internal := e.matcher.MatchInternal(inbound, used)
	campaignLinks := e.matcher.MatchCampaign(campaign, inbound, used)
	outboundLinks := e.matcher.MatchOutbound(outbound, inbound, used)
	inboundLinks := e.matcher.MatchInbound(inbound, used)

	metrics.Get().RecordLinks("internal", len(internal))
	metrics.Get().RecordLinks("campaign", len(campaignLinks))
	metrics.Get().RecordLinks("outbound", len(outboundLinks))
	metrics.Get().RecordLinks("inbound", len(inboundLinks))

	firsts := make([]*types.CallRecord, 0, len(campaign)+len(outbound)+len(inbound))
	firsts = append(firsts, campaign...)
	firsts = append(firsts, outbound...)
	firsts = append(firsts, inbound...)
	failed := e.matcher.DetectFailedTransfers(firsts, inbound, used)

	links := make([]types.TransferLink, 0,
		len(internal)+len(campaignLinks)+len(outboundLinks)+len(inboundLinks))
	links = append(links, internal...)
	links = append(links, campaignLinks...)
	links = append(links, outboundLinks...)
	links = append(links, inboundLinks...)

	report := &Report{
		Summary: Summary{
			RunID:       uuid.New().String(),
			From:        window.From.Unix(),
			To:          window.To.Unix(),
			GeneratedAt: time.Now().Unix(),
			Calls: StreamCounts{
				Campaign: len(campaign),
				Outbound: len(outbound),
				Inbound:  len(inbound),
			},
			Links:           len(links),
			InternalLinks:   len(internal),
			CampaignLinks:   len(campaignLinks),
			OutboundLinks:   len(outboundLinks),
			InboundLinks:    len(inboundLinks),
			FailedTransfers: len(failed),
			DegradedStreams: degraded,
		},
		Rows:            make([]Row, 0, len(links)),
		FailedTransfers: make([]FailedTransferRow, 0, len(failed)),
	}

	for _, link := range links {
		switch link.Status {
		case types.StatusSuccess:
			report.Summary.Success++
		case types.StatusFailed:
			report.Summary.Failed++
		case types.StatusError:
			report.Summary.Errors++
		}
		report.Rows = append(report.Rows, e.buildRow(ctx, link))
	}
	for _, record := range failed {
		report.FailedTransfers = append(report.FailedTransfers, buildFailedRow(record))
	}

	e.logger.Info().
		Str("run_id", report.Summary.RunID).
		Int("campaign", len(campaign)).
		Int("outbound", len(outbound)).
		Int("inbound", len(inbound)).
		Int("links", len(links)).
		Int("failed_transfers", len(failed)).
		Msg("correlation run complete")

	return report, nil
}

func (e *Engine) buildRow(ctx context.Context, link types.TransferLink) Row {
	row := Row{
		Status:             string(link.Status),
		StatusReason:       link.StatusReason,
		QueueExtension:     link.QueueExtension,
		TransferTime:       link.TransferTime,
		TransferredTime:    link.TransferredTime,
		FirstLeg:           e.buildLeg(ctx, link.FirstLeg),
		FailedDialAttempts: link.FailedDialAttempts,
	}
	if link.SecondLeg != nil && link.SecondLeg != link.FirstLeg {
		leg := e.buildLeg(ctx, link.SecondLeg)
		row.SecondLeg = &leg
	}
	return row
}

func (e *Engine) buildLeg(ctx context.Context, call *types.CallRecord) Leg {
	leg := Leg{
		CallID:         call.ID,
		Role:           string(call.Role),
		CalledTime:     call.CalledTime,
		AgentExtension: call.AgentExtension,
		AgentName:      call.AgentName,
		CallerNumber:   call.CallerNumber,
		CalleeNumber:   call.CalleeNumber,
		CustomerNumber: call.CustomerNumber,
		History:        RenderHistory(call.History),
		RecordingURL:   call.RecordingURL,
	}
	if leg.RecordingURL == "" && e.recordings != nil {
		url, err := e.recordings.RecordingURL(ctx, call.ID)
		if err != nil {
			e.logger.Debug().Err(err).Str("call_id", call.ID).Msg("recording lookup failed")
		} else {
			leg.RecordingURL = url
		}
	}
	return leg
}
