package source

import (
	"context"
	"time"

	"github.com/dennisdiepolder/xferlink/internal/types"
)

// CallSource returns the three raw call collections for a time window. The
// engine treats a failed or empty stream as "no candidates"; only all three
// failing aborts a report.
type CallSource interface {
	CampaignCalls(ctx context.Context, from, to time.Time) ([]*types.CallRecord, error)
	OutboundCalls(ctx context.Context, from, to time.Time) ([]*types.CallRecord, error)
	InboundCalls(ctx context.Context, from, to time.Time) ([]*types.CallRecord, error)
}

// RecordingLookup optionally enriches report rows with a recording URL.
// Correlation never depends on it.
type RecordingLookup interface {
	RecordingURL(ctx context.Context, callID string) (string, error)
}

// NoopSource returns empty collections; used when no backend is configured.
type NoopSource struct{}

func NewNoopSource() *NoopSource { return &NoopSource{} }

func (s *NoopSource) CampaignCalls(_ context.Context, _, _ time.Time) ([]*types.CallRecord, error) {
	return nil, nil
}
func (s *NoopSource) OutboundCalls(_ context.Context, _, _ time.Time) ([]*types.CallRecord, error) {
	return nil, nil
}
func (s *NoopSource) InboundCalls(_ context.Context, _, _ time.Time) ([]*types.CallRecord, error) {
	return nil, nil
}
