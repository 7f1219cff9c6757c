package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dennisdiepolder/xferlink/internal/report"
)

// Publisher defines the interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Summary publishes a completed run's summary as JSON.
func Summary(ctx context.Context, p Publisher, topic string, summary report.Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling report summary: %w", err)
	}
	return p.Publish(ctx, topic, payload)
}
