package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SweepTicket records that value held at a merged phantom wallet is now
// attributable to the primary user and should eventually be consolidated.
type SweepTicket struct {
	FromAddress   string
	ToAddress     string
	MergedUserID  uuid.UUID
	PrimaryUserID uuid.UUID
	At            time.Time
}

// SweepSink receives sweep candidates emitted by merges. Moving the funds
// is a downstream financial operation; the identity core only reports
// both addresses.
type SweepSink interface {
	RecordSweepCandidate(ctx context.Context, ticket SweepTicket) error
}
