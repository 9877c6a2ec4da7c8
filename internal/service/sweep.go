package service

import (
	"context"

	"github.com/phantomlaunch/identity-server/internal/logger"
	"github.com/phantomlaunch/identity-server/internal/model"
)

var _ model.SweepSink = (*LogSweepSink)(nil)

// LogSweepSink records sweep candidates to the application log. A real
// sweeper replaces this with a queue or ledger writer.
type LogSweepSink struct {
	logger *logger.Logger
}

// NewLogSweepSink creates a sweep sink that only logs.
func NewLogSweepSink(logger *logger.Logger) *LogSweepSink {
	return &LogSweepSink{logger: logger}
}

func (s *LogSweepSink) RecordSweepCandidate(ctx context.Context, ticket model.SweepTicket) error {
	s.logger.Info("sweep candidate",
		"from_address", ticket.FromAddress,
		"to_address", ticket.ToAddress,
		"merged_user_id", ticket.MergedUserID,
		"primary_user_id", ticket.PrimaryUserID)
	return nil
}
