package notify

import (
	"context"

	"go.uber.org/zap"

	"salesdata/internal/sales"
)

// LogNotifier writes events to the log. It is used when no broker is set.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event sales.Event) error {
	n.logger.Info("dataset event",
		zap.String("event_type", event.Type),
		zap.String("run_id", event.RunID),
		zap.Uint64("seed", event.Seed),
		zap.Int("orders", event.Orders),
		zap.Int("sales", event.Sales),
		zap.Float64("total_revenue", event.TotalRevenue),
	)
	return nil
}
