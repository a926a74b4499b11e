package service

import (
	"context"

	"github.com/frostu8/ring-channel/internal/domain"
)

// Notifier is told about completed settlements and closed periods after they
// commit. Delivery is best effort and never fails the operation.
type Notifier interface {
	SettlementCompleted(ctx context.Context, result *domain.SettlementResult)
	PeriodClosed(ctx context.Context, result *domain.PeriodCloseResult)
}

type nopNotifier struct{}

func (nopNotifier) SettlementCompleted(context.Context, *domain.SettlementResult) {}

func (nopNotifier) PeriodClosed(context.Context, *domain.PeriodCloseResult) {}

// NopNotifier discards every notification.
func NopNotifier() Notifier {
	return nopNotifier{}
}
