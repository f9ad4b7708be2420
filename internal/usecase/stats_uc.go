package usecase

import (
	"context"

	"finance-tracker/internal/domain/ports/repository"
)

var _ StatsUseCase = (*statsUC)(nil)

// RevenueTotals holds completed payment amounts per currency for each period.
type RevenueTotals struct {
	Week  map[string]int64
	Month map[string]int64
	Year  map[string]int64
}

type StatsUseCase interface {
	Revenue(ctx context.Context) (*RevenueTotals, error)
}

type statsUC struct {
	payments repository.PaymentRepository
}

func NewStatsUseCase(payments repository.PaymentRepository) *statsUC {
	return &statsUC{payments: payments}
}

func (u *statsUC) Revenue(ctx context.Context) (*RevenueTotals, error) {
	week, err := u.payments.SumCompletedByPeriod(ctx, repository.NoTX, "week")
	if err != nil {
		return nil, err
	}
	month, err := u.payments.SumCompletedByPeriod(ctx, repository.NoTX, "month")
	if err != nil {
		return nil, err
	}
	year, err := u.payments.SumCompletedByPeriod(ctx, repository.NoTX, "year")
	if err != nil {
		return nil, err
	}
	return &RevenueTotals{Week: week, Month: month, Year: year}, nil
}
