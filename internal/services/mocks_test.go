package services

import (
	"context"

	"github.com/payper/backend/internal/payments"
	"github.com/stretchr/testify/mock"
)

type MockOrchestrator struct {
	mock.Mock
}

func (m *MockOrchestrator) Pay(ctx context.Context, submissionID string, draft payments.Draft, method payments.PaymentMethod) (*payments.Result, error) {
	args := m.Called(ctx, submissionID, draft, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Result), args.Error(1)
}
