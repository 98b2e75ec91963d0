package payments

import (
	"context"

	"github.com/payper/backend/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Create(ctx context.Context, draft Draft) (*models.Transaction, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockLedger) Update(ctx context.Context, id string, patch Patch) (*models.Transaction, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockLedger) Get(ctx context.Context, id string) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) RequestIntent(ctx context.Context, req IntentRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) Confirm(ctx context.Context, clientSecret string, method PaymentMethod) (ConfirmResult, error) {
	args := m.Called(ctx, clientSecret, method)
	return args.Get(0).(ConfirmResult), args.Error(1)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Enqueue(ctx context.Context, tx *models.Transaction) {
	m.Called(ctx, tx)
}
