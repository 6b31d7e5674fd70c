package otc

import (
	"context"

	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/simaogato/settlement-backend/internal/usecase/settlement"
	"github.com/stretchr/testify/mock"
)

// MockBank is a mock implementation of Bank
type MockBank struct {
	mock.Mock
}

func (m *MockBank) AccountNumberForClient(ctx context.Context, clientID int64) (string, error) {
	args := m.Called(ctx, clientID)
	return args.String(0), args.Error(1)
}

func (m *MockBank) ExecuteSystemPayment(ctx context.Context, input settlement.SystemPaymentInput) (*domain.Payment, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockBank) ExecuteSystemPaymentWithin(ctx context.Context, repos domain.Repositories, input settlement.SystemPaymentInput) (*domain.Payment, error) {
	args := m.Called(ctx, repos, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

// MockIdentityService is a mock implementation of IdentityService
type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) GetClientByID(ctx context.Context, id int64) (*domain.Person, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Person), args.Error(1)
}

func (m *MockIdentityService) GetEmployeeByID(ctx context.Context, id int64) (*domain.Person, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Person), args.Error(1)
}
