package settlement

import (
	"context"

	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockExchangeRateGateway is a mock implementation of ExchangeRateGateway
type MockExchangeRateGateway struct {
	mock.Mock
}

func (m *MockExchangeRateGateway) GetExchangeRate(ctx context.Context, from, to string) (*domain.ExchangeRate, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExchangeRate), args.Error(1)
}

// MockVerificationAuthority is a mock implementation of VerificationAuthority
type MockVerificationAuthority struct {
	mock.Mock
}

func (m *MockVerificationAuthority) CreateVerificationRequest(ctx context.Context, req domain.VerificationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
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
