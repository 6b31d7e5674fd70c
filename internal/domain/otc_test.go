package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOtcOffer_CanRespond(t *testing.T) {
	offer := &OtcOffer{BuyerID: 1, SellerID: 2, LastModifiedByID: 1}

	assert.False(t, offer.CanRespond(1), "last modifier cannot respond")
	assert.True(t, offer.CanRespond(2))
	assert.False(t, offer.CanRespond(3), "outsider cannot respond")
	assert.Equal(t, int64(2), offer.Counterparty(1))
	assert.Equal(t, int64(1), offer.Counterparty(2))
}

func TestOtcOffer_Validate(t *testing.T) {
	valid := OtcOffer{
		BuyerID:        1,
		SellerID:       2,
		Amount:         10,
		PricePerStock:  decimal.NewFromInt(100),
		Premium:        decimal.NewFromInt(5),
		SettlementDate: time.Now().AddDate(0, 1, 0),
	}

	tests := []struct {
		name   string
		mutate func(o *OtcOffer)
		errMsg string
	}{
		{name: "Valid offer should pass", mutate: func(o *OtcOffer) {}},
		{name: "Zero amount should fail", mutate: func(o *OtcOffer) { o.Amount = 0 }, errMsg: "offer amount must be positive"},
		{name: "Zero price should fail", mutate: func(o *OtcOffer) { o.PricePerStock = decimal.Zero }, errMsg: "offer price per stock must be positive"},
		{name: "Negative premium should fail", mutate: func(o *OtcOffer) { o.Premium = decimal.NewFromInt(-1) }, errMsg: "offer premium cannot be negative"},
		{name: "Missing settlement date should fail", mutate: func(o *OtcOffer) { o.SettlementDate = time.Time{} }, errMsg: "offer settlement date is required"},
		{name: "Self dealing should fail", mutate: func(o *OtcOffer) { o.SellerID = o.BuyerID }, errMsg: "offer buyer and seller must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offer := valid
			tt.mutate(&offer)
			err := offer.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.errMsg)
				assert.ErrorIs(t, err, ErrInvalidOffer)
			}
		})
	}
}

func TestOtcOption_IsExpired(t *testing.T) {
	now := time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)

	assert.False(t, (&OtcOption{SettlementDate: now}).IsExpired(now), "settlement day itself is still valid")
	assert.False(t, (&OtcOption{SettlementDate: now.AddDate(0, 0, 1)}).IsExpired(now))
	assert.True(t, (&OtcOption{SettlementDate: now.AddDate(0, 0, -1)}).IsExpired(now))
}

func TestOtcOption_TotalPrice(t *testing.T) {
	option := &OtcOption{StrikePrice: decimal.RequireFromString("12.5"), Amount: 4}
	assert.True(t, option.TotalPrice().Equal(decimal.NewFromInt(50)))
}

func TestOtcOption_IsPendingExercise(t *testing.T) {
	tp := uuid.New()
	option := &OtcOption{}
	assert.False(t, option.IsPendingExercise(tp))

	option.PendingExercise = uuid.NullUUID{UUID: tp, Valid: true}
	assert.True(t, option.IsPendingExercise(tp))
	assert.False(t, option.IsPendingExercise(uuid.New()))
}

func TestAccount_Validate(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		wantErr bool
	}{
		{name: "Client account should pass", account: Account{Number: "A", OwnerType: OwnerTypeClient, Currency: "RSD", Balance: decimal.NewFromInt(10)}},
		{name: "Bank account may be negative", account: Account{Number: "B", OwnerType: OwnerTypeBank, Currency: "RSD", Balance: decimal.NewFromInt(-10)}},
		{name: "Client account cannot be negative", account: Account{Number: "A", OwnerType: OwnerTypeClient, Currency: "RSD", Balance: decimal.NewFromInt(-1)}, wantErr: true},
		{name: "Missing currency should fail", account: Account{Number: "A", OwnerType: OwnerTypeClient}, wantErr: true},
		{name: "Unknown owner type should fail", account: Account{Number: "A", OwnerType: "TRUST", Currency: "RSD"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
