package postgres

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name:    "no rows becomes record not found",
			err:     sql.ErrNoRows,
			wantErr: domain.ErrRecordNotFound,
		},
		{
			name:    "unique violation becomes duplicate record",
			err:     &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"},
			wantErr: domain.ErrDuplicateRecord,
		},
		{
			name: "other errors are wrapped as is",
			err:  errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translate(tt.err, "failed to get account %s", "A")

			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to get account A")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.ErrorIs(t, err, tt.err)
				assert.NotErrorIs(t, err, domain.ErrRecordNotFound)
			}
		})
	}
}

func TestParseNullDecimal(t *testing.T) {
	value, err := parseNullDecimal(sql.NullString{}, "out_amount")
	require.NoError(t, err)
	assert.False(t, value.Valid)
	assert.Nil(t, nullDecimal(value))

	value, err = parseNullDecimal(sql.NullString{String: "108.5000", Valid: true}, "out_amount")
	require.NoError(t, err)
	assert.True(t, value.Valid)
	assert.True(t, value.Decimal.Equal(decimal.RequireFromString("108.5")))
	assert.Equal(t, "108.5", nullDecimal(value))

	_, err = parseNullDecimal(sql.NullString{String: "abc", Valid: true}, "out_amount")
	assert.ErrorContains(t, err, "failed to parse out_amount")
}

type fakeResult struct {
	affected int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

func TestExpectOneRow(t *testing.T) {
	assert.NoError(t, expectOneRow(fakeResult{affected: 1}, "account %s", "A"))

	err := expectOneRow(fakeResult{affected: 0}, "account %s", "A")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.Contains(t, err.Error(), "account A")
}

func TestMigrationVersions(t *testing.T) {
	versions, err := MigrationVersions()

	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init", "0002_otc", "0003_option_pending_exercise"}, versions)
}
