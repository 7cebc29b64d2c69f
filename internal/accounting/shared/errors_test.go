package shared

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSpecificErrorsKeepTheirKind(t *testing.T) {
	require.ErrorIs(t, ErrUnbalanced, ErrValidation)
	require.ErrorIs(t, ErrNotDraft, ErrInvalidState)
	require.ErrorIs(t, ErrStatusChanged, ErrConflict)
	require.Equal(t, ErrNotFound, Kind(ErrJournalNotFound))
	require.Nil(t, Kind(errors.New("boom")))
	require.Contains(t, ErrUnbalanced.Error(), "debits must equal credits")
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount(" 100.50 ")
	require.NoError(t, err)
	require.True(t, v.Equal(decimal.RequireFromString("100.5")))

	_, err = ParseAmount("1.005")
	require.ErrorIs(t, err, ErrValidation)

	_, err = ParseAmount("abc")
	require.ErrorIs(t, err, ErrValidation)

	v, err = ParseAmount("")
	require.NoError(t, err)
	require.True(t, v.IsZero())
}

func TestSumIsExact(t *testing.T) {
	total := Sum(decimal.RequireFromString("0.1"), decimal.RequireFromString("0.2"))
	require.True(t, total.Equal(decimal.RequireFromString("0.3")))
}
