package translate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/callback-engine/internal/models"
)

var testTable = Table{
	"AUTHORISED": models.StatusAuthorized,
	"REFUSED":    models.StatusDeclined,
	"CANCELLED":  models.StatusCancelled,
}

func TestTableIsTotalOverDeclaredVocabulary(t *testing.T) {
	for code, want := range testTable {
		got, err := testTable.Translate(code)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestTableRejectsUnknownCode(t *testing.T) {
	_, err := testTable.Translate("PENDING_REVIEW")

	var unsupported *UnsupportedStatusError
	require.True(t, errors.As(err, &unsupported))
	require.Equal(t, "PENDING_REVIEW", unsupported.Raw)
}

func TestTableNeverDefaultsEmptyCode(t *testing.T) {
	_, err := testTable.Translate("")
	require.Error(t, err)
}

func TestTranslateIntUsesDecimalStrings(t *testing.T) {
	table := Table{
		"5": models.StatusAuthorized,
		"9": models.StatusAcquired,
	}

	got, err := table.translateInt(9)
	require.NoError(t, err)
	require.Equal(t, models.StatusAcquired, got)

	_, err = table.translateInt(42)
	require.Error(t, err)
}

func TestEventTableDisambiguatesWithSuccessFlag(t *testing.T) {
	table := EventTable{
		"CAPTURE": {OnSuccess: models.StatusAcquired, OnFailure: models.StatusAcquireFailed},
	}

	got, err := table.Translate("CAPTURE", true)
	require.NoError(t, err)
	require.Equal(t, models.StatusAcquired, got)

	got, err = table.Translate("CAPTURE", false)
	require.NoError(t, err)
	require.Equal(t, models.StatusAcquireFailed, got)
}

func TestEventTableRejectsUnknownEventCode(t *testing.T) {
	table := EventTable{
		"CAPTURE": {OnSuccess: models.StatusAcquired, OnFailure: models.StatusAcquireFailed},
	}

	_, err := table.Translate("CHARGEBACK", true)

	var unsupported *UnsupportedStatusError
	require.True(t, errors.As(err, &unsupported))
	require.Equal(t, "CHARGEBACK", unsupported.Raw)
}
