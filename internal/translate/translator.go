// Package translate maps processor-native status vocabularies onto the
// canonical payment lifecycle. Every table is total over its declared
// vocabulary: a code outside it is an UnsupportedStatusError, never a
// guessed default.
package translate

import (
	"fmt"
	"strconv"

	"github.com/akylbek/payment-system/callback-engine/internal/models"
)

// UnsupportedStatusError carries the raw processor value for vocabulary
// table maintenance.
type UnsupportedStatusError struct {
	Raw string
}

func (e *UnsupportedStatusError) Error() string {
	return fmt.Sprintf("unsupported processor status %q", e.Raw)
}

// Table is a finite one-input mapping from native status codes to
// canonical statuses.
type Table map[string]models.PaymentStatus

// Translate resolves a native code. Lookup is exact; numeric vocabularies
// declare their codes as decimal strings.
func (t Table) Translate(code string) (models.PaymentStatus, error) {
	status, ok := t[code]
	if !ok {
		return "", &UnsupportedStatusError{Raw: code}
	}
	return status, nil
}

// translateInt resolves a numeric native code.
func (t Table) translateInt(code int) (models.PaymentStatus, error) {
	return t.Translate(strconv.Itoa(code))
}

// EventOutcome is one row of a two-input table: the canonical statuses a
// single event code resolves to depending on the processor's success flag.
// Processors that reuse one event code for both "capture succeeded" and
// "capture failed" need the flag to disambiguate.
type EventOutcome struct {
	OnSuccess models.PaymentStatus
	OnFailure models.PaymentStatus
}

// EventTable is a finite two-input mapping keyed by event code.
type EventTable map[string]EventOutcome

// Translate resolves an event code together with its success flag.
func (t EventTable) Translate(code string, success bool) (models.PaymentStatus, error) {
	outcome, ok := t[code]
	if !ok {
		return "", &UnsupportedStatusError{Raw: code}
	}
	if success {
		return outcome.OnSuccess, nil
	}
	return outcome.OnFailure, nil
}
