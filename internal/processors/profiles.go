// Package processors declares the built-in processor profiles: the pairing
// of a signature scheme with a status vocabulary and the field names a
// processor uses on the wire. A profile plus configuration (secret,
// reconciliation budget, transport closures) fully describes one gateway;
// there is no per-gateway subclassing.
package processors

import (
	"fmt"
	"time"

	"github.com/akylbek/payment-system/callback-engine/internal/interfaces"
	"github.com/akylbek/payment-system/callback-engine/internal/models"
	"github.com/akylbek/payment-system/callback-engine/internal/signature"
	"github.com/akylbek/payment-system/callback-engine/internal/translate"
)

// Profile is the static, shareable part of a processor definition.
type Profile struct {
	Name   string
	Scheme signature.Scheme

	// Statuses translates the one-input status field; Events translates
	// event code + success flag for processors whose event codes are
	// ambiguous without it. A notification carrying EventField is
	// translated through Events, otherwise through Statuses.
	Statuses translate.Table
	Events   translate.EventTable

	ReferenceField   string
	TransactionField string
	StatusField      string
	EventField       string
	SuccessField     string

	// ReconcileOnly marks profiles whose notification carries only a
	// correlation id; the status must be queried from the processor.
	ReconcileOnly bool
}

// Processor is a profile bound to its runtime configuration.
type Processor struct {
	Profile              Profile
	Secret               string
	ReconcileMaxAttempts int
	ReconcileDelay       time.Duration
	Query                interfaces.QueryFunc
	Perform              interfaces.PerformFunc
}

var redirectStatuses = translate.Table{
	"AUTHORISED": models.StatusAuthorized,
	"REFUSED":    models.StatusDeclined,
	"CANCELLED":  models.StatusCancelled,
	"ERROR":      models.StatusDeclined,
	"PENDING":    models.StatusPendingAuthorization,
}

var notificationEvents = translate.EventTable{
	"AUTHORISATION": {OnSuccess: models.StatusAuthorized, OnFailure: models.StatusDeclined},
	"CAPTURE":       {OnSuccess: models.StatusAcquired, OnFailure: models.StatusAcquireFailed},
	"REFUND":        {OnSuccess: models.StatusRefunded, OnFailure: models.StatusRefundFailed},
	"CANCELLATION":  {OnSuccess: models.StatusCancelled, OnFailure: models.StatusAuthorized},
}

var numericStatuses = translate.Table{
	"1": models.StatusCancelled,
	"2": models.StatusDeclined,
	"5": models.StatusAuthorized,
	"9": models.StatusAcquired,
}

var settlementStatuses = translate.Table{
	"authorized": models.StatusAuthorized,
	"settled":    models.StatusAcquired,
	"declined":   models.StatusDeclined,
	"cancelled":  models.StatusCancelled,
	"refunded":   models.StatusRefunded,
}

var nvpStatuses = translate.Table{
	"AUTHORIZED": models.StatusAuthorized,
	"COMPLETED":  models.StatusAcquired,
	"FAILED":     models.StatusDeclined,
	"CANCELED":   models.StatusCancelled,
	"REFUNDED":   models.StatusRefunded,
}

var invoiceStatuses = translate.Table{
	"authorized": models.StatusAuthorized,
	"paid":       models.StatusAcquired,
	"failed":     models.StatusDeclined,
	"expired":    models.StatusCancelled,
	"refunded":   models.StatusRefunded,
}

// profiles is the registry of built-in canonicalization/digest pairings.
var profiles = map[string]Profile{
	// Classic redirect signing: declared field order, the secret appended
	// after every value, plain SHA-1 over the concatenation.
	"redirect-classic": {
		Name: "redirect-classic",
		Scheme: signature.Scheme{
			Selection:       signature.SelectDeclared,
			Fields:          []string{"authResult", "pspReference", "merchantReference"},
			Join:            signature.JoinConcat,
			Digest:          signature.DigestKeyedHash,
			Hash:            signature.HashSHA1,
			SecretPlacement: signature.SecretInterleaved,
			Output:          signature.EncodeHexLower,
			SignatureField:  "merchantSig",
		},
		Statuses:         redirectStatuses,
		Events:           notificationEvents,
		ReferenceField:   "merchantReference",
		TransactionField: "pspReference",
		StatusField:      "authResult",
		EventField:       "eventCode",
		SuccessField:     "success",
	},
	// Lexicographically sorted keys-block/values-block joined by colons,
	// HMAC-SHA256 with a hex-packed key, base64 output.
	"sorted-hmac": {
		Name: "sorted-hmac",
		Scheme: signature.Scheme{
			Selection:      signature.SelectAllSorted,
			Escape:         signature.EscapeBackslash,
			Join:           signature.JoinKeysValues,
			Separator:      ":",
			Digest:         signature.DigestHMAC,
			Hash:           signature.HashSHA256,
			SecretEncoding: signature.SecretHexPacked,
			Output:         signature.EncodeBase64,
			SignatureField: "hmacSignature",
		},
		Statuses:         redirectStatuses,
		Events:           notificationEvents,
		ReferenceField:   "merchantReference",
		TransactionField: "pspReference",
		StatusField:      "authResult",
		EventField:       "eventCode",
		SuccessField:     "success",
	},
	// Name/value-pair style: declared fields concatenated, secret appended
	// once, MD5 hex.
	"nvp-md5": {
		Name: "nvp-md5",
		Scheme: signature.Scheme{
			Selection:       signature.SelectDeclared,
			Fields:          []string{"transactionId", "referenceId", "amount", "currency", "status"},
			Join:            signature.JoinConcat,
			Digest:          signature.DigestKeyedHash,
			Hash:            signature.HashMD5,
			SecretPlacement: signature.SecretAppended,
			Output:          signature.EncodeHexLower,
			SignatureField:  "hash",
		},
		Statuses:         numericStatuses,
		ReferenceField:   "referenceId",
		TransactionField: "transactionId",
		StatusField:      "status",
	},
	// Signature delivered in a transport header; the notification body
	// carries only the correlation id, so the status is reconciled from
	// the processor's query API.
	"header-hmac": {
		Name: "header-hmac",
		Scheme: signature.Scheme{
			Selection:      signature.SelectAllSorted,
			Join:           signature.JoinKeysValues,
			Separator:      ":",
			Digest:         signature.DigestHMAC,
			Hash:           signature.HashSHA512,
			Output:         signature.EncodeHexLower,
			SignatureField: "signature",
			HeaderName:     "X-Signature",
		},
		Statuses:         settlementStatuses,
		ReferenceField:   "referenceId",
		TransactionField: "transactionId",
		StatusField:      "status",
		ReconcileOnly:    true,
	},
	// Query-string signing with a URL-encoded shared secret and upper-case
	// hex output.
	"query-hmac-upper": {
		Name: "query-hmac-upper",
		Scheme: signature.Scheme{
			Selection:      signature.SelectDeclared,
			Fields:         []string{"referenceId", "transactionId", "status", "amount"},
			Join:           signature.JoinConcat,
			Digest:         signature.DigestHMAC,
			Hash:           signature.HashSHA256,
			SecretEncoding: signature.SecretURLDecoded,
			Output:         signature.EncodeHexUpper,
			SignatureField: "signature",
		},
		Statuses:         nvpStatuses,
		ReferenceField:   "referenceId",
		TransactionField: "transactionId",
		StatusField:      "status",
	},
	// Degenerate scheme: transport-level basic auth, no canonicalization.
	"basic-auth": {
		Name: "basic-auth",
		Scheme: signature.Scheme{
			Mode: signature.ModeBasicAuth,
		},
		Statuses:         invoiceStatuses,
		ReferenceField:   "referenceId",
		TransactionField: "transactionId",
		StatusField:      "status",
	},
}

// Resolve returns the named built-in profile.
func Resolve(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown processor profile %q", name)
	}
	return p, nil
}

// ProfileNames lists the built-in profiles, for startup validation errors.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	return names
}
