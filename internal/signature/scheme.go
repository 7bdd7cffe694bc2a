// Package signature implements the pluggable callback authentication
// schemes used by the supported payment processors: descriptor-driven
// canonicalization of an inbound field map followed by a keyed hash or
// HMAC, plus a degenerate basic-auth mode.
package signature

// Mode selects how authenticity is established.
type Mode int

const (
	// ModeSignature canonicalizes the field map and checks a digest.
	ModeSignature Mode = iota
	// ModeBasicAuth compares transport-level credentials against the
	// configured secret. No canonicalization step.
	ModeBasicAuth
)

// FieldSelection chooses which fields enter the canonical string.
type FieldSelection int

const (
	// SelectDeclared uses Fields in declaration order; missing fields
	// contribute an empty value.
	SelectDeclared FieldSelection = iota
	// SelectAllSorted uses every field except the signature field and
	// ExcludedFields, sorted lexicographically by key.
	SelectAllSorted
)

// JoinRule describes how selected values become the canonical string.
type JoinRule int

const (
	// JoinConcat concatenates the values directly; secret placement is
	// governed by SecretPlacement.
	JoinConcat JoinRule = iota
	// JoinKeysValues builds a keys block and a values block, each joined
	// by Separator, then joins the two blocks with Separator. Keyed-hash
	// schemes append the secret once after the blocks; HMAC schemes use
	// the secret only as the key.
	JoinKeysValues
)

// SecretPlacement applies to keyed-hash (non-HMAC) schemes only.
type SecretPlacement int

const (
	// SecretAppended appends the secret once after the canonical string.
	SecretAppended SecretPlacement = iota
	// SecretPrepended prepends the secret once.
	SecretPrepended
	// SecretInterleaved appends the secret after every field value, the
	// classic value1+secret+value2+secret+... construction.
	SecretInterleaved
)

// DigestMode distinguishes plain keyed hashes from true HMAC.
type DigestMode int

const (
	DigestKeyedHash DigestMode = iota
	DigestHMAC
)

// HashAlgorithm names the digest function.
type HashAlgorithm int

const (
	HashMD5 HashAlgorithm = iota
	HashSHA1
	HashSHA256
	HashSHA512
)

// SecretEncoding describes how the configured secret string becomes key or
// canonical-string material.
type SecretEncoding int

const (
	SecretRaw SecretEncoding = iota
	SecretURLDecoded
	SecretHexPacked
)

// OutputEncoding describes how the digest bytes are rendered for
// comparison against the provided signature.
type OutputEncoding int

const (
	EncodeHexLower OutputEncoding = iota
	EncodeHexUpper
	EncodeBase64
)

// EscapeRule is the per-field escaping applied before joining.
type EscapeRule int

const (
	EscapeNone EscapeRule = iota
	// EscapeBackslash escapes backslash and the separator character, as
	// colon-joined schemes require.
	EscapeBackslash
)

// Scheme is an immutable descriptor of one canonicalization+digest
// algorithm. Instances are declared once per processor profile and shared.
type Scheme struct {
	Mode Mode

	Selection      FieldSelection
	Fields         []string
	ExcludedFields []string

	Escape    EscapeRule
	Join      JoinRule
	Separator string

	Digest          DigestMode
	Hash            HashAlgorithm
	SecretEncoding  SecretEncoding
	SecretPlacement SecretPlacement
	Output          OutputEncoding

	// SignatureField is the field-map key holding the signature to check.
	// When HeaderName is set the transport layer copies the header value
	// into the field map under SignatureField before verification.
	SignatureField string
	HeaderName     string
}

// Field-map keys the transport layer uses to pass basic-auth credentials
// through to ModeBasicAuth verification.
const (
	BasicAuthUserField     = "authUsername"
	BasicAuthPasswordField = "authPassword"
)
