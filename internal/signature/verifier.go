package signature

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"net/url"
	"sort"
	"strings"
)

// Verify evaluates scheme against an inbound field map and the configured
// secret. It is a pure function: identical inputs always yield identical
// results. A missing signature field, a secret that fails to decode, or a
// digest mismatch all return false; Verify never errors.
func Verify(scheme Scheme, fields map[string]string, secret string) bool {
	if scheme.Mode == ModeBasicAuth {
		return verifyBasicAuth(fields, secret)
	}

	provided, ok := fields[scheme.SignatureField]
	if !ok || provided == "" {
		return false
	}

	computed, ok := Compute(scheme, fields, secret)
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(provided), []byte(computed)) == 1
}

// Compute builds the canonical string and returns the encoded digest a
// well-formed notification would carry. The bool is false when the secret
// cannot be decoded per the scheme's SecretEncoding. Exposed so outbound
// request signing can reuse the exact canonicalization the verifier checks.
func Compute(scheme Scheme, fields map[string]string, secret string) (string, bool) {
	secretBytes, ok := decodeSecret(scheme.SecretEncoding, secret)
	if !ok {
		return "", false
	}

	keys, values := selectFields(scheme, fields)
	for i := range values {
		values[i] = escapeField(scheme, values[i])
	}
	for i := range keys {
		keys[i] = escapeField(scheme, keys[i])
	}

	canonical := canonicalize(scheme, keys, values, secretBytes)

	var digest []byte
	if scheme.Digest == DigestHMAC {
		mac := hmac.New(hashFactory(scheme.Hash), secretBytes)
		mac.Write([]byte(canonical))
		digest = mac.Sum(nil)
	} else {
		h := hashFactory(scheme.Hash)()
		h.Write([]byte(canonical))
		digest = h.Sum(nil)
	}

	return encodeDigest(scheme.Output, digest), true
}

func verifyBasicAuth(fields map[string]string, secret string) bool {
	// Configured secret is "username:password".
	user, pass, found := strings.Cut(secret, ":")
	if !found {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(fields[BasicAuthUserField]), []byte(user)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(fields[BasicAuthPasswordField]), []byte(pass)) == 1
	return userOK && passOK
}

func selectFields(scheme Scheme, fields map[string]string) (keys, values []string) {
	switch scheme.Selection {
	case SelectAllSorted:
		excluded := map[string]struct{}{scheme.SignatureField: {}}
		for _, k := range scheme.ExcludedFields {
			excluded[k] = struct{}{}
		}
		for k := range fields {
			if _, skip := excluded[k]; skip {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			values = append(values, fields[k])
		}
	default:
		for _, k := range scheme.Fields {
			keys = append(keys, k)
			values = append(values, fields[k])
		}
	}
	return keys, values
}

func escapeField(scheme Scheme, v string) string {
	if scheme.Escape != EscapeBackslash {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	if scheme.Separator != "" {
		v = strings.ReplaceAll(v, scheme.Separator, `\`+scheme.Separator)
	}
	return v
}

func canonicalize(scheme Scheme, keys, values []string, secret []byte) string {
	var b strings.Builder

	if scheme.Join == JoinKeysValues {
		b.WriteString(strings.Join(keys, scheme.Separator))
		b.WriteString(scheme.Separator)
		b.WriteString(strings.Join(values, scheme.Separator))
		if scheme.Digest == DigestKeyedHash {
			b.Write(secret)
		}
		return b.String()
	}

	// JoinConcat. HMAC schemes never mix the secret into the data.
	if scheme.Digest == DigestHMAC {
		for _, v := range values {
			b.WriteString(v)
		}
		return b.String()
	}

	switch scheme.SecretPlacement {
	case SecretInterleaved:
		for _, v := range values {
			b.WriteString(v)
			b.Write(secret)
		}
	case SecretPrepended:
		b.Write(secret)
		for _, v := range values {
			b.WriteString(v)
		}
	default:
		for _, v := range values {
			b.WriteString(v)
		}
		b.Write(secret)
	}
	return b.String()
}

func decodeSecret(enc SecretEncoding, secret string) ([]byte, bool) {
	switch enc {
	case SecretURLDecoded:
		decoded, err := url.QueryUnescape(secret)
		if err != nil {
			return nil, false
		}
		return []byte(decoded), true
	case SecretHexPacked:
		decoded, err := hex.DecodeString(secret)
		if err != nil {
			return nil, false
		}
		return decoded, true
	default:
		return []byte(secret), true
	}
}

func hashFactory(alg HashAlgorithm) func() hash.Hash {
	switch alg {
	case HashMD5:
		return md5.New
	case HashSHA1:
		return sha1.New
	case HashSHA512:
		return sha512.New
	default:
		return sha256.New
	}
}

func encodeDigest(enc OutputEncoding, digest []byte) string {
	switch enc {
	case EncodeHexUpper:
		return strings.ToUpper(hex.EncodeToString(digest))
	case EncodeBase64:
		return base64.StdEncoding.EncodeToString(digest)
	default:
		return hex.EncodeToString(digest)
	}
}
