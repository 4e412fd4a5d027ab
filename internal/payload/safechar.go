package payload

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// SafeCharMap is the process-wide mapping between reserved placeholder byte
// sequences and the three literal characters that commonly get mangled by
// intermediate encoders, proxies, or tamper chains: space, "$", and "@".
// A payload substitutes the placeholders in place of the literals before
// the request is sent; CharRestorer (Restore) reverses the substitution on
// the value extracted from the response.
type SafeCharMap struct {
	Space  string
	Dollar string
	At     string
}

// NewSafeCharMap generates a fresh SafeCharMap with random placeholder
// tokens, unique for the lifetime of the session.
func NewSafeCharMap() (SafeCharMap, error) {
	space, err := randomPlaceholder("sc_sp_")
	if err != nil {
		return SafeCharMap{}, fmt.Errorf("payload: generate space placeholder: %w", err)
	}
	dollar, err := randomPlaceholder("sc_dl_")
	if err != nil {
		return SafeCharMap{}, fmt.Errorf("payload: generate dollar placeholder: %w", err)
	}
	at, err := randomPlaceholder("sc_at_")
	if err != nil {
		return SafeCharMap{}, fmt.Errorf("payload: generate at placeholder: %w", err)
	}
	return SafeCharMap{Space: space, Dollar: dollar, At: at}, nil
}

func randomPlaceholder(prefix string) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(buf), nil
}

// Encode substitutes the three reserved literals in s with their
// placeholder sequences, so the result survives tamper chains and
// intermediate encoders that might otherwise corrupt " ", "$", or "@".
func (m SafeCharMap) Encode(s string) string {
	r := strings.NewReplacer(
		" ", m.Space,
		"$", m.Dollar,
		"@", m.At,
	)
	return r.Replace(s)
}

// Restore is the CharRestorer (C7): it reverses Encode, replacing each
// placeholder sequence with its literal character. Applied exactly once
// per assembled scalar, after HTML-unescape and before caching.
func (m SafeCharMap) Restore(s string) string {
	if s == "" {
		return s
	}
	r := strings.NewReplacer(
		m.Space, " ",
		m.Dollar, "$",
		m.At, "@",
	)
	return r.Replace(s)
}
