package token

import (
	"encoding/json"
	"strings"
)

// Pair is the minimal credential projection shared between applications.
// Short JSON keys keep the encoded form small enough for a cookie.
type Pair struct {
	AccessToken  string `json:"a"`
	RefreshToken string `json:"r"`
}

// Complete reports whether both tokens are present.
func (p Pair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// EncodePair encodes a complete pair. Incomplete pairs are refused so a
// half-credential never reaches the shared cookie.
func EncodePair(p Pair) (string, error) {
	if !p.Complete() {
		return "", ErrIncompletePair
	}
	return Encode(p)
}

// DecodePair decodes and validates a pair produced by EncodePair.
func DecodePair(s string) (Pair, error) {
	p, err := Decode[Pair](strings.TrimSpace(s))
	if err != nil {
		return Pair{}, err
	}
	if !p.Complete() {
		return Pair{}, ErrIncompletePair
	}
	return p, nil
}

// storedPair matches the long-form keys used by persisted sessions.
type storedPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ExtractPair reports whether a stored JSON document carries a complete token pair.
func ExtractPair(value string) (Pair, bool) {
	if value == "" || value[0] != '{' {
		return Pair{}, false
	}
	var sp storedPair
	if err := json.Unmarshal([]byte(value), &sp); err != nil {
		return Pair{}, false
	}
	p := Pair{AccessToken: sp.AccessToken, RefreshToken: sp.RefreshToken}
	return p, p.Complete()
}

// MarshalStored renders a pair using the long-form persisted keys.
func MarshalStored(p Pair) string {
	data, _ := json.Marshal(storedPair{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken})
	return string(data)
}
