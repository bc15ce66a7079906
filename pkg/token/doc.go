// Package token encodes small JSON payloads into transport-safe strings.
//
// Encoded values use base64url without padding, so the same string is legal as a
// cookie value and as a URL query parameter. The package is the codec behind the
// shared single-sign-on cookie and the cross-subdomain relay parameter.
//
// # Usage
//
//	import "github.com/dmitrymomot/ssokit/pkg/token"
//
//	s, err := token.EncodePair(token.Pair{AccessToken: "A", RefreshToken: "R"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pair, err := token.DecodePair(s)
//	if errors.Is(err, token.ErrInvalidToken) {
//	    // malformed input, treat as absent
//	}
//
// Generic helpers Encode and Decode work with any JSON-serializable type.
// ExtractPair inspects an arbitrary stored JSON document and reports whether it
// carries both tokens of a pair.
//
// Decoding never panics: malformed input yields ErrInvalidToken and a payload
// missing one of the tokens yields ErrIncompletePair.
package token
