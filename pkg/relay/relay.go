// Package relay hands a token pair from one independently hosted application
// to another through a one-shot URL query parameter.
//
// The receiving side calls Consume once on page load; the parameter is removed
// from the returned URL so it never lingers in history or referrers.
package relay

import (
	"net/url"

	"github.com/dmitrymomot/ssokit/pkg/token"
)

// DefaultParam is the query parameter shared by all consuming applications.
const DefaultParam = "sso"

// Attach returns target with the encoded pair added under param.
func Attach(target string, param string, p token.Pair) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	encoded, err := token.EncodePair(p)
	if err != nil {
		return "", err
	}
	if param == "" {
		param = DefaultParam
	}

	q := u.Query()
	q.Set(param, encoded)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Consume extracts the relayed pair from u. The returned URL is a copy of u
// without the parameter. When the parameter is missing or malformed ok is
// false, but the parameter is still stripped.
func Consume(u *url.URL, param string) (p token.Pair, stripped *url.URL, ok bool) {
	if u == nil {
		return token.Pair{}, nil, false
	}
	if param == "" {
		param = DefaultParam
	}

	cp := *u
	q := cp.Query()
	raw := q.Get(param)
	if !q.Has(param) {
		return token.Pair{}, &cp, false
	}

	q.Del(param)
	cp.RawQuery = q.Encode()

	pair, err := token.DecodePair(raw)
	if err != nil {
		return token.Pair{}, &cp, false
	}
	return pair, &cp, true
}
