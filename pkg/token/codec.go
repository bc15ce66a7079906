package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// Encode JSON-encodes the payload and returns it as unpadded base64url.
func Encode[T any](payload T) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode reverses Encode. Any decoding failure is reported as ErrInvalidToken.
func Decode[T any](s string) (T, error) {
	var payload T
	if s == "" {
		return payload, ErrInvalidToken
	}

	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return payload, errors.Join(ErrInvalidToken, err)
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, errors.Join(ErrInvalidToken, err)
	}

	return payload, nil
}
