package envelope

import "encoding/base64"

// Canonical checks that value is standard padded base64 and returns it unchanged.
//
// Client-wrapped keys, attestations and proofs cross the API as standard base64 of the raw bytes,
// exactly once. Anything else (URL alphabet, missing padding, double encoding that does not
// round-trip, whitespace) is rejected rather than guessed at.
func Canonical(value string) (string, error) {
	if value == "" {
		return "", ErrNotCanonical
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(value)
	if err != nil {
		return "", ErrNotCanonical
	}
	if base64.StdEncoding.EncodeToString(raw) != value {
		return "", ErrNotCanonical
	}
	return value, nil
}

// DecodeCanonical returns the raw bytes of a canonical base64 value.
func DecodeCanonical(value string) ([]byte, error) {
	if _, err := Canonical(value); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(value)
}
