package firestore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Page tokens are opaque to clients: a base64url-encoded JSON snapshot of the
// cursor position. Decoding a token from a different listing shape fails,
// which is the desired behavior for tampered or stale tokens.

func encodePageToken(token any) (string, error) {
	data, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("encode page token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodePageToken(encoded string, out any) error {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode page token: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode page token json: %w", err)
	}
	return nil
}
