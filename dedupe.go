package notifybox

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Identity lists the fields that make two deliveries the same logical delivery.
type Identity struct {
	OrganizationID string
	OrderID        string
	Type           Type
	Trigger        string
	Channel        Channel
	// Salt distinguishes audiences sharing the same content, e.g. "buyer" and "admin".
	Salt string
	// Payload holds the recipient and rendered content as JSON.
	Payload json.RawMessage
}

// DedupeKey returns the sha256 hex digest of the canonical identity.
//
// Object keys are serialized in sorted order at every depth, so payloads that
// differ only in field order produce the same key.
func DedupeKey(identity Identity) (string, error) {
	payload, err := canonicalJSON(identity.Payload)
	if err != nil {
		return "", err
	}

	doc := map[string]any{
		"organization_id": identity.OrganizationID,
		"order_id":        identity.OrderID,
		"type":            identity.Type,
		"trigger":         identity.Trigger,
		"channel":         identity.Channel,
		"salt":            identity.Salt,
		"payload":         payload,
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("notifybox: encode identity: %w", err)
	}
	sum := sha256.Sum256(encoded)

	return hex.EncodeToString(sum[:]), nil
}

func canonicalJSON(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	return value, nil
}
