/**
 * @description
 * This file implements verification of Stripe webhook signatures. Stripe signs
 * each delivery with the endpoint secret using the v1 scheme: the header
 * carries a unix timestamp and one or more HMAC-SHA256 signatures computed
 * over "<timestamp>.<raw body>".
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256, encoding/hex: For signature validation.
 * - encoding/json: For decoding the event envelope.
 */
package stripeclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSignature is returned when a webhook delivery fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// DefaultTolerance is the maximum accepted age of a signed delivery.
const DefaultTolerance = 5 * time.Minute

// Event is the envelope Stripe wraps every webhook payload in.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
	Created int64 `json:"created"`
}

// ConstructEvent verifies the Stripe-Signature header against the raw request
// body and, on success, decodes the event envelope. now is injectable for tests.
func ConstructEvent(payload []byte, sigHeader, secret string, now time.Time) (*Event, error) {
	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	// Reject replays of old deliveries.
	age := now.Sub(time.Unix(timestamp, 0))
	if age > DefaultTolerance || age < -DefaultTolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	valid := false
	for _, sig := range signatures {
		decoded, decErr := hex.DecodeString(sig)
		if decErr != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}
	return &event, nil
}

// parseSignatureHeader splits "t=1700000000,v1=abc,v1=def" into its parts.
func parseSignatureHeader(header string) (int64, []string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			ts, err := strconv.ParseInt(pair[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, pair[1])
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed signature header", ErrInvalidSignature)
	}
	return timestamp, signatures, nil
}
