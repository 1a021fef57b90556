package stripeclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

const testWebhookSecret = "whsec_test_secret"

func signPayload(t *testing.T, payload []byte, timestamp int64, secret string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestConstructEvent_ValidSignature(t *testing.T) {
	now := time.Date(2026, time.August, 14, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}},"created":1765000000}`)
	ts := now.Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload(t, payload, ts, testWebhookSecret))

	event, err := ConstructEvent(payload, header, testWebhookSecret, now)
	if err != nil {
		t.Fatalf("ConstructEvent returned error: %v", err)
	}
	if event.ID != "evt_1" {
		t.Fatalf("expected event id evt_1, got %q", event.ID)
	}
	if event.Type != "checkout.session.completed" {
		t.Fatalf("unexpected event type %q", event.Type)
	}
	if string(event.Data.Object) != `{"id":"cs_1"}` {
		t.Fatalf("unexpected data object %s", event.Data.Object)
	}
}

func TestConstructEvent_AcceptsAnyValidV1Signature(t *testing.T) {
	now := time.Date(2026, time.August, 14, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_2","type":"invoice.payment_succeeded"}`)
	ts := now.Unix()
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, "deadbeef", signPayload(t, payload, ts, testWebhookSecret))

	if _, err := ConstructEvent(payload, header, testWebhookSecret, now); err != nil {
		t.Fatalf("ConstructEvent returned error: %v", err)
	}
}

func TestConstructEvent_WrongSecret(t *testing.T) {
	now := time.Date(2026, time.August, 14, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_3"}`)
	ts := now.Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload(t, payload, ts, "whsec_other"))

	if _, err := ConstructEvent(payload, header, testWebhookSecret, now); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestConstructEvent_TamperedPayload(t *testing.T) {
	now := time.Date(2026, time.August, 14, 12, 0, 0, 0, time.UTC)
	ts := now.Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload(t, []byte(`{"id":"evt_4"}`), ts, testWebhookSecret))

	if _, err := ConstructEvent([]byte(`{"id":"evt_forged"}`), header, testWebhookSecret, now); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestConstructEvent_StaleTimestamp(t *testing.T) {
	now := time.Date(2026, time.August, 14, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_5"}`)
	ts := now.Add(-DefaultTolerance - time.Second).Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload(t, payload, ts, testWebhookSecret))

	if _, err := ConstructEvent(payload, header, testWebhookSecret, now); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for stale delivery, got %v", err)
	}
}

func TestConstructEvent_MalformedHeader(t *testing.T) {
	now := time.Date(2026, time.August, 14, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_6"}`)

	tests := []struct {
		name   string
		header string
	}{
		{name: "empty header", header: ""},
		{name: "no signatures", header: fmt.Sprintf("t=%d", now.Unix())},
		{name: "no timestamp", header: "v1=deadbeef"},
		{name: "bad timestamp", header: "t=notanumber,v1=deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ConstructEvent(payload, tt.header, testWebhookSecret, now); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}
