package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/tourbook-backend/pkg/config"
)

func TestNewClientValidation(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.StripeConfig
		wantErr bool
	}{
		{name: "defaults to test", cfg: config.StripeConfig{Secret: "whsec_abc"}},
		{name: "live with live key", cfg: config.StripeConfig{Secret: "whsec_abc", Env: "LIVE", APIKey: "rk_live_123"}},
		{name: "missing secret", cfg: config.StripeConfig{Env: "test"}, wantErr: true},
		{name: "malformed secret", cfg: config.StripeConfig{Secret: "sk_test_abc"}, wantErr: true},
		{name: "unknown env", cfg: config.StripeConfig{Secret: "whsec_abc", Env: "staging"}, wantErr: true},
		{name: "live key in test", cfg: config.StripeConfig{Secret: "whsec_abc", APIKey: "sk_live_123"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClient(context.Background(), tc.cfg, nil)
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestVerifyEvent(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		Secret:           "whsec_test",
		WebhookTolerance: time.Minute,
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.Environment() != testEnv {
		t.Fatalf("expected test env, got %q", client.Environment())
	}

	payload := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","api_version":%q,"data":{"object":{"id":"pi_1","object":"payment_intent"}}}`, stripe.APIVersion))

	event, err := client.VerifyEvent(payload, sign(payload, "whsec_test", time.Now()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.ID != "evt_1" {
		t.Fatalf("unexpected event id %q", event.ID)
	}

	if _, err := client.VerifyEvent(payload, sign(payload, "whsec_other", time.Now())); err == nil {
		t.Fatal("expected wrong secret to fail")
	}
	if _, err := client.VerifyEvent(payload, sign(payload, "whsec_test", time.Now().Add(-10*time.Minute))); err == nil {
		t.Fatal("expected stale timestamp to fail")
	}
}

func sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
