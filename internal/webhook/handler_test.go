package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Kwabena/Talaria/internal/config"
	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/pkg/types"
)

type fakeWebhookRepo struct {
	seen    map[string]bool
	records []*model.WebhookEvent
	outbox  []OutboxMessage
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{seen: make(map[string]bool)}
}

func (f *fakeWebhookRepo) Record(ctx context.Context, event *model.WebhookEvent, outbox []OutboxMessage) (bool, error) {
	key := event.Gateway + ":" + event.ExternalEventID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	f.records = append(f.records, event)
	f.outbox = append(f.outbox, outbox...)
	return true, nil
}

const testSecret = "sk_test_secret"

func newTestHandler(repo WebhookRepository) *WebhookHandler {
	wh := NewWebhookHandler(config.GatewaysConfig{
		Paystack: config.GatewayConfig{WebhookSecret: testSecret},
		Stripe:   config.GatewayConfig{WebhookSecret: testSecret},
	}, repo)
	wh.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return wh
}

func deliver(t *testing.T, wh *WebhookHandler, gateway string, body []byte, signatureHeader, signature string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Post("/webhooks/{gateway}", wh.HandleWebhook)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+gateway, bytes.NewReader(body))
	if signatureHeader != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const paystackChargeBody = `{"event":"charge.success","data":{"id":42,"reference":"ref_1","amount":30000,"currency":"GHS","metadata":{"escrow_id":"7b0c9f6e-8a1d-4f3b-9a5c-1d2e3f405060"}}}`

func TestHandleWebhookMissingSignatureRejected(t *testing.T) {
	repo := newFakeWebhookRepo()
	wh := newTestHandler(repo)

	rec := deliver(t, wh, "paystack", []byte(paystackChargeBody), "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if len(repo.records) != 0 {
		t.Fatal("unverified delivery was recorded")
	}
}

func TestHandleWebhookInvalidSignatureRejected(t *testing.T) {
	repo := newFakeWebhookRepo()
	wh := newTestHandler(repo)

	rec := deliver(t, wh, "paystack", []byte(paystackChargeBody), "x-paystack-signature", "bad")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if len(repo.records) != 0 {
		t.Fatal("unverified delivery was recorded")
	}
}

func TestHandleWebhookRecordsVerifiedDelivery(t *testing.T) {
	repo := newFakeWebhookRepo()
	wh := newTestHandler(repo)
	body := []byte(paystackChargeBody)

	rec := deliver(t, wh, "paystack", body, "x-paystack-signature", paystackSign(body, testSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(repo.records) != 1 {
		t.Fatalf("records = %d, want 1", len(repo.records))
	}

	got := repo.records[0]
	if got.Gateway != "paystack" || got.ExternalEventID != "42" {
		t.Fatalf("recorded (%s, %s), want (paystack, 42)", got.Gateway, got.ExternalEventID)
	}
	if got.EventType != types.EventFundingSucceeded {
		t.Fatalf("event type = %s, want %s", got.EventType, types.EventFundingSucceeded)
	}
	if len(repo.outbox) != 1 {
		t.Fatalf("outbox rows = %d, want 1", len(repo.outbox))
	}
}

func TestHandleWebhookDuplicateDeliveryIsNoOp(t *testing.T) {
	repo := newFakeWebhookRepo()
	wh := newTestHandler(repo)
	body := []byte(paystackChargeBody)
	sig := paystackSign(body, testSecret)

	first := deliver(t, wh, "paystack", body, "x-paystack-signature", sig)
	second := deliver(t, wh, "paystack", body, "x-paystack-signature", sig)

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d, want both %d", first.Code, second.Code, http.StatusOK)
	}
	if len(repo.records) != 1 {
		t.Fatalf("records after redelivery = %d, want 1", len(repo.records))
	}
	if len(repo.outbox) != 1 {
		t.Fatalf("outbox rows after redelivery = %d, want 1", len(repo.outbox))
	}
}

func TestHandleWebhookUnknownGateway(t *testing.T) {
	wh := newTestHandler(newFakeWebhookRepo())

	rec := deliver(t, wh, "unknown", []byte("{}"), "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleWebhookUnrecognizedEventRecordedNotDispatched(t *testing.T) {
	repo := newFakeWebhookRepo()
	wh := newTestHandler(repo)
	body := []byte(`{"event":"subscription.create","data":{"id":77,"reference":"ref_sub","amount":0,"currency":"GHS","metadata":{}}}`)

	rec := deliver(t, wh, "paystack", body, "x-paystack-signature", paystackSign(body, testSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(repo.records) != 1 {
		t.Fatalf("records = %d, want 1", len(repo.records))
	}
	if len(repo.outbox) != 0 {
		t.Fatalf("outbox rows = %d, want 0 for unrecognized event", len(repo.outbox))
	}
}

func TestHandleWebhookStripeDelivery(t *testing.T) {
	repo := newFakeWebhookRepo()
	wh := newTestHandler(repo)
	body := []byte(`{"id":"evt_9","type":"payout.paid","created":1700000000,"data":{"object":{"id":"po_1","amount":50000,"currency":"ghs","status":"paid","metadata":{"payout_id":"5a0c9f6e-8a1d-4f3b-9a5c-1d2e3f405060"}}}}`)

	rec := deliver(t, wh, "stripe", body, "Stripe-Signature", stripeSign(body, testSecret, 1_700_000_000))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(repo.records) != 1 {
		t.Fatalf("records = %d, want 1", len(repo.records))
	}
	if repo.records[0].EventType != types.EventPayoutSucceeded {
		t.Fatalf("event type = %s, want %s", repo.records[0].EventType, types.EventPayoutSucceeded)
	}
}
