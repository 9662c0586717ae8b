package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/bizora/pkg/domain"
)

const testWebhookSecret = "whsec_test"

func sign(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventJSON(id, typ string, created int64, object string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"type": %q,
		"created": %d,
		"api_version": "2023-10-16",
		"data": {"object": %s}
	}`, id, typ, created, object))
}

var testPrices = PriceTable{domain.PlanFlow: "price_flow", domain.PlanPro: "price_pro"}

func TestParseEvent_Signature(t *testing.T) {
	payload := eventJSON("evt_1", "customer.subscription.updated", 1700000000, `{"id":"sub_1","object":"subscription","status":"active"}`)

	t.Run("valid", func(t *testing.T) {
		_, err := ParseEvent(payload, sign(payload, testWebhookSecret, time.Now()), testWebhookSecret, testPrices)
		require.NoError(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := ParseEvent(payload, sign(payload, "whsec_other", time.Now()), testWebhookSecret, testPrices)
		require.True(t, errors.Is(err, ErrInvalidSignature))
	})

	t.Run("tampered payload", func(t *testing.T) {
		sig := sign(payload, testWebhookSecret, time.Now())
		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-3] = ' '
		_, err := ParseEvent(tampered, sig, testWebhookSecret, testPrices)
		require.True(t, errors.Is(err, ErrInvalidSignature))
	})

	t.Run("expired timestamp", func(t *testing.T) {
		_, err := ParseEvent(payload, sign(payload, testWebhookSecret, time.Now().Add(-time.Hour)), testWebhookSecret, testPrices)
		require.True(t, errors.Is(err, ErrInvalidSignature))
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := ParseEvent(payload, "", testWebhookSecret, testPrices)
		require.True(t, errors.Is(err, ErrInvalidSignature))
	})
}

func parseSigned(t *testing.T, payload []byte) *Event {
	t.Helper()
	evt, err := ParseEvent(payload, sign(payload, testWebhookSecret, time.Now()), testWebhookSecret, testPrices)
	require.NoError(t, err)
	return evt
}

func TestParseEvent_Checkout(t *testing.T) {
	evt := parseSigned(t, eventJSON("evt_c", EventCheckoutCompleted, 1700000000, `{
		"id": "cs_1",
		"object": "checkout.session",
		"client_reference_id": "fallback-id",
		"customer": "cus_1",
		"subscription": "sub_1",
		"customer_details": {"email": "Owner@Acme.nl"},
		"metadata": {"registration_id": "8d4a7f0e-1111-4222-8333-944445555666", "plan": "pro"}
	}`))

	assert.Equal(t, "evt_c", evt.ID)
	assert.Equal(t, EventCheckoutCompleted, evt.Type)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), evt.Created)
	require.NotNil(t, evt.Checkout)
	assert.Equal(t, &Checkout{
		SessionID:      "cs_1",
		RegistrationID: "8d4a7f0e-1111-4222-8333-944445555666",
		Plan:           "pro",
		Email:          "owner@acme.nl",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
	}, evt.Checkout)
}

func TestParseEvent_CheckoutFallsBackToClientReference(t *testing.T) {
	evt := parseSigned(t, eventJSON("evt_c2", EventCheckoutCompleted, 1700000000, `{
		"id": "cs_2",
		"object": "checkout.session",
		"client_reference_id": "8d4a7f0e-1111-4222-8333-944445555666",
		"customer_email": "billing@acme.nl"
	}`))

	require.NotNil(t, evt.Checkout)
	assert.Equal(t, "8d4a7f0e-1111-4222-8333-944445555666", evt.Checkout.RegistrationID)
	assert.Equal(t, "billing@acme.nl", evt.Checkout.Email)
	assert.Empty(t, evt.Checkout.SubscriptionID)
}

func TestParseEvent_Subscription(t *testing.T) {
	evt := parseSigned(t, eventJSON("evt_s", EventSubscriptionUpdated, 1700000000, `{
		"id": "sub_1",
		"object": "subscription",
		"customer": "cus_1",
		"status": "past_due",
		"current_period_start": 1700000000,
		"current_period_end": 1702592000,
		"trial_end": 0,
		"items": {"object": "list", "data": [{"id": "si_1", "object": "subscription_item", "price": {"id": "price_pro", "object": "price"}}]}
	}`))

	require.NotNil(t, evt.Subscription)
	sub := evt.Subscription
	assert.Equal(t, "sub_1", sub.ID)
	assert.Equal(t, "cus_1", sub.CustomerID)
	assert.Equal(t, "past_due", sub.Status)
	assert.Equal(t, "price_pro", sub.PriceID)
	assert.Equal(t, domain.PlanPro, sub.Plan)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, time.Unix(1702592000, 0).UTC(), *sub.CurrentPeriodEnd)
	assert.Nil(t, sub.TrialEnd)
	assert.Nil(t, sub.CanceledAt)
}

func TestParseEvent_SubscriptionPlanFromMetadata(t *testing.T) {
	evt := parseSigned(t, eventJSON("evt_s2", EventSubscriptionTrialWillEnd, 1700000000, `{
		"id": "sub_2",
		"object": "subscription",
		"customer": "cus_2",
		"status": "trialing",
		"metadata": {"plan": "flow"}
	}`))
	require.NotNil(t, evt.Subscription)
	assert.Equal(t, domain.PlanFlow, evt.Subscription.Plan)
}

func TestParseEvent_SubscriptionPriceWinsOverMetadata(t *testing.T) {
	evt := parseSigned(t, eventJSON("evt_s3", EventSubscriptionUpdated, 1700000000, `{
		"id": "sub_3",
		"object": "subscription",
		"customer": "cus_3",
		"status": "active",
		"metadata": {"plan": "start"},
		"items": {"object": "list", "data": [{"id": "si_3", "object": "subscription_item", "price": {"id": "price_pro", "object": "price"}}]}
	}`))
	require.NotNil(t, evt.Subscription)
	assert.Equal(t, "price_pro", evt.Subscription.PriceID)
	assert.Equal(t, domain.PlanPro, evt.Subscription.Plan)
}

func TestParseEvent_SubscriptionUnmappedPriceFallsBackToMetadata(t *testing.T) {
	evt := parseSigned(t, eventJSON("evt_s4", EventSubscriptionUpdated, 1700000000, `{
		"id": "sub_4",
		"object": "subscription",
		"customer": "cus_4",
		"status": "active",
		"metadata": {"plan": "flow"},
		"items": {"object": "list", "data": [{"id": "si_4", "object": "subscription_item", "price": {"id": "price_legacy", "object": "price"}}]}
	}`))
	require.NotNil(t, evt.Subscription)
	assert.Equal(t, domain.PlanFlow, evt.Subscription.Plan)
}

func TestParseEvent_Invoice(t *testing.T) {
	evt := parseSigned(t, eventJSON("evt_i", EventInvoicePaymentFailed, 1700000000, `{
		"id": "in_1",
		"object": "invoice",
		"customer": "cus_1",
		"subscription": "sub_1"
	}`))
	require.NotNil(t, evt.Invoice)
	assert.Equal(t, &Invoice{ID: "in_1", CustomerID: "cus_1", SubscriptionID: "sub_1"}, evt.Invoice)
}

func TestParseEvent_UnknownType(t *testing.T) {
	evt := parseSigned(t, eventJSON("evt_u", "customer.created", 1700000000, `{"id":"cus_1","object":"customer"}`))
	assert.Equal(t, "customer.created", evt.Type)
	assert.Nil(t, evt.Checkout)
	assert.Nil(t, evt.Subscription)
	assert.Nil(t, evt.Invoice)
}
