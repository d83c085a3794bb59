package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timottowitz/obelisk-backend/internal/provisioning/handler"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/service"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/webhook"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
	"github.com/timottowitz/obelisk-backend/pkg/testutil"
)

// The verification and acknowledgement paths never reach the pipeline, so a
// provisioner with nil stages is sufficient here. Anything that would
// invoke a stage is a test bug, and the nil dereference makes it loud.
func newTestHandler(t *testing.T) (*handler.WebhookHandler, *webhook.Verifier) {
	t.Helper()
	log := logger.New("test", "test")

	v, err := webhook.NewVerifier(testutil.TestSigningSecret, webhook.DefaultTolerance)
	require.NoError(t, err)

	p := service.New(nil, nil, nil, nil, log)
	return handler.NewWebhookHandler(v, p, log), v
}

func signedRequest(t *testing.T, v *webhook.Verifier, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/auth", bytes.NewReader(body))
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set(webhook.HeaderID, "msg_test")
	req.Header.Set(webhook.HeaderTimestamp, ts)
	req.Header.Set(webhook.HeaderSignature, v.Sign("msg_test", ts, body))
	return req
}

func TestHandleWebhook_TamperedSignatureRejected(t *testing.T) {
	h, v := newTestHandler(t)

	body := []byte(`{"type":"organization.created","data":{"id":"org_1","name":"Acme"}}`)
	req := signedRequest(t, v, body)
	// Body swapped after signing.
	tampered := []byte(`{"type":"organization.created","data":{"id":"org_evil","name":"Evil"}}`)
	req.Body = httptest.NewRequest(http.MethodPost, "/webhooks/auth", bytes.NewReader(tampered)).Body

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "INVALID_SIGNATURE", resp.Error.Code)
}

func TestHandleWebhook_MissingHeadersRejected(t *testing.T) {
	h, _ := newTestHandler(t)

	body := []byte(`{"type":"organization.created","data":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/auth", bytes.NewReader(body))

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleWebhook_UnknownEventTypeAcknowledged(t *testing.T) {
	h, v := newTestHandler(t)

	body := []byte(`{"type":"session.created","data":{"id":"sess_1"}}`)
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedRequest(t, v, body))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestHandleWebhook_MalformedPayloadAfterValidSignature(t *testing.T) {
	h, v := newTestHandler(t)

	body := []byte(`this is not json`)
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedRequest(t, v, body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhook_MissingTypeRejected(t *testing.T) {
	h, v := newTestHandler(t)

	body := []byte(`{"data":{"id":"org_1"}}`)
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedRequest(t, v, body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
