// Package handler exposes the provisioning service's HTTP surface: the
// identity-provider webhook endpoint and health checks.
package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timottowitz/obelisk-backend/internal/provisioning/service"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/webhook"
	"github.com/timottowitz/obelisk-backend/pkg/errors"
	"github.com/timottowitz/obelisk-backend/pkg/httputil"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
)

// maxBodySize bounds webhook request bodies. Provider payloads are small;
// anything near this limit is not a legitimate delivery.
const maxBodySize = 1 << 20

// WebhookHandler receives identity-provider lifecycle events
type WebhookHandler struct {
	verifier    *webhook.Verifier
	provisioner *service.Provisioner
	logger      *logger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(v *webhook.Verifier, p *service.Provisioner, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:    v,
		provisioner: p,
		logger:      log.WithComponent("webhook_handler"),
	}
}

// RegisterRoutes registers webhook routes
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/auth", h.HandleWebhook)
}

// HandleWebhook verifies and dispatches one delivery. Verification happens
// before the body is parsed; an unverified payload is never inspected.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		httputil.Error(w, errors.BadRequest("failed to read request body"))
		return
	}

	if err := h.verifier.Verify(r.Header, body); err != nil {
		h.logger.Warn().Err(err).
			Str("webhook_id", r.Header.Get(webhook.HeaderID)).
			Msg("webhook signature verification failed")
		httputil.Error(w, err)
		return
	}

	env, err := webhook.ParseEnvelope(body)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	log := h.logger.With().
		Str("event_type", env.Type).
		Str("webhook_id", r.Header.Get(webhook.HeaderID)).
		Logger()
	ctx := r.Context()

	switch env.Type {
	case webhook.EventOrganizationCreated:
		var data webhook.OrganizationData
		if err := env.DecodeData(&data); err != nil {
			httputil.Error(w, err)
			return
		}
		t, err := h.provisioner.ProvisionOrganization(ctx, &data)
		if err != nil {
			log.Error().Err(err).Str("org_id", data.ID).Msg("provisioning failed")
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]string{
			"tenant_id": t.ID,
			"schema":    t.SchemaName,
		})

	case webhook.EventOrganizationUpdated:
		var data webhook.OrganizationData
		if err := env.DecodeData(&data); err != nil {
			httputil.Error(w, err)
			return
		}
		if _, err := h.provisioner.RenameOrganization(ctx, &data); err != nil {
			log.Error().Err(err).Str("org_id", data.ID).Msg("tenant update failed")
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, nil)

	case webhook.EventMembershipCreated, webhook.EventMembershipUpdated:
		var data webhook.MembershipData
		if err := env.DecodeData(&data); err != nil {
			httputil.Error(w, err)
			return
		}
		if _, err := h.provisioner.UpsertMembership(ctx, &data); err != nil {
			log.Error().Err(err).Str("org_id", data.Organization.ID).Msg("membership upsert failed")
			// A missing tenant or user here is an ordering problem on our
			// side, not the caller's: answer 500 so the provider redelivers
			// after the missing entity's own event lands.
			if errors.Is(err, errors.ErrNotFound) {
				httputil.Error(w, errors.Internal("membership endpoints not yet registered"))
				return
			}
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, nil)

	case webhook.EventUserCreated, webhook.EventUserUpdated:
		var data webhook.UserData
		if err := env.DecodeData(&data); err != nil {
			httputil.Error(w, err)
			return
		}
		if _, err := h.provisioner.UpsertUser(ctx, &data); err != nil {
			log.Error().Err(err).Str("user_id", data.ID).Msg("user upsert failed")
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, nil)

	default:
		// Acknowledge unhandled event types so the provider stops retrying.
		log.Debug().Msg("ignoring unhandled webhook event type")
		httputil.JSON(w, http.StatusOK, nil)
	}
}
