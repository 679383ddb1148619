package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-catalog-bot/internal/catalog"
	"github.com/tbourn/go-catalog-bot/internal/gateway"
	"github.com/tbourn/go-catalog-bot/internal/transport"
)

// Inbound is the gateway surface the webhooks need.
type Inbound interface {
	HandleInbound(ctx context.Context, raw gateway.RawEvent) ([]transport.Outbound, error)
	Deliver(ctx context.Context, out []transport.Outbound) error
}

// CredentialResetter starts the password reset dialog for a broker.
type CredentialResetter interface {
	StartCredentialReset(ctx context.Context, identity string) error
}

// Options configure Handlers.
type Options struct {
	// MetaVerifyToken must match hub.verify_token during Meta's webhook
	// subscription handshake. Empty rejects every handshake.
	MetaVerifyToken string
	// DeliverTimeout bounds asynchronous delivery of Meta replies.
	DeliverTimeout time.Duration
	// Customer serves the customer bot number. Nil disables its webhook.
	Customer Inbound
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	inbound  Inbound
	resetter CredentialResetter
	opts     Options
	// goAsync runs background delivery; tests make it synchronous.
	goAsync func(func())
	now     func() time.Time
}

// New constructs Handlers.
func New(inbound Inbound, resetter CredentialResetter, opts Options) *Handlers {
	if opts.DeliverTimeout <= 0 {
		opts.DeliverTimeout = 30 * time.Second
	}
	return &Handlers{
		inbound:  inbound,
		resetter: resetter,
		opts:     opts,
		goAsync:  func(f func()) { go f() },
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// TwilioWebhook handles POST /webhooks/twilio. Replies go back in the
// response body as TwiML.
func (h *Handlers) TwilioWebhook(c *gin.Context) {
	h.twiml(c, h.inbound)
}

// CustomerWebhook handles POST /webhooks/twilio/customer, the Twilio number
// customers browse listings on.
func (h *Handlers) CustomerWebhook(c *gin.Context) {
	if h.opts.Customer == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "customer bot not configured")
		return
	}
	h.twiml(c, h.opts.Customer)
}

func (h *Handlers) twiml(c *gin.Context, inbound Inbound) {
	if err := c.Request.ParseForm(); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid form body")
		return
	}
	out, err := inbound.HandleInbound(c.Request.Context(), gateway.RawEvent{
		Transport:  gateway.TransportTwilio,
		Form:       c.Request.PostForm,
		ReceivedAt: h.now(),
	})
	if err != nil {
		h.inboundError(c, err)
		return
	}
	body, err := transport.RenderTwiML(gateway.Replies(out))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not render reply")
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}

// MetaVerify handles GET /webhooks/meta, Meta's subscription handshake.
func (h *Handlers) MetaVerify(c *gin.Context) {
	if c.Query("hub.mode") != "subscribe" ||
		h.opts.MetaVerifyToken == "" ||
		c.Query("hub.verify_token") != h.opts.MetaVerifyToken {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "verification failed")
		return
	}
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// MetaWebhook handles POST /webhooks/meta. Events are processed before the
// 200 so redeliveries after a failure hit the dedup ledger; replies are sent
// through the Cloud API afterwards.
func (h *Handlers) MetaWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}
	out, err := h.inbound.HandleInbound(c.Request.Context(), gateway.RawEvent{
		Transport:  gateway.TransportMeta,
		Body:       body,
		ReceivedAt: h.now(),
	})
	if err != nil {
		h.inboundError(c, err)
		return
	}
	if len(out) > 0 {
		ctx := context.WithoutCancel(c.Request.Context())
		h.goAsync(func() {
			ctx, cancel := context.WithTimeout(ctx, h.opts.DeliverTimeout)
			defer cancel()
			if err := h.inbound.Deliver(ctx, out); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Int("replies", len(out)).Msg("meta reply delivery failed")
			}
		})
	}
	c.Status(http.StatusOK)
}

func (h *Handlers) inboundError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gateway.ErrMalformed), errors.Is(err, gateway.ErrUnknownTransport):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed webhook payload")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInboundFailed, err.Error())
	}
}

// ResetCredentialRequest is the body of POST {base}/brokers/reset-credential.
type ResetCredentialRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// ResetCredentialResponse acknowledges that the prompt was sent.
type ResetCredentialResponse struct {
	Message string `json:"message"`
}

// ResetCredential starts the WhatsApp password reset dialog for a known
// broker.
func (h *Handlers) ResetCredential(c *gin.Context) {
	var req ResetCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone required")
		return
	}
	identity := gateway.NormalizeIdentity(req.Phone)
	if identity == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone required")
		return
	}
	switch err := h.resetter.StartCredentialReset(c.Request.Context(), identity); {
	case errors.Is(err, catalog.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "broker not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeResetFailed, err.Error())
	default:
		ok(c, http.StatusOK, ResetCredentialResponse{Message: "reset prompt sent on WhatsApp"})
	}
}
