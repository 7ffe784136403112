// Package webhook receives Slack Events API callbacks over HTTP, verifies
// their signature and hands them to the slackapp router. It is the
// alternative to Socket Mode for deployments with a public endpoint.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/garyellow/lullabot-go/internal/logger"
	"github.com/garyellow/lullabot-go/internal/metrics"
	"github.com/garyellow/lullabot-go/internal/slackapp"
)

// maxBodyBytes caps a callback body. Slack payloads are far smaller.
const maxBodyBytes = 1 << 20

// Handler handles Slack Events API requests.
type Handler struct {
	signingSecret string
	router        *slackapp.Router
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

// HandlerConfig holds configuration for creating a new Handler.
type HandlerConfig struct {
	SigningSecret string
	Router        *slackapp.Router
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
}

// NewHandler creates a new webhook handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.SigningSecret == "" {
		return nil, errors.New("signing secret is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}
	return &Handler{
		signingSecret: cfg.SigningSecret,
		router:        cfg.Router,
		logger:        cfg.Logger.WithModule("webhook"),
		metrics:       cfg.Metrics,
	}, nil
}

// Handle is the Gin handler for the events endpoint.
func (h *Handler) Handle(c *gin.Context) {
	// 1. Read and verify
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read webhook body")
		c.Status(http.StatusBadRequest)
		return
	}

	verifier, err := slack.NewSecretsVerifier(c.Request.Header, h.signingSecret)
	if err != nil {
		h.logger.WithError(err).Warn("Missing or stale signature headers")
		h.metrics.RecordEvent("webhook", "rejected")
		c.Status(http.StatusUnauthorized)
		return
	}
	if _, err := verifier.Write(body); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	if err := verifier.Ensure(); err != nil {
		h.logger.Warn("Invalid webhook signature")
		h.metrics.RecordEvent("webhook", "rejected")
		c.Status(http.StatusUnauthorized)
		return
	}

	// 2. Parse
	cb, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		h.logger.WithError(err).Warn("Failed to parse webhook event")
		c.Status(http.StatusBadRequest)
		return
	}

	switch cb.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.String(http.StatusOK, challenge.Challenge)

	case slackevents.CallbackEvent:
		// 3. Ack immediately; Slack retries after three seconds.
		c.Status(http.StatusOK)

		if reason := c.GetHeader("X-Slack-Retry-Reason"); reason == "http_timeout" {
			h.logger.WithField("retry_num", c.GetHeader("X-Slack-Retry-Num")).
				Debug("Skipping redelivery of an already acknowledged event")
			h.metrics.RecordEvent(slackapp.EventType(cb), "redelivered")
			return
		}
		h.router.HandleCallback(cb)

	default:
		c.Status(http.StatusOK)
	}
}
