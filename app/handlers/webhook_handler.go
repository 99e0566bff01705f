// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/app/dto"
	businessflow "github.com/NathanHayman/rivvi-beta-sub007/business_flow"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
	"github.com/gofiber/fiber/v3"
)

// WebhookHandlerInterface defines the contract for webhook handlers
type WebhookHandlerInterface interface {
	PostCall(c fiber.Ctx) error
	InboundCall(c fiber.Ctx) error
}

// WebhookHandler handles voice provider webhook callbacks. Responses follow
// the provider's contract ({status, error}) rather than the API envelope,
// because the provider retries on 5xx and parses the body shape.
type WebhookHandler struct {
	webhookFlow businessflow.WebhookFlow
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookFlow businessflow.WebhookFlow) *WebhookHandler {
	return &WebhookHandler{webhookFlow: webhookFlow}
}

// PostCall handles the provider's terminal post-call report
func (h *WebhookHandler) PostCall(c fiber.Ctx) error {
	var req dto.PostCallWebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.PostCallWebhookResponse{
			Status: dto.WebhookStatusError,
			Error:  "invalid request body",
		})
	}

	result, err := h.webhookFlow.HandlePostCall(h.createRequestContext(c, "/webhooks/post-call"), &req)
	if err != nil {
		if businessflow.IsCallIDRequired(err) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.PostCallWebhookResponse{
				Status: dto.WebhookStatusError,
				Error:  "call_id is required",
			})
		}
		if businessflow.IsCallNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(dto.PostCallWebhookResponse{
				Status: dto.WebhookStatusError,
				Error:  "call not found",
			})
		}

		log.Println("Post-call webhook processing failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.PostCallWebhookResponse{
			Status: dto.WebhookStatusError,
			Error:  err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// InboundCall handles the provider's synchronous inbound-call routing query.
// Always answers 200 with a structured routing decision.
func (h *WebhookHandler) InboundCall(c fiber.Ctx) error {
	orgUUID := c.Params("orgId")

	var req dto.InboundCallWebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		log.Println("Inbound webhook: unparseable body, routing with defaults", err)
		req = dto.InboundCallWebhookRequest{}
	}

	result, err := h.webhookFlow.HandleInboundCall(h.createRequestContext(c, "/webhooks/inbound"), orgUUID, &req)
	if err != nil {
		// The flow downgrades failures to warnings; this path is a safety net.
		log.Println("Inbound webhook processing failed", err)
		result = &dto.InboundCallWebhookResponse{Warning: "routing with defaults"}
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *WebhookHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	timeout := 30 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
