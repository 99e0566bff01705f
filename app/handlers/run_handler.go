// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/app/dto"
	businessflow "github.com/NathanHayman/rivvi-beta-sub007/business_flow"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// RunHandlerInterface defines the contract for run handlers
type RunHandlerInterface interface {
	CreateRun(c fiber.Ctx) error
	GetRun(c fiber.Ctx) error
	ListRuns(c fiber.Ctx) error
	StartRun(c fiber.Ctx) error
	PauseRun(c fiber.Ctx) error
	ResumeRun(c fiber.Ctx) error
}

// RunHandler handles run-related HTTP requests
type RunHandler struct {
	runFlow   businessflow.RunFlow
	validator *validator.Validate
}

// NewRunHandler creates a new run handler
func NewRunHandler(runFlow businessflow.RunFlow) *RunHandler {
	return &RunHandler{
		runFlow:   runFlow,
		validator: validator.New(),
	}
}

func (h *RunHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *RunHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// orgContext extracts the authenticated organization context set by the auth
// middleware. Missing values mean the middleware did not run.
func (h *RunHandler) orgContext(c fiber.Ctx) (businessflow.OrgContext, bool) {
	orgID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return businessflow.OrgContext{}, false
	}
	userID, _ := c.Locals("user_id").(string)
	isSuperAdmin, _ := c.Locals("is_super_admin").(bool)
	return businessflow.OrgContext{
		OrganizationID: orgID,
		UserID:         userID,
		IsSuperAdmin:   isSuperAdmin,
	}, true
}

// CreateRun handles the run creation process
func (h *RunHandler) CreateRun(c fiber.Ctx) error {
	var req dto.CreateRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	orgCtx, ok := h.orgContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization not found in context", "MISSING_ORGANIZATION", nil)
	}

	result, err := h.runFlow.CreateRun(h.createRequestContext(c, "/api/v1/runs"), &req, orgCtx)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign is inactive", "CAMPAIGN_INACTIVE", nil)
		}
		if businessflow.IsRunAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: campaign belongs to another organization", "RUN_ACCESS_DENIED", nil)
		}
		if businessflow.IsRunNameRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Run name is required", "RUN_NAME_REQUIRED", nil)
		}
		if businessflow.IsScheduleTimeInPast(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule time is in the past", "SCHEDULE_TIME_IN_PAST", nil)
		}

		log.Println("Run creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Run creation failed", "RUN_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Run created successfully", result)
}

// GetRun returns one run by uuid
func (h *RunHandler) GetRun(c fiber.Ctx) error {
	runUUID := c.Params("uuid")
	if runUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Run UUID is required", "MISSING_RUN_UUID", nil)
	}

	orgCtx, ok := h.orgContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization not found in context", "MISSING_ORGANIZATION", nil)
	}

	result, err := h.runFlow.GetRun(h.createRequestContext(c, "/api/v1/runs/"+runUUID), runUUID, orgCtx)
	if err != nil {
		return h.runLookupErrorResponse(c, err, "Run lookup failed", "RUN_LOOKUP_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Run retrieved successfully", result)
}

// ListRuns returns the organization's runs
func (h *RunHandler) ListRuns(c fiber.Ctx) error {
	req := dto.ListRunsRequest{
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 20),
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	orgCtx, ok := h.orgContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization not found in context", "MISSING_ORGANIZATION", nil)
	}

	result, err := h.runFlow.ListRuns(h.createRequestContext(c, "/api/v1/runs"), &req, orgCtx)
	if err != nil {
		log.Println("Run listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Run listing failed", "RUN_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Runs retrieved successfully", result)
}

// StartRun starts a ready or scheduled run
func (h *RunHandler) StartRun(c fiber.Ctx) error {
	return h.controlAction(c, "start", func(ctx context.Context, runUUID string, orgCtx businessflow.OrgContext) (*dto.RunDTO, error) {
		return h.runFlow.StartRun(ctx, runUUID, orgCtx)
	})
}

// PauseRun pauses a running run
func (h *RunHandler) PauseRun(c fiber.Ctx) error {
	return h.controlAction(c, "pause", func(ctx context.Context, runUUID string, orgCtx businessflow.OrgContext) (*dto.RunDTO, error) {
		return h.runFlow.PauseRun(ctx, runUUID, orgCtx)
	})
}

// ResumeRun resumes a paused run
func (h *RunHandler) ResumeRun(c fiber.Ctx) error {
	return h.controlAction(c, "resume", func(ctx context.Context, runUUID string, orgCtx businessflow.OrgContext) (*dto.RunDTO, error) {
		return h.runFlow.ResumeRun(ctx, runUUID, orgCtx)
	})
}

// controlAction shares the request plumbing of the start/pause/resume actions
func (h *RunHandler) controlAction(c fiber.Ctx, action string, fn func(context.Context, string, businessflow.OrgContext) (*dto.RunDTO, error)) error {
	runUUID := c.Params("uuid")
	if runUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Run UUID is required", "MISSING_RUN_UUID", nil)
	}

	orgCtx, ok := h.orgContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization not found in context", "MISSING_ORGANIZATION", nil)
	}

	result, err := fn(h.createRequestContext(c, "/api/v1/runs/"+runUUID+"/"+action), runUUID, orgCtx)
	if err != nil {
		if businessflow.IsRunNotStartable(err) || businessflow.IsRunNotPausable(err) || businessflow.IsRunNotResumable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Run cannot "+action+" from its current status", "RUN_INVALID_TRANSITION", nil)
		}
		return h.runLookupErrorResponse(c, err, "Run "+action+" failed", "RUN_CONTROL_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Run "+action+" applied", result)
}

// runLookupErrorResponse maps the shared lookup/ownership errors
func (h *RunHandler) runLookupErrorResponse(c fiber.Ctx, err error, message, code string) error {
	if businessflow.IsRunNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Run not found", "RUN_NOT_FOUND", nil)
	}
	if businessflow.IsRunAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: run belongs to another organization", "RUN_ACCESS_DENIED", nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}

// queryInt parses an integer query parameter with a default
func queryInt(c fiber.Ctx, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *RunHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *RunHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
