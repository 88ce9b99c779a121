// Package web provides the HTTP handlers for the execution API.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/convflow/convflow/pkg/engine"
	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/parser"
	"github.com/convflow/convflow/pkg/persistence"
	"github.com/convflow/convflow/pkg/registry"
	"github.com/convflow/convflow/pkg/trigger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// TenantHeader carries the tenant for requests whose body has no tenant_id
// field (or as an override for those that do).
const TenantHeader = "X-Tenant-ID"

type APIHandlers struct {
	engine      *engine.Engine
	detector    *trigger.Detector
	persistence persistence.Persistence
	registry    *registry.Registry
	validator   *validator.Validate
}

func NewAPIHandlers(
	eng *engine.Engine,
	detector *trigger.Detector,
	p persistence.Persistence,
	reg *registry.Registry,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:      eng,
		detector:    detector,
		persistence: p,
		registry:    reg,
		validator:   validate,
	}
}

func (h *APIHandlers) StartExecution(c fiber.Ctx) error {
	var req StartExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	tenant := h.tenant(c, req.TenantID)
	if tenant == "" {
		return badRequest(c, "Tenant ID is required")
	}

	result, err := h.engine.Start(c.Context(), engine.StartRequest{
		WorkflowID:       req.WorkflowID,
		TenantID:         tenant,
		SessionID:        req.SessionID,
		InitialVariables: req.InitialVariables,
		Context:          req.Context,
		UserIdentifier:   req.UserIdentifier,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *APIHandlers) ExecuteStep(c fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req ExecuteStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	tenant := h.tenant(c, req.TenantID)
	if tenant == "" {
		return badRequest(c, "Tenant ID is required")
	}

	result, err := h.engine.Step(c.Context(), engine.StepRequest{
		ExecutionID: executionID,
		SessionID:   req.SessionID,
		TenantID:    tenant,
		UserInput:   req.UserInput,
		UserChoice:  req.UserChoice,
		Context:     req.Context,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetSessionState(c fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return badRequest(c, "Session ID is required")
	}

	tenant := h.tenant(c, "")
	if tenant == "" {
		return badRequest(c, "Tenant ID is required")
	}

	state, err := h.engine.GetSessionState(c.Context(), tenant, sessionID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req CancelExecutionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	tenant := h.tenant(c, req.TenantID)
	if tenant == "" {
		return badRequest(c, "Tenant ID is required")
	}

	if err := h.engine.CancelExecution(c.Context(), tenant, executionID, req.Reason); err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"cancelled": true, "execution_id": executionID})
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	tenant := h.tenant(c, "")
	if tenant == "" {
		return badRequest(c, "Tenant ID is required")
	}

	opts, err := parseListExecutionsOptions(c, tenant)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	page, err := h.engine.ListExecutions(c.Context(), *opts)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(page)
}

func parseListExecutionsOptions(c fiber.Ctx, tenant string) (*persistence.ListExecutionsOptions, error) {
	opts := &persistence.ListExecutionsOptions{
		TenantID:   tenant,
		WorkflowID: c.Query("workflow_id"),
	}

	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, err
		}

		opts.Page = page
	}

	if sizeStr := c.Query("size"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return nil, err
		}

		opts.Size = size
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.ExecutionStatus(statusStr)
		opts.Status = &status
	}

	return opts, nil
}

// CreateWorkflow parses and stores a definition document as version 1 (or
// the next version when the id already exists).
func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var document map[string]any
	if err := c.Bind().JSON(&document); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	tenant := h.tenant(c, stringField(document, "tenant_id"))
	if tenant == "" {
		return badRequest(c, "Tenant ID is required")
	}

	document["tenant_id"] = tenant

	if _, exists := document["active"]; !exists {
		document["active"] = true
	}

	definition, err := parser.Parse(document)
	if err != nil {
		return handleEngineError(c, err)
	}

	if err := h.validator.Struct(definition); err != nil {
		return badRequest(c, err.Error())
	}

	if definition.ID == "" {
		definition.ID = "wf-" + uuid.NewString()[:8]
	}

	if err := h.persistence.WorkflowRepository().Save(c.Context(), definition); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"workflow": definition,
		"issues":   parser.Validate(definition),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	tenant := h.tenant(c, "")
	if tenant == "" {
		return badRequest(c, "Tenant ID is required")
	}

	definition, err := h.persistence.WorkflowRepository().ByID(c.Context(), tenant, id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(definition)
}

// ValidateWorkflow runs the advisory validator against a stored definition.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	tenant := h.tenant(c, "")
	if tenant == "" {
		return badRequest(c, "Tenant ID is required")
	}

	definition, err := h.persistence.WorkflowRepository().ByID(c.Context(), tenant, id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	issues := parser.Validate(definition)
	if issues == nil {
		issues = []parser.ValidationIssue{}
	}

	return c.JSON(ValidateWorkflowResponse{Valid: len(issues) == 0, Issues: issues})
}

func (h *APIHandlers) CheckTrigger(c fiber.Ctx) error {
	var req TriggerCheckRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	tenant := h.tenant(c, req.TenantID)
	if tenant == "" {
		return badRequest(c, "Tenant ID is required")
	}

	result, err := h.detector.Check(c.Context(), tenant, req.Message, req.SessionID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()

	repOk := true
	repositoryCheck := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		repOk = false
		repositoryCheck = err.Error()
	}

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) tenant(c fiber.Ctx, bodyTenant string) string {
	if header := c.Get(TenantHeader); header != "" {
		return header
	}

	return bodyTenant
}

func stringField(document map[string]any, key string) string {
	value, _ := document[key].(string)

	return value
}
