package web

import (
	"errors"

	"github.com/convflow/convflow/pkg/engine"
	"github.com/convflow/convflow/pkg/parser"
	"github.com/convflow/convflow/pkg/persistence"
	"github.com/convflow/convflow/pkg/statestore"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func forbidden(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(403).
		WithInstance(c.Path()).
		WithType("tenant_access_denied").
		WithDetail(detail)

	return c.Status(fiber.StatusForbidden).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps the engine error taxonomy onto problem responses:
// lookup misses are 404, cross-tenant access is 403, every other typed
// engine error is a caller fault (400), anything else is 500.
func handleEngineError(c fiber.Ctx, err error) error {
	var (
		notFoundErr *engine.WorkflowNotFoundError
		tenantErr   *engine.TenantAccessError
		execErr     *engine.WorkflowExecutionError
		stepErr     *engine.StepExecutionError
		stateErr    *engine.WorkflowStateError
		actionErr   *engine.ActionExecutionError
		parseErr    *parser.ParseError
	)

	switch {
	case errors.As(err, &notFoundErr):
		return notFound(c, err.Error())

	case errors.As(err, &tenantErr):
		return forbidden(c, err.Error())

	case errors.Is(err, statestore.ErrStateNotFound):
		return notFound(c, "session state not found")

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution not found")

	case errors.As(err, &execErr), errors.As(err, &stepErr),
		errors.As(err, &stateErr), errors.As(err, &actionErr),
		errors.As(err, &parseErr):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
