// Package web provides the HTTP handlers for workflow triggers, the read side
// and the node status feed.
package web

import (
	"net/http"
	"slices"
	"time"

	"github.com/dukex/nodebase/pkg/registry"
	"github.com/dukex/nodebase/pkg/services"
	"github.com/dukex/nodebase/pkg/status"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService *services.Workflow
	triggerService  *services.Trigger
	validator       *validator.Validate
	registry        *registry.Registry
	tracker         *status.Tracker
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	triggerService *services.Trigger,
	validator *validator.Validate,
	registry *registry.Registry,
	tracker *status.Tracker,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		triggerService:  triggerService,
		validator:       validator,
		registry:        registry,
		tracker:         tracker,
	}
}

// Routes registers every endpoint on app.
func (h *APIHandlers) Routes(app fiber.Router) {
	w := app.Group("/workflows")
	w.Post("/", h.SaveWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Get("/:id/executions", h.GetWorkflowExecutions)
	w.Post("/:id/execute", h.ExecuteWorkflow)

	app.Get("/executions/:id", h.GetExecution)

	hooks := app.Group("/webhooks")
	hooks.Post("/google-form", h.GoogleFormWebhook)
	hooks.Post("/stripe", h.StripeWebhook)

	app.Get("/status/:channel/:nodeId", h.GetNodeStatus)
	app.Get("/nodes", h.GetNodes)
	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	var req SaveWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created := req.ID == ""

	saved, err := h.workflowService.Save(c.Context(), req.ToModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	if created {
		return c.Status(fiber.StatusCreated).JSON(saved)
	}

	return c.JSON(saved)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflowService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	executions, err := h.workflowService.Executions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(executions)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.workflowService.Execution(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

// ExecuteWorkflow queues a manual run. The optional JSON body becomes the
// manual payload.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	payload, err := optionalPayload(c)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	executionID, err := h.triggerService.Manual(c.Context(), c.Params("id"), payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(TriggerResponse{ExecutionID: executionID})
}

func (h *APIHandlers) GoogleFormWebhook(c fiber.Ctx) error {
	var payload map[string]any
	if err := c.Bind().JSON(&payload); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	executionID, err := h.triggerService.GoogleForm(c.Context(), c.Query("workflowId"), payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(TriggerResponse{ExecutionID: executionID})
}

func (h *APIHandlers) StripeWebhook(c fiber.Ctx) error {
	var payload map[string]any
	if err := c.Bind().JSON(&payload); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	executionID, err := h.triggerService.Stripe(c.Context(), c.Query("workflowId"), payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(TriggerResponse{ExecutionID: executionID})
}

// GetNodeStatus returns the latest status observed for a node; "initial" when
// nothing was published yet.
func (h *APIHandlers) GetNodeStatus(c fiber.Ctx) error {
	channel := c.Params("channel")

	if !slices.Contains(status.Channels(), channel) {
		return notFound(c, "channel_not_found", "unknown status channel "+channel)
	}

	return c.JSON(NodeStatusResponse{
		Channel: channel,
		Message: h.tracker.Get(channel, c.Params("nodeId")),
	})
}

// GetNodes lists the registered node types with their data schemas.
func (h *APIHandlers) GetNodes(c fiber.Ctx) error {
	return c.JSON(h.registry.Nodes())
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryErr := h.registry.Validate()
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	registryCheck := "Registry is complete"
	if registryErr != nil {
		registryCheck = registryErr.Error()
	}

	state := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if registryErr == nil && repOk {
		state = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": state,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func optionalPayload(c fiber.Ctx) (map[string]any, error) {
	if len(c.Body()) == 0 {
		return nil, nil
	}

	var payload map[string]any

	err := c.Bind().JSON(&payload)
	if err != nil {
		return nil, err
	}

	return payload, nil
}
