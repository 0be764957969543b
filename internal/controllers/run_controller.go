package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain/executor"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// RunController exposes flow runs over HTTP.
type RunController struct {
	executorService executor.FlowExecutorService
}

type RunControllerDependencies struct {
	FlowExecutorService executor.FlowExecutorService
}

func NewRunController(deps RunControllerDependencies) *RunController {
	return &RunController{
		executorService: deps.FlowExecutorService,
	}
}

type RunFlowRequest struct {
	Flow  domain.FlowDefinition `json:"flow"`
	Input any                   `json:"input"`
}

type RunFlowResponse struct {
	RunID string `json:"runId"`
}

type ListRunsResponse struct {
	Runs []domain.ExecutionRun `json:"runs"`
}

type NodeTypesResponse struct {
	NodeTypes []domain.NodeType `json:"nodeTypes"`
}

// StartRun starts a run in the background and answers with its id.
func (c *RunController) StartRun(ctx fiber.Ctx) error {
	var req RunFlowRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	flowID := ctx.Params("flowID")

	runID, err := c.executorService.RunFlow(ctx.RequestCtx(), executor.RunFlowParams{
		FlowID: flowID,
		Flow:   req.Flow,
		Input:  req.Input,
	})
	if err != nil {
		return toHTTPError(err, "Failed to start run")
	}

	log.Info().Str("flow_id", flowID).Str("run_id", runID).Msg("Run accepted")

	return ctx.Status(fiber.StatusAccepted).JSON(RunFlowResponse{RunID: runID})
}

// ExecuteRun runs the flow to completion within the request.
func (c *RunController) ExecuteRun(ctx fiber.Ctx) error {
	var req RunFlowRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	run, err := c.executorService.ExecuteFlow(ctx.RequestCtx(), executor.RunFlowParams{
		Flow:  req.Flow,
		Input: req.Input,
	})
	if err != nil {
		return toHTTPError(err, "Failed to execute run")
	}

	return ctx.JSON(run)
}

func (c *RunController) GetRun(ctx fiber.Ctx) error {
	run, err := c.executorService.GetRun(ctx.RequestCtx(), ctx.Params("runID"))
	if err != nil {
		return toHTTPError(err, "Failed to get run")
	}

	return ctx.JSON(run)
}

func (c *RunController) ListRuns(ctx fiber.Ctx) error {
	limit := defaultListLimit

	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(parsed, maxListLimit)
	}

	runs, err := c.executorService.ListRuns(ctx.RequestCtx(), limit)
	if err != nil {
		return toHTTPError(err, "Failed to list runs")
	}

	return ctx.JSON(ListRunsResponse{Runs: runs})
}

func (c *RunController) DeleteArtifact(ctx fiber.Ctx) error {
	if err := c.executorService.DeleteArtifact(ctx.RequestCtx(), ctx.Params("artifactID")); err != nil {
		return toHTTPError(err, "Failed to delete artifact")
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *RunController) NodeTypes(ctx fiber.Ctx) error {
	return ctx.JSON(NodeTypesResponse{NodeTypes: c.executorService.NodeTypes()})
}

func toHTTPError(err error, message string) error {
	switch {
	case errors.Is(err, domain.ErrInvalidFlow):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRunNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Run not found")
	case errors.Is(err, domain.ErrArtifactNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Artifact not found")
	}

	log.Error().Err(err).Msg(message)

	return fiber.NewError(fiber.StatusInternalServerError, message)
}
