package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/controllers"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/middlewares"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/version"
)

const serviceName = "flowengine"

type HTTPServerDependencies struct {
	RunController  *controllers.RunController
	MetricsHandler http.Handler
	// JWTSecret enables bearer authentication on /v1 when set.
	JWTSecret      string
	BodyLimit      int
	EnableHTTPLog  bool
}

func NewHTTPServer(deps HTTPServerDependencies) *fiber.App {
	config := fiber.Config{
		AppName:      serviceName,
		ErrorHandler: errorHandler,
	}

	if deps.BodyLimit > 0 {
		config.BodyLimit = deps.BodyLimit
	}

	router := fiber.New(config)

	router.Use(recover.New())
	router.Use(cors.New())
	if deps.EnableHTTPLog {
		router.Use(logger.New())
	}

	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   serviceName,
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	if deps.MetricsHandler != nil {
		router.Get("/metrics", adaptor.HTTPHandler(deps.MetricsHandler))
	}

	v1 := router.Group("/v1")

	if deps.JWTSecret != "" {
		v1.Use(middlewares.JWTMiddleware([]byte(deps.JWTSecret)))
	} else {
		log.Warn().Msg("JWT secret is not set, the API is unauthenticated")
	}

	v1.Post("/flows/runs/sync", deps.RunController.ExecuteRun)
	v1.Post("/flows/:flowID/runs", deps.RunController.StartRun)
	v1.Get("/runs", deps.RunController.ListRuns)
	v1.Get("/runs/:runID", deps.RunController.GetRun)
	v1.Delete("/artifacts/:artifactID", deps.RunController.DeleteArtifact)
	v1.Get("/node-types", deps.RunController.NodeTypes)

	return router
}

func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}
