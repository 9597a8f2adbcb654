package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/thanh913/MOOJ/internal/dto"
	"github.com/thanh913/MOOJ/internal/service"
	"github.com/thanh913/MOOJ/internal/utils"
)

// ProblemHandler serves the read-only problem catalogue.
type ProblemHandler struct {
	service service.ProblemService
	logger  zerolog.Logger
}

// NewProblemHandler constructs a ProblemHandler.
func NewProblemHandler(service service.ProblemService, logger zerolog.Logger) *ProblemHandler {
	return &ProblemHandler{
		service: service,
		logger:  logger.With().Str("component", "problem_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ProblemHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

func (h *ProblemHandler) list(c *fiber.Ctx) error {
	var query dto.ProblemListRequest
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "problems retrieved", result)
}

func (h *ProblemHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	problem, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "problem retrieved", problem)
}
