package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/thanh913/MOOJ/internal/dto"
	"github.com/thanh913/MOOJ/internal/service"
	"github.com/thanh913/MOOJ/internal/utils"
)

// SubmissionHandler manages submission and appeal endpoints.
type SubmissionHandler struct {
	submissions service.SubmissionService
	appeals     service.AppealService
	logger      zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(submissions service.SubmissionService, appeals service.AppealService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		appeals:     appeals,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. appealGuards run in front of
// the appeal route only.
func (h *SubmissionHandler) Register(router fiber.Router, appealGuards ...fiber.Handler) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	appealChain := append(append([]fiber.Handler{}, appealGuards...), h.appeal)
	router.Post("/:id/appeals", appealChain...)
	router.Post("/:id/accept", h.accept)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.submissions.Create(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submission accepted for evaluation", submission)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	var query dto.SubmissionListRequest
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.submissions.List(c.UserContext(), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", result)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.submissions.Get(c.UserContext(), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) appeal(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AppealBatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.appeals.SubmitAppeals(c.UserContext(), id, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "appeals processed", submission)
}

func (h *SubmissionHandler) accept(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.submissions.AcceptScore(c.UserContext(), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "score accepted", submission)
}
