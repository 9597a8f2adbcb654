package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/thanh913/MOOJ/internal/middleware"
	"github.com/thanh913/MOOJ/internal/service"
	"github.com/thanh913/MOOJ/internal/utils"
)

var errInvalidID = errors.New("invalid id")

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || value == 0 {
		return 0, errInvalidID
	}
	return uint(value), nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := middleware.RequestLogger(base, c)
	return &logger
}

// handleError maps service errors onto HTTP responses. Anything unrecognised is logged and
// reported as a generic 500.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	switch {
	case isValidationError(err):
		return utils.SendValidationError(c, err)
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrProblemNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "problem not found")
	case errors.Is(err, service.ErrProblemUnpublished):
		return utils.SendError(c, fiber.StatusForbidden, "problem is not open for submissions")
	case errors.Is(err, service.ErrAppealLimitReached):
		return utils.SendError(c, fiber.StatusForbidden, "maximum appeal attempts reached")
	case errors.Is(err, service.ErrInvalidSubmissionState):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSubmissionBusy):
		return utils.SendError(c, fiber.StatusConflict, "submission is busy, retry shortly")
	case errors.Is(err, service.ErrNoValidAppeals):
		return utils.SendError(c, fiber.StatusBadRequest, "no valid appeals: each appeal needs a justification and an active or rejected error")
	case errors.Is(err, service.ErrInvalidAppealImage):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
