package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/thanh913/MOOJ/internal/dto"
	"github.com/thanh913/MOOJ/internal/service"
	"github.com/thanh913/MOOJ/internal/utils"
)

// AdminHandler serves operator endpoints.
type AdminHandler struct {
	reaper service.Reaper
	logger zerolog.Logger
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(reaper service.Reaper, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		reaper: reaper,
		logger: logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Post("/submissions/reap", h.reap)
}

func (h *AdminHandler) reap(c *fiber.Ctx) error {
	count, err := h.reaper.Sweep(c.UserContext())
	if err != nil {
		return handleError(c, h.logger, err)
	}

	requestLogger(h.logger, c).Info().Int("reaped", count).Msg("manual reap finished")
	return utils.SendSuccess(c, "stuck submissions reaped", dto.ReapResponse{Reaped: count})
}
