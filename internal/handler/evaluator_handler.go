package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/thanh913/MOOJ/internal/evaluation"
	"github.com/thanh913/MOOJ/internal/utils"
)

// EvaluatorCatalog lists the configured evaluators.
type EvaluatorCatalog interface {
	DefaultName() string
	Infos() []evaluation.Info
}

// EvaluatorListResponse describes the evaluators known to the judge.
type EvaluatorListResponse struct {
	Default    string            `json:"default"`
	Evaluators []evaluation.Info `json:"evaluators"`
}

// EvaluatorHandler exposes evaluator metadata.
type EvaluatorHandler struct {
	catalog EvaluatorCatalog
}

// NewEvaluatorHandler constructs an EvaluatorHandler.
func NewEvaluatorHandler(catalog EvaluatorCatalog) *EvaluatorHandler {
	return &EvaluatorHandler{catalog: catalog}
}

// Register attaches the routes to the provided router group.
func (h *EvaluatorHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *EvaluatorHandler) list(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "evaluators retrieved", EvaluatorListResponse{
		Default:    h.catalog.DefaultName(),
		Evaluators: h.catalog.Infos(),
	})
}
