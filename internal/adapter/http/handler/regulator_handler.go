package handler

import (
	"crypto-card-service/internal/adapter/http/dto"
	"crypto-card-service/internal/adapter/http/middleware"
	"crypto-card-service/internal/core/ports"
	"crypto-card-service/pkg/apperror"
	"crypto-card-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegulatorHandler handles privileged regulator endpoints. All routes are
// gated by the regulator capability middleware.
type RegulatorHandler struct {
	regulatorSvc ports.RegulatorService
	dedupSvc     ports.DedupService
}

// NewRegulatorHandler creates a new RegulatorHandler.
func NewRegulatorHandler(regulatorSvc ports.RegulatorService, dedupSvc ports.DedupService) *RegulatorHandler {
	return &RegulatorHandler{regulatorSvc: regulatorSvc, dedupSvc: dedupSvc}
}

// AdjustBalance handles POST /api/v1/regulator/adjust-balance.
func (h *RegulatorHandler) AdjustBalance(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	var req dto.AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	cardID, err := uuid.Parse(req.CardID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid card id"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.Validation("invalid amount"))
		return
	}

	card, err := h.regulatorSvc.Adjust(c.Request.Context(), ports.AdjustRequest{
		ActorID:   actorID,
		CardID:    cardID,
		Amount:    amount,
		Operation: ports.AdjustOperation(req.Operation),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToCardResponse(card))
}

// DedupAssets handles POST /api/v1/regulator/dedup-assets.
func (h *RegulatorHandler) DedupAssets(c *gin.Context) {
	report, err := h.dedupSvc.RunDeduplicationPass(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.DedupResponse{
		Scanned:  report.Scanned,
		Retained: report.Retained,
		Removed:  report.Removed,
		Skipped:  report.Skipped,
	})
}
