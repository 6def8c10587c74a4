package handler

import (
	"crypto-card-service/internal/adapter/http/dto"
	"crypto-card-service/internal/core/domain"
	"crypto-card-service/internal/core/ports"
	"crypto-card-service/pkg/apperror"
	"crypto-card-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CardHandler handles card endpoints.
type CardHandler struct {
	cardSvc   ports.CardService
	ledgerSvc ports.LedgerService
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cardSvc ports.CardService, ledgerSvc ports.LedgerService) *CardHandler {
	return &CardHandler{cardSvc: cardSvc, ledgerSvc: ledgerSvc}
}

// CreateCard handles POST /api/v1/cards.
func (h *CardHandler) CreateCard(c *gin.Context) {
	var req dto.CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	card, err := h.cardSvc.CreateCard(c.Request.Context(), req.OwnerID, domain.CurrencyKind(req.Kind))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToCardResponse(card))
}

// GetCard handles GET /api/v1/cards/:id.
func (h *CardHandler) GetCard(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid card id"))
		return
	}

	card, err := h.cardSvc.GetCard(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToCardResponse(card))
}

// GetLedger handles GET /api/v1/cards/:id/ledger.
func (h *CardHandler) GetLedger(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid card id"))
		return
	}

	entries, err := h.ledgerSvc.ListEntries(c.Request.Context(), id, 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	balance, err := h.ledgerSvc.GetBalance(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.LedgerListResponse{
		CardID:  id.String(),
		Balance: balance.String(),
		Entries: make([]dto.LedgerEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.ToLedgerEntryResponse(e))
	}

	response.OK(c, resp)
}
