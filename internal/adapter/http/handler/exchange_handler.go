package handler

import (
	"crypto-card-service/internal/adapter/http/dto"
	"crypto-card-service/internal/adapter/http/middleware"
	"crypto-card-service/internal/core/domain"
	"crypto-card-service/internal/core/ports"
	"crypto-card-service/pkg/apperror"
	"crypto-card-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExchangeHandler handles exchange lifecycle endpoints.
type ExchangeHandler struct {
	exchangeSvc ports.ExchangeService
}

// NewExchangeHandler creates a new ExchangeHandler.
func NewExchangeHandler(exchangeSvc ports.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{exchangeSvc: exchangeSvc}
}

// Quote handles POST /api/v1/exchange/quote.
func (h *ExchangeHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.FromAmount)
	if err != nil {
		response.Error(c, apperror.Validation("invalid amount"))
		return
	}

	quote, err := h.exchangeSvc.Quote(c.Request.Context(), ports.QuoteRequest{
		FromCurrency: domain.CurrencyKind(req.FromCurrency),
		ToCurrency:   domain.CurrencyKind(req.ToCurrency),
		FromAmount:   amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToQuoteResponse(quote))
}

// CreateOrder handles POST /api/v1/exchange/orders.
func (h *ExchangeHandler) CreateOrder(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	quoteID, err := uuid.Parse(req.QuoteID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid quote id"))
		return
	}
	sourceCardID, err := uuid.Parse(req.SourceCardID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid source card id"))
		return
	}
	var destCardID *uuid.UUID
	if req.DestinationCardID != nil {
		id, err := uuid.Parse(*req.DestinationCardID)
		if err != nil {
			response.Error(c, apperror.Validation("invalid destination card id"))
			return
		}
		destCardID = &id
	}

	order, err := h.exchangeSvc.CreateOrder(c.Request.Context(), ports.CreateOrderRequest{
		OwnerID:            actorID,
		QuoteID:            quoteID,
		SourceCardID:       sourceCardID,
		DestinationCardID:  destCardID,
		DestinationAddress: req.DestinationAddress,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToOrderResponse(order))
}

// GetOrder handles GET /api/v1/exchange/orders/:id.
func (h *ExchangeHandler) GetOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid order id"))
		return
	}

	order, err := h.exchangeSvc.GetOrder(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToOrderResponse(order))
}

// MarkPayin handles POST /api/v1/exchange/orders/:id/payin.
func (h *ExchangeHandler) MarkPayin(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid order id"))
		return
	}

	var req dto.PayinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	observed, err := decimal.NewFromString(req.ObservedAmount)
	if err != nil {
		response.Error(c, apperror.Validation("invalid observed amount"))
		return
	}

	order, err := h.exchangeSvc.MarkPayinReceived(c.Request.Context(), ports.PayinEvent{
		OrderID:        id,
		ObservedAmount: observed,
		Confirmations:  req.Confirmations,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToOrderResponse(order))
}

// Settle handles POST /api/v1/exchange/orders/:id/settle.
func (h *ExchangeHandler) Settle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid order id"))
		return
	}

	order, err := h.exchangeSvc.Settle(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToOrderResponse(order))
}
