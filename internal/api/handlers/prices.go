package handlers

import (
	"net/http"

	"rec-lem-prices/internal/api/models"
	"rec-lem-prices/internal/model"
	"rec-lem-prices/internal/pricing"

	"github.com/gin-gonic/gin"
)

// PriceHandler prices single sessions without scheduling.
type PriceHandler struct{}

func NewPriceHandler() *PriceHandler {
	return &PriceHandler{}
}

// Price handles POST /api/v1/prices
func (h *PriceHandler) Price(c *gin.Context) {
	var req models.PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err)
		return
	}

	params := req.Pricing.WithDefaults()
	fn, err := params.Func()
	if err != nil {
		writeError(c, err)
		return
	}
	clearing, err := pricing.Clear(fn, req.Buys, req.Sells)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.PriceResponse{
		Mechanism:     params.Name(),
		Price:         clearing.Price,
		AcceptedBuys:  nonNil(clearing.AcceptedBuys),
		AcceptedSells: nonNil(clearing.AcceptedSells),
		OffersCross:   clearing.OffersCross,
	})
}

// nonNil keeps empty offer lists as [] rather than null in JSON.
func nonNil(offers []model.Offer) []model.Offer {
	if offers == nil {
		return []model.Offer{}
	}
	return offers
}
