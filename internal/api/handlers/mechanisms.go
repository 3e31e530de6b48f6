package handlers

import (
	"log"
	"net/http"

	"rec-lem-prices/internal/api/models"
	"rec-lem-prices/internal/pricing"

	"github.com/gin-gonic/gin"
)

// MechanismHandler handles mechanism-related requests
type MechanismHandler struct{}

// NewMechanismHandler creates a new mechanism handler
func NewMechanismHandler() *MechanismHandler {
	return &MechanismHandler{}
}

// ListMechanisms handles GET /api/v1/mechanisms
func (h *MechanismHandler) ListMechanisms(c *gin.Context) {
	pruned := models.ParameterInfo{
		Name:        "pruned",
		Type:        "bool",
		Description: "Screen offers down to the ones that would transact before pricing",
		Default:     false,
	}
	mechanisms := []models.MechanismInfo{
		{
			Name:        string(pricing.MechanismCrossingValue),
			Description: "Value at which cumulative supply meets cumulative demand. Falls back to the last assigned value when one side runs out.",
			Parameters: []models.ParameterInfo{
				{
					Name:        "small_increment",
					Type:        "float",
					Description: "Increment added to sort keys so that equal values order deterministically",
					Default:     0.0,
				},
			},
		},
		{
			Name:        string(pricing.MechanismMMR),
			Description: "Mid-market rate: (least valuable bid + most valuable ask) / divisor. Crossing offers fall back to the crossing value.",
			Parameters: []models.ParameterInfo{
				{
					Name:        "divisor",
					Type:        "float",
					Description: "Divisor of the bid/ask sum (2 = midpoint)",
					Default:     pricing.DefaultDivisor,
				},
				pruned,
			},
		},
		{
			Name:        string(pricing.MechanismSDR),
			Description: "Supply-demand ratio. Moves the price between the most valuable ask and the least valuable bid by the ratio of offered supply to demand.",
			Parameters: []models.ParameterInfo{
				{
					Name:        "compensation",
					Type:        "float",
					Description: "Share of the spread within [0, 1] added to the ask (0 = plain SDR)",
					Default:     0.0,
				},
				pruned,
			},
		},
		{
			Name:        string(pricing.MechanismDual),
			Description: "Shadow prices of the local balance constraint, read from the scheduler with all local prices at zero.",
			Parameters:  []models.ParameterInfo{},
		},
	}

	log.Printf("MechanismHandler: Returning %d mechanisms", len(mechanisms))
	c.JSON(http.StatusOK, gin.H{"mechanisms": mechanisms})
}
