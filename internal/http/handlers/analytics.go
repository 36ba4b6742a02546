package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/contractlens-backend/internal/http/response"
	"github.com/yungbote/contractlens-backend/internal/services"
)

type AnalyticsHandler struct {
	contracts services.ContractService
}

func NewAnalyticsHandler(contractSvc services.ContractService) *AnalyticsHandler {
	return &AnalyticsHandler{contracts: contractSvc}
}

// GET /api/analytics/stats
func (h *AnalyticsHandler) Stats(c *gin.Context) {
	stats, err := h.contracts.Stats(requestDBC(c))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stats": stats})
}

// GET /api/analytics
func (h *AnalyticsHandler) Breakdown(c *gin.Context) {
	a, err := h.contracts.Analytics(requestDBC(c))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"analytics": a})
}
