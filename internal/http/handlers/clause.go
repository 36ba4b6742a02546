package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/contractlens-backend/internal/http/response"
	"github.com/yungbote/contractlens-backend/internal/services"
)

type ClauseHandler struct {
	contracts services.ContractService
	pipeline  Pipeline
}

func NewClauseHandler(contractSvc services.ContractService, pipeline Pipeline) *ClauseHandler {
	return &ClauseHandler{contracts: contractSvc, pipeline: pipeline}
}

// GET /api/clauses/:id
func (h *ClauseHandler) Get(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	clause, err := h.contracts.GetClause(requestDBC(c), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"clause": clause})
}

// DELETE /api/clauses/:id
func (h *ClauseHandler) Delete(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if err := h.contracts.DeleteClause(requestDBC(c), id); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true, "id": id})
}

// POST /api/clauses/:id/assess-risk
func (h *ClauseHandler) AssessRisk(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	clause, err := h.pipeline.AssessRisk(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"clause": clause})
}

// POST /api/clauses/:id/amendments/generate
func (h *ClauseHandler) GenerateAmendment(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	amendment, err := h.pipeline.GenerateAmendmentForClause(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"amendment": amendment})
}
