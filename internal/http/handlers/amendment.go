package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	repos "github.com/yungbote/contractlens-backend/internal/data/repos/contracts"
	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/http/response"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
	"github.com/yungbote/contractlens-backend/internal/services"
)

type AmendmentHandler struct {
	contracts services.ContractService
	pipeline  Pipeline
}

func NewAmendmentHandler(contractSvc services.ContractService, pipeline Pipeline) *AmendmentHandler {
	return &AmendmentHandler{contracts: contractSvc, pipeline: pipeline}
}

// GET /api/amendments
func (h *AmendmentHandler) List(c *gin.Context) {
	var (
		filter repos.AmendmentFilter
		err    error
	)
	if filter.DocumentID, err = queryUUID(c, "document_id"); err != nil {
		response.RespondErr(c, err)
		return
	}
	if filter.Status, err = queryEnum(c, "status", contracts.AmendmentStatuses); err != nil {
		response.RespondErr(c, err)
		return
	}
	if filter.Page, err = queryPage(c); err != nil {
		response.RespondErr(c, err)
		return
	}
	amendments, total, err := h.contracts.ListAmendments(requestDBC(c), filter)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	page := filter.Page.Normalized()
	response.RespondOK(c, gin.H{"amendments": amendments, "total": total, "offset": page.Offset, "limit": page.Limit})
}

// GET /api/amendments/:id
func (h *AmendmentHandler) Get(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	amendment, err := h.contracts.GetAmendment(requestDBC(c), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"amendment": amendment})
}

type updateAmendmentStatusRequest struct {
	Status string `json:"status"`
}

// PATCH /api/amendments/:id/status
func (h *AmendmentHandler) UpdateStatus(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	var req updateAmendmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondErr(c, fmt.Errorf("%w: invalid request body", errs.ErrInvalidArgument))
		return
	}
	amendment, err := h.pipeline.UpdateAmendmentStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"amendment": amendment})
}

// DELETE /api/amendments/:id
func (h *AmendmentHandler) Delete(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if err := h.contracts.DeleteAmendment(requestDBC(c), id); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true, "id": id})
}
