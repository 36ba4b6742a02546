package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/contractlens-backend/internal/http/response"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
	"github.com/yungbote/contractlens-backend/internal/realtime"
	"github.com/yungbote/contractlens-backend/internal/services"
)

type RealtimeHandler struct {
	log       *logger.Logger
	hub       *realtime.SSEHub
	contracts services.ContractService
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, contractSvc services.ContractService) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub, contracts: contractSvc}
}

// GET /api/documents/:id/events
//
// Streams the document's status, assessment and job events until the client
// disconnects.
func (h *RealtimeHandler) DocumentEvents(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if _, err := h.contracts.GetDocument(requestDBC(c), id); err != nil {
		response.RespondErr(c, err)
		return
	}

	client := h.hub.NewSSEClient()
	h.hub.AddChannel(client, realtime.DocumentChannel(id))
	defer h.hub.CloseClient(client)

	h.log.Debug("document stream open", "document_id", id, "sse_client_id", client.ID)
	h.hub.Serve(c.Writer, c.Request, client)
}
