package realtime

import (
	"github.com/google/uuid"
)

type SSEEvent string

const (
	SSEEventDocumentStatus      SSEEvent = "DocumentStatusChanged"
	SSEEventClausesAssessed     SSEEvent = "ClausesAssessed"
	SSEEventAmendmentsGenerated SSEEvent = "AmendmentsGenerated"

	SSEEventJobCreated  SSEEvent = "JobCreated"
	SSEEventJobProgress SSEEvent = "JobProgress"
	SSEEventJobDone     SSEEvent = "JobDone"
	SSEEventJobFailed   SSEEvent = "JobFailed"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// DocumentChannel is the channel carrying every event about one document.
func DocumentChannel(documentID uuid.UUID) string {
	return "document:" + documentID.String()
}
