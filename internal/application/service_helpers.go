package application

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/viralforge/deal-agents/internal/ports"
)

// closingLogID is stable for a given run and terminal status, so a closing
// entry written twice is stored once.
func closingLogID(runID, action, status string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("deal-agents/log/"+runID+"/"+action+"/"+status)).String()
}

func closingEventID(runID, eventType, status string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("deal-agents/event/"+runID+"/"+eventType+"/"+status))
}

func (s *Service) releaseLease(ctx context.Context, lease ports.Lease, contractID string) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		slog.Default().WarnContext(ctx, "failed to release run lock",
			"module", "application",
			"layer", "application",
			"operation", "release_lock",
			"outcome", "failure",
			"contract_id", contractID,
			"error", err,
		)
	}
}
