package ports

import (
	"context"

	"github.com/viralforge/deal-agents/internal/domain"
)

// TransferExecutor moves funds for one instruction and waits for the
// receipt. Implementations must not retry a submitted transfer.
type TransferExecutor interface {
	Transfer(ctx context.Context, instruction domain.PaymentInstruction) (domain.TransferReceipt, error)
}
