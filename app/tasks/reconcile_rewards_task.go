package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lumilearn/lumifeed/app/ledger"
)

const reconcileBatchSize = 50

// ReconcileRewardsTask replays reward increments that failed when they
// were first issued. The feed core never retries a failed credit itself;
// this task is the "later reconciliation" half of that trade-off.
type ReconcileRewardsTask struct {
	Task
	ledgerSvc *ledger.Ledger
}

func NewReconcileRewardsTask(ledgerSvc *ledger.Ledger) *ReconcileRewardsTask {
	return &ReconcileRewardsTask{
		Task:      NewTask(TaskTypeReconcileRewards, "reward-journal"),
		ledgerSvc: ledgerSvc,
	}
}

func (t *ReconcileRewardsTask) Execute(ctx context.Context) error {
	settled, failed, err := t.ledgerSvc.Reconcile(ctx, reconcileBatchSize)
	if err != nil {
		return fmt.Errorf("failed to reconcile rewards: %w", err)
	}

	if settled > 0 || failed > 0 {
		slog.Info("Reward reconciliation completed", "settled", settled, "failed", failed,
			"duration", t.GetDuration().String())
	}
	return nil
}
