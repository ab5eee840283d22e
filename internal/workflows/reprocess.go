package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/magvar/internal/core/domain"
)

// sliceLen bounds how much series data one activity touches. Long windows
// become many short activities, so a worker crash loses at most one slice of
// progress and retries stay cheap.
const sliceLen = 24 * time.Hour

// ReprocessInput identifies the deployment window to re-correct.
type ReprocessInput struct {
	DeploymentID string
	From         time.Time
	To           time.Time
}

// ReprocessDeploymentWorkflow re-corrects a stored window slice by slice and
// publishes a run-level summary once every slice has been rewritten. Slice
// activities publish their own progress events, so live subscribers see the
// run advance.
func ReprocessDeploymentWorkflow(ctx workflow.Context, input ReprocessInput) (*domain.ReprocessSummary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting reprocess workflow",
		"deployment", input.DeploymentID, "from", input.From, "to", input.To)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: the deployment must still exist. Runs can sit in the queue
	// long after the request that created them.
	if err := workflow.ExecuteActivity(ctx, "VerifyDeployment", input.DeploymentID).Get(ctx, nil); err != nil {
		return nil, err
	}

	// Step 2: walk the window in fixed slices.
	summary := &domain.ReprocessSummary{
		DeploymentID: input.DeploymentID,
		From:         input.From,
		To:           input.To,
		StartedAt:    workflow.Now(ctx).UTC(),
	}
	for from := input.From; from.Before(input.To); from = from.Add(sliceLen) {
		to := from.Add(sliceLen)
		if to.After(input.To) {
			to = input.To
		}

		var slice domain.ReprocessSummary
		if err := workflow.ExecuteActivity(ctx, "RecorrectSlice", input.DeploymentID, from, to).Get(ctx, &slice); err != nil {
			logger.Error("slice failed", "from", from, "error", err)
			return nil, err
		}
		summary.Samples += slice.Samples
		summary.ModelEpoch = slice.ModelEpoch
	}
	summary.FinishedAt = workflow.Now(ctx).UTC()

	// Step 3: announce the run. The corrected rows are already durable, so
	// a publish failure is logged rather than failing the run.
	if err := workflow.ExecuteActivity(ctx, "PublishRunSummary", summary).Get(ctx, nil); err != nil {
		logger.Warn("summary publish failed", "error", err)
	}

	logger.Info("Reprocess complete",
		"deployment", input.DeploymentID, "samples", summary.Samples)
	return summary, nil
}
