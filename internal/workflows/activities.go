package workflows

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/magvar/internal/core/domain"
	"github.com/samirrijal/magvar/internal/core/ports"
	"github.com/samirrijal/magvar/internal/core/usecases"
)

// ReprocessActivities holds the activity implementations for the reprocess workflow.
type ReprocessActivities struct {
	Corrections *usecases.CorrectionService
	Deployments ports.DeploymentRepository
	Publisher   ports.EventPublisher
}

// VerifyDeployment fails when the deployment no longer exists.
func (a *ReprocessActivities) VerifyDeployment(ctx context.Context, deploymentID string) error {
	if _, err := a.Deployments.GetByID(ctx, deploymentID); err != nil {
		return fmt.Errorf("deployment %s: %w", deploymentID, err)
	}
	return nil
}

// RecorrectSlice rewrites the corrected components for one slice of the
// window and reports how many samples it touched.
func (a *ReprocessActivities) RecorrectSlice(ctx context.Context, deploymentID string, from, to time.Time) (*domain.ReprocessSummary, error) {
	activity.RecordHeartbeat(ctx, fmt.Sprintf("%s %s", deploymentID, from.Format(time.RFC3339)))

	summary, err := a.Corrections.RecorrectWindow(ctx, deploymentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("recorrect %s [%s, %s): %w",
			deploymentID, from.Format(time.RFC3339), to.Format(time.RFC3339), err)
	}
	return summary, nil
}

// PublishRunSummary emits the aggregated run summary event.
func (a *ReprocessActivities) PublishRunSummary(ctx context.Context, summary *domain.ReprocessSummary) error {
	if a.Publisher == nil {
		return nil
	}
	return a.Publisher.PublishReprocessSummary(ctx, summary)
}
