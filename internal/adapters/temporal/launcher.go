// Package temporal starts reprocess workflows from the API process.
package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/magvar/internal/workflows"
)

// Launcher implements ports.ReprocessLauncher on a temporal client.
type Launcher struct {
	client    client.Client
	taskQueue string
}

// NewLauncher wraps an existing temporal client.
func NewLauncher(c client.Client, taskQueue string) *Launcher {
	return &Launcher{client: c, taskQueue: taskQueue}
}

// Dial connects to the temporal server.
func Dial(hostPort, namespace string) (client.Client, error) {
	return client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
	})
}

// LaunchReprocess starts ReprocessDeploymentWorkflow and returns its run ID.
// The workflow ID encodes the deployment and window start, so resubmitting a
// window while its run is still active is rejected by the server instead of
// being corrected twice in parallel.
func (l *Launcher) LaunchReprocess(ctx context.Context, deploymentID string, from, to time.Time) (string, error) {
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("reprocess-%s-%d", deploymentID, from.Unix()),
		TaskQueue: l.taskQueue,
	}

	run, err := l.client.ExecuteWorkflow(ctx, opts, workflows.ReprocessDeploymentWorkflow, workflows.ReprocessInput{
		DeploymentID: deploymentID,
		From:         from,
		To:           to,
	})
	if err != nil {
		return "", fmt.Errorf("start reprocess workflow: %w", err)
	}
	return run.GetRunID(), nil
}
