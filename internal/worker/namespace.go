package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"google.golang.org/protobuf/types/known/durationpb"
)

const (
	DefaultNamespace = "default"

	// Digest runs are only interesting for a few days after the fact.
	retention = 72 * time.Hour
)

// EnsureDefaultNamespace registers the namespace the worker runs in, treating
// one that already exists as success.
func EnsureDefaultNamespace(ctx context.Context, cli workflowservice.WorkflowServiceClient) error {
	return ensureNamespace(ctx, cli, DefaultNamespace)
}

func ensureNamespace(ctx context.Context, cli workflowservice.WorkflowServiceClient, namespace string) error {
	_, err := cli.RegisterNamespace(ctx, &workflowservice.RegisterNamespaceRequest{
		Namespace:                        namespace,
		Description:                      "Wishlist digest scheduling",
		WorkflowExecutionRetentionPeriod: durationpb.New(retention),
	})
	var alreadyErr *serviceerror.NamespaceAlreadyExists
	if errors.As(err, &alreadyErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error registering namespace %s: %s", namespace, err)
	}

	return nil
}
