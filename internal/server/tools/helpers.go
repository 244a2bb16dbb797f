// Copyright 2025 Joseph Cumines
//
// Package tools provides helper utilities for the MCP server implementation.
//
// Key utilities:
//   - PollUntilComplete: Polls a long-running operation until completion
//   - PollUntilContext: Polls a condition function until success or timeout
//   - Sleep: Waits for a duration unless the context ends first

package tools

import (
	"context"
	"fmt"
	"time"

	longrunningpb "cloud.google.com/go/longrunning/autogen/longrunningpb"
)

// PollUntilComplete polls an operation until it is done. A done operation
// carrying an error status is returned along with a non-nil error.
func PollUntilComplete(ctx context.Context, client longrunningpb.OperationsClient, opName string, interval time.Duration) (*longrunningpb.Operation, error) {
	var op *longrunningpb.Operation
	err := PollUntilContext(ctx, interval, func() (bool, error) {
		var err error
		op, err = client.GetOperation(ctx, &longrunningpb.GetOperationRequest{Name: opName})
		if err != nil {
			return false, fmt.Errorf("failed to get operation: %w", err)
		}
		return op.GetDone(), nil
	})
	if err != nil {
		return nil, err
	}
	if e := op.GetError(); e != nil {
		return op, fmt.Errorf("operation failed: %s", e.GetMessage())
	}
	return op, nil
}

// PollUntilContext polls a condition function until it returns true or the context times out
func PollUntilContext(ctx context.Context, interval time.Duration, condition func() (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := condition()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// Sleep waits for d, returning ctx.Err() if the context ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
