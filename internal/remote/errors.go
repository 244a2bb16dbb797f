// Copyright 2025 Joseph Cumines

package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joeycumines/windows-mcp/internal/desktop"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps desktop errors to gRPC status errors.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case errors.Is(err, desktop.ErrInvalidArgument):
		code = codes.InvalidArgument
	case errors.Is(err, desktop.ErrUnsupportedPlatform):
		code = codes.Unimplemented
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// fromStatus restores the desktop sentinel errors from a gRPC status, so
// callers can keep using errors.Is. Other statuses are returned unchanged.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return restore(desktop.ErrInvalidArgument, st.Message())
	case codes.Unimplemented:
		return restore(desktop.ErrUnsupportedPlatform, st.Message())
	case codes.DeadlineExceeded:
		return restore(context.DeadlineExceeded, st.Message())
	}
	return err
}

func restore(sentinel error, msg string) error {
	msg = strings.TrimPrefix(msg, sentinel.Error())
	msg = strings.TrimPrefix(msg, ": ")
	if msg == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
