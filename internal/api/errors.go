package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"backtester/internal/domain"
)

// toStatus maps a backtest error onto a gRPC status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, domain.ErrConfiguration):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrNoData):
		return codes.NotFound
	case errors.Is(err, domain.ErrData), errors.Is(err, domain.ErrComputation):
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}
