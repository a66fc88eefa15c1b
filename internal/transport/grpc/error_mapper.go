package grpc

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
)

// MapError converts a domain error into a gRPC status error.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrFlowNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrStateNotFound),
		errors.Is(err, domain.ErrAttachmentNotFound),
		errors.Is(err, domain.ErrUnknownParty):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrMalformedAttachment):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, domain.ErrNotaryConflict),
		errors.Is(err, domain.ErrStateConsumed):
		return status.Error(codes.Aborted, err.Error())

	case errors.Is(err, domain.ErrNotInWhitelist),
		errors.Is(err, domain.ErrStructuralViolation),
		errors.Is(err, domain.ErrMultipleOrMissingCommand),
		errors.Is(err, domain.ErrAttachmentResolution),
		errors.Is(err, domain.ErrCounterpartyRejected):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, domain.ErrTimeout):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		observability.GetLogger(context.Background()).Error("internal gRPC error", zap.Error(err))
		return status.Error(codes.Internal, "internal server error")
	}
}
