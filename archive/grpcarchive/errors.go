package grpcarchive

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/wxmsg/archive"
)

// mapErr converts a Store error into a gRPC status.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errNoStore):
		return status.Error(codes.FailedPrecondition, errNoStore.Error())
	case errors.Is(err, archive.ErrNotFound):
		return status.Error(codes.NotFound, archive.ErrNotFound.Error())
	case errors.Is(err, archive.ErrInvalidCID):
		return status.Error(codes.InvalidArgument, archive.ErrInvalidCID.Error())
	case errors.Is(err, archive.ErrCIDMismatch):
		return status.Error(codes.DataLoss, archive.ErrCIDMismatch.Error())
	case errors.Is(err, archive.ErrImmutable):
		return status.Error(codes.AlreadyExists, archive.ErrImmutable.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// mapRPC converts a gRPC status back into the archive sentinel errors.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return archive.ErrNotFound
	case codes.InvalidArgument:
		if st.Message() == archive.ErrInvalidCID.Error() {
			return archive.ErrInvalidCID
		}
		return err
	case codes.DataLoss:
		return archive.ErrCIDMismatch
	case codes.AlreadyExists:
		return archive.ErrImmutable
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		return err
	}
}
