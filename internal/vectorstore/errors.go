package vectorstore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"notesearch/internal/service"
)

// transientCodes are gRPC codes worth retrying.
var transientCodes = map[codes.Code]bool{
	codes.Unavailable:       true,
	codes.DeadlineExceeded:  true,
	codes.ResourceExhausted: true,
	codes.Aborted:           true,
	codes.Internal:          true,
	codes.Unknown:           true,
}

// classifyGRPC wraps err as a TransientError when its gRPC status is retryable.
func classifyGRPC(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return service.Transient(op, err)
	}
	if st, ok := status.FromError(err); ok && transientCodes[st.Code()] {
		return service.Transient(op, err)
	}
	return err
}
