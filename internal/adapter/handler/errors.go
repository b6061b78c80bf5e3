package handler

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
)

func httpStatus(err error) int {
	if e, ok := domain.AsError(err); ok {
		switch e.Code {
		case domain.CodeInvalidArgument, domain.CodeUnknownAircraftType, domain.CodeUnknownPartType,
			domain.CodeCountMismatch, domain.CodeDuplicatePart, domain.CodePartTypeMismatch:
			return http.StatusBadRequest
		case domain.CodePartUnavailable, domain.CodeConcurrentConflict,
			domain.CodeAlreadyConsumed, domain.CodeDuplicateRequest:
			return http.StatusConflict
		case domain.CodeNotFound:
			return http.StatusNotFound
		case domain.CodeForbidden:
			return http.StatusForbidden
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func grpcCode(err error) codes.Code {
	if e, ok := domain.AsError(err); ok {
		switch e.Code {
		case domain.CodeInvalidArgument, domain.CodeUnknownAircraftType, domain.CodeUnknownPartType,
			domain.CodeCountMismatch, domain.CodeDuplicatePart, domain.CodePartTypeMismatch:
			return codes.InvalidArgument
		case domain.CodePartUnavailable, domain.CodeAlreadyConsumed:
			return codes.FailedPrecondition
		case domain.CodeConcurrentConflict:
			return codes.Aborted
		case domain.CodeDuplicateRequest:
			return codes.AlreadyExists
		case domain.CodeNotFound:
			return codes.NotFound
		case domain.CodeForbidden:
			return codes.PermissionDenied
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	return codes.Internal
}
