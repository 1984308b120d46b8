package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/api"
	"github.com/dmitrijs2005/credkeeper/internal/server/validation"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps a service error to a gRPC status. Field errors travel as
// an errdetails.BadRequest; unexpected errors are logged and replaced by
// a generic Internal status.
func (s *GRPCServer) toStatus(ctx context.Context, method string, err error) error {
	if ve, ok := validation.AsError(err); ok {
		code := codes.InvalidArgument
		if ve.Conflict {
			code = codes.AlreadyExists
		}
		return fieldViolations(code, ve)
	}

	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, api.MsgBadCredentials)
	case errors.Is(err, common.ErrAccountDisabled):
		return status.Error(codes.PermissionDenied, api.MsgAccountDisabled)
	case errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.InvalidArgument, api.MsgInvalidToken)
	case errors.Is(err, common.ErrorUnauthorized):
		if method == api.FullMethod(api.MethodRefreshToken) {
			return status.Error(codes.Unauthenticated, api.MsgRefreshNotValid)
		}
		return status.Error(codes.Unauthenticated, api.MsgTokenNotValid)
	default:
		s.logger.Error(ctx, "request failed", "method", method, "error", err)
		return status.Error(codes.Internal, api.MsgInternalError)
	}
}

func fieldViolations(code codes.Code, ve *validation.Error) error {
	br := &errdetails.BadRequest{}
	for _, field := range ve.Fields.Fields() {
		for _, msg := range ve.Fields[field] {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       field,
				Description: msg,
			})
		}
	}

	st, err := status.New(code, ve.Error()).WithDetails(br)
	if err != nil {
		return status.Error(code, ve.Error())
	}
	return st.Err()
}
