package grpc

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/api"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userKey ctxKey = "user"

// protectedMethods need an access token in the request metadata.
var protectedMethods = map[string]bool{
	api.FullMethod(api.MethodGetProfile):     true,
	api.FullMethod(api.MethodUpdateProfile):  true,
	api.FullMethod(api.MethodChangePassword): true,
	api.FullMethod(api.MethodLogout):         true,
}

// UserFromContext returns the user resolved by the interceptor.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, api.MsgNoCredentials)
	}

	user, err := s.users.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, s.toStatus(ctx, info.FullMethod, err)
	}

	return handler(context.WithValue(ctx, userKey, user), req)
}
