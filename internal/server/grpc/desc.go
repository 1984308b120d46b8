package grpc

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/server/api"
	"google.golang.org/grpc"
)

// AuthServiceServer is the server API of credkeeper.v1.AuthService.
type AuthServiceServer interface {
	Register(context.Context, *api.RegisterRequest) (*api.AuthResponse, error)
	Login(context.Context, *api.LoginRequest) (*api.AuthResponse, error)
	GetProfile(context.Context, *api.Empty) (*api.User, error)
	UpdateProfile(context.Context, *api.UpdateProfileRequest) (*api.ProfileResponse, error)
	ChangePassword(context.Context, *api.ChangePasswordRequest) (*api.MessageResponse, error)
	Logout(context.Context, *api.LogoutRequest) (*api.MessageResponse, error)
	RefreshToken(context.Context, *api.RefreshRequest) (*api.RefreshResponse, error)
	Status(context.Context, *api.Empty) (*api.StatusResponse, error)
}

// AuthServiceDesc describes AuthService for grpc.Server.RegisterService.
// Messages are plain structs and need the JSON codec.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: api.AuthServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(api.MethodRegister, AuthServiceServer.Register),
		unary(api.MethodLogin, AuthServiceServer.Login),
		unary(api.MethodGetProfile, AuthServiceServer.GetProfile),
		unary(api.MethodUpdateProfile, AuthServiceServer.UpdateProfile),
		unary(api.MethodChangePassword, AuthServiceServer.ChangePassword),
		unary(api.MethodLogout, AuthServiceServer.Logout),
		unary(api.MethodRefreshToken, AuthServiceServer.RefreshToken),
		unary(api.MethodStatus, AuthServiceServer.Status),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "credkeeper/v1/auth",
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

// unary builds the method handler the protoc plugin would generate for
// one request/response pair.
func unary[Req, Resp any](name string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: api.FullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
