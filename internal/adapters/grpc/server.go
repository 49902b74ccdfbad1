package grpc

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/loginforge/authd/internal/application"
	"github.com/loginforge/authd/internal/domain"
)

type AuthInternalService interface {
	IntrospectToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokeSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// AuthInternalServer exposes token introspection and forced session
// revocation to sibling services over gRPC.
type AuthInternalServer struct {
	service *application.Service
}

func NewAuthInternalServer(service *application.Service) *AuthInternalServer {
	return &AuthInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc AuthInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "loginforge.auth.v1.AuthInternalService",
		HandlerType: (*AuthInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "IntrospectToken",
				Handler:    introspectTokenHandler(svc),
			},
			{
				MethodName: "RevokeSession",
				Handler:    revokeSessionHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "proto/auth/v1/auth_internal.proto",
	}, svc)
}

func (s *AuthInternalServer) IntrospectToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token := req.GetFields()["token"].GetStringValue()
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}
	kind := domain.TokenKind(req.GetFields()["kind"].GetStringValue())
	if kind == "" {
		kind = domain.TokenKindAccess
	}

	result, err := s.service.IntrospectToken(ctx, kind, token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	resp, err := structpb.NewStruct(map[string]any{
		"active":     result.Active,
		"kind":       string(result.Kind),
		"expired":    result.Expired,
		"user_id":    result.UserID.String(),
		"session_id": result.SessionID.String(),
		"email":      result.Email,
		"expires_at": result.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *AuthInternalServer) RevokeSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw := req.GetFields()["session_id"].GetStringValue()
	sessionID, err := uuid.Parse(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid session_id")
	}

	if _, err := s.service.SignOut(ctx, sessionID); err != nil {
		return nil, status.Errorf(codes.Internal, "revoke session: %v", err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"revoked":    true,
		"session_id": sessionID.String(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func introspectTokenHandler(svc AuthInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.IntrospectToken(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/loginforge.auth.v1.AuthInternalService/IntrospectToken",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.IntrospectToken(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func revokeSessionHandler(svc AuthInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.RevokeSession(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/loginforge.auth.v1.AuthInternalService/RevokeSession",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.RevokeSession(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
