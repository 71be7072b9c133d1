// Package server реализует gRPC-сервис проверки токенов доступа.
//
// Другие сервисы приложения передают access-токен и получают UID аккаунта и telegram_id.
// Сообщения описываются well-known типами protobuf: запрос google.protobuf.StringValue,
// ответ google.protobuf.Struct с полями user_uid и telegram_id.
package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/magabrotheeeer/tma-fitness/internal/lib/jwt"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/sl"
)

const (
	// ServiceName полное имя gRPC-сервиса.
	ServiceName = "tma.identity.v1.IdentityService"
	// ValidateTokenMethod полное имя метода проверки токена.
	ValidateTokenMethod = "/" + ServiceName + "/ValidateToken"
)

// IdentityServiceServer серверная часть сервиса.
type IdentityServiceServer interface {
	ValidateToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

// TokenValidator проверяет access-токен.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

// IdentityServer реализует IdentityServiceServer поверх TokenValidator.
type IdentityServer struct {
	tokens TokenValidator
	log    *slog.Logger
}

// NewIdentityServer создает IdentityServer.
func NewIdentityServer(tokens TokenValidator, logger *slog.Logger) *IdentityServer {
	return &IdentityServer{
		tokens: tokens,
		log:    logger,
	}
}

// ValidateToken проверяет токен и возвращает данные аккаунта.
func (s *IdentityServer) ValidateToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	const op = "grpc.server.ValidateToken"

	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	claims, err := s.tokens.ValidateToken(ctx, req.GetValue())
	if err != nil {
		s.log.Info("invalid token", sl.Op(op), sl.Err(err))
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"user_uid":    structpb.NewStringValue(claims.UserUID()),
			"telegram_id": structpb.NewNumberValue(float64(claims.TelegramID)),
		},
	}, nil
}

// IdentityServiceDesc описание сервиса для grpc.Server.
var IdentityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IdentityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ValidateToken",
			Handler:    validateTokenHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tma/identity/v1/identity.proto",
}

// Register регистрирует srv в gRPC-сервере.
func Register(s grpc.ServiceRegistrar, srv IdentityServiceServer) {
	s.RegisterService(&IdentityServiceDesc, srv)
}

func validateTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServiceServer).ValidateToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ValidateTokenMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityServiceServer).ValidateToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
