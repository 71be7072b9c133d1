// Package client — клиент gRPC-сервиса проверки токенов.
package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/magabrotheeeer/tma-fitness/internal/grpc/server"
)

// ErrBadResponse — ответ сервиса не содержит ожидаемых полей.
var ErrBadResponse = errors.New("identity service returned malformed response")

// Identity данные аккаунта из проверенного токена.
type Identity struct {
	UserUID    string
	TelegramID int64
}

// IdentityClient вызывает tma.identity.v1.IdentityService.
type IdentityClient struct {
	conn *grpc.ClientConn
}

// NewIdentityClient создает клиент. Соединение устанавливается лениво при первом вызове.
func NewIdentityClient(addr string, opts ...grpc.DialOption) (*IdentityClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("client.NewIdentityClient: %w", err)
	}
	return &IdentityClient{conn: conn}, nil
}

// Close закрывает соединение.
func (c *IdentityClient) Close() error {
	return c.conn.Close()
}

// ValidateToken проверяет access-токен на стороне сервиса.
// Ошибки сервиса возвращаются как статусы gRPC.
func (c *IdentityClient) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, server.ValidateTokenMethod, wrapperspb.String(token), out); err != nil {
		return nil, err
	}

	uid := out.GetFields()["user_uid"].GetStringValue()
	tgID, ok := out.GetFields()["telegram_id"]
	if uid == "" || !ok {
		return nil, ErrBadResponse
	}
	return &Identity{
		UserUID:    uid,
		TelegramID: int64(tgID.GetNumberValue()),
	}, nil
}
