// Package identity запускает gRPC-сервис проверки токенов доступа.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"

	"github.com/magabrotheeeer/tma-fitness/internal/config"
	"github.com/magabrotheeeer/tma-fitness/internal/grpc/server"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/jwt"
	authservice "github.com/magabrotheeeer/tma-fitness/internal/services/auth"
)

// App gRPC-приложение.
type App struct {
	grpcServer *grpc.Server
	listener   net.Listener
	logger     *slog.Logger
}

// New создает приложение и открывает порт cfg.GRPCAddress.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return nil, fmt.Errorf("identity.New: %w", err)
	}
	return NewWithListener(lis, authservice.NewTokenVerifier(jwtMaker), logger), nil
}

// NewWithListener создает приложение поверх готового listener.
func NewWithListener(lis net.Listener, tokens server.TokenValidator, logger *slog.Logger) *App {
	grpcServer := grpc.NewServer()
	server.Register(grpcServer, server.NewIdentityServer(tokens, logger))
	return &App{
		grpcServer: grpcServer,
		listener:   lis,
		logger:     logger,
	}
}

// Run обслуживает запросы до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("identity gRPC service listening on", slog.String("address", a.listener.Addr().String()))
		errCh <- a.grpcServer.Serve(a.listener)
	}()

	select {
	case <-ctx.Done():
		a.grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
