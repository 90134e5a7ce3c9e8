package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/amirasaad/chipload/cmd/server/swagger"
	"github.com/amirasaad/chipload/infra/initializer"
	"github.com/amirasaad/chipload/pkg/app"
	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/webapi"
	log "github.com/charmbracelet/log"
)

// @title Chipload API
// @version 1.0.0
// @description Chip ledger for agents and players: deposits, withdrawals and payment verification.
// @host localhost:3000
// @BasePath /
//
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description "Enter your Bearer token in the format: `Bearer {token}`"
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	envFile := flag.String("env", ".env", "environment file")
	tokenFor := flag.String("issue-token", "", "print a token for an existing user and exit")
	bootstrap := flag.String("bootstrap-admin", "", "create the admin if missing, print its token and exit")
	flag.Parse()

	logger := slog.Default()
	cfg, err := config.Load(*envFile)
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	// Initialize all dependencies
	deps, cleanup, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer cleanup()
	logger = deps.Logger

	a, err := app.New(deps)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *bootstrap != "":
		return printToken(ctx, a, *bootstrap, true)
	case *tokenFor != "":
		return printToken(ctx, a, *tokenFor, false)
	}

	if a.Sweeper != nil {
		if err := a.Sweeper.Start(); err != nil {
			return fmt.Errorf("failed to start sweeper: %w", err)
		}
		defer a.Sweeper.Stop()
	}

	// Setup Fiber app with all routes and middleware
	fiberApp := webapi.SetupApp(a)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- fiberApp.Listen(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return fiberApp.ShutdownWithContext(shutdownCtx)
	}
}

func printToken(ctx context.Context, a *app.App, username string, bootstrap bool) error {
	token, err := issueToken(ctx, a, username, bootstrap)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// issueToken signs a token for username. With bootstrap set, a missing user is
// created as an admin so a fresh install has someone to create agents.
func issueToken(ctx context.Context, a *app.App, username string, bootstrap bool) (string, error) {
	users := a.Deps.Uow.UserRepository()
	u, err := users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) && bootstrap {
		u, err = user.New(username, user.RoleAdmin, nil)
		if err != nil {
			return "", err
		}
		if err = users.Create(ctx, u); err != nil {
			return "", err
		}
		a.Deps.Logger.Info("Bootstrapped admin", "user_id", u.ID, "username", u.Username)
	}
	if err != nil {
		return "", fmt.Errorf("issue token for %q: %w", username, err)
	}
	if bootstrap && u.Role != user.RoleAdmin {
		return "", fmt.Errorf("%w: %q exists and is not an admin", domain.ErrValidation, username)
	}
	return a.AuthService.GenerateToken(u)
}
