// Package main runs the double opt-in service without a database, using
// file-backed repositories. This is useful for:
// - Quick development and testing
// - Demo/prototype environments
// - Learning the API without database setup
//
// Emails go to the SMTP server configured via EMAIL_* (defaults target a
// local Mailpit on :1025). For production, use cmd/optin with PostgreSQL.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"

	"github.com/commercekit/double-optin/pkg/account"
	"github.com/commercekit/double-optin/pkg/checkout"
	checkoutapi "github.com/commercekit/double-optin/pkg/checkout/api"
	"github.com/commercekit/double-optin/pkg/config"
	"github.com/commercekit/double-optin/pkg/events"
	"github.com/commercekit/double-optin/pkg/notice"
	"github.com/commercekit/double-optin/pkg/ratelimit"
	"github.com/commercekit/double-optin/pkg/sweeper"
	"github.com/commercekit/double-optin/pkg/verification"
	verificationapi "github.com/commercekit/double-optin/pkg/verification/api"
)

const jwtSecret = "inmem-dev-secret-change-in-production"

type Config struct {
	DataDir      string `env:"OPTIN_DATA_DIR" env-default:"./data"`
	EmailConfig  config.EmailConfig
	Verification config.VerificationConfig
	Site         config.SiteConfig
	AppConfig    app.AppConfig
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	if err := cfg.Verification.Validate(); err != nil {
		slog.Error("Invalid verification config", "error", err)
		os.Exit(-1)
	}

	slog.Info("Starting double opt-in service with file storage (no database required)", "data_dir", cfg.DataDir)

	accountRepo, err := account.NewFileAccountRepository(cfg.DataDir + "/accounts")
	if err != nil {
		slog.Error("Failed creating account repository", "error", err)
		os.Exit(-1)
	}
	tokenRepo, err := verification.NewFileTokenRepository(cfg.DataDir + "/tokens")
	if err != nil {
		slog.Error("Failed creating token repository", "error", err)
		os.Exit(-1)
	}
	orderRepo, err := checkout.NewFileOrderRepository(cfg.DataDir + "/orders")
	if err != nil {
		slog.Error("Failed creating order repository", "error", err)
		os.Exit(-1)
	}

	notificationManager, err := notice.NewNotificationManager(cfg.EmailConfig.ToSMTPConfig())
	if err != nil {
		slog.Error("Failed creating notification manager", "error", err)
		os.Exit(-1)
	}

	accounts := account.NewService(accountRepo)
	seedAccounts(accounts)

	bus := events.NewBus()
	resendLimiter := ratelimit.NewResendLimiter(
		cfg.Verification.ResendMinInterval(),
		cfg.Verification.ResendMaxPerHour,
		time.Hour,
	)
	verifier := verification.NewService(tokenRepo, accounts, notificationManager, bus,
		resendLimiter, cfg.Verification, cfg.Site)

	pending := checkout.NewPendingCheckoutStore(checkout.DefaultPendingTTL)
	guestLimiter := ratelimit.NewResendLimiter(
		cfg.Verification.ResendMinInterval(),
		cfg.Verification.ResendMaxPerHour,
		time.Hour,
	)
	checkoutService := checkout.NewService(accounts, verifier, orderRepo, pending, guestLimiter, bus)

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)

	tokenAuth := jwtauth.New("HS256", []byte(jwtSecret), nil)

	verificationHandle := verificationapi.NewHandler(verifier)
	server.R.Mount("/", verificationHandle.Routes(tokenAuth))

	checkoutHandle := checkoutapi.NewHandler(checkoutService)
	server.R.Mount("/checkout", checkoutHandle.Routes())

	sweep := sweeper.New(verifier, accounts, pending, cfg.Verification,
		sweeper.WithInterval(time.Hour))
	go sweep.Run(context.Background())

	server.Run()
}

// seedAccounts creates a demo admin and shopper on first start.
func seedAccounts(accounts *account.Service) {
	ctx := context.Background()

	admin, err := accounts.Create(ctx, account.CreateParams{
		Email:    "admin@example.com",
		Username: "admin",
		Password: "admin-pwd",
		Admin:    true,
	})
	if err == nil {
		slog.Info("Seeded admin account", "account_id", admin.ID, "email", admin.Email)
	}

	shopper, err := accounts.Create(ctx, account.CreateParams{
		Email:    "shopper@example.com",
		Username: "shopper",
		Password: "shopper-pwd",
	})
	if err == nil {
		slog.Info("Seeded unverified shopper account", "account_id", shopper.ID, "email", shopper.Email)
	}
}
