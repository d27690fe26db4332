package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jinzhu/copier"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/commercekit/double-optin/pkg/account"
	"github.com/commercekit/double-optin/pkg/checkout"
	checkoutapi "github.com/commercekit/double-optin/pkg/checkout/api"
	"github.com/commercekit/double-optin/pkg/config"
	"github.com/commercekit/double-optin/pkg/events"
	"github.com/commercekit/double-optin/pkg/notice"
	"github.com/commercekit/double-optin/pkg/notification"
	"github.com/commercekit/double-optin/pkg/ratelimit"
	"github.com/commercekit/double-optin/pkg/sweeper"
	"github.com/commercekit/double-optin/pkg/verification"
	verificationapi "github.com/commercekit/double-optin/pkg/verification/api"
)

type JwtConfig struct {
	JwtSecret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}

type SweepConfig struct {
	IntervalHours int `env:"OPTIN_SWEEP_INTERVAL_HOURS" env-default:"24"`
}

type Config struct {
	DbConfig     config.DatabaseConfig
	EmailConfig  config.EmailConfig
	Verification config.VerificationConfig
	Site         config.SiteConfig
	AppConfig    app.AppConfig
	JwtConfig    JwtConfig
	SweepConfig  SweepConfig
}

func main() {

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	if err := cfg.Verification.Validate(); err != nil {
		slog.Error("Invalid verification config", "error", err)
		os.Exit(-1)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	dbConfig := cfg.DbConfig.ToDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(-1)
	}

	var smtpConfig notification.SMTPConfig
	copier.Copy(&smtpConfig, &cfg.EmailConfig)
	notificationManager, err := notice.NewNotificationManager(smtpConfig)
	if err != nil {
		slog.Error("Failed creating notification manager", "error", err)
		os.Exit(-1)
	}

	accounts := account.NewService(account.NewRepository(pool))

	bus := events.NewBus()
	resendLimiter := ratelimit.NewResendLimiter(
		cfg.Verification.ResendMinInterval(),
		cfg.Verification.ResendMaxPerHour,
		time.Hour,
	)
	verifier := verification.NewService(
		verification.NewRepository(pool),
		accounts,
		notificationManager,
		bus,
		resendLimiter,
		cfg.Verification,
		cfg.Site,
	)

	pending := checkout.NewPendingCheckoutStore(checkout.DefaultPendingTTL)
	guestLimiter := ratelimit.NewResendLimiter(
		cfg.Verification.ResendMinInterval(),
		cfg.Verification.ResendMaxPerHour,
		time.Hour,
	)
	checkoutService := checkout.NewService(
		accounts,
		verifier,
		checkout.NewOrderRepository(pool),
		pending,
		guestLimiter,
		bus,
	)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JwtConfig.JwtSecret), nil)

	// Guest endpoints are unauthenticated, so they get a per-IP throttle
	throttle := ratelimit.NewMiddleware(time.Second, 600)

	verificationHandle := verificationapi.NewHandler(verifier)
	server.R.Mount("/", verificationHandle.Routes(tokenAuth))

	checkoutHandle := checkoutapi.NewHandler(checkoutService)
	server.R.With(throttle.Handler).Mount("/checkout", checkoutHandle.Routes())

	sweep := sweeper.New(verifier, accounts, pending, cfg.Verification,
		sweeper.WithInterval(time.Duration(cfg.SweepConfig.IntervalHours)*time.Hour))
	go sweep.Run(context.Background())

	server.Run()

}
