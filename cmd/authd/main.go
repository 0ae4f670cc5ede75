package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	"github.com/tokenforge/authd"
	"github.com/tokenforge/authd/httpapi"
	"github.com/tokenforge/authd/internal/mailer"
	"github.com/tokenforge/authd/internal/userapi"
)

type options struct {
	addr         string
	redisAddr    string
	userAPIURL   string
	sesFrom      string
	issuer       string
	cookieDomain string
	sameSite     string
	cookieSecure bool
}

// Flags win over environment variables; environment variables win over
// defaults.
func parseOptions() options {
	var opts options
	flag.StringVar(&opts.addr, "addr", envOr("AUTHD_ADDR", ":8080"), "listen address")
	flag.StringVar(&opts.redisAddr, "redis", envOr("AUTHD_REDIS_ADDR", ""), "redis address, empty for in-memory stores")
	flag.StringVar(&opts.userAPIURL, "user-api", envOr("AUTHD_USER_API_URL", ""), "base URL of the user service")
	flag.StringVar(&opts.sesFrom, "ses-from", envOr("AUTHD_SES_FROM", ""), "verified SES sender, empty to disable email delivery")
	flag.StringVar(&opts.issuer, "issuer", envOr("AUTHD_ISSUER", "authd"), "JWT issuer claim")
	flag.StringVar(&opts.cookieDomain, "cookie-domain", envOr("AUTHD_COOKIE_DOMAIN", ""), "cookie domain")
	flag.StringVar(&opts.sameSite, "cookie-samesite", envOr("AUTHD_COOKIE_SAMESITE", "lax"), "cookie SameSite mode: lax, strict or none")
	flag.BoolVar(&opts.cookieSecure, "cookie-secure", envOr("AUTHD_COOKIE_SECURE", "") == "true", "mark cookies Secure")
	flag.Parse()
	return opts
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func main() {
	opts := parseOptions()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(opts, logger); err != nil {
		logger.Error("authd exited", "err", err)
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.userAPIURL == "" {
		return errors.New("user service URL is required")
	}

	cfg := authd.DefaultConfig()
	cfg.Token.Issuer = opts.issuer

	builder := authd.New().
		WithConfig(cfg).
		WithUserDirectory(userapi.New(opts.userAPIURL)).
		WithLogger(logger)

	if opts.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		defer client.Close()
		builder = builder.WithRedis(client)
	} else {
		logger.Warn("no redis configured, sessions will not survive a restart")
	}

	if opts.sesFrom != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return err
		}
		builder = builder.WithMailer(mailer.NewSES(sesv2.NewFromConfig(awsCfg), opts.sesFrom))
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}

	api := httpapi.NewServer(engine, httpapi.NewCookieManager(opts.cookieDomain, opts.cookieSecure, opts.sameSite), logger)
	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authd listening", "addr", opts.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
