package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	sharetoken "github.com/bionicotaku/idwallet-sharetoken"
	"github.com/bionicotaku/idwallet-sharetoken/internal/cliutil"
	"github.com/bionicotaku/idwallet-sharetoken/internal/verifyserver"
)

func main() {
	envPath := cliutil.DefaultEnvPath()
	if err := cliutil.LoadEnvFile(envPath); err != nil {
		log.Printf("warning: load %s: %v", envPath, err)
	}

	defaultPort, err := strconv.Atoi(cliutil.EnvOr("SHARETOKEN_PORT", "8080"))
	if err != nil {
		log.Fatalf("invalid SHARETOKEN_PORT: %v", err)
	}

	configPath := flag.String("config", os.Getenv(cliutil.ConfigVariable), "YAML config file (env SHARETOKEN_CONFIG)")
	secret := flag.String("secret", os.Getenv(cliutil.SecretVariable), "Signing secret, base64 or hex:..., used without -config (env SHARETOKEN_SECRET)")
	issuer := flag.String("issuer", os.Getenv("SHARETOKEN_ISSUER"), "Expected issuer (env SHARETOKEN_ISSUER)")
	requireIssuer := flag.Bool("require-issuer", false, "Reject tokens from any other issuer")
	host := flag.String("host", cliutil.EnvOr("SHARETOKEN_HOST", "127.0.0.1"), "Listen host (env SHARETOKEN_HOST)")
	port := flag.Int("port", defaultPort, "Listen port (env SHARETOKEN_PORT)")
	logLevel := flag.String("log-level", cliutil.EnvOr("SHARETOKEN_LOG_LEVEL", "info"), "debug, info, warn or error (env SHARETOKEN_LOG_LEVEL)")
	allowedOrigins := flag.String("allowed-origins", os.Getenv("SHARETOKEN_ALLOWED_ORIGINS"), "Comma-separated origins allowed to call the API from a browser (env SHARETOKEN_ALLOWED_ORIGINS)")
	shutdownTimeout := flag.Duration("shutdown-timeout", 5*time.Second, "Grace period for in-flight requests")
	flag.Parse()

	logger := cliutil.NewLogger(os.Stderr, *logLevel)

	cfg, _, err := cliutil.KeyFlags{ConfigPath: *configPath, Secret: *secret, Issuer: *issuer}.Load()
	if err != nil {
		flag.Usage()
		log.Fatalf("load configuration: %v", err)
	}
	if *requireIssuer {
		cfg.RequireIssuer = true
	}
	cfg.Logger = logger

	verifier, err := sharetoken.NewVerifier(cfg)
	cfg.Key.Destroy()
	if err != nil {
		log.Fatalf("create verifier: %v", err)
	}
	defer verifier.Close()

	srv := verifyserver.New(verifier, verifyserver.Config{
		Host:           *host,
		Port:           *port,
		AllowedOrigins: splitOrigins(*allowedOrigins),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("serve: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("shutdown incomplete", "error", err)
		}
	}
}

func splitOrigins(value string) []string {
	var origins []string
	for _, origin := range strings.Split(value, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
