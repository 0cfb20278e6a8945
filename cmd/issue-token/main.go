package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	sharetoken "github.com/bionicotaku/idwallet-sharetoken"
	"github.com/bionicotaku/idwallet-sharetoken/internal/cliutil"
)

func main() {
	envPath := cliutil.DefaultEnvPath()
	if err := cliutil.LoadEnvFile(envPath); err != nil {
		log.Printf("warning: load %s: %v", envPath, err)
	}

	configPath := flag.String("config", os.Getenv(cliutil.ConfigVariable), "YAML config file (env SHARETOKEN_CONFIG)")
	secret := flag.String("secret", os.Getenv(cliutil.SecretVariable), "Signing secret, base64 or hex:..., used without -config (env SHARETOKEN_SECRET)")
	issuer := flag.String("issuer", os.Getenv("SHARETOKEN_ISSUER"), "Issuer written to the token (env SHARETOKEN_ISSUER)")
	recordPath := flag.String("record", os.Getenv("SHARETOKEN_RECORD"), "Identity record JSON file; sample record when empty (env SHARETOKEN_RECORD)")
	fields := flag.String("fields", os.Getenv("SHARETOKEN_FIELDS"), "Comma-separated fields to disclose; wallet defaults when empty (env SHARETOKEN_FIELDS)")
	expires := flag.String("expires", cliutil.EnvOr("SHARETOKEN_EXPIRES", "never"), "Expiration: never, 1h, 1d or 1w (env SHARETOKEN_EXPIRES)")
	baseURL := flag.String("base-url", os.Getenv("SHARETOKEN_BASE_URL"), "Verification page the link points to (env SHARETOKEN_BASE_URL)")
	dev := flag.Bool("dev", false, "Sign with a throwaway random key")
	timeout := flag.Duration("timeout", 5*time.Second, "Timeout for loading the record")
	envFlag := flag.String("env", envPath, "Path to .env file")
	flag.Parse()

	if *envFlag != "" && *envFlag != envPath {
		if err := cliutil.LoadEnvFile(*envFlag); err != nil {
			log.Printf("warning: load %s: %v", *envFlag, err)
		}
		cliutil.ReloadDefaults(map[string]*string{
			cliutil.ConfigVariable: configPath,
			cliutil.SecretVariable: secret,
			"SHARETOKEN_ISSUER":    issuer,
			"SHARETOKEN_RECORD":    recordPath,
			"SHARETOKEN_FIELDS":    fields,
			"SHARETOKEN_BASE_URL":  baseURL,
		})
	}

	choice, err := sharetoken.ParseExpirationChoice(*expires)
	if err != nil {
		flag.Usage()
		log.Fatalf("invalid -expires: %v", err)
	}
	names, err := parseFields(*fields)
	if err != nil {
		flag.Usage()
		log.Fatalf("invalid -fields: %v", err)
	}

	var (
		cfg        sharetoken.Config
		configured string
	)
	if *dev {
		cfg, err = sharetoken.DevConfig()
		configured = sharetoken.DefaultVerificationBaseURL
		log.Println("warning: signing with a throwaway key; tokens cannot be verified elsewhere")
	} else {
		cfg, configured, err = cliutil.KeyFlags{ConfigPath: *configPath, Secret: *secret, Issuer: *issuer}.Load()
	}
	if err != nil {
		flag.Usage()
		log.Fatalf("load configuration: %v", err)
	}
	defer cfg.Key.Destroy()
	if *baseURL == "" {
		*baseURL = configured
	}

	tokenIssuer, err := sharetoken.NewIssuer(cfg)
	if err != nil {
		log.Fatalf("create issuer: %v", err)
	}
	defer tokenIssuer.Close()

	records := sharetoken.StaticRecord(sharetoken.SampleRecord())
	if *recordPath != "" {
		records = cliutil.RecordFile(*recordPath)
	}

	provider, err := sharetoken.NewProvider(sharetoken.ProviderConfig{
		Issuer:     tokenIssuer,
		Records:    records,
		Expiration: choice,
		BaseURL:    *baseURL,
	})
	if err != nil {
		log.Fatalf("create provider: %v", err)
	}

	var opts []sharetoken.ShareOption
	if len(names) > 0 {
		opts = append(opts, sharetoken.WithFields(names...))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	link, err := provider.ShareURL(ctx, opts...)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	printShare(sharetoken.TokenFromURL(link), link)
}

// parseFields splits a comma-separated field list and rejects names the
// record does not have, so a typo cannot silently disclose nothing.
func parseFields(raw string) ([]string, error) {
	names := splitFields(raw)
	if unknown := sharetoken.UnknownFields(names...); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown %s (valid: %s)",
			strings.Join(unknown, ", "), strings.Join(sharetoken.RecordFields(), ", "))
	}
	return names, nil
}

func splitFields(raw string) []string {
	var out []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func printShare(token, link string) {
	fmt.Println("== Share Token Issued ==")
	fmt.Printf("token        : %s\n", token)
	fmt.Printf("url          : %s\n", link)
	info := sharetoken.DecodeForDisplay(token)
	if info == nil {
		return
	}
	fmt.Printf("algorithm    : %s\n", info.Algorithm)
	fmt.Printf("issuer       : %s\n", info.Issuer)
	fmt.Printf("issued_at    : %s\n", info.IssuedAt.Format(time.RFC3339))
	if info.NeverExpires() {
		fmt.Println("expires_at   : never")
	} else {
		fmt.Printf("expires_at   : %s\n", info.ExpiresAt.Format(time.RFC3339))
	}
}
