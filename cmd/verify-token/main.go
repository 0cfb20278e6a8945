package main

import (
	"flag"
	"fmt"
	"log"
	"os"
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
	issuer := flag.String("issuer", os.Getenv("SHARETOKEN_ISSUER"), "Expected issuer (env SHARETOKEN_ISSUER)")
	requireIssuer := flag.Bool("require-issuer", false, "Reject tokens from any other issuer")
	token := flag.String("token", os.Getenv("SHARETOKEN_TOKEN"), "Token or verification URL; first argument when empty (env SHARETOKEN_TOKEN)")
	at := flag.String("at", "", "Verify as of this RFC3339 time instead of now")
	verbose := flag.Bool("v", false, "Print the rejection reason")
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
			"SHARETOKEN_TOKEN":     token,
		})
	}
	if *token == "" && flag.NArg() > 0 {
		*token = flag.Arg(0)
	}
	if *token == "" {
		flag.Usage()
		log.Fatal("token is required (via flag, argument, .env, or environment variables)")
	}

	cfg, _, err := cliutil.KeyFlags{ConfigPath: *configPath, Secret: *secret, Issuer: *issuer}.Load()
	if err != nil {
		flag.Usage()
		log.Fatalf("load configuration: %v", err)
	}
	defer cfg.Key.Destroy()
	if *requireIssuer {
		cfg.RequireIssuer = true
	}

	verifier, err := sharetoken.NewVerifier(cfg)
	if err != nil {
		log.Fatalf("create verifier: %v", err)
	}
	defer verifier.Close()

	raw := sharetoken.TokenFromURL(*token)
	var res sharetoken.VerificationResult
	if *at != "" {
		now, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			log.Fatalf("invalid -at: %v", err)
		}
		res = verifier.VerifyAt(raw, now)
	} else {
		res = verifier.Verify(raw)
	}

	printResult(res, *verbose)
	if !res.Valid() {
		os.Exit(1)
	}
}

func printResult(res sharetoken.VerificationResult, verbose bool) {
	if info := res.Metadata; info != nil {
		fmt.Println("== Token Metadata (unverified) ==")
		fmt.Printf("algorithm    : %s\n", info.Algorithm)
		fmt.Printf("issuer       : %s\n", info.Issuer)
		fmt.Printf("issued_at    : %s\n", info.IssuedAt.Format(time.RFC3339))
		if info.NeverExpires() {
			fmt.Println("expires_at   : never")
		} else {
			fmt.Printf("expires_at   : %s\n", info.ExpiresAt.Format(time.RFC3339))
		}
	}

	fmt.Printf("== %s ==\n", res.Message())
	fmt.Printf("outcome      : %s\n", res.Outcome)
	if verbose && res.Reason != "" {
		fmt.Printf("reason       : %s\n", res.Reason)
	}
	if !res.Valid() {
		return
	}
	fmt.Println("claims:")
	for _, c := range res.Claims {
		fmt.Printf("  %s: %s\n", c.Name, c.Value)
	}
}
