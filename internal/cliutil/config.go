// Package cliutil holds the flag, environment and config plumbing shared by the
// sharetoken command line tools.
package cliutil

import (
	"errors"
	"fmt"

	sharetoken "github.com/bionicotaku/idwallet-sharetoken"
)

// Environment variables read by every tool.
const (
	ConfigVariable = "SHARETOKEN_CONFIG"
	SecretVariable = "SHARETOKEN_SECRET"
)

// KeyFlags are the two ways a tool can be told which key to use.
type KeyFlags struct {
	// ConfigPath points to a YAML config file.
	ConfigPath string
	// Secret is a base64 or "hex:" encoded secret, used when no config file is given.
	Secret string
	// Issuer overrides the configured issuer when set.
	Issuer string
}

// Load builds a sharetoken.Config and the verification base URL. The caller
// owns the returned key.
func (f KeyFlags) Load() (sharetoken.Config, string, error) {
	var (
		fc  sharetoken.FileConfig
		err error
	)
	switch {
	case f.ConfigPath != "":
		fc, err = sharetoken.LoadConfig(f.ConfigPath)
		if err != nil {
			return sharetoken.Config{}, "", err
		}
	case f.Secret != "":
		fc.Key.Secret = f.Secret
	default:
		return sharetoken.Config{}, "", errors.New("a key is required: set -config or -secret (env " + ConfigVariable + " / " + SecretVariable + ")")
	}
	if f.Issuer != "" {
		fc.Issuer = f.Issuer
	}

	cfg, err := fc.Build()
	if err != nil {
		return sharetoken.Config{}, "", fmt.Errorf("load key: %w", err)
	}
	return cfg, fc.BaseURL(), nil
}
