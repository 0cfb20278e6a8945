package sharetoken

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultVerificationBaseURL is the page a scanned share code opens.
const DefaultVerificationBaseURL = "https://your-verification-site.com/verify"

// FileConfig is the on-disk form of Config.
type FileConfig struct {
	Algorithm           string        `yaml:"algorithm"`
	TokenType           string        `yaml:"token_type"`
	Issuer              string        `yaml:"issuer"`
	RequireIssuer       bool          `yaml:"require_issuer"`
	VerificationBaseURL string        `yaml:"verification_base_url"`
	Key                 KeyFileConfig `yaml:"key"`
}

// KeyFileConfig says where the signing secret comes from. Exactly one of
// Secret, SecretEnv, SecretFile and JWKFile must be set. Secrets are base64
// (standard or URL alphabet) or hex prefixed with "hex:".
type KeyFileConfig struct {
	Secret     string `yaml:"secret"`
	SecretEnv  string `yaml:"secret_env"`
	SecretFile string `yaml:"secret_file"`
	JWKFile    string `yaml:"jwk_file"`
	// HKDFInfo, when set, derives the signing key from the secret with HKDF-SHA256.
	HKDFInfo string `yaml:"hkdf_info"`
	HKDFSalt string `yaml:"hkdf_salt"`
}

// LoadConfig reads a YAML config file. ${VAR} references are expanded from the environment.
func LoadConfig(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, configError(fmt.Errorf("read %s: %w", path, err))
	}
	return ParseConfig([]byte(os.ExpandEnv(string(raw))))
}

// ParseConfig decodes YAML config content.
func ParseConfig(data []byte) (FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, configError(fmt.Errorf("parse config: %w", err))
	}
	return fc, nil
}

// BaseURL returns the verification base URL, falling back to the default.
func (fc FileConfig) BaseURL() string {
	if fc.VerificationBaseURL == "" {
		return DefaultVerificationBaseURL
	}
	return fc.VerificationBaseURL
}

// Build resolves the key and returns a Config. The caller owns the returned
// key and should Destroy it once issuers and verifiers have been built.
func (fc FileConfig) Build() (Config, error) {
	cfg := Config{
		TokenType:     fc.TokenType,
		Issuer:        fc.Issuer,
		RequireIssuer: fc.RequireIssuer,
	}
	if fc.Algorithm != "" {
		alg, err := ParseAlgorithm(fc.Algorithm)
		if err != nil {
			return Config{}, err
		}
		cfg.Algorithm = alg
	}
	key, err := fc.Key.Load()
	if err != nil {
		return Config{}, err
	}
	cfg.Key = key
	return cfg, nil
}

// Load resolves the configured key source.
func (kc KeyFileConfig) Load() (*SigningKey, error) {
	sources := 0
	for _, s := range []string{kc.Secret, kc.SecretEnv, kc.SecretFile, kc.JWKFile} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return nil, configError(errors.New("exactly one of key.secret, key.secret_env, key.secret_file, key.jwk_file must be set"))
	}

	var (
		secret []byte
		err    error
	)
	switch {
	case kc.JWKFile != "":
		data, err := os.ReadFile(kc.JWKFile)
		if err != nil {
			return nil, configError(fmt.Errorf("read jwk: %w", err))
		}
		key, err := SigningKeyFromJWK(data)
		zeroBytes(data)
		if err != nil || kc.HKDFInfo == "" {
			return key, err
		}
		defer key.Destroy()
		var derived *SigningKey
		err = key.use(func(master []byte) error {
			var derr error
			derived, derr = DeriveSigningKey(master, []byte(kc.HKDFSalt), []byte(kc.HKDFInfo), derivedKeySize(master))
			return derr
		})
		return derived, err
	case kc.Secret != "":
		secret, err = decodeSecret(kc.Secret)
	case kc.SecretEnv != "":
		value, ok := os.LookupEnv(kc.SecretEnv)
		if !ok {
			return nil, configError(fmt.Errorf("environment variable %s not set", kc.SecretEnv))
		}
		secret, err = decodeSecret(value)
	case kc.SecretFile != "":
		data, rerr := os.ReadFile(kc.SecretFile)
		if rerr != nil {
			return nil, configError(fmt.Errorf("read secret file: %w", rerr))
		}
		secret, err = decodeSecret(string(data))
		zeroBytes(data)
	}
	if err != nil {
		return nil, configError(err)
	}
	defer zeroBytes(secret)

	if kc.HKDFInfo != "" {
		return DeriveSigningKey(secret, []byte(kc.HKDFSalt), []byte(kc.HKDFInfo), derivedKeySize(secret))
	}
	return NewSigningKey(secret)
}

func derivedKeySize(master []byte) int {
	if len(master) > MinKeyLength {
		return len(master)
	}
	return MinKeyLength
}

// decodeSecret accepts "hex:<hex>" or base64 in either alphabet, padded or not.
func decodeSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "hex:"); ok {
		out, err := hex.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("decode hex secret: %w", err)
		}
		return out, nil
	}
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.StdEncoding,
	} {
		if out, err := enc.DecodeString(s); err == nil {
			return out, nil
		}
	}
	return nil, errors.New("secret is neither base64 nor \"hex:\" prefixed")
}
