package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwk"

	sharetoken "github.com/bionicotaku/idwallet-sharetoken"
)

func main() {
	out := flag.String("out", "sharetoken.jwk", "Output file, or - for stdout")
	algName := flag.String("alg", "HS256", "Algorithm the key is tagged with: HS256, HS384 or HS512")
	size := flag.Int("size", 0, "Key size in bytes; the algorithm's hash size when 0")
	format := flag.String("format", "jwk", "Output format: jwk or base64")
	flag.Parse()

	alg, err := sharetoken.ParseAlgorithm(*algName)
	if err != nil {
		log.Fatalf("invalid -alg: %v", err)
	}
	if *size == 0 {
		*size = sharetoken.MinKeySize(alg)
	}
	if *size < sharetoken.MinKeySize(alg) {
		log.Fatalf("-size %d is below the %d bytes %s requires", *size, sharetoken.MinKeySize(alg), alg)
	}

	key, err := sharetoken.GenerateSigningKey(*size)
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}
	defer key.Destroy()

	exported, err := key.JWK(alg)
	if err != nil {
		log.Fatalf("export key: %v", err)
	}

	var data []byte
	switch *format {
	case "jwk":
		data, err = json.MarshalIndent(exported, "", "  ")
		if err != nil {
			log.Fatalf("marshal jwk: %v", err)
		}
	case "base64":
		data, err = encodeSecret(exported)
		if err != nil {
			log.Fatalf("encode secret: %v", err)
		}
	default:
		log.Fatalf("unknown -format %q", *format)
	}
	data = append(data, '\n')

	if err := write(*out, data); err != nil {
		log.Fatalf("write key: %v", err)
	}
	if *out != "-" {
		fmt.Printf("wrote %d-byte %s key %s to %s\n", key.Len(), alg, exported.KeyID(), *out)
	}
}

func encodeSecret(key jwk.Key) ([]byte, error) {
	var raw []byte
	if err := key.Raw(&raw); err != nil {
		return nil, err
	}
	return []byte(base64.StdEncoding.EncodeToString(raw)), nil
}

// write creates path with owner-only permissions and never overwrites an existing file.
func write(path string, data []byte) (err error) {
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = f.Write(data)
	return err
}
