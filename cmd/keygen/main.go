// Command keygen prints the configuration entry for an API key.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/tjfontaine/stagehand/internal/auth"
)

func main() {
	principal := flag.String("principal", "default", "principal the key identifies")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: keygen [-principal name] [api-key]")
		fmt.Fprintln(os.Stderr, "Hashes the API key (or a freshly generated one) for the auth section of config.yaml")
		flag.PrintDefaults()
	}
	flag.Parse()

	apiKey := flag.Arg(0)
	if apiKey == "" {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
			os.Exit(1)
		}
		apiKey = "sh_" + hex.EncodeToString(buf)
	}

	fmt.Printf("API Key: %s\n", apiKey)
	fmt.Printf("SHA-256 Hash: %s\n", auth.HashAPIKey(apiKey))
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Println("auth:")
	fmt.Println("  api_keys:")
	fmt.Printf("    - key_hash: %q\n", auth.HashAPIKey(apiKey))
	fmt.Printf("      principal: %q\n", *principal)
}
