// derive_key.go prints the public key and a derived address for a
// hex-encoded private key file.
// Usage: go run scripts/derive_key.go <keyfile>
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/luna-coin/luna-wallet/internal/wallet"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <keyfile>")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "read key file: %v\n", err)
		os.Exit(1)
	}

	kp, err := wallet.KeyFromHex(strings.TrimSpace(string(data)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("public key: %s\n", kp.PublicKeyHex())
	fmt.Printf("address:    %s\n", kp.Address)
}
