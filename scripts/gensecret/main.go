// gensecret generates a secret key for Plume session token signing.
//
// Usage (run from the repo root):
//
//	go run scripts/gensecret/main.go
//
// Prints a 32-byte hex key to stdout. Paste it into the secrets.key field
// of plume.yaml to pre-provision a server without running the install
// wizard. The wizard generates one automatically when the field is empty,
// so this is only needed for headless or config-managed deployments where
// the document is written ahead of first boot.
//
// Rotating the key invalidates all existing session tokens.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

func main() {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		fmt.Fprintf(os.Stderr, "error: generate key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hex.EncodeToString(key))
}
