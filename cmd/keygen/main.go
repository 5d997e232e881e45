// keygen prints a fresh bootstrap admin key and the bcrypt hash the server
// expects in BOOTSTRAP_ADMIN_KEY_HASH. The plaintext key is shown once;
// only the hash is ever configured.
package main

import (
	"fmt"
	"io"
	"os"

	"conductor/internal/auth"
)

func main() {
	if err := run(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}
}

func run(w io.Writer) error {
	secret, err := auth.GenerateSecret()
	if err != nil {
		return err
	}
	hash, err := auth.HashSecret(secret)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "bootstrap admin key (store securely, shown once):\n  %s\n\n", secret)
	fmt.Fprintf(w, "server configuration:\n  BOOTSTRAP_ADMIN_KEY_HASH=%s\n", hash)
	return nil
}
