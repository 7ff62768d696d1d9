package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/0surface/Remittance/cmd/internal/passphrase"
	"github.com/0surface/Remittance/crypto"
)

const keystorePassEnv = "REMIT_KEYSTORE_PASS"

// newKeystoreSource is swapped in tests.
var newKeystoreSource = func() *passphrase.Source {
	return passphrase.NewSource(keystorePassEnv, "keystore passphrase").AllowEmpty()
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printError(stderr io.Writer, msg string) int {
	fmt.Fprintf(stderr, "Error: %s\n", msg)
	return 1
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	out := fs.String("out", "", "path of the keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*out) == "" {
		return printError(stderr, "--out is required")
	}
	pass, err := newKeystoreSource().Get()
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		return printError(stderr, err.Error())
	}
	addr := key.PubKey().Address()
	fmt.Fprintf(stdout, "Address: %s\nHex:     %s\nKeystore: %s\n", addr.String(), addr.Hex(), *out)
	return 0
}

func loadSigner(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("--keystore is required")
	}
	pass, err := newKeystoreSource().Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}
