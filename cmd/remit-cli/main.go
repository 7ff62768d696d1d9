package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const defaultEndpoint = "http://127.0.0.1:8545"

var rpcEndpoint = defaultRPCEndpoint()

func defaultRPCEndpoint() string {
	if url := strings.TrimSpace(os.Getenv("REMIT_RPC_URL")); url != "" {
		return url
	}
	return defaultEndpoint
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}

	command, rest := args[0], args[1:]
	switch command {
	case "keygen":
		return runKeygen(rest, stdout, stderr)
	case "generate-key":
		return runGenerateKey(rest, stdout, stderr)
	case "generate-secret":
		return runGenerateSecret(rest, stdout, stderr)
	case "deposit":
		return runDeposit(rest, stdout, stderr)
	case "withdraw":
		return runWithdraw(rest, stdout, stderr)
	case "refund":
		return runRefund(rest, stdout, stderr)
	case "entry":
		return runEntry(rest, stdout, stderr)
	case "config":
		return runConfig(rest, stdout, stderr)
	case "balance":
		return runBalance(rest, stdout, stderr)
	case "pause":
		return runPause(rest, stdout, stderr, true)
	case "unpause":
		return runPause(rest, stdout, stderr, false)
	case "set-lock":
		return runSetLock(rest, stdout, stderr)
	case "change-owner":
		return runChangeOwner(rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

// applyGlobalFlags strips --rpc <url> (or --rpc=<url>) from the front of args.
func applyGlobalFlags(args []string) ([]string, error) {
	for len(args) > 0 {
		arg := args[0]
		switch {
		case arg == "--rpc" || arg == "-rpc":
			if len(args) < 2 {
				return nil, fmt.Errorf("--rpc requires a URL")
			}
			rpcEndpoint = args[1]
			args = args[2:]
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			args = args[1:]
		default:
			return args, nil
		}
	}
	return args, nil
}

func usage() string {
	return `Usage: remit-cli [--rpc URL] <command> [flags]

Commands:
  keygen           --out <keystore>                      create an encrypted key
  generate-key     --recipient <addr> [--password <pw>]  derive a recipient-scheme ledger key
  generate-secret  --handler <addr> [--handler-password <pw>] [--receiver-password <pw>]
  deposit          --keystore <file> --key <0x..> --amount <n> [--lock <seconds>]
  withdraw         --keystore <file> [--password <pw>] [--handler-password <pw>]
  refund           --keystore <file> --key <0x..>
  entry            --key <0x..>
  config
  balance          <addr>
  pause            --keystore <file>
  unpause          --keystore <file>
  set-lock         --keystore <file> --duration <seconds>
  change-owner     --keystore <file> --new-owner <addr>

Passwords not given as flags are read from REMIT_PASSWORD / REMIT_HANDLER_PASSWORD
or prompted. Keystore passphrases come from REMIT_KEYSTORE_PASS or a prompt.`
}
