package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/0surface/Remittance/cmd/internal/passphrase"
	"github.com/0surface/Remittance/core/types"
	"github.com/0surface/Remittance/crypto"
	"github.com/0surface/Remittance/rpc/modules"
)

const (
	passwordEnv        = "REMIT_PASSWORD"
	handlerPasswordEnv = "REMIT_HANDLER_PASSWORD"
)

func printJSON(stdout io.Writer, v interface{}) int {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(stdout, "%v\n", v)
		return 0
	}
	fmt.Fprintln(stdout, string(encoded))
	return 0
}

// secretOrPrompt returns flagValue when given, otherwise the env/prompt source.
func secretOrPrompt(flagValue, envVar, label string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return passphrase.NewSource(envVar, label).Get()
}

// submit signs a call from key against the node's contract at the sender's
// current nonce and sends it on the matching RPC method.
func submit(key *crypto.PrivateKey, method string, value *big.Int, params interface{}) (*modules.ReceiptResult, error) {
	var cfg modules.ConfigResult
	if err := invoke("remittance_getConfig", &cfg); err != nil {
		return nil, err
	}
	contract, err := crypto.ParseAddress(cfg.Contract)
	if err != nil {
		return nil, fmt.Errorf("node reported contract %q: %w", cfg.Contract, err)
	}
	sender := key.PubKey().Address()
	var account modules.BalanceResult
	if err := invoke("remittance_getBalance", &account, map[string]string{"address": sender.String()}); err != nil {
		return nil, err
	}

	call := &types.Call{
		To:     common.Address(contract),
		Nonce:  account.Nonce,
		Value:  value,
		Method: method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		call.Params = raw
	}
	if err := call.Sign(key.PrivateKey); err != nil {
		return nil, err
	}
	var receipt modules.ReceiptResult
	if err := invoke("remittance_"+method, &receipt, call); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func runGenerateKey(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("generate-key", stderr)
	recipient := fs.String("recipient", "", "recipient address")
	password := fs.String("password", "", "receiver password")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*recipient) == "" {
		return printError(stderr, "--recipient is required")
	}
	pw, err := secretOrPrompt(*password, passwordEnv, "receiver password")
	if err != nil {
		return printError(stderr, err.Error())
	}
	var result modules.KeyResult
	if err := invoke("remittance_generateKey", &result, map[string]string{"recipient": *recipient, "password": pw}); err != nil {
		return printError(stderr, err.Error())
	}
	return printJSON(stdout, result)
}

func runGenerateSecret(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("generate-secret", stderr)
	handler := fs.String("handler", "", "handler address")
	handlerPassword := fs.String("handler-password", "", "handler password")
	receiverPassword := fs.String("receiver-password", "", "receiver password")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*handler) == "" {
		return printError(stderr, "--handler is required")
	}
	hpw, err := secretOrPrompt(*handlerPassword, handlerPasswordEnv, "handler password")
	if err != nil {
		return printError(stderr, err.Error())
	}
	rpw, err := secretOrPrompt(*receiverPassword, passwordEnv, "receiver password")
	if err != nil {
		return printError(stderr, err.Error())
	}
	var result modules.SecretResult
	params := map[string]string{"handler": *handler, "handlerPassword": hpw, "receiverPassword": rpw}
	if err := invoke("remittance_generateSecret", &result, params); err != nil {
		return printError(stderr, err.Error())
	}
	return printJSON(stdout, result)
}

func runDeposit(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("deposit", stderr)
	keystorePath := fs.String("keystore", "", "depositor keystore file")
	keyHex := fs.String("key", "", "0x-prefixed ledger key")
	amountStr := fs.String("amount", "", "amount in base units")
	lock := fs.Uint64("lock", 0, "lock duration in seconds (0 uses the contract default)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := modules.ParseKey(*keyHex)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if strings.TrimSpace(*amountStr) == "" {
		return printError(stderr, "--amount is required")
	}
	amount, err := uint256.FromDecimal(strings.TrimSpace(*amountStr))
	if err != nil || amount.IsZero() {
		return printError(stderr, "--amount must be a positive integer")
	}
	signer, err := loadSigner(*keystorePath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	receipt, err := submit(signer, types.MethodDeposit, amount.ToBig(), types.DepositParams{Key: key, LockDuration: *lock})
	if err != nil {
		return printError(stderr, err.Error())
	}
	return printJSON(stdout, receipt)
}

func runWithdraw(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("withdraw", stderr)
	keystorePath := fs.String("keystore", "", "claimant keystore file")
	password := fs.String("password", "", "receiver password")
	handlerPassword := fs.String("handler-password", "", "handler password (handler scheme only)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	signer, err := loadSigner(*keystorePath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	var cfg modules.ConfigResult
	if err := invoke("remittance_getConfig", &cfg); err != nil {
		return printError(stderr, err.Error())
	}
	var passwords []string
	if cfg.Scheme == "handler" {
		hpw, err := secretOrPrompt(*handlerPassword, handlerPasswordEnv, "handler password")
		if err != nil {
			return printError(stderr, err.Error())
		}
		passwords = append(passwords, hpw)
	}
	pw, err := secretOrPrompt(*password, passwordEnv, "receiver password")
	if err != nil {
		return printError(stderr, err.Error())
	}
	passwords = append(passwords, pw)

	receipt, err := submit(signer, types.MethodWithdraw, nil, types.WithdrawParams{Passwords: passwords})
	if err != nil {
		return printError(stderr, err.Error())
	}
	return printJSON(stdout, receipt)
}

func runRefund(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("refund", stderr)
	keystorePath := fs.String("keystore", "", "depositor keystore file")
	keyHex := fs.String("key", "", "0x-prefixed ledger key")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := modules.ParseKey(*keyHex)
	if err != nil {
		return printError(stderr, err.Error())
	}
	signer, err := loadSigner(*keystorePath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	receipt, err := submit(signer, types.MethodRefund, nil, types.RefundParams{Key: key})
	if err != nil {
		return printError(stderr, err.Error())
	}
	return printJSON(stdout, receipt)
}

func runEntry(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("entry", stderr)
	keyHex := fs.String("key", "", "0x-prefixed ledger key")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if _, err := modules.ParseKey(*keyHex); err != nil {
		return printError(stderr, err.Error())
	}
	var entry modules.EntryResult
	if err := invoke("remittance_getEntry", &entry, map[string]string{"key": *keyHex}); err != nil {
		return printError(stderr, err.Error())
	}
	return printJSON(stdout, entry)
}

func runConfig(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		return printError(stderr, "config takes no arguments")
	}
	var cfg modules.ConfigResult
	if err := invoke("remittance_getConfig", &cfg); err != nil {
		return printError(stderr, err.Error())
	}
	return printJSON(stdout, cfg)
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return printError(stderr, "usage: balance <address>")
	}
	if _, err := crypto.ParseAddress(args[0]); err != nil {
		return printError(stderr, err.Error())
	}
	var balance modules.BalanceResult
	if err := invoke("remittance_getBalance", &balance, map[string]string{"address": args[0]}); err != nil {
		return printError(stderr, err.Error())
	}
	return printJSON(stdout, balance)
}

func runPause(args []string, stdout, stderr io.Writer, pause bool) int {
	name, method := "unpause", types.MethodUnpause
	if pause {
		name, method = "pause", types.MethodPause
	}
	fs := newFlagSet(name, stderr)
	keystorePath := fs.String("keystore", "", "owner keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	signer, err := loadSigner(*keystorePath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	receipt, err := submit(signer, method, nil, nil)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return printJSON(stdout, receipt)
}

func runSetLock(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("set-lock", stderr)
	keystorePath := fs.String("keystore", "", "owner keystore file")
	duration := fs.Uint64("duration", 0, "new lock duration in seconds")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	signer, err := loadSigner(*keystorePath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	receipt, err := submit(signer, types.MethodSetLockDuration, nil, types.SetLockDurationParams{Duration: *duration})
	if err != nil {
		return printError(stderr, err.Error())
	}
	return printJSON(stdout, receipt)
}

func runChangeOwner(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("change-owner", stderr)
	keystorePath := fs.String("keystore", "", "owner keystore file")
	newOwner := fs.String("new-owner", "", "address of the new owner")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if _, err := crypto.ParseAddress(*newOwner); err != nil {
		return printError(stderr, "--new-owner: "+err.Error())
	}
	signer, err := loadSigner(*keystorePath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	receipt, err := submit(signer, types.MethodChangeOwner, nil, types.ChangeOwnerParams{NewOwner: *newOwner})
	if err != nil {
		return printError(stderr, err.Error())
	}
	return printJSON(stdout, receipt)
}
