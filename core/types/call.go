package types

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Methods accepted as signed calls.
const (
	MethodDeposit         = "deposit"
	MethodWithdraw        = "withdraw"
	MethodRefund          = "refund"
	MethodSetLockDuration = "setLockDuration"
	MethodPause           = "pause"
	MethodUnpause         = "unpause"
	MethodChangeOwner     = "changeOwner"
)

var (
	ErrMissingSignature = errors.New("call: missing signature")
	ErrSenderMismatch   = errors.New("call: signature does not match sender")
)

// Call is a signed, state-changing request against a remittance contract.
// The signature covers every field except itself, including the target
// contract so a signed call cannot be replayed against another deployment.
type Call struct {
	To        common.Address  `json:"to"`
	From      common.Address  `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Value     *big.Int        `json:"value,omitempty"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	Signature hexutil.Bytes   `json:"signature,omitempty"`
}

type callPayload struct {
	To     common.Address
	From   common.Address
	Nonce  uint64
	Value  *big.Int
	Method string
	Params []byte
}

// Hash returns the keccak256 digest of the canonical RLP encoding. Params are
// compacted first so whitespace introduced in transit does not matter.
func (c *Call) Hash() (common.Hash, error) {
	value := c.Value
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return common.Hash{}, fmt.Errorf("call: negative value")
	}
	var params bytes.Buffer
	if len(c.Params) > 0 {
		if err := json.Compact(&params, c.Params); err != nil {
			return common.Hash{}, fmt.Errorf("call: params: %w", err)
		}
	}
	encoded, err := rlp.EncodeToBytes(callPayload{
		To:     c.To,
		From:   c.From,
		Nonce:  c.Nonce,
		Value:  value,
		Method: c.Method,
		Params: params.Bytes(),
	})
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

// Sign sets From to the key's address and attaches a recoverable signature.
func (c *Call) Sign(key *ecdsa.PrivateKey) error {
	if key == nil {
		return fmt.Errorf("call: nil signing key")
	}
	c.From = crypto.PubkeyToAddress(key.PublicKey)
	hash, err := c.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return err
	}
	c.Signature = sig
	return nil
}

// Sender recovers the signing address and checks it against From.
func (c *Call) Sender() (common.Address, error) {
	if len(c.Signature) != crypto.SignatureLength {
		return common.Address{}, ErrMissingSignature
	}
	hash, err := c.Hash()
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(hash.Bytes(), c.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("call: recover signer: %w", err)
	}
	signer := crypto.PubkeyToAddress(*pub)
	if signer != c.From {
		return common.Address{}, ErrSenderMismatch
	}
	return signer, nil
}

// DepositParams carries the claim key and an optional lock duration in
// seconds. Zero selects the contract default.
type DepositParams struct {
	Key          common.Hash `json:"key"`
	LockDuration uint64      `json:"lockDuration,omitempty"`
}

// WithdrawParams carries the claimant's passwords, one or two depending on
// the deployment's scheme.
type WithdrawParams struct {
	Passwords []string `json:"passwords"`
}

type RefundParams struct {
	Key common.Hash `json:"key"`
}

type SetLockDurationParams struct {
	Duration uint64 `json:"duration"`
}

// ChangeOwnerParams accepts the new owner in hex or bech32 form.
type ChangeOwnerParams struct {
	NewOwner string `json:"newOwner"`
}
