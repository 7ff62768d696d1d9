package remittance

import (
	"fmt"
	"math"
	"strings"

	"github.com/holiman/uint256"
)

// Lock duration defaults in seconds.
const (
	DefaultLockDuration    uint64 = 432000   // 5 days
	DefaultMinLockDuration uint64 = 0        // exclusive
	DefaultMaxLockDuration uint64 = 31536000 // 365 days

	// maxLockCeiling keeps now+duration well inside int64.
	maxLockCeiling uint64 = math.MaxInt64 / 4
)

// Scheme selects how claim keys are derived. A deployment uses exactly one.
type Scheme uint8

const (
	// SchemeRecipient binds a deposit to a recipient address and one password.
	SchemeRecipient Scheme = iota
	// SchemeHandler binds a deposit to a handler address and two passwords.
	SchemeHandler
)

func (s Scheme) String() string {
	switch s {
	case SchemeRecipient:
		return "recipient"
	case SchemeHandler:
		return "handler"
	default:
		return fmt.Sprintf("scheme(%d)", uint8(s))
	}
}

// Arity is the number of passwords a claimant presents on withdraw.
func (s Scheme) Arity() int {
	if s == SchemeHandler {
		return 2
	}
	return 1
}

func ParseScheme(raw string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "recipient":
		return SchemeRecipient, nil
	case "handler":
		return SchemeHandler, nil
	default:
		return 0, fmt.Errorf("remittance: unknown scheme %q", raw)
	}
}

// HashKind selects the commitment hash.
type HashKind uint8

const (
	HashKeccak256 HashKind = iota
	HashBlake3
)

func (h HashKind) String() string {
	switch h {
	case HashKeccak256:
		return "keccak256"
	case HashBlake3:
		return "blake3"
	default:
		return fmt.Sprintf("hash(%d)", uint8(h))
	}
}

func ParseHash(raw string) (HashKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "keccak256", "keccak":
		return HashKeccak256, nil
	case "blake3":
		return HashBlake3, nil
	default:
		return 0, fmt.Errorf("remittance: unknown hash %q", raw)
	}
}

// Entry is one outstanding escrowed payment. An entry with a zero amount is
// treated as absent whatever its other fields hold.
type Entry struct {
	Key       [32]byte
	Depositor [20]byte
	Amount    *uint256.Int
	Deadline  int64
}

// Active reports whether the entry still holds value.
func (e *Entry) Active() bool {
	return e != nil && e.Amount != nil && !e.Amount.IsZero()
}

// Clone returns a deep copy with a non-nil amount.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(uint256.Int).Set(e.Amount)
	} else {
		clone.Amount = new(uint256.Int)
	}
	return &clone
}

// Config is the mutable contract record.
type Config struct {
	Owner        [20]byte
	Paused       bool
	LockDuration uint64
}

func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Params are fixed for the lifetime of a deployment.
type Params struct {
	Contract        [20]byte
	MinLockDuration uint64
	MaxLockDuration uint64
	Scheme          Scheme
	Hash            HashKind
	ClaimExpires    bool
}

// DefaultParams returns the standard bounds for the given contract address.
func DefaultParams(contract [20]byte) Params {
	return Params{
		Contract:        contract,
		MinLockDuration: DefaultMinLockDuration,
		MaxLockDuration: DefaultMaxLockDuration,
		Scheme:          SchemeRecipient,
		Hash:            HashKeccak256,
	}
}

func (p Params) String() string {
	return fmt.Sprintf("contract=%x lock=(%d,%d] scheme=%s hash=%s claimExpires=%t",
		p.Contract, p.MinLockDuration, p.MaxLockDuration, p.Scheme, p.Hash, p.ClaimExpires)
}

func (p Params) Validate() error {
	if p.Contract == ([20]byte{}) {
		return fmt.Errorf("remittance: contract address must be set")
	}
	if p.MaxLockDuration <= p.MinLockDuration {
		return fmt.Errorf("remittance: max lock duration %d must exceed min %d", p.MaxLockDuration, p.MinLockDuration)
	}
	if p.MaxLockDuration > maxLockCeiling {
		return fmt.Errorf("remittance: max lock duration %d too large", p.MaxLockDuration)
	}
	if p.Scheme != SchemeRecipient && p.Scheme != SchemeHandler {
		return fmt.Errorf("remittance: unsupported scheme %s", p.Scheme)
	}
	if p.Hash != HashKeccak256 && p.Hash != HashBlake3 {
		return fmt.Errorf("remittance: unsupported hash %s", p.Hash)
	}
	return nil
}

// Secret is the output of the handler scheme derivation. HashedSecret is the
// ledger key.
type Secret struct {
	HandlerKey   [32]byte
	HashedSecret [32]byte
}
