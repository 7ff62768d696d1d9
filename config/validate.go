package config

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/0surface/Remittance/core"
	"github.com/0surface/Remittance/crypto"
	"github.com/0surface/Remittance/native/remittance"
	"github.com/0surface/Remittance/rpc"
	"github.com/0surface/Remittance/storage"
)

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case storage.BackendLevelDB, storage.BackendBolt, storage.BackendMemory:
	default:
		return fmt.Errorf("backend: unsupported value %q", c.Backend)
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("rpc_address: must not be empty")
	}
	params, err := c.Params()
	if err != nil {
		return err
	}
	if _, err := c.OwnerAddress(); err != nil {
		return err
	}
	if c.Contract.LockDuration <= params.MinLockDuration || c.Contract.LockDuration > params.MaxLockDuration {
		return fmt.Errorf("contract: lock_duration %d outside (%d, %d]", c.Contract.LockDuration, params.MinLockDuration, params.MaxLockDuration)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if _, err := rpc.ParseTrustedProxies(c.RateLimit.TrustedProxies); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry: sample_ratio %v outside [0, 1]", r)
	}
	if _, err := c.GenesisAllocs(); err != nil {
		return err
	}
	return nil
}

// Params converts the contract section into engine parameters.
func (c *Config) Params() (remittance.Params, error) {
	if strings.TrimSpace(c.Contract.Address) == "" {
		return remittance.Params{}, fmt.Errorf("contract: address must be set")
	}
	contract, err := crypto.ParseAddress(c.Contract.Address)
	if err != nil {
		return remittance.Params{}, fmt.Errorf("contract: address: %w", err)
	}
	scheme, err := remittance.ParseScheme(c.Contract.Scheme)
	if err != nil {
		return remittance.Params{}, fmt.Errorf("contract: %w", err)
	}
	hash, err := remittance.ParseHash(c.Contract.Hash)
	if err != nil {
		return remittance.Params{}, fmt.Errorf("contract: %w", err)
	}
	params := remittance.Params{
		Contract:        contract,
		MinLockDuration: c.Contract.MinLockDuration,
		MaxLockDuration: c.Contract.MaxLockDuration,
		Scheme:          scheme,
		Hash:            hash,
		ClaimExpires:    c.Contract.ClaimExpires,
	}
	if err := params.Validate(); err != nil {
		return remittance.Params{}, fmt.Errorf("contract: %w", err)
	}
	return params, nil
}

func (c *Config) OwnerAddress() ([20]byte, error) {
	owner, err := crypto.ParseAddress(c.Contract.Owner)
	if err != nil {
		return [20]byte{}, fmt.Errorf("contract: owner: %w", err)
	}
	if owner == ([20]byte{}) {
		return [20]byte{}, fmt.Errorf("contract: owner must not be the zero address")
	}
	return owner, nil
}

// GenesisAllocs parses the genesis section.
func (c *Config) GenesisAllocs() ([]core.GenesisAlloc, error) {
	out := make([]core.GenesisAlloc, 0, len(c.Genesis))
	seen := make(map[[20]byte]struct{}, len(c.Genesis))
	for i, acc := range c.Genesis {
		addr, err := crypto.ParseAddress(acc.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: address: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("genesis[%d]: duplicate address %s", i, acc.Address)
		}
		seen[addr] = struct{}{}
		amount, err := uint256.FromDecimal(strings.TrimSpace(acc.Amount))
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: amount: %w", i, err)
		}
		out = append(out, core.GenesisAlloc{Address: addr, Amount: amount})
	}
	return out, nil
}
