package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/0surface/Remittance/native/remittance"
)

var errEntryActive = errors.New("state: remittance entry already active")

func remittanceEntryKey(key [32]byte) []byte {
	buf := make([]byte, len(remittanceEntryPrefix)+len(key))
	copy(buf, remittanceEntryPrefix)
	copy(buf[len(remittanceEntryPrefix):], key[:])
	return buf
}

type storedRemittance struct {
	Key       [32]byte
	Depositor [20]byte
	Amount    *big.Int
	Deadline  *big.Int
}

func newStoredRemittance(e *remittance.Entry) (*storedRemittance, error) {
	if e.Deadline < 0 {
		return nil, fmt.Errorf("remittance: negative deadline %d", e.Deadline)
	}
	amount := big.NewInt(0)
	if e.Amount != nil {
		amount = e.Amount.ToBig()
	}
	return &storedRemittance{
		Key:       e.Key,
		Depositor: e.Depositor,
		Amount:    amount,
		Deadline:  big.NewInt(e.Deadline),
	}, nil
}

func (s *storedRemittance) toEntry() (*remittance.Entry, error) {
	out := &remittance.Entry{
		Key:       s.Key,
		Depositor: s.Depositor,
		Amount:    new(uint256.Int),
	}
	if s.Amount != nil {
		amount, overflow := uint256.FromBig(s.Amount)
		if overflow {
			return nil, fmt.Errorf("remittance: stored amount overflow")
		}
		out.Amount = amount
	}
	if s.Deadline != nil {
		out.Deadline = s.Deadline.Int64()
	}
	return out, nil
}

// RemittanceGet returns the ledger entry for key. An absent key yields a zero
// entry rather than an error.
func (m *Manager) RemittanceGet(key [32]byte) (*remittance.Entry, error) {
	var stored storedRemittance
	ok, err := m.KVGet(remittanceEntryKey(key), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &remittance.Entry{Amount: new(uint256.Int)}, nil
	}
	return stored.toEntry()
}

// RemittancePut writes a new entry. It refuses to overwrite an active one.
func (m *Manager) RemittancePut(entry *remittance.Entry) error {
	if entry == nil {
		return fmt.Errorf("remittance: nil entry")
	}
	current, err := m.RemittanceGet(entry.Key)
	if err != nil {
		return err
	}
	if current.Active() {
		return errEntryActive
	}
	stored, err := newStoredRemittance(entry)
	if err != nil {
		return err
	}
	snap := m.Snapshot()
	if err := m.KVPut(remittanceEntryKey(entry.Key), stored); err != nil {
		return err
	}
	if entry.Active() {
		if err := m.adjustOutstanding(entry.Amount, true); err != nil {
			m.RevertToSnapshot(snap)
			return err
		}
	}
	return nil
}

// RemittanceClear removes the whole entry in one journaled step.
func (m *Manager) RemittanceClear(key [32]byte) error {
	current, err := m.RemittanceGet(key)
	if err != nil {
		return err
	}
	snap := m.Snapshot()
	if err := m.KVDelete(remittanceEntryKey(key)); err != nil {
		return err
	}
	if current.Active() {
		if err := m.adjustOutstanding(current.Amount, false); err != nil {
			m.RevertToSnapshot(snap)
			return err
		}
	}
	return nil
}

// RemittanceOutstanding returns the running total of active entry amounts.
func (m *Manager) RemittanceOutstanding() (*uint256.Int, error) {
	var stored big.Int
	ok, err := m.KVGet(remittanceOutstandingKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	total, overflow := uint256.FromBig(&stored)
	if overflow {
		return nil, fmt.Errorf("remittance: outstanding overflow")
	}
	return total, nil
}

func (m *Manager) adjustOutstanding(delta *uint256.Int, add bool) error {
	total, err := m.RemittanceOutstanding()
	if err != nil {
		return err
	}
	var overflow bool
	if add {
		total, overflow = new(uint256.Int).AddOverflow(total, delta)
	} else {
		total, overflow = new(uint256.Int).SubOverflow(total, delta)
	}
	if overflow {
		return fmt.Errorf("remittance: outstanding total out of range")
	}
	return m.KVPut(remittanceOutstandingKey, total.ToBig())
}

type storedRemittanceConfig struct {
	Owner        [20]byte
	Paused       bool
	LockDuration uint64
}

// RemittanceConfig loads the contract record. The boolean reports presence.
func (m *Manager) RemittanceConfig() (*remittance.Config, bool, error) {
	var stored storedRemittanceConfig
	ok, err := m.KVGet(remittanceConfigKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &remittance.Config{
		Owner:        stored.Owner,
		Paused:       stored.Paused,
		LockDuration: stored.LockDuration,
	}, true, nil
}

func (m *Manager) PutRemittanceConfig(cfg *remittance.Config) error {
	if cfg == nil {
		return fmt.Errorf("remittance: nil config")
	}
	return m.KVPut(remittanceConfigKey, storedRemittanceConfig{
		Owner:        cfg.Owner,
		Paused:       cfg.Paused,
		LockDuration: cfg.LockDuration,
	})
}

type storedRemittanceParams struct {
	Contract        [20]byte
	MinLockDuration uint64
	MaxLockDuration uint64
	Scheme          uint8
	Hash            uint8
	ClaimExpires    bool
}

// RemittanceParams loads the deployment parameters pinned on first start.
func (m *Manager) RemittanceParams() (*remittance.Params, bool, error) {
	var stored storedRemittanceParams
	ok, err := m.KVGet(remittanceParamsKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &remittance.Params{
		Contract:        stored.Contract,
		MinLockDuration: stored.MinLockDuration,
		MaxLockDuration: stored.MaxLockDuration,
		Scheme:          remittance.Scheme(stored.Scheme),
		Hash:            remittance.HashKind(stored.Hash),
		ClaimExpires:    stored.ClaimExpires,
	}, true, nil
}

func (m *Manager) PutRemittanceParams(params *remittance.Params) error {
	if params == nil {
		return fmt.Errorf("remittance: nil params")
	}
	return m.KVPut(remittanceParamsKey, storedRemittanceParams{
		Contract:        params.Contract,
		MinLockDuration: params.MinLockDuration,
		MaxLockDuration: params.MaxLockDuration,
		Scheme:          uint8(params.Scheme),
		Hash:            uint8(params.Hash),
		ClaimExpires:    params.ClaimExpires,
	})
}
