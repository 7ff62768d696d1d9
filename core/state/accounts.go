package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	ErrBalanceOverflow     = errors.New("state: balance overflow")
)

// Account holds the native balance and call nonce of an address.
type Account struct {
	Balance *uint256.Int
	Nonce   uint64
}

type storedAccount struct {
	Balance *big.Int
	Nonce   uint64
}

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return buf
}

// Account returns the stored account, or a zero account when absent.
func (m *Manager) Account(addr [20]byte) (*Account, error) {
	var stored storedAccount
	ok, err := m.KVGet(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	acc := &Account{Balance: new(uint256.Int)}
	if !ok {
		return acc, nil
	}
	acc.Nonce = stored.Nonce
	if stored.Balance != nil {
		bal, overflow := uint256.FromBig(stored.Balance)
		if overflow {
			return nil, fmt.Errorf("state: account balance overflow")
		}
		acc.Balance = bal
	}
	return acc, nil
}

func (m *Manager) PutAccount(addr [20]byte, acc *Account) error {
	if acc == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := new(big.Int)
	if acc.Balance != nil {
		balance = acc.Balance.ToBig()
	}
	return m.KVPut(accountKey(addr), storedAccount{Balance: balance, Nonce: acc.Nonce})
}

func (m *Manager) Balance(addr [20]byte) (*uint256.Int, error) {
	acc, err := m.Account(addr)
	if err != nil {
		return nil, err
	}
	return acc.Balance, nil
}

func (m *Manager) Nonce(addr [20]byte) (uint64, error) {
	acc, err := m.Account(addr)
	if err != nil {
		return 0, err
	}
	return acc.Nonce, nil
}

// IncrementNonce bumps the call nonce of addr by one.
func (m *Manager) IncrementNonce(addr [20]byte) error {
	acc, err := m.Account(addr)
	if err != nil {
		return err
	}
	acc.Nonce++
	return m.PutAccount(addr, acc)
}

// Credit mints amount into addr. It is used for genesis allocations.
func (m *Manager) Credit(addr [20]byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	acc, err := m.Account(addr)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(acc.Balance, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	acc.Balance = sum
	return m.PutAccount(addr, acc)
}

// Transfer moves amount from one account to another. Either both balances
// change or neither does.
func (m *Manager) Transfer(from, to [20]byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	fromAcc, err := m.Account(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromAcc.Balance.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	toAcc, err := m.Account(to)
	if err != nil {
		return err
	}
	credited, overflow := new(uint256.Int).AddOverflow(toAcc.Balance, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	fromAcc.Balance = new(uint256.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = credited

	snap := m.Snapshot()
	if err := m.PutAccount(from, fromAcc); err != nil {
		m.RevertToSnapshot(snap)
		return err
	}
	if err := m.PutAccount(to, toAcc); err != nil {
		m.RevertToSnapshot(snap)
		return err
	}
	return nil
}
