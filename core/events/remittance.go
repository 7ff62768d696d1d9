package events

import (
	"encoding/hex"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/0surface/Remittance/core/types"
	"github.com/0surface/Remittance/crypto"
)

const (
	TypeRemittanceDeposited       = "remittance.deposited"
	TypeRemittanceWithdrawn       = "remittance.withdrawn"
	TypeRemittanceRefunded        = "remittance.refunded"
	TypeRemittanceLockDurationSet = "remittance.lock_duration_set"
	TypeRemittancePaused          = "remittance.paused"
	TypeRemittanceUnpaused        = "remittance.unpaused"
	TypeRemittanceOwnerChanged    = "remittance.owner_changed"
)

type RemittanceDeposited struct {
	Depositor [20]byte
	Amount    *uint256.Int
	Key       [32]byte
	Deadline  int64
}

func (RemittanceDeposited) EventType() string { return TypeRemittanceDeposited }

func (e RemittanceDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeRemittanceDeposited,
		Attributes: map[string]string{
			"depositor": formatAddress(e.Depositor),
			"amount":    formatAmount(e.Amount),
			"key":       formatKey(e.Key),
			"deadline":  strconv.FormatInt(e.Deadline, 10),
		},
	}
}

// RemittanceWithdrawn never carries the password that unlocked the entry.
type RemittanceWithdrawn struct {
	Recipient [20]byte
	Amount    *uint256.Int
	Key       [32]byte
}

func (RemittanceWithdrawn) EventType() string { return TypeRemittanceWithdrawn }

func (e RemittanceWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeRemittanceWithdrawn,
		Attributes: map[string]string{
			"recipient": formatAddress(e.Recipient),
			"amount":    formatAmount(e.Amount),
			"key":       formatKey(e.Key),
		},
	}
}

type RemittanceRefunded struct {
	Depositor [20]byte
	Amount    *uint256.Int
	Key       [32]byte
}

func (RemittanceRefunded) EventType() string { return TypeRemittanceRefunded }

func (e RemittanceRefunded) Event() *types.Event {
	return &types.Event{
		Type: TypeRemittanceRefunded,
		Attributes: map[string]string{
			"depositor": formatAddress(e.Depositor),
			"amount":    formatAmount(e.Amount),
			"key":       formatKey(e.Key),
		},
	}
}

type RemittanceLockDurationSet struct {
	Owner [20]byte
	Old   uint64
	New   uint64
}

func (RemittanceLockDurationSet) EventType() string { return TypeRemittanceLockDurationSet }

func (e RemittanceLockDurationSet) Event() *types.Event {
	return &types.Event{
		Type: TypeRemittanceLockDurationSet,
		Attributes: map[string]string{
			"owner": formatAddress(e.Owner),
			"old":   strconv.FormatUint(e.Old, 10),
			"new":   strconv.FormatUint(e.New, 10),
		},
	}
}

type RemittancePaused struct {
	Owner [20]byte
}

func (RemittancePaused) EventType() string { return TypeRemittancePaused }

func (e RemittancePaused) Event() *types.Event {
	return &types.Event{
		Type:       TypeRemittancePaused,
		Attributes: map[string]string{"owner": formatAddress(e.Owner)},
	}
}

type RemittanceUnpaused struct {
	Owner [20]byte
}

func (RemittanceUnpaused) EventType() string { return TypeRemittanceUnpaused }

func (e RemittanceUnpaused) Event() *types.Event {
	return &types.Event{
		Type:       TypeRemittanceUnpaused,
		Attributes: map[string]string{"owner": formatAddress(e.Owner)},
	}
}

type RemittanceOwnerChanged struct {
	Old [20]byte
	New [20]byte
}

func (RemittanceOwnerChanged) EventType() string { return TypeRemittanceOwnerChanged }

func (e RemittanceOwnerChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeRemittanceOwnerChanged,
		Attributes: map[string]string{
			"old": formatAddress(e.Old),
			"new": formatAddress(e.New),
		},
	}
}

func formatAddress(addr [20]byte) string {
	return crypto.FromArray(addr).String()
}

func formatKey(key [32]byte) string {
	return "0x" + hex.EncodeToString(key[:])
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
