package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "github.com/0surface/Remittance/core/errors"
	"github.com/0surface/Remittance/core/events"
	"github.com/0surface/Remittance/core/state"
	"github.com/0surface/Remittance/core/types"
	"github.com/0surface/Remittance/crypto"
	"github.com/0surface/Remittance/native/remittance"
	"github.com/0surface/Remittance/storage"
)

// GenesisAlloc credits an account the first time a database is initialised.
type GenesisAlloc struct {
	Address [20]byte
	Amount  *uint256.Int
}

// NodeOptions configure a Node. Owner and LockDuration only matter when the
// database holds no contract record yet.
type NodeOptions struct {
	Owner        [20]byte
	LockDuration uint64
	Genesis      []GenesisAlloc
	Emitter      events.Emitter
	Logger       *slog.Logger
	Now          func() int64
}

// Receipt describes the effect of an applied call.
type Receipt struct {
	Method string            `json:"method"`
	From   common.Address    `json:"from"`
	Nonce  uint64            `json:"nonce"`
	Entry  *remittance.Entry `json:"-"`
	Events []*types.Event    `json:"events"`
}

// Node hosts one remittance contract. It serialises every call, so the
// engine sees a total order, and persists state after each successful call.
type Node struct {
	db      storage.Database
	state   *state.Manager
	engine  *remittance.Engine
	pending events.Buffer
	emitter events.Emitter
	logger  *slog.Logger
	stateMu sync.Mutex
}

func NewNode(db storage.Database, params remittance.Params, opts NodeOptions) (*Node, error) {
	engine, err := remittance.NewEngine(params)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	n := &Node{
		db:      db,
		state:   state.NewManager(db),
		engine:  engine,
		emitter: emitter,
		logger:  logger,
	}
	engine.SetState(n.state)
	engine.SetEmitter(&n.pending)
	engine.SetNowFunc(opts.Now)

	if err := n.bootstrap(opts); err != nil {
		n.state.Discard()
		return nil, err
	}
	return n, nil
}

func (n *Node) bootstrap(opts NodeOptions) error {
	if err := n.state.EnsureStateVersion(); err != nil {
		return err
	}
	_, initialised, err := n.state.RemittanceConfig()
	if err != nil {
		return err
	}
	if err := n.engine.Initialize(opts.Owner, opts.LockDuration); err != nil {
		return fmt.Errorf("initialise contract: %w", err)
	}
	if !initialised {
		for _, alloc := range opts.Genesis {
			if err := n.state.Credit(alloc.Address, alloc.Amount); err != nil {
				return fmt.Errorf("genesis credit %s: %w", crypto.FromArray(alloc.Address), err)
			}
		}
		n.logger.Info("remittance contract initialised",
			slog.String("contract", crypto.FromArray(n.engine.Params().Contract).String()),
			slog.String("owner", crypto.FromArray(opts.Owner).String()),
			slog.Int("genesis_accounts", len(opts.Genesis)))
	}
	if err := n.state.Commit(); err != nil {
		return err
	}
	return nil
}

// Engine exposes the underlying state machine, mainly for receive hooks.
func (n *Node) Engine() *remittance.Engine { return n.engine }

// Apply verifies and executes a signed call. The call's nonce must equal the
// sender's account nonce; it is bumped only when the call succeeds.
func (n *Node) Apply(call *types.Call) (*Receipt, error) {
	if call == nil {
		return nil, fmt.Errorf("%w: nil call", coreerrors.ErrInvalidParams)
	}
	sender, err := call.Sender()
	if err != nil {
		return nil, err
	}
	if [20]byte(call.To) != n.engine.Params().Contract {
		return nil, coreerrors.ErrWrongContract
	}

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	nonce, err := n.state.Nonce(sender)
	if err != nil {
		return nil, err
	}
	if call.Nonce != nonce {
		return nil, fmt.Errorf("%w: expected %d, got %d", coreerrors.ErrNonceMismatch, nonce, call.Nonce)
	}

	snap := n.state.Snapshot()
	entry, err := n.dispatch(sender, call)
	if err == nil {
		err = n.state.IncrementNonce(sender)
	}
	if err == nil {
		err = n.state.Commit()
	}
	if err != nil {
		n.state.RevertToSnapshot(snap)
		n.state.Discard()
		n.pending.Reset()
		n.logger.Debug("call rejected",
			slog.String("method", call.Method),
			slog.String("from", crypto.FromArray(sender).String()),
			slog.String("reason", remittance.Reason(err)))
		return nil, err
	}

	receipt := &Receipt{Method: call.Method, From: sender, Nonce: call.Nonce, Entry: entry}
	for _, evt := range n.pending.Pending() {
		if rendered, ok := evt.(interface{ Event() *types.Event }); ok {
			receipt.Events = append(receipt.Events, rendered.Event())
		}
	}
	n.pending.Flush(n.emitter)
	n.logger.Info("call applied",
		slog.String("method", call.Method),
		slog.String("from", crypto.FromArray(sender).String()),
		slog.Uint64("nonce", call.Nonce))
	return receipt, nil
}

func (n *Node) dispatch(sender [20]byte, call *types.Call) (*remittance.Entry, error) {
	value, err := callValue(call.Value)
	if err != nil {
		return nil, err
	}
	if call.Method != types.MethodDeposit && !value.IsZero() {
		return nil, coreerrors.ErrUnexpectedValue
	}

	switch call.Method {
	case types.MethodDeposit:
		var p types.DepositParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}
		return n.engine.Deposit(sender, value, p.Key, p.LockDuration)
	case types.MethodWithdraw:
		var p types.WithdrawParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}
		return n.engine.Withdraw(sender, p.Passwords...)
	case types.MethodRefund:
		var p types.RefundParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}
		return n.engine.Refund(sender, p.Key)
	case types.MethodSetLockDuration:
		var p types.SetLockDurationParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}
		return nil, n.engine.SetLockDuration(sender, p.Duration)
	case types.MethodPause:
		return nil, n.engine.Pause(sender)
	case types.MethodUnpause:
		return nil, n.engine.Unpause(sender)
	case types.MethodChangeOwner:
		var p types.ChangeOwnerParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}
		newOwner, err := crypto.ParseAddress(p.NewOwner)
		if err != nil {
			return nil, fmt.Errorf("%w: newOwner: %v", coreerrors.ErrInvalidParams, err)
		}
		return nil, n.engine.ChangeOwner(sender, newOwner)
	default:
		return nil, fmt.Errorf("%w: %q", coreerrors.ErrUnknownMethod, call.Method)
	}
}

func decodeParams(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: params required", coreerrors.ErrInvalidParams)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", coreerrors.ErrInvalidParams, err)
	}
	return nil
}

func callValue(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value", coreerrors.ErrInvalidParams)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: value overflows 256 bits", coreerrors.ErrInvalidParams)
	}
	return out, nil
}
