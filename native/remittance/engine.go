package remittance

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/0surface/Remittance/core/events"
)

type engineState interface {
	RemittanceGet(key [32]byte) (*Entry, error)
	RemittancePut(entry *Entry) error
	RemittanceClear(key [32]byte) error
	RemittanceOutstanding() (*uint256.Int, error)
	RemittanceConfig() (*Config, bool, error)
	PutRemittanceConfig(cfg *Config) error
	RemittanceParams() (*Params, bool, error)
	PutRemittanceParams(params *Params) error
	Balance(addr [20]byte) (*uint256.Int, error)
	Transfer(from, to [20]byte, amount *uint256.Int) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// ReceiveHook runs after value lands in a recipient's account. It stands in
// for code the recipient controls; an error rejects the transfer and aborts
// the whole operation.
type ReceiveHook func(recipient [20]byte, amount *uint256.Int) error

// Engine is the escrow state machine. It is not safe for concurrent use; the
// hosting node serialises calls. Each operation either applies every write
// or, on any error, reverts state to where it started. Events follow the same
// rule: they reach the emitter only once the outermost operation succeeds.
type Engine struct {
	state   engineState
	params  Params
	gen     *Generator
	emitter events.Emitter
	nowFn   func() int64
	hooks   map[[20]byte]ReceiveHook

	// pending holds events of the operations in flight; depth counts the
	// operations nested through receive hooks.
	pending []events.Event
	depth   int
}

// opMark records where an operation started so it can be unwound.
type opMark struct {
	snapshot int
	events   int
}

// NewEngine creates an engine for the given deployment parameters with a
// no-op emitter. Callers attach state with SetState.
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:  params,
		gen:     NewGenerator(params),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		hooks:   make(map[[20]byte]ReceiveHook),
	}, nil
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetReceiveHook installs (or with nil, removes) the hook run on payouts to addr.
func (e *Engine) SetReceiveHook(addr [20]byte, hook ReceiveHook) {
	if hook == nil {
		delete(e.hooks, addr)
		return
	}
	e.hooks[addr] = hook
}

// Params returns the immutable deployment parameters.
func (e *Engine) Params() Params { return e.params }

// Generator exposes the key derivation bound to this deployment.
func (e *Engine) Generator() *Generator { return e.gen }

// Initialize pins the deployment parameters and writes the contract record on
// first start. On later starts the pinned parameters must match the engine's,
// otherwise ErrParamsMismatch is returned; an existing contract record is left
// untouched. A zero lockDuration selects DefaultLockDuration, capped at the
// deployment maximum.
func (e *Engine) Initialize(owner [20]byte, lockDuration uint64) error {
	if e.state == nil {
		return errNilState
	}
	if err := e.pinParams(); err != nil {
		return err
	}
	if _, ok, err := e.state.RemittanceConfig(); err != nil || ok {
		return err
	}
	if owner == ([20]byte{}) {
		return ErrZeroOwner
	}
	if lockDuration == 0 {
		lockDuration = min(DefaultLockDuration, e.params.MaxLockDuration)
	}
	if err := e.checkLockBounds(lockDuration); err != nil {
		return err
	}
	return e.state.PutRemittanceConfig(&Config{Owner: owner, LockDuration: lockDuration})
}

func (e *Engine) pinParams() error {
	stored, ok, err := e.state.RemittanceParams()
	if err != nil {
		return err
	}
	if !ok {
		params := e.params
		return e.state.PutRemittanceParams(&params)
	}
	if *stored != e.params {
		return fmt.Errorf("%w: stored %s, configured %s", ErrParamsMismatch, stored, e.params)
	}
	return nil
}

// Deposit moves value from caller into custody under key. A zero
// lockDuration selects the configured default.
func (e *Engine) Deposit(caller [20]byte, value *uint256.Int, key [32]byte, lockDuration uint64) (entry *Entry, err error) {
	snap, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer e.finish(snap, &err)

	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, ErrPaused
	}
	if key == ([32]byte{}) {
		return nil, ErrZeroKey
	}
	if value == nil || value.IsZero() {
		return nil, ErrInvalidAmount
	}
	duration, err := e.effectiveLock(cfg, lockDuration)
	if err != nil {
		return nil, err
	}
	existing, err := e.state.RemittanceGet(key)
	if err != nil {
		return nil, err
	}
	if existing.Active() {
		return nil, ErrKeyActive
	}
	if err := e.state.Transfer(caller, e.params.Contract, value); err != nil {
		return nil, err
	}
	entry = &Entry{
		Key:       key,
		Depositor: caller,
		Amount:    new(uint256.Int).Set(value),
		Deadline:  e.now() + int64(duration),
	}
	if err := e.state.RemittancePut(entry); err != nil {
		return nil, err
	}
	e.emit(events.RemittanceDeposited{
		Depositor: entry.Depositor,
		Amount:    entry.Amount.Clone(),
		Key:       entry.Key,
		Deadline:  entry.Deadline,
	})
	return entry.Clone(), nil
}

// Withdraw pays the entry keyed by caller and passwords to caller. The
// caller never names the key, and a wrong address, wrong password, or an
// already paid entry all fail the same way.
func (e *Engine) Withdraw(caller [20]byte, passwords ...string) (paid *Entry, err error) {
	snap, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer e.finish(snap, &err)

	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, ErrPaused
	}
	key, err := e.gen.ClaimKey(caller, passwords...)
	if err != nil {
		return nil, err
	}
	entry, err := e.state.RemittanceGet(key)
	if err != nil {
		return nil, err
	}
	if !entry.Active() {
		return nil, ErrNotOwedWithdrawal
	}
	if e.params.ClaimExpires && e.now() > entry.Deadline {
		return nil, ErrWithdrawalExpired
	}
	if err := e.settle(entry, caller); err != nil {
		return nil, err
	}
	e.emit(events.RemittanceWithdrawn{
		Recipient: caller,
		Amount:    entry.Amount.Clone(),
		Key:       entry.Key,
	})
	return entry, nil
}

// Refund returns an expired, unclaimed entry to its depositor.
func (e *Engine) Refund(caller [20]byte, key [32]byte) (paid *Entry, err error) {
	snap, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer e.finish(snap, &err)

	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, ErrPaused
	}
	if key == ([32]byte{}) {
		return nil, ErrZeroKey
	}
	entry, err := e.state.RemittanceGet(key)
	if err != nil {
		return nil, err
	}
	if !entry.Active() {
		return nil, ErrNotOwedRefund
	}
	if entry.Depositor != caller {
		return nil, ErrNotDepositor
	}
	if e.now() <= entry.Deadline {
		return nil, ErrRefundNotEligible
	}
	if err := e.settle(entry, caller); err != nil {
		return nil, err
	}
	e.emit(events.RemittanceRefunded{
		Depositor: caller,
		Amount:    entry.Amount.Clone(),
		Key:       entry.Key,
	})
	return entry, nil
}

// settle clears the entry and only then moves its value out of custody.
func (e *Engine) settle(entry *Entry, to [20]byte) error {
	if err := e.state.RemittanceClear(entry.Key); err != nil {
		return err
	}
	if err := e.state.Transfer(e.params.Contract, to, entry.Amount); err != nil {
		return err
	}
	if hook, ok := e.hooks[to]; ok {
		if err := hook(to, entry.Amount.Clone()); err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
	}
	return nil
}

// Entry returns the ledger entry for key; an absent key yields a zero entry.
func (e *Engine) Entry(key [32]byte) (*Entry, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.RemittanceGet(key)
}

// Config returns a copy of the contract record.
func (e *Engine) Config() (*Config, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.loadConfig()
}

func (e *Engine) Paused() (bool, error) {
	cfg, err := e.Config()
	if err != nil {
		return false, err
	}
	return cfg.Paused, nil
}

// Outstanding is the sum of all active entry amounts.
func (e *Engine) Outstanding() (*uint256.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.RemittanceOutstanding()
}

// CheckSolvency fails with ErrInsolvent when custody no longer covers the
// outstanding total.
func (e *Engine) CheckSolvency() error {
	outstanding, err := e.Outstanding()
	if err != nil {
		return err
	}
	custody, err := e.state.Balance(e.params.Contract)
	if err != nil {
		return err
	}
	if custody.Lt(outstanding) {
		return fmt.Errorf("%w: custody %s, outstanding %s", ErrInsolvent, custody.Dec(), outstanding.Dec())
	}
	return nil
}

func (e *Engine) Balance(addr [20]byte) (*uint256.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.Balance(addr)
}

func (e *Engine) begin() (opMark, error) {
	if e == nil || e.state == nil {
		return opMark{}, errNilState
	}
	e.depth++
	return opMark{snapshot: e.state.Snapshot(), events: len(e.pending)}, nil
}

func (e *Engine) finish(mark opMark, errp *error) {
	if *errp != nil {
		e.state.RevertToSnapshot(mark.snapshot)
		clear(e.pending[mark.events:])
		e.pending = e.pending[:mark.events]
	}
	e.depth--
	if e.depth > 0 {
		return
	}
	pending := e.pending
	e.pending = nil
	for _, evt := range pending {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) emit(evt events.Event) {
	e.pending = append(e.pending, evt)
}

func (e *Engine) loadConfig() (*Config, error) {
	cfg, ok, err := e.state.RemittanceConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotInitiated
	}
	return cfg, nil
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// IsNotInitialized reports whether err stems from a missing contract record.
func IsNotInitialized(err error) bool {
	return errors.Is(err, errNotInitiated)
}
