package remittance

import (
	"bytes"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/0surface/Remittance/core/events"
)

type mockSnapshot struct {
	entries  map[[32]byte]*Entry
	balances map[[20]byte]*uint256.Int
	cfg      *Config
}

type mockState struct {
	entries  map[[32]byte]*Entry
	balances map[[20]byte]*uint256.Int
	cfg      *Config
	params   *Params
	snaps    []mockSnapshot
}

func newMockState() *mockState {
	return &mockState{
		entries:  make(map[[32]byte]*Entry),
		balances: make(map[[20]byte]*uint256.Int),
	}
}

func (m *mockState) RemittanceGet(key [32]byte) (*Entry, error) {
	if entry, ok := m.entries[key]; ok {
		return entry.Clone(), nil
	}
	return &Entry{Amount: new(uint256.Int)}, nil
}

func (m *mockState) RemittancePut(entry *Entry) error {
	if existing, ok := m.entries[entry.Key]; ok && existing.Active() {
		return errors.New("entry active")
	}
	m.entries[entry.Key] = entry.Clone()
	return nil
}

func (m *mockState) RemittanceClear(key [32]byte) error {
	delete(m.entries, key)
	return nil
}

func (m *mockState) RemittanceOutstanding() (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, entry := range m.entries {
		total.Add(total, entry.Amount)
	}
	return total, nil
}

func (m *mockState) RemittanceConfig() (*Config, bool, error) {
	if m.cfg == nil {
		return nil, false, nil
	}
	return m.cfg.Clone(), true, nil
}

func (m *mockState) PutRemittanceConfig(cfg *Config) error {
	m.cfg = cfg.Clone()
	return nil
}

func (m *mockState) RemittanceParams() (*Params, bool, error) {
	if m.params == nil {
		return nil, false, nil
	}
	clone := *m.params
	return &clone, true, nil
}

func (m *mockState) PutRemittanceParams(params *Params) error {
	clone := *params
	m.params = &clone
	return nil
}

func (m *mockState) Balance(addr [20]byte) (*uint256.Int, error) {
	if bal, ok := m.balances[addr]; ok {
		return bal.Clone(), nil
	}
	return new(uint256.Int), nil
}

func (m *mockState) Transfer(from, to [20]byte, amount *uint256.Int) error {
	fromBal, _ := m.Balance(from)
	if fromBal.Lt(amount) {
		return errors.New("insufficient balance")
	}
	toBal, _ := m.Balance(to)
	m.balances[from] = new(uint256.Int).Sub(fromBal, amount)
	if from == to {
		toBal = m.balances[from]
	}
	m.balances[to] = new(uint256.Int).Add(toBal, amount)
	return nil
}

func (m *mockState) Snapshot() int {
	snap := mockSnapshot{
		entries:  make(map[[32]byte]*Entry, len(m.entries)),
		balances: make(map[[20]byte]*uint256.Int, len(m.balances)),
		cfg:      m.cfg.Clone(),
	}
	for k, v := range m.entries {
		snap.entries[k] = v.Clone()
	}
	for k, v := range m.balances {
		snap.balances[k] = v.Clone()
	}
	m.snaps = append(m.snaps, snap)
	return len(m.snaps) - 1
}

func (m *mockState) RevertToSnapshot(id int) {
	snap := m.snaps[id]
	m.entries = snap.entries
	m.balances = snap.balances
	m.cfg = snap.cfg
	m.snaps = m.snaps[:id]
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	contractAddr  = newTestAddress(0xC0)
	ownerAddr     = newTestAddress(0x01)
	depositorAddr = newTestAddress(0x02)
	recipientAddr = newTestAddress(0x03)
	strangerAddr  = newTestAddress(0x04)
)

type harness struct {
	engine *Engine
	state  *mockState
	log    *events.Log
	now    int64
}

func newHarness(t *testing.T, mutate func(*Params)) *harness {
	t.Helper()
	params := DefaultParams(contractAddr)
	if mutate != nil {
		mutate(&params)
	}
	engine, err := NewEngine(params)
	require.NoError(t, err)

	h := &harness{engine: engine, state: newMockState(), log: events.NewLog(0), now: 1_000}
	engine.SetState(h.state)
	engine.SetEmitter(h.log)
	engine.SetNowFunc(func() int64 { return h.now })
	require.NoError(t, engine.Initialize(ownerAddr, 0))

	h.state.balances[depositorAddr] = uint256.NewInt(1_000)
	return h
}

func (h *harness) key(t *testing.T, recipient [20]byte, password string) [32]byte {
	t.Helper()
	key, err := h.engine.Generator().GenerateKey(recipient, password)
	require.NoError(t, err)
	return key
}

func (h *harness) balance(addr [20]byte) uint64 {
	bal, _ := h.state.Balance(addr)
	return bal.Uint64()
}

func (h *harness) requireConserved(t *testing.T) {
	t.Helper()
	outstanding, err := h.engine.Outstanding()
	require.NoError(t, err)
	custody, err := h.engine.Balance(contractAddr)
	require.NoError(t, err)
	require.Equal(t, outstanding.Dec(), custody.Dec())
	require.NoError(t, h.engine.CheckSolvency())
}

func TestInitializeIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)

	cfg, err := h.engine.Config()
	require.NoError(t, err)
	require.Equal(t, ownerAddr, cfg.Owner)
	require.Equal(t, DefaultLockDuration, cfg.LockDuration)
	require.False(t, cfg.Paused)

	require.NoError(t, h.engine.Initialize(strangerAddr, 100))
	cfg, err = h.engine.Config()
	require.NoError(t, err)
	require.Equal(t, ownerAddr, cfg.Owner)
}

func TestInitializePinsParams(t *testing.T) {
	h := newHarness(t, nil)
	require.NotNil(t, h.state.params)
	require.Equal(t, h.engine.Params(), *h.state.params)

	changes := map[string]func(*Params){
		"contract":     func(p *Params) { p.Contract = strangerAddr },
		"maxLock":      func(p *Params) { p.MaxLockDuration = 3600 },
		"scheme":       func(p *Params) { p.Scheme = SchemeHandler },
		"hash":         func(p *Params) { p.Hash = HashBlake3 },
		"claimExpires": func(p *Params) { p.ClaimExpires = true },
	}
	for name, change := range changes {
		t.Run(name, func(t *testing.T) {
			params := DefaultParams(contractAddr)
			change(&params)
			restarted, err := NewEngine(params)
			require.NoError(t, err)
			restarted.SetState(h.state)
			require.ErrorIs(t, restarted.Initialize(ownerAddr, 0), ErrParamsMismatch)
		})
	}

	same, err := NewEngine(DefaultParams(contractAddr))
	require.NoError(t, err)
	same.SetState(h.state)
	require.NoError(t, same.Initialize(ownerAddr, 0))
}

func TestDepositRejectsStoredDefaultOutsideBounds(t *testing.T) {
	h := newHarness(t, func(p *Params) {
		p.MinLockDuration = 60
		p.MaxLockDuration = 3600
	})
	key := h.key(t, recipientAddr, "secret")

	h.state.cfg.LockDuration = 7200
	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(5), key, 0)
	require.ErrorIs(t, err, ErrInvalidMaxLockDuration)

	h.state.cfg.LockDuration = 60
	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(5), key, 0)
	require.ErrorIs(t, err, ErrInvalidMinLockDuration)

	require.Equal(t, uint64(1_000), h.balance(depositorAddr))
	require.Empty(t, h.log.List(0, 0))
}

func TestOperationsRequireInitializedConfig(t *testing.T) {
	engine, err := NewEngine(DefaultParams(contractAddr))
	require.NoError(t, err)
	_, err = engine.Deposit(depositorAddr, uint256.NewInt(1), [32]byte{1}, 0)
	require.ErrorIs(t, err, errNilState)

	engine.SetState(newMockState())
	_, err = engine.Deposit(depositorAddr, uint256.NewInt(1), [32]byte{1}, 0)
	require.True(t, IsNotInitialized(err))
}

func TestDepositRecordsEntryAndMovesValue(t *testing.T) {
	h := newHarness(t, nil)
	key := h.key(t, recipientAddr, "secret")

	entry, err := h.engine.Deposit(depositorAddr, uint256.NewInt(20), key, 86400)
	require.NoError(t, err)
	require.Equal(t, depositorAddr, entry.Depositor)
	require.Equal(t, uint64(20), entry.Amount.Uint64())
	require.Equal(t, int64(1_000+86400), entry.Deadline)

	stored, err := h.engine.Entry(key)
	require.NoError(t, err)
	require.True(t, stored.Active())
	require.Equal(t, key, stored.Key)

	require.Equal(t, uint64(980), h.balance(depositorAddr))
	require.Equal(t, uint64(20), h.balance(contractAddr))
	h.requireConserved(t)

	records := h.log.List(0, 0)
	require.Len(t, records, 1)
	require.Equal(t, events.TypeRemittanceDeposited, records[0].Type)
	require.Equal(t, "87400", records[0].Attributes["deadline"])
}

func TestDepositUsesConfiguredDefaultLock(t *testing.T) {
	h := newHarness(t, nil)
	key := h.key(t, recipientAddr, "secret")

	entry, err := h.engine.Deposit(depositorAddr, uint256.NewInt(1), key, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1_000)+int64(DefaultLockDuration), entry.Deadline)
}

func TestDepositPreconditions(t *testing.T) {
	h := newHarness(t, func(p *Params) {
		p.MinLockDuration = 60
		p.MaxLockDuration = 3600
	})
	require.NoError(t, h.engine.SetLockDuration(ownerAddr, 600))
	key := h.key(t, recipientAddr, "secret")

	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(1), [32]byte{}, 0)
	require.ErrorIs(t, err, ErrZeroKey)

	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(0), key, 0)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = h.engine.Deposit(depositorAddr, nil, key, 0)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(1), key, 60)
	require.ErrorIs(t, err, ErrInvalidMinLockDuration)
	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(1), key, 3601)
	require.ErrorIs(t, err, ErrInvalidMaxLockDuration)

	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(5_000), key, 61)
	require.Error(t, err)
	require.Equal(t, uint64(1_000), h.balance(depositorAddr))

	entry, err := h.engine.Deposit(depositorAddr, uint256.NewInt(1), key, 61)
	require.NoError(t, err)
	require.Equal(t, int64(1_061), entry.Deadline)

	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(1), key, 3600)
	require.ErrorIs(t, err, ErrKeyActive)

	other := h.key(t, recipientAddr, "other")
	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(1), other, 3600)
	require.NoError(t, err)
	h.requireConserved(t)
}

func TestWithdrawPaysOnce(t *testing.T) {
	h := newHarness(t, nil)
	key := h.key(t, recipientAddr, "secret")
	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(20), key, 0)
	require.NoError(t, err)

	paid, err := h.engine.Withdraw(recipientAddr, "secret")
	require.NoError(t, err)
	require.Equal(t, uint64(20), paid.Amount.Uint64())
	require.Equal(t, uint64(20), h.balance(recipientAddr))

	stored, err := h.engine.Entry(key)
	require.NoError(t, err)
	require.False(t, stored.Active())

	_, err = h.engine.Withdraw(recipientAddr, "secret")
	require.ErrorIs(t, err, ErrNotOwedWithdrawal)
	require.Equal(t, uint64(20), h.balance(recipientAddr))
	h.requireConserved(t)

	records := h.log.List(0, 0)
	require.Equal(t, events.TypeRemittanceWithdrawn, records[len(records)-1].Type)
	for _, value := range records[len(records)-1].Attributes {
		require.NotContains(t, value, "secret")
	}
}

func TestWithdrawFailuresAreIndistinguishable(t *testing.T) {
	h := newHarness(t, nil)
	key := h.key(t, recipientAddr, "secret")
	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(20), key, 0)
	require.NoError(t, err)

	_, wrongPassword := h.engine.Withdraw(recipientAddr, "guess")
	_, wrongCaller := h.engine.Withdraw(strangerAddr, "secret")
	require.ErrorIs(t, wrongPassword, ErrNotOwedWithdrawal)
	require.ErrorIs(t, wrongCaller, ErrNotOwedWithdrawal)
	require.Equal(t, wrongPassword.Error(), wrongCaller.Error())

	_, err = h.engine.Withdraw(recipientAddr)
	require.ErrorIs(t, err, ErrPasswordArity)
	_, err = h.engine.Withdraw(recipientAddr, "")
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestKeyReusableAfterClear(t *testing.T) {
	h := newHarness(t, nil)
	key := h.key(t, recipientAddr, "secret")

	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(5), key, 0)
	require.NoError(t, err)
	_, err = h.engine.Withdraw(recipientAddr, "secret")
	require.NoError(t, err)

	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(7), key, 0)
	require.NoError(t, err)
	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(7), key, 0)
	require.ErrorIs(t, err, ErrKeyActive)
	h.requireConserved(t)
}

func TestRefundAfterDeadline(t *testing.T) {
	h := newHarness(t, nil)
	key := h.key(t, recipientAddr, "secret")
	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(20), key, 86400)
	require.NoError(t, err)

	_, err = h.engine.Refund(depositorAddr, key)
	require.ErrorIs(t, err, ErrRefundNotEligible)

	h.now += 86400
	_, err = h.engine.Refund(depositorAddr, key)
	require.ErrorIs(t, err, ErrRefundNotEligible)

	h.now++
	before := h.balance(depositorAddr)
	paid, err := h.engine.Refund(depositorAddr, key)
	require.NoError(t, err)
	require.Equal(t, uint64(20), paid.Amount.Uint64())
	require.Equal(t, before+20, h.balance(depositorAddr))

	stored, err := h.engine.Entry(key)
	require.NoError(t, err)
	require.True(t, stored.Amount.IsZero())

	_, err = h.engine.Refund(depositorAddr, key)
	require.ErrorIs(t, err, ErrNotOwedRefund)
	h.requireConserved(t)
}

func TestRefundAuthorization(t *testing.T) {
	h := newHarness(t, nil)
	key := h.key(t, recipientAddr, "secret")

	_, err := h.engine.Refund(depositorAddr, [32]byte{})
	require.ErrorIs(t, err, ErrZeroKey)
	_, err = h.engine.Refund(depositorAddr, key)
	require.ErrorIs(t, err, ErrNotOwedRefund)

	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(20), key, 100)
	require.NoError(t, err)
	h.now += 101

	_, err = h.engine.Refund(strangerAddr, key)
	require.ErrorIs(t, err, ErrNotDepositor)
	_, err = h.engine.Refund(recipientAddr, key)
	require.ErrorIs(t, err, ErrNotDepositor)
}

func TestClaimExpiresRejectsLateWithdraw(t *testing.T) {
	h := newHarness(t, func(p *Params) { p.ClaimExpires = true })
	key := h.key(t, recipientAddr, "secret")
	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(20), key, 100)
	require.NoError(t, err)

	h.now += 101
	_, err = h.engine.Withdraw(recipientAddr, "secret")
	require.ErrorIs(t, err, ErrWithdrawalExpired)

	_, err = h.engine.Refund(depositorAddr, key)
	require.NoError(t, err)
}

func TestHandlerSchemeWithdraw(t *testing.T) {
	h := newHarness(t, func(p *Params) { p.Scheme = SchemeHandler })
	secret, err := h.engine.Generator().GenerateSecret(recipientAddr, "123456", "abcdef")
	require.NoError(t, err)

	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(20), secret.HashedSecret, 0)
	require.NoError(t, err)

	_, err = h.engine.Withdraw(recipientAddr, "secret")
	require.ErrorIs(t, err, ErrPasswordArity)
	_, err = h.engine.Withdraw(recipientAddr, "abcdef", "123456")
	require.ErrorIs(t, err, ErrNotOwedWithdrawal)

	paid, err := h.engine.Withdraw(recipientAddr, "123456", "abcdef")
	require.NoError(t, err)
	require.Equal(t, secret.HashedSecret, paid.Key)
	require.Equal(t, uint64(20), h.balance(recipientAddr))
}

func TestPauseGate(t *testing.T) {
	h := newHarness(t, nil)
	key := h.key(t, recipientAddr, "secret")
	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(20), key, 100)
	require.NoError(t, err)
	h.now += 101

	require.ErrorIs(t, h.engine.Pause(strangerAddr), ErrNotOwner)
	require.ErrorIs(t, h.engine.Unpause(ownerAddr), ErrNotPaused)
	require.NoError(t, h.engine.Pause(ownerAddr))
	require.ErrorIs(t, h.engine.Pause(ownerAddr), ErrPaused)

	paused, err := h.engine.Paused()
	require.NoError(t, err)
	require.True(t, paused)

	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(1), h.key(t, recipientAddr, "x"), 0)
	require.ErrorIs(t, err, ErrPaused)
	_, err = h.engine.Withdraw(recipientAddr, "secret")
	require.ErrorIs(t, err, ErrPaused)
	_, err = h.engine.Refund(depositorAddr, key)
	require.ErrorIs(t, err, ErrPaused)
	require.ErrorIs(t, h.engine.SetLockDuration(ownerAddr, 100), ErrPaused)
	require.Equal(t, "Contract is paused", Reason(err))

	require.ErrorIs(t, h.engine.Unpause(strangerAddr), ErrNotOwner)
	require.NoError(t, h.engine.Unpause(ownerAddr))
	_, err = h.engine.Withdraw(recipientAddr, "secret")
	require.NoError(t, err)

	var types []string
	for _, rec := range h.log.List(0, 0) {
		types = append(types, rec.Type)
	}
	require.Equal(t, []string{
		events.TypeRemittanceDeposited,
		events.TypeRemittancePaused,
		events.TypeRemittanceUnpaused,
		events.TypeRemittanceWithdrawn,
	}, types)
}

func TestSetLockDurationBounds(t *testing.T) {
	h := newHarness(t, nil)

	require.ErrorIs(t, h.engine.SetLockDuration(strangerAddr, 100), ErrNotOwner)
	require.ErrorIs(t, h.engine.SetLockDuration(ownerAddr, 0), ErrInvalidMinLockDuration)
	require.ErrorIs(t, h.engine.SetLockDuration(ownerAddr, DefaultMaxLockDuration+1), ErrInvalidMaxLockDuration)
	require.NoError(t, h.engine.SetLockDuration(ownerAddr, DefaultMaxLockDuration))
	require.NoError(t, h.engine.SetLockDuration(ownerAddr, 1))

	cfg, err := h.engine.Config()
	require.NoError(t, err)
	require.Equal(t, uint64(1), cfg.LockDuration)

	records := h.log.List(0, 0)
	require.Len(t, records, 2)
	require.Equal(t, events.TypeRemittanceLockDurationSet, records[1].Type)
	require.Equal(t, "31536000", records[1].Attributes["old"])
	require.Equal(t, "1", records[1].Attributes["new"])

	entry, err := h.engine.Deposit(depositorAddr, uint256.NewInt(1), h.key(t, recipientAddr, "s"), 0)
	require.NoError(t, err)
	require.Equal(t, int64(1_001), entry.Deadline)
}

func TestChangeOwner(t *testing.T) {
	h := newHarness(t, nil)

	require.ErrorIs(t, h.engine.ChangeOwner(strangerAddr, strangerAddr), ErrNotOwner)
	require.ErrorIs(t, h.engine.ChangeOwner(ownerAddr, [20]byte{}), ErrZeroOwner)

	require.NoError(t, h.engine.Pause(ownerAddr))
	require.NoError(t, h.engine.ChangeOwner(ownerAddr, strangerAddr))

	require.ErrorIs(t, h.engine.Unpause(ownerAddr), ErrNotOwner)
	require.NoError(t, h.engine.Unpause(strangerAddr))

	cfg, err := h.engine.Config()
	require.NoError(t, err)
	require.Equal(t, strangerAddr, cfg.Owner)
}

func TestReentrantWithdrawFromHookIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	key := h.key(t, recipientAddr, "secret")
	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(20), key, 0)
	require.NoError(t, err)

	var nested error
	calls := 0
	h.engine.SetReceiveHook(recipientAddr, func(to [20]byte, amount *uint256.Int) error {
		calls++
		_, nested = h.engine.Withdraw(to, "secret")
		return nil
	})

	_, err = h.engine.Withdraw(recipientAddr, "secret")
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.ErrorIs(t, nested, ErrNotOwedWithdrawal)
	require.Equal(t, uint64(20), h.balance(recipientAddr))
	h.requireConserved(t)
}

func TestFailedOperationDropsEventsOfNestedCalls(t *testing.T) {
	h := newHarness(t, nil)
	first := h.key(t, recipientAddr, "first")
	second := h.key(t, recipientAddr, "second")
	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(20), first, 0)
	require.NoError(t, err)
	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(30), second, 0)
	require.NoError(t, err)
	seen := len(h.log.List(0, 0))

	refuse := errors.New("recipient refuses value")
	var nested error
	h.engine.SetReceiveHook(recipientAddr, func(to [20]byte, _ *uint256.Int) error {
		h.engine.SetReceiveHook(recipientAddr, nil)
		_, nested = h.engine.Withdraw(to, "second")
		return refuse
	})

	_, err = h.engine.Withdraw(recipientAddr, "first")
	require.ErrorIs(t, err, refuse)
	require.NoError(t, nested)

	require.Len(t, h.log.List(0, 0), seen)
	for _, key := range [][32]byte{first, second} {
		stored, err := h.engine.Entry(key)
		require.NoError(t, err)
		require.True(t, stored.Active())
	}
	require.Zero(t, h.balance(recipientAddr))
	h.requireConserved(t)
}

func TestNestedCallEventsFollowOuterOperation(t *testing.T) {
	h := newHarness(t, nil)
	first := h.key(t, recipientAddr, "first")
	second := h.key(t, recipientAddr, "second")
	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(20), first, 0)
	require.NoError(t, err)
	_, err = h.engine.Deposit(depositorAddr, uint256.NewInt(30), second, 0)
	require.NoError(t, err)
	seen := len(h.log.List(0, 0))

	h.engine.SetReceiveHook(recipientAddr, func(to [20]byte, _ *uint256.Int) error {
		h.engine.SetReceiveHook(recipientAddr, nil)
		_, err := h.engine.Withdraw(to, "second")
		require.NoError(t, err)
		require.Len(t, h.log.List(0, 0), seen)
		return nil
	})

	_, err = h.engine.Withdraw(recipientAddr, "first")
	require.NoError(t, err)

	records := h.log.List(uint64(seen), 0)
	require.Len(t, records, 2)
	require.Equal(t, events.TypeRemittanceWithdrawn, records[0].Type)
	require.Equal(t, events.TypeRemittanceWithdrawn, records[1].Type)
	require.Equal(t, uint64(50), h.balance(recipientAddr))
	h.requireConserved(t)
}

func TestRejectingHookRestoresEntry(t *testing.T) {
	h := newHarness(t, nil)
	key := h.key(t, recipientAddr, "secret")
	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(20), key, 0)
	require.NoError(t, err)

	refuse := errors.New("recipient refuses value")
	h.engine.SetReceiveHook(recipientAddr, func([20]byte, *uint256.Int) error { return refuse })

	_, err = h.engine.Withdraw(recipientAddr, "secret")
	require.ErrorIs(t, err, ErrTransferFailed)
	require.ErrorIs(t, err, refuse)

	stored, err := h.engine.Entry(key)
	require.NoError(t, err)
	require.Equal(t, uint64(20), stored.Amount.Uint64())
	require.Zero(t, h.balance(recipientAddr))
	h.requireConserved(t)

	h.engine.SetReceiveHook(recipientAddr, nil)
	_, err = h.engine.Withdraw(recipientAddr, "secret")
	require.NoError(t, err)
}

func TestConservationAcrossMixedOperations(t *testing.T) {
	h := newHarness(t, nil)
	h.state.balances[strangerAddr] = uint256.NewInt(500)

	keys := make([][32]byte, 0, 4)
	for i, pw := range []string{"a", "b", "c", "d"} {
		key := h.key(t, recipientAddr, pw)
		from := depositorAddr
		if i%2 == 1 {
			from = strangerAddr
		}
		_, err := h.engine.Deposit(from, uint256.NewInt(uint64(10*(i+1))), key, 50)
		require.NoError(t, err)
		keys = append(keys, key)
		h.requireConserved(t)
	}

	_, err := h.engine.Withdraw(recipientAddr, "b")
	require.NoError(t, err)
	h.requireConserved(t)

	h.now += 51
	_, err = h.engine.Refund(depositorAddr, keys[0])
	require.NoError(t, err)
	_, err = h.engine.Refund(depositorAddr, keys[3])
	require.ErrorIs(t, err, ErrNotDepositor)
	_, err = h.engine.Refund(strangerAddr, keys[3])
	require.NoError(t, err)
	h.requireConserved(t)

	outstanding, err := h.engine.Outstanding()
	require.NoError(t, err)
	require.Equal(t, uint64(30), outstanding.Uint64())
	require.Equal(t, uint64(1_500), h.balance(depositorAddr)+h.balance(strangerAddr)+h.balance(recipientAddr)+h.balance(contractAddr))
}

func TestCheckSolvencyDetectsShortfall(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.engine.Deposit(depositorAddr, uint256.NewInt(20), h.key(t, recipientAddr, "s"), 0)
	require.NoError(t, err)

	h.state.balances[contractAddr] = uint256.NewInt(19)
	require.ErrorIs(t, h.engine.CheckSolvency(), ErrInsolvent)
}
