package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/0surface/Remittance/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	return NewManager(db), db
}

func TestKVPutStaysPendingUntilCommit(t *testing.T) {
	mgr, db := newTestManager(t)

	require.NoError(t, mgr.KVPut([]byte("k"), uint64(7)))
	require.Zero(t, db.Len())

	var got uint64
	ok, err := mgr.KVGet([]byte("k"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), got)

	require.NoError(t, mgr.Commit())
	require.Equal(t, 1, db.Len())
	require.Zero(t, mgr.Pending())

	fresh := NewManager(db)
	ok, err = fresh.KVGet([]byte("k"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), got)
}

func TestRevertToSnapshotUndoesNestedWrites(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.KVPut([]byte("a"), uint64(1)))

	outer := mgr.Snapshot()
	require.NoError(t, mgr.KVPut([]byte("a"), uint64(2)))
	inner := mgr.Snapshot()
	require.NoError(t, mgr.KVPut([]byte("b"), uint64(3)))
	require.NoError(t, mgr.KVDelete([]byte("a")))

	mgr.RevertToSnapshot(inner)
	var got uint64
	ok, err := mgr.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), got)
	ok, err = mgr.KVGet([]byte("b"), nil)
	require.NoError(t, err)
	require.False(t, ok)

	mgr.RevertToSnapshot(outer)
	_, err = mgr.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got)
}

func TestDiscardDropsPendingWrites(t *testing.T) {
	mgr, db := newTestManager(t)
	require.NoError(t, mgr.KVPut([]byte("a"), uint64(1)))
	mgr.Discard()
	require.NoError(t, mgr.Commit())
	require.Zero(t, db.Len())
}

func TestEnsureStateVersion(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.EnsureStateVersion())
	require.NoError(t, mgr.EnsureStateVersion())

	require.NoError(t, mgr.SetStateVersion(StateVersion+1))
	require.ErrorIs(t, mgr.EnsureStateVersion(), ErrStateVersionMismatch)
}

func TestTransferMovesBalance(t *testing.T) {
	mgr, _ := newTestManager(t)
	alice := [20]byte{1}
	bob := [20]byte{2}

	require.NoError(t, mgr.Credit(alice, uint256.NewInt(100)))
	require.NoError(t, mgr.Transfer(alice, bob, uint256.NewInt(40)))

	aliceBal, err := mgr.Balance(alice)
	require.NoError(t, err)
	bobBal, err := mgr.Balance(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(60), aliceBal.Uint64())
	require.Equal(t, uint64(40), bobBal.Uint64())

	err = mgr.Transfer(bob, alice, uint256.NewInt(41))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	require.NoError(t, mgr.Transfer(alice, alice, uint256.NewInt(60)))
	aliceBal, err = mgr.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(60), aliceBal.Uint64())
}

func TestIncrementNonce(t *testing.T) {
	mgr, _ := newTestManager(t)
	addr := [20]byte{9}
	require.NoError(t, mgr.Credit(addr, uint256.NewInt(5)))
	require.NoError(t, mgr.IncrementNonce(addr))
	require.NoError(t, mgr.IncrementNonce(addr))

	acc, err := mgr.Account(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(2), acc.Nonce)
	require.Equal(t, uint64(5), acc.Balance.Uint64())
}
