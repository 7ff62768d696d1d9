package core

import (
	"github.com/holiman/uint256"

	"github.com/0surface/Remittance/core/state"
	"github.com/0surface/Remittance/native/remittance"
)

// Read-only views. They take the state lock because the journaled cache is
// shared with Apply.

func (n *Node) Params() remittance.Params { return n.engine.Params() }

func (n *Node) Entry(key [32]byte) (*remittance.Entry, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.Entry(key)
}

func (n *Node) Config() (*remittance.Config, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.Config()
}

func (n *Node) Account(addr [20]byte) (*state.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.Account(addr)
}

// Solvency reports the custody balance, the outstanding total and whether
// the first covers the second.
func (n *Node) Solvency() (custody, outstanding *uint256.Int, err error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	outstanding, err = n.engine.Outstanding()
	if err != nil {
		return nil, nil, err
	}
	custody, err = n.engine.Balance(n.engine.Params().Contract)
	if err != nil {
		return nil, nil, err
	}
	return custody, outstanding, n.engine.CheckSolvency()
}

// GenerateKey and GenerateSecret are pure and need no lock.

func (n *Node) GenerateKey(recipient [20]byte, password string) ([32]byte, error) {
	return n.engine.Generator().GenerateKey(recipient, password)
}

func (n *Node) GenerateSecret(handler [20]byte, handlerPassword, receiverPassword string) (remittance.Secret, error) {
	return n.engine.Generator().GenerateSecret(handler, handlerPassword, receiverPassword)
}

// Close releases the underlying database.
func (n *Node) Close() error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.db.Close()
}
