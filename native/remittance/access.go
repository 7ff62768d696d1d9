package remittance

import "github.com/0surface/Remittance/core/events"

func requireOwner(cfg *Config, caller [20]byte) error {
	if cfg.Owner != caller {
		return ErrNotOwner
	}
	return nil
}

// Pause trips the global circuit breaker. Deposit, withdraw, refund and
// SetLockDuration reject until Unpause.
func (e *Engine) Pause(caller [20]byte) error {
	return e.setPaused(caller, true)
}

func (e *Engine) Unpause(caller [20]byte) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller [20]byte, paused bool) (err error) {
	snap, err := e.begin()
	if err != nil {
		return err
	}
	defer e.finish(snap, &err)

	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := requireOwner(cfg, caller); err != nil {
		return err
	}
	switch {
	case paused && cfg.Paused:
		return ErrPaused
	case !paused && !cfg.Paused:
		return ErrNotPaused
	}
	cfg.Paused = paused
	if err := e.state.PutRemittanceConfig(cfg); err != nil {
		return err
	}
	if paused {
		e.emit(events.RemittancePaused{Owner: caller})
	} else {
		e.emit(events.RemittanceUnpaused{Owner: caller})
	}
	return nil
}

// ChangeOwner hands the contract to newOwner. It works while paused.
func (e *Engine) ChangeOwner(caller, newOwner [20]byte) (err error) {
	snap, err := e.begin()
	if err != nil {
		return err
	}
	defer e.finish(snap, &err)

	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := requireOwner(cfg, caller); err != nil {
		return err
	}
	if newOwner == ([20]byte{}) {
		return ErrZeroOwner
	}
	cfg.Owner = newOwner
	if err := e.state.PutRemittanceConfig(cfg); err != nil {
		return err
	}
	e.emit(events.RemittanceOwnerChanged{Old: caller, New: newOwner})
	return nil
}
