package remittance

import "github.com/0surface/Remittance/core/events"

// checkLockBounds enforces min < d <= max.
func (e *Engine) checkLockBounds(d uint64) error {
	if d <= e.params.MinLockDuration {
		return ErrInvalidMinLockDuration
	}
	if d > e.params.MaxLockDuration {
		return ErrInvalidMaxLockDuration
	}
	return nil
}

// effectiveLock resolves a zero request to the stored default. Both paths are
// held to the deployment bounds.
func (e *Engine) effectiveLock(cfg *Config, requested uint64) (uint64, error) {
	if requested == 0 {
		requested = cfg.LockDuration
	}
	if err := e.checkLockBounds(requested); err != nil {
		return 0, err
	}
	return requested, nil
}

// SetLockDuration changes the default lock applied to deposits that do not
// name one.
func (e *Engine) SetLockDuration(caller [20]byte, d uint64) (err error) {
	snap, err := e.begin()
	if err != nil {
		return err
	}
	defer e.finish(snap, &err)

	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Paused {
		return ErrPaused
	}
	if err := requireOwner(cfg, caller); err != nil {
		return err
	}
	if err := e.checkLockBounds(d); err != nil {
		return err
	}
	old := cfg.LockDuration
	cfg.LockDuration = d
	if err := e.state.PutRemittanceConfig(cfg); err != nil {
		return err
	}
	e.emit(events.RemittanceLockDurationSet{Owner: caller, Old: old, New: d})
	return nil
}
