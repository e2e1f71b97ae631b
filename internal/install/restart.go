package install

import "time"

// ShouldReload reports whether the configuration document was written
// after the running process last consumed it. Most configuration loads
// once at startup, so a wizard-driven write means a restart is needed.
func (s *Service) ShouldReload() bool {
	return s.cfg.Unconsumed()
}

// ReloadConfig fully validates the on-disk document and marks it consumed.
// It fails without side effects when the document is invalid, so a broken
// edit never schedules a restart.
func (s *Service) ReloadConfig() error {
	if _, err := s.cfg.Load(); err != nil {
		return Validationf("configuration reload failed: %v", err)
	}
	return nil
}

// TriggerRestart schedules a fire-and-forget delayed shutdown so the
// response that triggered it can still be delivered. Concurrent calls
// schedule at most one restart; the return value reports whether this
// call did the scheduling.
func (s *Service) TriggerRestart() bool {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()

	if s.restartRequested {
		return false
	}
	s.restartRequested = true

	s.logger.Info("restart scheduled", "delay", s.restartDelay)
	go func() {
		time.Sleep(s.restartDelay)
		if s.shutdown != nil {
			s.shutdown()
		}
	}()
	return true
}

// RestartPending reports whether a restart has been scheduled.
func (s *Service) RestartPending() bool {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()
	return s.restartRequested
}
