package session

import "github.com/rs/zerolog/log"

type teardownStep struct {
	name string
	fn   func()
}

// runTeardown executes steps in order. Each step is isolated so a panic
// or failure in one never prevents the subsequent steps from running:
// best-effort cleanup, not a transactional rollback.
func runTeardown(steps []teardownStep) {
	for _, s := range steps {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("module", "session").Str("step", s.name).Any("panic", r).Msg("teardown step panicked")
				}
			}()
			s.fn()
		}()
	}
}
