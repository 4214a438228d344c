/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package show

// window identifies a timed reveal window.
type window int

const (
	windowPenalty window = iota
	windowCorrect
)

// deferred is a single-shot callback due at a fixed instant. Anything it
// needs is captured by value when it is scheduled.
type deferred struct {
	due  int64
	fire func(s *State, now int64) error
}

func (e *Engine) schedule(w window, due int64, fire func(s *State, now int64) error) {
	e.windows[w] = deferred{due: due, fire: fire}
}

func (e *Engine) windowOpen(w window) bool {
	_, ok := e.windows[w]
	return ok
}

// cancelWindows drops every pending callback. Callers clear the matching
// *Until fields inside their own revision.
func (e *Engine) cancelWindows() {
	clear(e.windows)
}

// restoreWindows arms the windows of a loaded state from its persisted
// deadlines. The side a correct window was opened for is not stored, so it
// is taken from the running clock. Outside a duel stale deadlines are
// dropped.
func (e *Engine) restoreWindows() {
	s := &e.state
	if !inDuel(s) {
		s.PenaltyUntil, s.CorrectUntil = nil, nil
		return
	}
	if s.PenaltyUntil != nil {
		e.schedule(windowPenalty, *s.PenaltyUntil, e.nextItem)
	}
	if s.CorrectUntil != nil {
		side := s.Clock.RunningSide
		e.schedule(windowCorrect, *s.CorrectUntil, func(s *State, now int64) error {
			return e.switchSide(s, side, now)
		})
	}
}

// fireDue runs every window whose deadline has passed, penalty first.
func (e *Engine) fireDue(now int64) bool {
	changed := false
	for _, w := range []window{windowPenalty, windowCorrect} {
		d, ok := e.windows[w]
		if !ok || now < d.due {
			continue
		}
		delete(e.windows, w)

		_ = e.apply(func(s *State) error {
			if w == windowPenalty {
				s.PenaltyUntil = nil
			} else {
				s.CorrectUntil = nil
			}
			return nil
		})
		changed = true

		if err := e.apply(func(s *State) error { return d.fire(s, now) }); err != nil {
			e.log.Debug().Err(err).Int("window", int(w)).Msg("deferred action skipped")
		}
	}
	return changed
}
