package timer

import (
	"sync"
	"time"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Stopwatch is a local Timer with real time and game time. Game time stops
// while paused.
type Stopwatch struct {
	mu  sync.Mutex
	log *logger.Logger
	now func() time.Time

	phase    Phase
	started  time.Time
	paused   bool
	pausedAt time.Time
	pausedBy time.Duration
	stopped  time.Time
	splits   []time.Duration
	segments int
	tickRate float64
}

var _ Timer = (*Stopwatch)(nil)

// NewStopwatch creates a stopwatch that finishes after segments splits, or
// never when segments is zero.
func NewStopwatch(segments int) *Stopwatch {
	return &Stopwatch{
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "stopwatch")),
		now:      time.Now,
		segments: segments,
	}
}

// WithClock replaces the time source, for tests.
func (s *Stopwatch) WithClock(now func() time.Time) *Stopwatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Phase returns the current phase.
func (s *Stopwatch) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Start begins a run. It is ignored unless the timer is NotRunning.
func (s *Stopwatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != NotRunning {
		return
	}
	s.phase = Running
	s.started = s.now()
	s.log.Infoln("Started")
}

// Split records a split; the last segment finishes the run.
func (s *Stopwatch) Split() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Running {
		return
	}
	s.splits = append(s.splits, s.gameTimeLocked())
	s.log.Infoln("Split", len(s.splits), "at", s.splits[len(s.splits)-1])

	if s.segments > 0 && len(s.splits) >= s.segments {
		s.stopped = s.now()
		s.phase = Finished
		s.log.Infoln("Finished")
	}
}

// Reset discards the run and returns to NotRunning.
func (s *Stopwatch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = NotRunning
	s.paused = false
	s.pausedBy = 0
	s.splits = nil
	s.log.Infoln("Reset")
}

// PauseGameTime stops game time. Pausing twice is a no-op.
func (s *Stopwatch) PauseGameTime() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Running || s.paused {
		return
	}
	s.paused = true
	s.pausedAt = s.now()
	s.log.Debugln("Game time paused")
}

// ResumeGameTime restarts game time. Resuming twice is a no-op.
func (s *Stopwatch) ResumeGameTime() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return
	}
	s.paused = false
	s.pausedBy += s.now().Sub(s.pausedAt)
	s.log.Debugln("Game time resumed")
}

// SetTickRate stores the rate hint for the driver.
func (s *Stopwatch) SetTickRate(ticksPerSecond float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickRate = ticksPerSecond
}

// TickRate returns the last hint given through SetTickRate.
func (s *Stopwatch) TickRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickRate
}

// IsGameTimePaused reports whether game time is stopped.
func (s *Stopwatch) IsGameTimePaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// GameTime is the time spent running and not paused.
func (s *Stopwatch) GameTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameTimeLocked()
}

// Splits returns the game time of every split so far.
func (s *Stopwatch) Splits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.splits...)
}

func (s *Stopwatch) gameTimeLocked() time.Duration {
	if s.phase == NotRunning {
		return 0
	}
	end := s.now()
	switch {
	case s.paused:
		end = s.pausedAt
	case s.phase == Finished:
		end = s.stopped
	}
	return end.Sub(s.started) - s.pausedBy
}
