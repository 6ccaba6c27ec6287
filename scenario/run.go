package scenario

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"memsplit/host"
	"memsplit/host/hosttest"
	"memsplit/process"
	"memsplit/profile"
	"memsplit/splitter"
	"memsplit/timer"
)

// Result is the outcome of a run.
type Result struct {
	Trace    []string
	Ticks    int
	Aborted  int
	Phase    timer.Phase
	GameTime time.Duration
	Splits   []time.Duration
}

// String renders the trace followed by a summary line.
func (r *Result) String() string {
	var b strings.Builder
	for _, line := range r.Trace {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "end ticks=%d aborted=%d phase=%s game_time=%s splits=%v\n",
		r.Ticks, r.Aborted, r.Phase, r.GameTime, r.Splits)
	return b.String()
}

// recorder passes timer commands through and remembers them.
type recorder struct {
	timer.Timer

	mu       sync.Mutex
	commands []string
}

func (r *recorder) note(cmd string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmds := r.commands
	r.commands = nil
	return cmds
}

func (r *recorder) Start()          { r.note("start"); r.Timer.Start() }
func (r *recorder) Split()          { r.note("split"); r.Timer.Split() }
func (r *recorder) Reset()          { r.note("reset"); r.Timer.Reset() }
func (r *recorder) PauseGameTime()  { r.note("pause"); r.Timer.PauseGameTime() }
func (r *recorder) ResumeGameTime() { r.note("resume"); r.Timer.ResumeGameTime() }

func (r *recorder) SetTickRate(ticksPerSecond float64) {
	r.note(fmt.Sprintf("tick_rate=%g", ticksPerSecond))
	r.Timer.SetTickRate(ticksPerSecond)
}

// simHost joins the fake target, the recorded stopwatch and the trace.
type simHost struct {
	process.Memory
	*recorder

	messages []string
}

var _ host.Host = (*simHost)(nil)

func (h *simHost) PrintMessage(text string) {
	h.messages = append(h.messages, text)
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

// Run plays s against a fresh splitter configured with p.
func Run(s *Scenario, p profile.Profile) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", s.Name, err)
	}

	fake := hosttest.New(p.ProcessName)
	fake.Running = s.Attached
	for _, r := range s.Regions {
		if err := fake.Memory.Map(process.Address(r.Base), process.Size(r.Size)); err != nil {
			return nil, fmt.Errorf("map region: %w", err)
		}
	}

	clk := &clock{t: time.Unix(0, 0)}
	sw := timer.NewStopwatch(s.Segments).WithClock(clk.now)
	h := &simHost{Memory: fake, recorder: &recorder{Timer: sw}}

	engine, err := splitter.New(h, p)
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	result := &Result{}
	engine.Configure()
	result.Trace = append(result.Trace, "configure "+strings.Join(h.take(), " "))

	interval := time.Duration(float64(time.Second) / sw.TickRate())

	for i, step := range s.Steps {
		if step.Note != "" {
			result.Trace = append(result.Trace, "# "+step.Note)
		}
		if err := apply(fake, sw, engine, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		ticks := max(step.Ticks, 1)
		for range ticks {
			phase := sw.Phase()
			tickErr := engine.Tick()
			clk.t = clk.t.Add(interval)
			result.Ticks++

			line := fmt.Sprintf("%04d %-10s %s", result.Ticks, phase, commands(h.take()))
			if sw.IsGameTimePaused() {
				line += " paused"
			}
			if tickErr != nil {
				result.Aborted++
				line += " aborted"
			}
			result.Trace = append(result.Trace, line)

			for _, m := range h.messages {
				result.Trace = append(result.Trace, "message "+m)
			}
			h.messages = nil
		}
	}

	result.Phase = sw.Phase()
	result.GameTime = sw.GameTime()
	result.Splits = sw.Splits()
	return result, nil
}

func commands(cmds []string) string {
	if len(cmds) == 0 {
		return "-"
	}
	return strings.Join(cmds, ",")
}

func apply(fake *hosttest.Fake, sw *timer.Stopwatch, engine *splitter.Engine, step Step) error {
	if step.Running != nil {
		fake.Running = *step.Running
	}
	if step.FailAll != nil {
		fake.FailAll(*step.FailAll)
	}
	for _, addr := range step.Fail {
		fake.FailAt(process.Address(addr), true)
	}
	for _, addr := range step.Heal {
		fake.FailAt(process.Address(addr), false)
	}

	for _, w := range step.Write {
		if err := write(fake, w); err != nil {
			return err
		}
	}

	if step.Detach {
		engine.Detach()
	}
	if step.Split {
		sw.Split()
	}
	if step.Reset {
		sw.Reset()
	}
	return nil
}

func write(fake *hosttest.Fake, w Write) error {
	addr := process.Address(w.Addr)
	switch {
	case w.U8 != nil:
		return fake.Memory.WriteUINT8(addr, *w.U8)
	case w.U32 != nil:
		return fake.Memory.WriteUINT32(addr, *w.U32)
	case w.I32 != nil:
		return fake.Memory.WriteINT32(addr, *w.I32)
	case w.UTF16 != nil:
		data, err := encodeUTF16(*w.UTF16)
		if err != nil {
			return err
		}
		return fake.Memory.WriteBytes(addr, data)
	}
	return fmt.Errorf("empty write at %s", addr)
}
