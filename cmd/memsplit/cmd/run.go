package cmd

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"memsplit/host"
	"memsplit/splitter"
	"memsplit/timer"
)

type runOptions struct {
	segments int
	stdin    bool
}

// NewRunCommand drives the engine against the live game.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	run := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Attach to the game and drive a local stopwatch",
		Long: `Polls the game at the profile's tick rate.

SIGHUP releases the tracked process so the next tick attaches again, for a
game that was restarted under the same name. With --stdin the lines split,
reset, detach, status and quit control the stopwatch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.loadProfile()
			if err != nil {
				return err
			}
			mem, err := newMemory()
			if err != nil {
				return err
			}

			sw := timer.NewStopwatch(run.segments)
			engine, err := splitter.New(host.NewLocal(mem, sw, log), p)
			if err != nil {
				return err
			}
			defer engine.Close()

			engine.Configure()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

			d := &driver{engine: engine, sw: sw, hup: hup}
			if run.stdin {
				d.commands = readLines(ctx, cmd.InOrStdin())
			}

			log.Infoln("Waiting for", p.ProcessName)
			return d.run(ctx)
		},
	}

	cmd.Flags().IntVar(&run.segments, "segments", 0, "splits that finish the run (0: never)")
	cmd.Flags().BoolVar(&run.stdin, "stdin", false, "read control commands from stdin")

	return cmd
}

// driver calls the engine on the schedule the engine asked for.
type driver struct {
	engine   *splitter.Engine
	sw       *timer.Stopwatch
	hup      <-chan os.Signal
	commands <-chan string
}

func interval(ticksPerSecond float64) time.Duration {
	if ticksPerSecond <= 0 {
		return time.Second / 60
	}
	return max(time.Duration(float64(time.Second)/ticksPerSecond), time.Microsecond)
}

func (d *driver) run(ctx context.Context) error {
	rate := d.sw.TickRate()
	ticker := time.NewTicker(interval(rate))
	defer ticker.Stop()

	phase := d.sw.Phase()
	for {
		select {
		case <-ctx.Done():
			log.Infoln("Stopping")
			return nil

		case <-d.hup:
			log.Infoln("SIGHUP, releasing the tracked process")
			d.engine.Detach()

		case line, ok := <-d.commands:
			if !ok {
				d.commands = nil
				continue
			}
			if d.command(line) {
				return nil
			}

		case <-ticker.C:
			d.engine.Update()

			// The rate hint applies from the next tick on.
			if r := d.sw.TickRate(); r != rate {
				rate = r
				ticker.Reset(interval(rate))
			}
			if p := d.sw.Phase(); p != phase {
				log.Infoln("Timer", phase, "->", p, "game time", d.sw.GameTime())
				phase = p
			}
		}
	}
}

// command handles one control line and reports whether to quit.
func (d *driver) command(line string) bool {
	switch strings.TrimSpace(strings.ToLower(line)) {
	case "":
	case "split":
		d.sw.Split()
	case "reset":
		d.sw.Reset()
	case "detach":
		d.engine.Detach()
	case "status":
		log.Infoln("Phase", d.sw.Phase(), "game time", d.sw.GameTime(),
			"paused", d.sw.IsGameTimePaused(), "attached", d.engine.Attached())
	case "quit", "q":
		return true
	default:
		log.Warn("Unknown command: ", line)
	}
	return false
}

// readLines feeds the lines of r to the returned channel until r ends or ctx
// is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
