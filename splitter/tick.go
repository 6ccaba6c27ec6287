package splitter

import (
	"bytes"
	"fmt"

	"memsplit/process"
	"memsplit/profile"
	"memsplit/timer"
)

// abs converts a module-relative offset into an address.
func (e *Engine) abs(offset uint64) process.Address {
	return process.Address(e.profile.ModuleBase).Add(process.Size(offset))
}

func (e *Engine) tick() error {
	if e.proc == nil {
		e.attach()
		if e.proc == nil {
			return nil
		}
	}

	switch e.host.Phase() {
	case timer.NotRunning:
		return e.tickNotRunning()
	case timer.Running:
		return e.tickRunning()
	}
	return nil
}

// tickNotRunning starts the timer on the tick the ready flag rises while a
// key is held. The key alone stays set for many ticks; the edge fires once.
func (e *Engine) tickNotRunning() error {
	err := e.ready.TryUpdate(func() (uint8, error) {
		return process.Read[uint8](e.proc, e.abs(e.profile.ReadyFlag))
	})
	if err != nil {
		return fmt.Errorf("ready flag: %w", err)
	}

	key, err := process.Read[uint8](e.proc, e.abs(e.profile.TriggerKey))
	if err != nil {
		return fmt.Errorf("trigger key: %w", err)
	}

	if key != 0 && e.ready.Transitioned(0, 1) {
		e.log.Infoln("Ready flag rose with key", key, "held, starting")
		e.host.Start()
	}
	return nil
}

// tickRunning pauses game time while map data loads or the loading screen
// overlay is up, and resumes it otherwise.
func (e *Engine) tickRunning() error {
	loading, err := process.ReadPath[uint32](e.proc, e.abs(e.profile.LoadingBase), 0, process.Size(e.profile.LoadingOffset))
	if err != nil {
		return fmt.Errorf("loading flag: %w", err)
	}
	if loading != e.profile.LoadingIdleBits {
		e.host.PauseGameTime()
		return nil
	}

	overlays, err := process.ReadPath[Overlays](e.proc, e.abs(e.profile.OverlaysBase), 0, process.Size(e.profile.OverlaysOffset))
	if err != nil {
		return fmt.Errorf("overlay list: %w", err)
	}

	// The list is rewritten while we read it; a count outside the bound is
	// a torn read, not a real list.
	if overlays.Count < 0 || int(overlays.Count) > e.profile.OverlayCapacity {
		e.host.ResumeGameTime()
		return nil
	}

	var buf [profile.MaxOverlays]uint32
	ptrs := buf[:overlays.Count]
	if err := process.ReadSlice(e.proc, process.Address(overlays.Ptr), ptrs); err != nil {
		return fmt.Errorf("overlay pointers: %w", err)
	}

	for i, ptr := range ptrs {
		match, err := e.isLoadingOverlay(process.Address(ptr))
		if err != nil {
			return fmt.Errorf("overlay %d: %w", i, err)
		}
		if match {
			e.host.PauseGameTime()
			return nil
		}
	}

	e.host.ResumeGameTime()
	return nil
}

func (e *Engine) isLoadingOverlay(addr process.Address) (bool, error) {
	overlay, err := process.Read[Overlay](e.proc, addr)
	if err != nil {
		return false, err
	}

	// NameLen counts the terminator; zero wraps and never matches.
	if overlay.NameLen-1 != e.overlayUnits {
		return false, nil
	}

	name := make([]byte, len(e.overlayName))
	if err := e.proc.ReadBytes(process.Address(overlay.NamePtr), name); err != nil {
		return false, fmt.Errorf("name: %w", err)
	}
	return bytes.Equal(name, e.overlayName), nil
}
