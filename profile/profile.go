// Package profile holds the memory layout of one target program version.
// None of these numbers are discovered at runtime.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxOverlays is the largest overlay count the splitter accepts. Larger
// counts are treated as torn reads.
const MaxOverlays = 8

// Profile describes where the splitter finds its signals. Addresses marked
// module-relative are added to ModuleBase.
type Profile struct {
	ProcessName string  `yaml:"process_name"`
	TickRate    float64 `yaml:"tick_rate"`
	ModuleBase  uint64  `yaml:"module_base"`

	// ReadyFlag is a module-relative byte that goes 0 -> 1 when the game
	// accepts input after the intro. TriggerKey is a module-relative byte
	// that is non-zero while a key is held.
	ReadyFlag  uint64 `yaml:"ready_flag"`
	TriggerKey uint64 `yaml:"trigger_key"`

	// LoadingBase is a module-relative pointer; the 32-bit loading flag sits
	// LoadingOffset past its target. The flag holds LoadingIdleBits while no
	// map data is loading. The BioShock Infinite idle value is -1.0f
	// (0xBF800000), not 1.0f.
	LoadingBase     uint64 `yaml:"loading_base"`
	LoadingOffset   uint64 `yaml:"loading_offset"`
	LoadingIdleBits uint32 `yaml:"loading_idle_bits"`

	// OverlaysBase is a module-relative pointer; the overlay list descriptor
	// sits OverlaysOffset past its target.
	OverlaysBase    uint64 `yaml:"overlays_base"`
	OverlaysOffset  uint64 `yaml:"overlays_offset"`
	OverlayCapacity int    `yaml:"overlay_capacity"`

	// OverlayName is the overlay shown during load screens.
	OverlayName string `yaml:"overlay_name"`
}

// Default returns the layout of the Steam release of BioShock Infinite.
func Default() Profile {
	return Profile{
		ProcessName:     "BioShockInfinite.exe",
		TickRate:        500,
		ModuleBase:      0x00400000,
		ReadyFlag:       0x135697C,
		TriggerKey:      0x13D2AA2,
		LoadingBase:     0x14154E8,
		LoadingOffset:   0x4,
		LoadingIdleBits: math.Float32bits(-1),
		OverlaysBase:    0x1415A30,
		OverlaysOffset:  0x124,
		OverlayCapacity: MaxOverlays,
		OverlayName:     "GFXScriptReferenced.GameThreadLoadingScreen_Data_Oct22",
	}
}

// Validate reports the first problem with p.
func (p Profile) Validate() error {
	switch {
	case p.ProcessName == "":
		return errors.New("process_name is empty")
	case p.TickRate <= 0 || math.IsNaN(p.TickRate) || math.IsInf(p.TickRate, 0):
		return fmt.Errorf("tick_rate %v must be a positive number", p.TickRate)
	case p.OverlayCapacity < 1 || p.OverlayCapacity > MaxOverlays:
		return fmt.Errorf("overlay_capacity %d must be within 1..%d", p.OverlayCapacity, MaxOverlays)
	case p.OverlayName == "":
		return errors.New("overlay_name is empty")
	}
	return nil
}

// Parse decodes YAML over the defaults, so a file only needs the fields it
// changes. Unknown fields are rejected.
func Parse(data []byte) (Profile, error) {
	p := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}

	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}

// Load reads and parses the profile at path.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Marshal encodes p as YAML.
func (p Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
