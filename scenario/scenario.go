// Package scenario replays scripted target memory through the splitter.
//
// A scenario maps regions of a fake target, then runs steps. Each step
// changes memory or the environment and runs one or more ticks; the
// resulting timer commands form a trace.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Segments is how many splits finish the run; zero never finishes.
	Segments int `yaml:"segments,omitempty"`

	// Attached is whether the target is running at the first step.
	Attached bool `yaml:"attached"`

	Regions []Region `yaml:"regions"`
	Steps   []Step   `yaml:"steps"`
}

// Region is mapped, zero-filled target memory.
type Region struct {
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

// Write stores exactly one of the value fields at Addr.
type Write struct {
	Addr  uint64  `yaml:"addr"`
	U8    *uint8  `yaml:"u8,omitempty"`
	U32   *uint32 `yaml:"u32,omitempty"`
	I32   *int32  `yaml:"i32,omitempty"`
	UTF16 *string `yaml:"utf16,omitempty"`
}

// Step changes the environment and then runs Ticks ticks (at least one).
type Step struct {
	Note string `yaml:"note,omitempty"`

	Ticks int `yaml:"ticks,omitempty"`

	// Running starts or stops the target process.
	Running *bool `yaml:"running,omitempty"`

	Write []Write `yaml:"write,omitempty"`

	// FailAll makes every read fail from this step on, until unset.
	FailAll *bool `yaml:"fail_all,omitempty"`

	// Fail and Heal add and remove addresses whose reads fail.
	Fail []uint64 `yaml:"fail,omitempty"`
	Heal []uint64 `yaml:"heal,omitempty"`

	// Detach asks the splitter to drop its handle before the ticks.
	Detach bool `yaml:"detach,omitempty"`

	// Split and Reset are runner actions on the timer before the ticks.
	Split bool `yaml:"split,omitempty"`
	Reset bool `yaml:"reset,omitempty"`
}

func (w Write) validate() error {
	n := 0
	for _, set := range []bool{w.U8 != nil, w.U32 != nil, w.I32 != nil, w.UTF16 != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("write at 0x%X must set exactly one of u8, u32, i32, utf16", w.Addr)
	}
	return nil
}

// Validate reports the first structural problem.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("name is empty")
	}
	if len(s.Steps) == 0 {
		return errors.New("no steps")
	}
	if s.Segments < 0 {
		return fmt.Errorf("segments %d is negative", s.Segments)
	}
	for i, r := range s.Regions {
		if r.Size == 0 {
			return fmt.Errorf("region %d at 0x%X is empty", i, r.Base)
		}
	}
	for i, step := range s.Steps {
		if step.Ticks < 0 {
			return fmt.Errorf("step %d: ticks %d is negative", i, step.Ticks)
		}
		for _, w := range step.Write {
			if err := w.validate(); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}
	}
	return nil
}

// Parse decodes and validates a scenario. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", s.Name, err)
	}
	return &s, nil
}

// Load reads and parses the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
