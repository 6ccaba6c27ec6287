package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"memsplit/hexdump"
	"memsplit/process"
)

// maxPeekSize bounds --size.
const maxPeekSize = 1 << 20

type peekOptions struct {
	size     uint64
	offsets  []string
	module   bool
	pointers bool
}

// NewPeekCommand dumps target memory for offset debugging.
func NewPeekCommand(opts *RootOptions) *cobra.Command {
	peek := &peekOptions{}

	cmd := &cobra.Command{
		Use:   "peek <address>",
		Short: "Hex-dump target memory at an address or pointer path",
		Long: `Attaches to the profile's process and dumps --size bytes.

With --offset the address is the start of a 32-bit pointer path: every offset
but the last is dereferenced, the last is added to the final pointer.`,
		Example: "  memsplit peek --module 0x1415A30 --offset 0 --offset 0x124 --size 8",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.loadProfile()
			if err != nil {
				return err
			}

			if peek.size == 0 || peek.size > maxPeekSize {
				return fmt.Errorf("size %d out of range 1..%d", peek.size, maxPeekSize)
			}

			base, err := parseUint(args[0])
			if err != nil {
				return fmt.Errorf("address: %w", err)
			}
			if peek.module {
				base += p.ModuleBase
			}

			offsets := make([]process.Size, 0, len(peek.offsets))
			for _, s := range peek.offsets {
				off, err := parseUint(s)
				if err != nil {
					return fmt.Errorf("offset %q: %w", s, err)
				}
				offsets = append(offsets, process.Size(off))
			}

			mem, err := newMemory()
			if err != nil {
				return err
			}
			h, ok := process.Attach(mem, p.ProcessName)
			if !ok {
				return fmt.Errorf("no single process named %q", p.ProcessName)
			}
			defer h.Close()

			addr, err := process.Resolve(h, process.Address(base), offsets...)
			if err != nil {
				return err
			}

			return dump(cmd.OutOrStdout(), h, addr, int(peek.size), peek.pointers)
		},
	}

	cmd.Flags().Uint64VarP(&peek.size, "size", "s", 16, "bytes to read")
	cmd.Flags().StringArrayVarP(&peek.offsets, "offset", "o", nil, "pointer path offset (repeatable)")
	cmd.Flags().BoolVarP(&peek.module, "module", "m", false, "address is relative to the profile's module base")
	cmd.Flags().BoolVar(&peek.pointers, "pointers", false, "list 32-bit words that point at readable memory")

	return cmd
}

// dump reads size bytes at addr and writes them with rows labelled by
// target address.
func dump(w io.Writer, r process.Reader, addr process.Address, size int, pointers bool) error {
	buf := make([]byte, size)
	if err := r.ReadBytes(addr, buf); err != nil {
		return err
	}

	options := hexdump.DefaultOptions()
	options.StartOffset = uint64(addr)
	if pointers {
		options.Pointer = func(v uint32) bool {
			var b [1]byte
			return v != 0 && r.ReadBytes(process.Address(v), b[:]) == nil
		}
	}

	fmt.Fprintf(w, "%s (%d bytes)\n", addr, size)
	hexdump.DumpToWriter(w, buf, options)
	return nil
}

// parseUint accepts decimal, 0x hex and 0o octal.
func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}
