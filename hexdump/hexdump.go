// Package hexdump renders target memory as colored hex rows labelled with
// the address each row was read from.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Options controls the dump layout.
type Options struct {
	// BytesPerLine is the number of bytes per row
	BytesPerLine int

	// GroupSize groups bytes without a separating space (1, 2, 4 or 8)
	GroupSize int

	// ShowASCII adds the printable column
	ShowASCII bool

	// StartOffset is the address of data[0]
	StartOffset uint64

	// OffsetWidth is the minimum width of the address column in hex digits.
	// Addresses past 32 bits widen it to 16.
	OffsetWidth int

	OffsetColor       coloransi.ColorCode
	HexColor          coloransi.ColorCode
	ASCIIColor        coloransi.ColorCode
	NonPrintableColor coloransi.ColorCode
	ZeroColor         coloransi.ColorCode
	PointerColor      coloransi.ColorCode

	// MaxLines truncates the dump (0 for no limit)
	MaxLines int

	// Pointer, when set, is asked about every aligned 32-bit word of a row.
	// Words it accepts are listed after the ASCII column.
	Pointer func(uint32) bool
}

// DefaultOptions returns 16-byte rows with ASCII and the address column.
func DefaultOptions() Options {
	return Options{
		BytesPerLine:      16,
		GroupSize:         1,
		ShowASCII:         true,
		OffsetWidth:       8,
		OffsetColor:       coloransi.Cyan,
		HexColor:          coloransi.Green,
		ASCIIColor:        coloransi.White,
		NonPrintableColor: coloransi.Red,
		ZeroColor:         coloransi.BrightBlack,
		PointerColor:      coloransi.Yellow,
	}
}

// Dump returns the dump of data as a string.
func Dump(data []byte, options Options) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpWithOffset dumps data read at startOffset with default options.
func DumpWithOffset(data []byte, startOffset uint64) string {
	options := DefaultOptions()
	options.StartOffset = startOffset
	return Dump(data, options)
}

// DumpToWriter writes one row per BytesPerLine bytes of data.
func DumpToWriter(writer io.Writer, data []byte, options Options) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	if options.GroupSize <= 0 {
		options.GroupSize = 1
	}
	if options.OffsetWidth <= 0 {
		options.OffsetWidth = 8
	}
	if options.StartOffset+uint64(len(data)) > 0xFFFFFFFF {
		options.OffsetWidth = max(options.OffsetWidth, 16)
	}

	lines := 0
	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		if options.MaxLines > 0 && lines >= options.MaxLines {
			fmt.Fprintf(writer, "... %d more bytes\n", len(data)-offset)
			return
		}
		end := min(offset+options.BytesPerLine, len(data))
		formatLine(writer, data[offset:end], options.StartOffset+uint64(offset), options)
		lines++
	}
}

// split reports whether a row of n bytes prints the mid-row divider.
func split(n int, options Options) bool {
	return options.BytesPerLine >= 8 && n > options.BytesPerLine/2
}

// hexWidth is the visible width of the hex column for a row of n bytes.
func hexWidth(n int, options Options) int {
	if n == 0 {
		return 0
	}
	groups := (n + options.GroupSize - 1) / options.GroupSize
	w := n*2 + groups - 1
	if split(n, options) {
		// the divider replaces one space with " | "
		w += 2
	}
	return w
}

func formatLine(writer io.Writer, data []byte, address uint64, options Options) {
	fmt.Fprint(writer, coloransi.Foreground(options.OffsetColor, fmt.Sprintf("%0*x", options.OffsetWidth, address)), "  ")

	groups := formatHex(data, options)
	left := min(options.BytesPerLine/options.GroupSize/2, len(groups))
	if split(len(data), options) && left > 0 && left < len(groups) {
		fmt.Fprint(writer, strings.Join(groups[:left], " "), " | ", strings.Join(groups[left:], " "))
	} else {
		fmt.Fprint(writer, strings.Join(groups, " "))
	}
	if pad := hexWidth(options.BytesPerLine, options) - hexWidth(len(data), options); pad > 0 {
		fmt.Fprint(writer, strings.Repeat(" ", pad))
	}

	if options.ShowASCII {
		fmt.Fprint(writer, " | ")
		mid := options.BytesPerLine / 2
		if split(len(data), options) && mid < len(data) {
			formatASCII(writer, data[:mid], options)
			fmt.Fprint(writer, " ")
			formatASCII(writer, data[mid:], options)
		} else {
			formatASCII(writer, data, options)
		}
	}

	if options.Pointer != nil {
		var pointers []string
		for i := 0; i+4 <= len(data); i += 4 {
			if v := binary.LittleEndian.Uint32(data[i:]); options.Pointer(v) {
				pointers = append(pointers, coloransi.Foreground(options.PointerColor, fmt.Sprintf("0x%X", v)))
			}
		}
		if len(pointers) > 0 {
			fmt.Fprint(writer, " | ", strings.Join(pointers, " "))
		}
	}

	fmt.Fprintln(writer)
}

func formatHex(data []byte, options Options) []string {
	var groups []string
	var group strings.Builder
	for i, b := range data {
		color := options.HexColor
		if b == 0 {
			color = options.ZeroColor
		}
		group.WriteString(coloransi.Foreground(color, fmt.Sprintf("%02x", b)))

		if (i+1)%options.GroupSize == 0 || i == len(data)-1 {
			groups = append(groups, group.String())
			group.Reset()
		}
	}
	return groups
}

func formatASCII(writer io.Writer, data []byte, options Options) {
	for _, b := range data {
		switch c := rune(b); {
		case b == 0:
			fmt.Fprint(writer, coloransi.Foreground(options.ZeroColor, "."))
		case b >= 0x80 || !unicode.IsPrint(c):
			fmt.Fprint(writer, coloransi.Foreground(options.NonPrintableColor, "."))
		default:
			fmt.Fprint(writer, coloransi.Foreground(options.ASCIIColor, string(c)))
		}
	}
}
