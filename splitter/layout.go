package splitter

// Target structures. Field order and widths match the game's 32-bit layout
// byte for byte; there is no implicit padding.

// Overlays is the overlay list descriptor.
type Overlays struct {
	Ptr   uint32 // array of Count overlay pointers
	Count int32
}

// Overlay is one entry of the overlay list.
type Overlay struct {
	NamePtr uint32 // UTF-16 name
	NameLen uint32 // in code units, including the terminator
}
