package process

// RawHandle is the host's opaque identifier for one attachment.
type RawHandle int64

// InvalidHandle is what Memory.Attach returns when no single process matches.
const InvalidHandle RawHandle = 0x1_FFFF_FFFF

// Memory is the part of the host capability boundary that deals with external
// processes. Implementations never keep partial reads: ReadBytes either fills
// buf completely or returns an error.
type Memory interface {
	// Attach locates exactly one running process called name. It returns
	// InvalidHandle when there is none or the name is ambiguous.
	Attach(name string) RawHandle

	// Detach releases a handle returned by Attach. It must be called exactly
	// once per successful Attach.
	Detach(h RawHandle)

	// ReadBytes fills buf with len(buf) bytes starting at addr.
	ReadBytes(h RawHandle, addr Address, buf []byte) error
}

// Reader is anything that can fill a buffer from target memory. Handle is the
// production implementation.
type Reader interface {
	ReadBytes(addr Address, buf []byte) error
}
