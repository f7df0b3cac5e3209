// Package buffer implements the PDU buffer described in spec.md
// §4.A: a contiguous byte region with reserved headroom in front of
// the payload so PCI headers can be pushed and popped in place
// without reallocating, and cloned for retransmission.
package buffer

// MaxPCILen bounds the wire size of the largest PCI header this
// engine ever stamps (the 88-byte control PCI, see internal/pci),
// rounded up to 96. Headroom is sized
// to fit two of them stacked, so a shim transport can prepend its
// own framing in front of a DT/control PCI without reallocating.
const MaxPCILen = 96

// headroomCap is the number of bytes of headroom reserved for every
// buffer, regardless of how much of it ends up used.
const headroomCap = 2 * MaxPCILen

// Buffer is a move-only byte buffer. Ownership transfers on every
// queue insertion and on every call into a lower capability; once a
// Buffer has been hand off (enqueued, forwarded, delivered upward)
// the sender must not touch it again.
type Buffer struct {
	buf   []byte
	start int
	len   int
}

// New allocates a Buffer around payload, with headroomCap bytes of
// free space reserved before it.
func New(payload []byte) *Buffer {
	b := &Buffer{
		buf:   make([]byte, headroomCap+len(payload)),
		start: headroomCap,
		len:   len(payload),
	}
	copy(b.buf[b.start:], payload)
	return b
}

// NewEmpty allocates a zero-length Buffer with full headroom, used
// for control PDUs that are built entirely out of pushed headers.
func NewEmpty() *Buffer {
	return &Buffer{buf: make([]byte, headroomCap), start: headroomCap, len: 0}
}

// Headroom reports how many bytes are free before the data start.
func (b *Buffer) Headroom() int {
	return b.start
}

// Data returns the current payload (including any headers pushed
// and not yet popped).
func (b *Buffer) Data() []byte {
	return b.buf[b.start : b.start+b.len]
}

// Len returns the current data length.
func (b *Buffer) Len() int {
	return b.len
}

// PushPCI reserves n bytes of headroom immediately in front of the
// current data and returns that region for the caller to fill in
// with a header. It is the buffer-level primitive behind every
// PCI/control-PCI encode.
func (b *Buffer) PushPCI(n int) []byte {
	b.start -= n
	b.len += n
	return b.buf[b.start : b.start+n]
}

// PopPCI removes the first n bytes of the current data (a header)
// and returns them for the caller to decode, advancing the data
// start past them.
func (b *Buffer) PopPCI(n int) []byte {
	hdr := b.buf[b.start : b.start+n]
	b.start += n
	b.len -= n
	return hdr
}

// Clone returns an independent copy of the buffer suitable for the
// retransmission queue: mutating the clone (or freeing the
// original) never affects the other. shallow clones share the
// backing array read-only (used only where the spec's sender-side
// invariant that rtxq holds immutable snapshots is already
// guaranteed by the caller never mutating in place).
func (b *Buffer) Clone(shallow bool) *Buffer {
	if shallow {
		return &Buffer{buf: b.buf, start: b.start, len: b.len}
	}
	nb := &Buffer{
		buf:   make([]byte, len(b.buf)),
		start: b.start,
		len:   b.len,
	}
	copy(nb.buf, b.buf)
	return nb
}

// Free releases the buffer's backing storage. After Free the buffer
// must not be used again.
func (b *Buffer) Free() {
	b.buf = nil
	b.start = 0
	b.len = 0
}
