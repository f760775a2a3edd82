package bitbang

// Buffer is a fixed-capacity append-only byte store. The transmit side only
// appends and drains; the receive side also consumes bytes in FIFO order.
type Buffer struct {
	data []byte
	head int
	n    int
}

// NewBuffer allocates a buffer holding up to capacity bytes.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Len is the number of bytes appended and not yet consumed.
func (b *Buffer) Len() int { return b.n - b.head }

func (b *Buffer) Cap() int { return len(b.data) }

func (b *Buffer) Empty() bool { return b.n == b.head }

// Full reports whether an Append would be rejected without compaction.
func (b *Buffer) Full() bool { return b.n == len(b.data) }

// Append stores c and reports whether it fit.
func (b *Buffer) Append(c byte) bool {
	if b.Full() {
		return false
	}
	b.data[b.n] = c
	b.n++
	return true
}

// Bytes returns the unconsumed bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.data[b.head:b.n] }

// Next consumes the oldest byte.
func (b *Buffer) Next() (byte, bool) {
	if b.Empty() {
		return 0, false
	}
	c := b.data[b.head]
	b.head++
	if b.head == b.n {
		b.head, b.n = 0, 0
	}
	return c, true
}

// Compact moves unconsumed bytes to the front, freeing consumed space.
func (b *Buffer) Compact() {
	if b.head == 0 {
		return
	}
	b.n = copy(b.data, b.data[b.head:b.n])
	b.head = 0
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.head, b.n = 0, 0
}
