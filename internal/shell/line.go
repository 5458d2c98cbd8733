package shell

// lineAccumulator shadows what the user is typing so a completed line can
// be classified before the terminator reaches the child shell. It tracks
// printable bytes and backspaces only; cursor movement and other escape
// sequences pass through untracked, which mirrors what a line-oriented
// prompt sees in practice.
type lineAccumulator struct {
	buf []byte
}

const (
	byteInterrupt = 0x03 // ^C, discards the child's pending line
	byteBackspace = 0x08
	byteKillLine  = 0x15 // ^U, clears the child's pending input
	byteDelete    = 0x7f
)

// feed consumes one input byte. When the byte completes a line (CR or LF)
// it returns the accumulated text and true, and resets the accumulator.
func (a *lineAccumulator) feed(b byte) (string, bool) {
	switch {
	case b == '\r' || b == '\n':
		line := string(a.buf)
		a.buf = a.buf[:0]
		return line, true
	case b == byteInterrupt:
		a.reset()
	case b == byteDelete || b == byteBackspace:
		if len(a.buf) > 0 {
			a.buf = a.buf[:len(a.buf)-1]
		}
	case b >= 0x20:
		a.buf = append(a.buf, b)
	}
	return "", false
}

// reset drops any partial line, e.g. after an interrupt.
func (a *lineAccumulator) reset() {
	a.buf = a.buf[:0]
}
