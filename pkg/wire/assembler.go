package wire

import (
	"github.com/golang/glog"
)

// AssembleState is the state of console reassembly.
type AssembleState int

const (
	// AssembleIdle is waiting for a start code.
	AssembleIdle AssembleState = iota
	// AssembleAccumulating is collecting bytes of a frame.
	AssembleAccumulating
	// AssembleComplete is reported with a completed frame.
	AssembleComplete
)

// ParseResult is the result after one byte is fed to Assembler.
type ParseResult struct {
	State AssembleState
	// Frame is set when State is AssembleComplete.
	Frame []byte
	// Resync indicates buffered bytes were dropped.
	Resync bool
}

// Assembler reassembles frames from a console byte stream.
type Assembler struct {
	buf    [MaxFrameLen]byte
	offset int
}

// State gets the current state.
func (a *Assembler) State() AssembleState {
	if a.offset == 0 {
		return AssembleIdle
	}
	return AssembleAccumulating
}

// Reset drops buffered bytes.
func (a *Assembler) Reset() {
	a.offset = 0
}

// Parse consumes one byte.
func (a *Assembler) Parse(b byte) (pr ParseResult) {
	if a.offset >= len(a.buf) {
		glog.Errorf("console buffer overflow, dropping %d bytes", a.offset)
		a.offset, pr.Resync = 0, true
	}
	if a.offset == 0 && b != StartCode {
		glog.V(4).Infof("console skip byte %02x", b)
		return
	}
	a.buf[a.offset] = b
	a.offset++
	if a.offset >= HeaderSize {
		length := int(a.buf[3])
		if length < HeaderSize || length > MaxFrameLen {
			glog.Errorf("console frame invalid length %d", length)
			a.offset = 0
			return ParseResult{State: AssembleIdle, Resync: true}
		}
		if a.offset == length {
			pr.Frame = make([]byte, length)
			copy(pr.Frame, a.buf[:length])
			a.offset = 0
			pr.State = AssembleComplete
			return
		}
	}
	pr.State = AssembleAccumulating
	return
}
