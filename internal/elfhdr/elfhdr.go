// Package elfhdr parses just enough of an ELF identification and header to
// classify an object file as a shared object or executable, for the
// StripBinaries hook. It never returns an error for malformed or short
// input — only a bool reporting whether a usable header was found — since
// "not ELF" is an expected outcome when walking an arbitrary install tree,
// not a failure.
package elfhdr

import (
	"encoding/binary"
	"io"
)

// maxHeaderSize is the largest header this package ever needs: a 64-bit ELF
// header is 40+3*8 = 64 bytes.
const maxHeaderSize = 64

const magic = "\x7fELF"

// Class is the ELF identification's address width.
type Class int

const (
	Class32 Class = 1
	Class64 Class = 2
)

// Header holds the fields StripBinaries needs to classify an object file.
type Header struct {
	Class                Class
	ObjectType           uint16
	Machine              uint16
	Entry                uint64
	ProgramHeaderOffset  uint64
	SectionHeaderOffset  uint64
}

const (
	etExec = 2
	etDyn  = 3
)

// IsExecutable reports whether the header describes ET_EXEC.
func (h *Header) IsExecutable() bool { return h.ObjectType == etExec }

// IsSharedObject reports whether the header describes ET_DYN.
func (h *Header) IsSharedObject() bool { return h.ObjectType == etDyn }

// Parse reads up to maxHeaderSize bytes from r and attempts to decode an ELF
// header. It returns (nil, false) for anything that isn't a complete,
// recognizable header: too few bytes, bad magic, an unknown class or data
// encoding, or a body shorter than the class demands. A caller that needs to
// re-read r from the start (CollectElf does, to run the archive-magic check
// first) must seek it back to offset 0 itself; Parse never does so.
func Parse(r io.Reader) (*Header, bool) {
	buf := make([]byte, maxHeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, false
	}
	data := buf[:n]

	if len(data) < 24 || string(data[0:4]) != magic {
		return nil, false
	}

	var class Class
	var width int
	switch data[4] {
	case 1:
		class, width = Class32, 4
	case 2:
		class, width = Class64, 8
	default:
		return nil, false
	}

	var order binary.ByteOrder
	switch data[5] {
	case 1:
		order = binary.LittleEndian
	case 2:
		order = binary.BigEndian
	default:
		return nil, false
	}

	required := 40 + 3*width
	if len(data) < required {
		return nil, false
	}

	h := &Header{
		Class:      class,
		ObjectType: order.Uint16(data[16:18]),
		Machine:    order.Uint16(data[18:20]),
	}

	off := 24
	readWord := func() uint64 {
		var v uint64
		if width == 4 {
			v = uint64(order.Uint32(data[off : off+4]))
		} else {
			v = order.Uint64(data[off : off+8])
		}
		off += width
		return v
	}
	h.Entry = readWord()
	h.ProgramHeaderOffset = readWord()
	h.SectionHeaderOffset = readWord()

	return h, true
}
