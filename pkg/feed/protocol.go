// Package feed carries entry notifications between processes over a unix
// socket, so a viewer process can subscribe to a sink running elsewhere.
// Frames are length-prefixed CBOR.
package feed

import (
	"encoding/binary"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/errdeck/errdeck/internal/errx"
	"github.com/errdeck/errdeck/pkg/entry"
)

// Op identifies a frame's operation.
type Op uint8

const (
	OpAdd Op = iota + 1
	OpRemove
	OpRaise
)

// Frame is one notification on the wire.
type Frame struct {
	Op      Op            `cbor:"op"`
	Entries []entry.Entry `cbor:"entries,omitempty"`
}

// maxFrameSize bounds a single frame's payload. Batches are small; a
// larger frame indicates a corrupt or hostile peer.
const maxFrameSize = 4 << 20

func writeFrame(w io.Writer, f *Frame) error {
	payload, err := cbor.Marshal(f)
	if err != nil {
		return errx.Wrap(ErrEncodeFrame, err)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errx.Wrap(ErrWriteFrame, err)
	}
	if _, err := w.Write(payload); err != nil {
		return errx.Wrap(ErrWriteFrame, err)
	}
	return nil
}

func readFrame(r io.Reader) (*Frame, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errx.Wrap(ErrReadFrame, err)
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if size > maxFrameSize {
		return nil, errx.With(ErrFrameTooLarge, ": %d bytes", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errx.Wrap(ErrReadFrame, err)
	}
	var f Frame
	if err := cbor.Unmarshal(payload, &f); err != nil {
		return nil, errx.Wrap(ErrDecodeFrame, err)
	}
	return &f, nil
}
