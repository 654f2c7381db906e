package tcpclient

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxFrameSize bounds a single reply.
const DefaultMaxFrameSize = 64 << 20

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// WriteFrame writes a 4-byte big-endian length followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return ErrFrameTooLarge
	}

	header := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(header, uint32(len(payload)))

	if _, err := w.Write(append(header, payload...)); err != nil {
		return err
	}
	return nil
}

// ReadFrame reads one length-prefixed frame, refusing frames over max bytes.
func ReadFrame(r io.Reader, max uint32) ([]byte, error) {
	sizePrefix := make([]byte, 4)
	if _, err := io.ReadFull(r, sizePrefix); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(sizePrefix)
	if max > 0 && size > max {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
