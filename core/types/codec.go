package types

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
)

// Canonical binary encoding shared by every signing and wire path. Fields are
// written in declared order: strings and byte blobs are u32 big-endian length
// prefixed, integers are big-endian fixed width, amounts are 16-byte
// big-endian 128-bit values. JSON is never used for signing.

type binWriter struct {
	buf bytes.Buffer
}

func (w *binWriter) writeString(s string) {
	w.writeBytes([]byte(s))
}

func (w *binWriter) writeBytes(b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	w.buf.Write(l[:])
	w.buf.Write(b)
}

func (w *binWriter) writeUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *binWriter) writeByte(b byte) {
	w.buf.WriteByte(b)
}

func (w *binWriter) writeAmount(v *uint256.Int) {
	var full [32]byte
	if v != nil {
		full = v.Bytes32()
	}
	w.buf.Write(full[16:])
}

func (w *binWriter) bytes() []byte {
	return w.buf.Bytes()
}

type binReader struct {
	buf *bytes.Reader
	err error
}

func newBinReader(b []byte) *binReader {
	return &binReader{buf: bytes.NewReader(b)}
}

func (r *binReader) readBytes() []byte {
	if r.err != nil {
		return nil
	}
	var l [4]byte
	if _, err := r.buf.Read(l[:]); err != nil {
		r.err = err
		return nil
	}
	n := binary.BigEndian.Uint32(l[:])
	if uint64(n) > uint64(r.buf.Len()) {
		r.err = fmt.Errorf("truncated field: want %d bytes, have %d", n, r.buf.Len())
		return nil
	}
	out := make([]byte, n)
	if _, err := r.buf.Read(out); err != nil {
		r.err = err
		return nil
	}
	return out
}

func (r *binReader) readString() string {
	return string(r.readBytes())
}

func (r *binReader) readUint64() uint64 {
	if r.err != nil {
		return 0
	}
	var b [8]byte
	if _, err := r.buf.Read(b[:]); err != nil {
		r.err = err
		return 0
	}
	return binary.BigEndian.Uint64(b[:])
}

func (r *binReader) readByte() byte {
	if r.err != nil {
		return 0
	}
	b, err := r.buf.ReadByte()
	if err != nil {
		r.err = err
		return 0
	}
	return b
}

func (r *binReader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.buf.Len() != 0 {
		return fmt.Errorf("%d trailing bytes after record", r.buf.Len())
	}
	return nil
}
