// Package shortvec implements the compact-u16 length prefix used for
// every array in a Solana transaction.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// maxEncodedSize is the number of bytes needed for math.MaxUint16.
const maxEncodedSize = 3

var (
	ErrLengthExceeded = errors.Errorf("length exceeds %d", math.MaxUint16)
	ErrInvalidSize    = errors.Errorf("encoding exceeds %d bytes", maxEncodedSize)
)

// EncodeLen writes length as a compact-u16 and returns the number of bytes
// written.
func EncodeLen(w io.Writer, length int) (n int, err error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, ErrLengthExceeded
	}

	b := make([]byte, 0, maxEncodedSize)
	for {
		elem := byte(length & 0x7f)
		length >>= 7
		if length == 0 {
			b = append(b, elem)
			break
		}
		b = append(b, elem|0x80)
	}

	return w.Write(b)
}

// DecodeLen reads a compact-u16 length. A stream that ends mid-value yields
// io.ErrUnexpectedEOF.
func DecodeLen(r io.Reader) (length int, err error) {
	b := make([]byte, 1)

	for i := 0; ; i++ {
		if i == maxEncodedSize {
			return 0, ErrInvalidSize
		}

		if _, err := io.ReadFull(r, b); err != nil {
			if i > 0 && err == io.EOF {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}

		length |= int(b[0]&0x7f) << (i * 7)
		if b[0]&0x80 == 0 {
			break
		}
	}

	if length > math.MaxUint16 {
		return 0, ErrLengthExceeded
	}
	return length, nil
}
