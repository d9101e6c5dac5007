package waymo

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// ErrCorruptRecord is returned when a record is truncated or fails its CRC.
var ErrCorruptRecord = errors.New("corrupt tfrecord")

// MaxRecordSize bounds a single record; a larger length prefix is treated as
// corruption rather than allocated.
const MaxRecordSize = 1 << 30

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, castagnoli)
	return ((c >> 15) | (c << 17)) + 0xa282ead8
}

// Reader reads length-delimited, checksummed records:
//
//	uint64 length | uint32 masked crc32c(length) | data | uint32 masked crc32c(data)
type Reader struct {
	r       *bufio.Reader
	records int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 1<<20)}
}

// Next returns the next record. It returns io.EOF at a clean end of input,
// io.ErrUnexpectedEOF on truncation and ErrCorruptRecord on a checksum
// mismatch.
func (r *Reader) Next() ([]byte, error) {
	var header [12]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("record %d header: %w", r.records, io.ErrUnexpectedEOF)
	}
	if got, want := binary.LittleEndian.Uint32(header[8:]), maskedCRC(header[:8]); got != want {
		return nil, fmt.Errorf("%w: record %d length checksum %08x, want %08x", ErrCorruptRecord, r.records, got, want)
	}
	n := binary.LittleEndian.Uint64(header[:8])
	if n > MaxRecordSize {
		return nil, fmt.Errorf("%w: record %d length %d", ErrCorruptRecord, r.records, n)
	}

	buf := make([]byte, n+4)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("record %d body: %w", r.records, io.ErrUnexpectedEOF)
	}
	data := buf[:n]
	if got, want := binary.LittleEndian.Uint32(buf[n:]), maskedCRC(data); got != want {
		return nil, fmt.Errorf("%w: record %d data checksum %08x, want %08x", ErrCorruptRecord, r.records, got, want)
	}
	r.records++
	return data, nil
}

// Records returns the number of records read so far.
func (r *Reader) Records() int { return r.records }

// AppendRecord frames data as one record and appends it to dst.
func AppendRecord(dst, data []byte) []byte {
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))
	dst = append(dst, header[:]...)
	dst = append(dst, data...)
	return binary.LittleEndian.AppendUint32(dst, maskedCRC(data))
}
