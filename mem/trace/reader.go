package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedRecord is returned by the reader when a line is not a record.
// It marks the end of the usable part of a trace.
var ErrMalformedRecord = errors.New("malformed trace record")

// Reader extracts records from a line-oriented trace. Each line looks like
// `<op> <hex-address>,<size>`, optionally indented.
type Reader struct {
	scanner   *bufio.Scanner
	line      int
	bytesRead int64
	err       error
}

// NewReader creates a reader that reads records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		scanner: bufio.NewScanner(r),
	}
}

// Line returns the line number of the last line read, starting from 1.
func (r *Reader) Line() int {
	return r.line
}

// BytesRead returns the number of bytes consumed so far.
func (r *Reader) BytesRead() int64 {
	return r.bytesRead
}

// Next returns the next record. It returns io.EOF at the end of the input and
// an error wrapping ErrMalformedRecord at the first line that cannot be
// parsed. Once Next has failed, it keeps returning the same error.
func (r *Reader) Next() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}

	for r.scanner.Scan() {
		r.line++
		text := r.scanner.Text()
		r.bytesRead += int64(len(text)) + 1

		if strings.TrimSpace(text) == "" {
			continue
		}

		rec, err := ParseRecord(text)
		if err != nil {
			r.err = fmt.Errorf("line %d: %w", r.line, err)
			return Record{}, r.err
		}

		return rec, nil
	}

	err := r.scanner.Err()
	switch {
	case err == nil:
		r.err = io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		r.line++
		r.err = fmt.Errorf("line %d: %w: line too long", r.line, ErrMalformedRecord)
	default:
		r.err = err
	}

	return Record{}, r.err
}

// ParseRecord parses one trace line.
func ParseRecord(line string) (Record, error) {
	text := strings.TrimSpace(line)
	if text == "" {
		return Record{}, malformed(line)
	}

	op := Op(text[0])
	if op == ',' {
		return Record{}, malformed(line)
	}

	addrText, sizeText, found := strings.Cut(strings.TrimSpace(text[1:]), ",")
	if !found || addrText == "" {
		return Record{}, malformed(line)
	}

	addr, err := strconv.ParseUint(addrText, 16, 64)
	if err != nil {
		return Record{}, malformed(line)
	}

	size, err := strconv.Atoi(strings.TrimSpace(sizeText))
	if err != nil {
		return Record{}, malformed(line)
	}

	rec := Record{
		Op:      op,
		Address: addr,
		Size:    size,
	}

	return rec, nil
}

func malformed(line string) error {
	return fmt.Errorf("%w: %q", ErrMalformedRecord, line)
}
