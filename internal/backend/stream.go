package backend

// stream.go cleans CSV input on the fly, in constant memory:
//
//   - skipBOM drops a leading UTF-8 byte order mark (0xEF 0xBB 0xBF)
//   - sanitizer replaces invalid UTF-8 bytes with '?'
//   - countingReader tracks bytes consumed
//
// wrapStream applies them in that order.

import (
	"bufio"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader over r without its leading byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(bom))
	if len(head) == len(bom) && head[0] == bom[0] && head[1] == bom[1] && head[2] == bom[2] {
		_, _ = br.Discard(len(bom))
	}
	return br
}

// sanitizer replaces bytes that are not part of a valid UTF-8 sequence with
// '?'. A multi-byte sequence split across reads is carried to the next Read.
// The replacement is one byte wide so output never grows.
type sanitizer struct {
	r     io.Reader
	carry []byte
}

func newSanitizer(r io.Reader) *sanitizer {
	return &sanitizer{r: r, carry: make([]byte, 0, utf8.UTFMax)}
}

func (s *sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := copy(p, s.carry)
	s.carry = s.carry[:0]

	m, err := s.r.Read(p[n:])
	n += m
	if n == 0 {
		return 0, err
	}

	return s.clean(p[:n], err != nil), err
}

// clean rewrites buf in place and returns the number of bytes to hand out.
// Unless final, an incomplete sequence at the tail is moved to carry.
func (s *sanitizer) clean(buf []byte, final bool) int {
	w := 0
	for i := 0; i < len(buf); {
		if c := buf[i]; c < utf8.RuneSelf {
			buf[w] = c
			w++
			i++
			continue
		}

		if !final && !utf8.FullRune(buf[i:]) {
			s.carry = append(s.carry, buf[i:]...)
			return w
		}

		r, size := utf8.DecodeRune(buf[i:])
		if r == utf8.RuneError && size == 1 {
			buf[w] = '?'
			w++
			i++
			continue
		}
		w += copy(buf[w:], buf[i:i+size])
		i += size
	}
	return w
}

// countingReader counts the bytes read through it. Count is safe to call
// from another goroutine.
type countingReader struct {
	r     io.Reader
	count atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.count.Add(int64(n))
	return n, err
}

func (c *countingReader) Count() int64 {
	return c.count.Load()
}

// wrapStream applies BOM skipping, then sanitizing, then counting.
func wrapStream(r io.Reader) *countingReader {
	return &countingReader{r: newSanitizer(skipBOM(r))}
}
