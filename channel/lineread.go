package channel

import (
	"bufio"
	"io"
	"strings"
)

// lineReader reads newline-terminated text lines from a stream with read
// deadlines.  ReadString hands back whatever it consumed together with a
// timeout error, so a line straddling a deadline window would be lost if
// the fragment were thrown away; the reader keeps it and resumes the same
// line on the next call.
type lineReader struct {
	r       *bufio.Reader
	pending []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

// ReadLine returns the next complete line, trimmed.  Errors are passed
// through for the caller's timeout handling; partial input read before a
// timeout stays buffered.
func (lr *lineReader) ReadLine() (string, error) {
	frag, err := lr.r.ReadString('\n')
	lr.pending = append(lr.pending, frag...)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(lr.pending))
	lr.pending = lr.pending[:0]
	return line, nil
}
