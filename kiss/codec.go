package kiss

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// ErrTimeout is returned by Decoder.Next when the underlying read deadline
// expires before a closing FEND arrives.  It is loop control for the
// caller's cancellation check, not a fault; partial frame state is kept
// and decoding resumes on the next call.
var ErrTimeout = errors.New("kiss: read timeout")

// readResult is the outcome of reading one byte from the stream.
type readResult int

const (
	readByte readResult = iota
	readBoundary
	readTimeout
)

// Decoder turns a byte stream into packets.  It searches for a FEND,
// collects escaped frame content up to the next FEND, and hands complete
// data frames to DecodeFrame.  Malformed frames and non-data command
// frames are counted and skipped.
type Decoder struct {
	r    *bufio.Reader
	buf  []byte
	last byte

	// Dropped counts frames discarded as malformed or non-data.
	Dropped int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r), buf: make([]byte, 0, MaxFrameLen)}
}

func (d *Decoder) read() (readResult, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		if isTimeout(err) {
			return readTimeout, nil
		}
		return 0, err
	}
	d.last = b
	if b == FEND {
		return readBoundary, nil
	}
	return readByte, nil
}

// Next blocks until a complete, valid data frame has been decoded and
// returns it.  It returns ErrTimeout when the read deadline expires, and
// the underlying I/O error when the stream fails.
func (d *Decoder) Next() (*aprs.Packet, error) {
	for {
		res, err := d.read()
		if err != nil {
			return nil, err
		}
		switch res {
		case readTimeout:
			return nil, ErrTimeout
		case readByte:
			if len(d.buf) >= MaxFrameLen {
				// Runaway frame; resynchronize at the next FEND.
				d.buf = d.buf[:0]
				d.Dropped++
				continue
			}
			d.buf = append(d.buf, d.last)
		case readBoundary:
			if len(d.buf) == 0 {
				continue
			}
			content := Unwrap(d.buf)
			d.buf = d.buf[:0]
			if len(content) == 0 || content[0]&0x0F != CmdDataFrame {
				// TXDELAY and friends; nothing for us.
				d.Dropped++
				continue
			}
			p, err := DecodeFrame(content)
			if err != nil {
				d.Dropped++
				continue
			}
			return p, nil
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Encoder writes packets to a stream as KISS frames.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Write(p *aprs.Packet) error {
	frame, err := EncodeFrame(p)
	if err != nil {
		return err
	}
	_, err = e.w.Write(frame)
	return err
}
