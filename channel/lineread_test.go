package channel

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readStep struct {
	data string
	err  error
}

// scriptedReader plays back a fixed sequence of reads, including mid-line
// deadline expiries.
type scriptedReader struct {
	steps []readStep
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.steps) == 0 {
		return 0, io.EOF
	}
	s := r.steps[0]
	r.steps = r.steps[1:]
	return copy(p, s.data), s.err
}

type scriptedConn struct {
	scriptedReader
}

func (c *scriptedConn) Write(p []byte) (int, error) { return len(p), nil }
func (c *scriptedConn) Close() error                { return nil }

func TestLineReaderKeepsFragmentAcrossTimeout(t *testing.T) {
	lr := newLineReader(&scriptedReader{steps: []readStep{
		{data: "LA7ECA-9>AP", err: os.ErrDeadlineExceeded},
		{data: "RS:>hi\nnext"},
		{err: os.ErrDeadlineExceeded},
		{data: " line\n"},
	}})

	_, err := lr.ReadLine()
	require.True(t, isTimeout(err))

	line, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "LA7ECA-9>APRS:>hi", line)

	// The tail after the newline survives another expiry too.
	_, err = lr.ReadLine()
	require.True(t, isTimeout(err))
	line, err = lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "next line", line)
}

func TestTnc2ServeSurvivesDeadlineMidLine(t *testing.T) {
	d := testDeps(nil)
	c := &Tnc2Channel{base: newBase("tnc", d)}
	rcv := &recordingReceiver{}
	c.AddReceiver(rcv)

	conn := &scriptedConn{scriptedReader{steps: []readStep{
		{data: "LA7ECA-9>AP", err: os.ErrDeadlineExceeded},
		{data: "RS:!6001.50N/01045.30E>\n"},
	}}}
	err := c.serve(context.Background(), conn)
	assert.ErrorIs(t, err, io.EOF)

	got, _ := rcv.received()
	require.Len(t, got, 1)
	assert.Equal(t, "LA7ECA-9", got[0].From)
}
