// Package kiss implements the KISS framing protocol and the AX.25 UI
// frame layout carried inside it.  The KISS protocol is described in
// http://www.ka9q.net/papers/kiss.html: frames are delimited by FEND and
// use SLIP-style escaping so FEND can never occur inside a frame.
package kiss

// Special characters used by the SLIP framing.
const (
	FEND  = 0xC0
	FESC  = 0xDB
	TFEND = 0xDC
	TFESC = 0xDD
)

// First byte of a frame: radio channel in the upper nybble, command in the
// lower.  Only data frames carry AX.25; the rest are TNC tuning commands.
const (
	CmdDataFrame   = 0x00
	CmdTxDelay     = 0x01
	CmdPersistence = 0x02
	CmdSlotTime    = 0x03
	CmdTxTail      = 0x04
	CmdFullDuplex  = 0x05
	CmdSetHardware = 0x06
	CmdReturn      = 0x0F
)

// MaxFrameLen bounds accumulated frame size.  The KISS spec calls for at
// least 1024; doubled to accommodate the longest AX.25 frames.
const MaxFrameLen = 2048

// Encapsulate wraps raw frame content in KISS framing: FEND, the content
// with FEND/FESC escaped, FEND.  The content is binary and may contain
// NUL bytes.
func Encapsulate(in []byte) []byte {
	out := make([]byte, 0, len(in)+2)
	out = append(out, FEND)
	for _, b := range in {
		switch b {
		case FEND:
			out = append(out, FESC, TFEND)
		case FESC:
			out = append(out, FESC, TFESC)
		default:
			out = append(out, b)
		}
	}
	return append(out, FEND)
}

// Unwrap removes KISS framing and escaping from a received frame.  The
// leading FEND is optional; a trailing FEND is ignored.
func Unwrap(in []byte) []byte {
	out := make([]byte, 0, len(in))
	escaped := false
	for _, b := range in {
		switch {
		case escaped:
			switch b {
			case TFEND:
				out = append(out, FEND)
			case TFESC:
				out = append(out, FESC)
			}
			escaped = false
		case b == FESC:
			escaped = true
		case b == FEND:
			// Delimiter, not content.
		default:
			out = append(out, b)
		}
	}
	return out
}
