package kiss

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// AX.25 UI frame constants.  APRS uses UI frames with no layer 3.
const (
	controlUI   = 0x03
	pidNoLayer3 = 0xF0
)

// Flags byte of an address field: SSID in bits 1-4, the has-been-repeated
// flag in bit 7, the last-address flag in bit 0.  Bits 5-6 are reserved
// and conventionally set.
const (
	flagLast       = 0x01
	flagRepeated   = 0x80
	flagsReserved  = 0x60
	addrFieldLen   = 7
	maxCallsignLen = 6
)

// encodeAddr packs one callsign into the 7-byte AX.25 address field:
// six bytes of space-padded callsign shifted left one bit, then the
// SSID/flags byte.
func encodeAddr(call string, repeated, last bool) ([addrFieldLen]byte, error) {
	var field [addrFieldLen]byte

	base := call
	ssid := 0
	if i := strings.IndexByte(call, '-'); i >= 0 {
		base = call[:i]
		var err error
		ssid, err = strconv.Atoi(call[i+1:])
		if err != nil || ssid < 0 || ssid > 15 {
			return field, fmt.Errorf("bad SSID in %q", call)
		}
	}
	if len(base) == 0 || len(base) > maxCallsignLen {
		return field, fmt.Errorf("callsign %q not 1-6 characters", call)
	}

	for i := 0; i < maxCallsignLen; i++ {
		c := byte(' ')
		if i < len(base) {
			c = base[i]
		}
		field[i] = c << 1
	}
	flags := byte(flagsReserved) | byte(ssid)<<1
	if repeated {
		flags |= flagRepeated
	}
	if last {
		flags |= flagLast
	}
	field[maxCallsignLen] = flags
	return field, nil
}

// decodeAddr unpacks a 7-byte address field.  It returns the callsign with
// any non-zero SSID appended, plus the repeated and last-address flags.
func decodeAddr(field []byte) (call string, repeated, last bool, err error) {
	if len(field) < addrFieldLen {
		return "", false, false, fmt.Errorf("address field truncated (%d bytes)", len(field))
	}
	var b strings.Builder
	for i := 0; i < maxCallsignLen; i++ {
		c := field[i] >> 1
		if c == ' ' || c == 0 {
			continue
		}
		if c < ' ' || c > '~' {
			return "", false, false, fmt.Errorf("bad callsign byte 0x%02x", field[i])
		}
		b.WriteByte(c)
	}
	call = b.String()
	if call == "" {
		return "", false, false, fmt.Errorf("empty callsign")
	}
	flags := field[maxCallsignLen]
	if ssid := (flags >> 1) & 0x0F; ssid > 0 {
		call += "-" + strconv.Itoa(int(ssid))
	}
	return call, flags&flagRepeated != 0, flags&flagLast != 0, nil
}

// EncodeFrame renders a packet as a complete KISS data frame, ready for
// the wire: FEND, the data-frame marker, destination and source address
// fields, the digipeater path, control/PID, the report bytes, FEND.
func EncodeFrame(p *aprs.Packet) ([]byte, error) {
	content := make([]byte, 0, 32+len(p.Report))
	content = append(content, CmdDataFrame)

	dest, err := encodeAddr(p.To, false, false)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	src, err := encodeAddr(p.From, false, len(p.Via) == 0)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	content = append(content, dest[:]...)
	content = append(content, src[:]...)

	for i, v := range p.Via {
		digi, err := encodeAddr(v.Call, v.Digipeated, i == len(p.Via)-1)
		if err != nil {
			return nil, fmt.Errorf("via %q: %w", v.Call, err)
		}
		content = append(content, digi[:]...)
	}

	content = append(content, controlUI, pidNoLayer3)
	content = append(content, p.Report...)
	return Encapsulate(content), nil
}

// DecodeFrame parses unwrapped KISS data-frame content (the bytes between
// the FENDs, escapes removed) into a packet.  The first byte must be the
// data-frame marker; frames without the UI control and APRS PID bytes
// yield an error and no packet.
func DecodeFrame(content []byte) (*aprs.Packet, error) {
	if len(content) < 1+2*addrFieldLen+2 {
		return nil, fmt.Errorf("frame too short (%d bytes)", len(content))
	}
	if content[0]&0x0F != CmdDataFrame {
		return nil, fmt.Errorf("not a data frame (type 0x%02x)", content[0])
	}
	rest := content[1:]

	to, _, _, err := decodeAddr(rest)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	from, _, last, err := decodeAddr(rest[addrFieldLen:])
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	rest = rest[2*addrFieldLen:]

	p := &aprs.Packet{From: from, To: to}
	for !last {
		call, repeated, l, err := decodeAddr(rest)
		if err != nil {
			return nil, fmt.Errorf("via: %w", err)
		}
		p.Via = append(p.Via, aprs.Via{Call: call, Digipeated: repeated})
		rest = rest[addrFieldLen:]
		last = l
	}

	if len(rest) < 2 || rest[0] != controlUI || rest[1] != pidNoLayer3 {
		return nil, fmt.Errorf("not a UI/APRS frame")
	}
	p.Report = string(rest[2:])
	return p, nil
}
