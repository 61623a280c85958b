// Package aprs holds the packet value type shared by every channel and
// the text codecs for the APRS-IS / TNC2 line format
// ("FROM>TO,VIA1,VIA2*:report").
package aprs

import (
	"fmt"
	"strings"
)

// Via is one entry in a packet's digipeater path.
type Via struct {
	Call       string
	Digipeated bool
}

// Source identifies the channel a packet arrived on.  It is kept as a
// narrow interface so the packet type does not depend on the channel
// implementation; routers compare it against their members for echo
// suppression.
type Source interface {
	Ident() string
}

// Packet is a single APRS report.  It is treated as immutable once it has
// been handed to the first receiver; q-construct edits happen exactly once,
// synchronously, before fan-out.
type Packet struct {
	From   string
	To     string
	Via    []Via
	Report string

	// Source is the originating channel, nil for locally generated packets.
	Source Source
}

// Type returns the APRS data type identifier, the leading character of the
// report, or 0 for an empty report.
func (p *Packet) Type() byte {
	if len(p.Report) == 0 {
		return 0
	}
	return p.Report[0]
}

// PathString renders the via path in TNC2 notation.  A '*' is placed after
// the last digipeated entry; earlier entries are implied used.
func (p *Packet) PathString() string {
	var b strings.Builder
	last := -1
	for i, v := range p.Via {
		if v.Digipeated {
			last = i
		}
	}
	for i, v := range p.Via {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(v.Call)
		if i == last {
			b.WriteByte('*')
		}
	}
	return b.String()
}

// String renders the packet as a TNC2 monitor / APRS-IS line, without the
// trailing CRLF.
func (p *Packet) String() string {
	path := p.PathString()
	if path != "" {
		path = "," + path
	}
	return p.From + ">" + p.To + path + ":" + p.Report
}

// HasVia reports whether the path contains the given callsign.
func (p *Packet) HasVia(call string) bool {
	for _, v := range p.Via {
		if v.Call == call {
			return true
		}
	}
	return false
}

// Clone returns a copy with its own via slice, for the one pre-fan-out
// rewrite the APRS-IS server performs.
func (p *Packet) Clone() *Packet {
	q := *p
	q.Via = append([]Via(nil), p.Via...)
	return &q
}

// ParseTNC2 parses one line of the APRS-IS text protocol.  A '*' in the
// path marks that entry, and every entry before it, as digipeated.
func ParseTNC2(line string) (*Packet, error) {
	line = strings.TrimRight(line, "\r\n")

	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return nil, fmt.Errorf("no ':' report separator in %q", line)
	}
	header := line[:colon]
	report := line[colon+1:]

	gt := strings.IndexByte(header, '>')
	if gt <= 0 {
		return nil, fmt.Errorf("no '>' in header %q", header)
	}
	from := header[:gt]
	if !validCall(from) {
		return nil, fmt.Errorf("bad source callsign %q", from)
	}

	fields := strings.Split(header[gt+1:], ",")
	to := fields[0]
	if to == "" {
		return nil, fmt.Errorf("empty destination in %q", header)
	}

	p := &Packet{From: from, To: to, Report: report}
	for _, f := range fields[1:] {
		if f == "" {
			continue
		}
		v := Via{Call: f}
		if strings.HasSuffix(f, "*") {
			v.Call = f[:len(f)-1]
			v.Digipeated = true
			// Entries ahead of the starred one were used earlier.
			for i := range p.Via {
				p.Via[i].Digipeated = true
			}
		}
		p.Via = append(p.Via, v)
	}
	return p, nil
}

// validCall does a loose plausibility check on a source callsign:
// 1 to 9 printable characters, no path or report separators.
func validCall(call string) bool {
	if len(call) == 0 || len(call) > 9 {
		return false
	}
	return !strings.ContainsAny(call, " >,:*")
}
