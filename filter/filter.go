// Package filter implements the per-listener packet filter language,
// loosely modeled after the IGate server-side filter commands
// (http://www.aprs-is.net/javaprsfilter.aspx).  A filter spec is a list of
// space-separated tokens; a packet passes when any token matches.
//
// Supported tokens:
//
//	r/lat/lon/km        position within km of a fixed point
//	f/ident/km          position within km of a tracked point ("friend")
//	t/poimqstwu         data type classes, optionally t/.../ident/km
//	p/AA/BB             source callsign prefix list
//	b/CALL*/CA?L        source callsign budlist with * and ? wildcards
//
// Filters are parsed once, are immutable afterwards, and are safe for
// concurrent evaluation.
package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// Filter is a predicate over packets.
type Filter interface {
	Test(p *aprs.Packet) bool
}

// PointResolver looks up the current position of a tracked point, for the
// f/ range filter.  Resolution failure means the filter answers false.
type PointResolver interface {
	PointPosition(ident string) (aprs.Position, bool)
}

// packetPosition decodes the packet's own position, if it carries one.
func packetPosition(p *aprs.Packet) (aprs.Position, bool) {
	r, err := aprs.ParseReport(p.From, p.Report)
	if err != nil || !r.HasPos {
		return aprs.Position{}, false
	}
	return r.Pos, true
}

// Range passes packets positioned within Km of a fixed point.
type Range struct {
	Center aprs.Position
	Km     float64
}

func (f *Range) Test(p *aprs.Packet) bool {
	pos, ok := packetPosition(p)
	if !ok {
		return false
	}
	return f.Center.Distance(pos) <= f.Km*1000
}

// ItemRange passes packets positioned within Km of a named tracked point.
// Unresolvable reference points fail closed.
type ItemRange struct {
	Ident    string
	Km       float64
	Resolver PointResolver
}

func (f *ItemRange) Test(p *aprs.Packet) bool {
	if f.Resolver == nil {
		return false
	}
	center, ok := f.Resolver.PointPosition(f.Ident)
	if !ok {
		return false
	}
	pos, ok := packetPosition(p)
	if !ok {
		return false
	}
	return center.Distance(pos) <= f.Km*1000
}

// Type passes packets whose data type class is in the charset, optionally
// restricted further by a nested range filter.
type Type struct {
	Classes string
	Nested  Filter
}

func (f *Type) Test(p *aprs.Packet) bool {
	if !strings.ContainsRune(f.Classes, rune(aprs.Classify(p.Type()))) {
		return false
	}
	return f.Nested == nil || f.Nested.Test(p)
}

// Prefix passes packets whose source callsign starts with any listed
// literal prefix.
type Prefix struct {
	Prefixes []string
}

func (f *Prefix) Test(p *aprs.Packet) bool {
	for _, pre := range f.Prefixes {
		if strings.HasPrefix(p.From, pre) {
			return true
		}
	}
	return false
}

// Budlist passes packets whose source callsign matches any pattern, with
// '*' and '?' wildcards.
type Budlist struct {
	patterns []*regexp.Regexp
}

func (f *Budlist) Test(p *aprs.Packet) bool {
	for _, re := range f.patterns {
		if re.MatchString(p.From) {
			return true
		}
	}
	return false
}

// Combined is the OR of its sub-filters.  An empty Combined passes
// nothing.
type Combined struct {
	Filters []Filter
}

func (f *Combined) Test(p *aprs.Packet) bool {
	for _, sub := range f.Filters {
		if sub.Test(p) {
			return true
		}
	}
	return false
}

// Parse builds a Combined filter from a filter-spec string.  Tokens that
// do not parse are logged and dropped; they never fail the whole spec.
func Parse(spec string, res PointResolver, logger *log.Logger) *Combined {
	c := &Combined{}
	for _, token := range strings.Fields(spec) {
		f, err := parseToken(token, res)
		if err != nil {
			if logger != nil {
				logger.Warn("dropping unparseable filter token", "token", token, "err", err)
			}
			continue
		}
		c.Filters = append(c.Filters, f)
	}
	return c
}

func parseToken(token string, res PointResolver) (Filter, error) {
	parts := strings.Split(token, "/")
	switch parts[0] {
	case "r":
		if len(parts) != 4 {
			return nil, fmt.Errorf("want r/lat/lon/km")
		}
		lat, err1 := strconv.ParseFloat(parts[1], 64)
		lon, err2 := strconv.ParseFloat(parts[2], 64)
		km, err3 := strconv.ParseFloat(parts[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("bad number in %q", token)
		}
		return &Range{Center: aprs.Position{Lat: lat, Lon: lon}, Km: km}, nil

	case "f":
		if len(parts) != 3 {
			return nil, fmt.Errorf("want f/ident/km")
		}
		km, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("bad distance in %q", token)
		}
		return &ItemRange{Ident: parts[1], Km: km, Resolver: res}, nil

	case "t":
		if len(parts) < 2 || parts[1] == "" {
			return nil, fmt.Errorf("want t/classes")
		}
		for _, c := range parts[1] {
			if !strings.ContainsRune("poimqstwuX", c) {
				return nil, fmt.Errorf("unknown type class %q", c)
			}
		}
		t := &Type{Classes: parts[1]}
		switch len(parts) {
		case 2:
		case 4:
			km, err := strconv.ParseFloat(parts[3], 64)
			if err != nil {
				return nil, fmt.Errorf("bad distance in %q", token)
			}
			t.Nested = &ItemRange{Ident: parts[2], Km: km, Resolver: res}
		default:
			return nil, fmt.Errorf("want t/classes or t/classes/ident/km")
		}
		return t, nil

	case "p":
		if len(parts) < 2 {
			return nil, fmt.Errorf("want p/prefix[/prefix...]")
		}
		return &Prefix{Prefixes: parts[1:]}, nil

	case "b":
		if len(parts) < 2 {
			return nil, fmt.Errorf("want b/pattern[/pattern...]")
		}
		b := &Budlist{}
		for _, pat := range parts[1:] {
			re, err := compileWildcard(pat)
			if err != nil {
				return nil, err
			}
			b.patterns = append(b.patterns, re)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown filter type %q", parts[0])
}

// compileWildcard translates a budlist pattern to an anchored regexp,
// with '*' matching any run and '?' any single character.
func compileWildcard(pat string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for _, c := range pat {
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}
