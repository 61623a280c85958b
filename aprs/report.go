package aprs

import (
	"fmt"
	"strconv"
	"strings"
)

// Report is the decoded content of a position-bearing APRS report.  Speed,
// course and altitude are Unknown when the report did not carry them.
type Report struct {
	Class byte

	HasPos   bool
	Pos      Position
	Table    byte
	Symbol   byte
	Course   int // degrees, Unknown if absent
	Speed    int // knots, Unknown if absent
	Altitude int // meters, Unknown if absent
	Comment  string

	// Object and item reports.
	Name  string
	Owner string
	Alive bool
}

// Unknown marks an absent numeric field in a Report.
const Unknown = -1

// ParseReport decodes the position-bearing report types: plain and
// timestamped positions ('!', '=', '/', '@'), objects (';') and items
// (')').  Other data types come back with HasPos false and only the class
// filled in.
func ParseReport(from, report string) (*Report, error) {
	if len(report) == 0 {
		return nil, fmt.Errorf("empty report")
	}
	r := &Report{Class: Classify(report[0]), Course: Unknown, Speed: Unknown, Altitude: Unknown, Alive: true}

	switch report[0] {
	case '!', '=':
		return r, r.parsePosition(report[1:])
	case '/', '@':
		if len(report) < 8 {
			return nil, fmt.Errorf("timestamped report too short: %q", report)
		}
		// Skip the 7-character timestamp; receive time is authoritative.
		return r, r.parsePosition(report[8:])
	case ';':
		return r, r.parseObject(from, report)
	case ')':
		return r, r.parseItem(from, report)
	default:
		return r, nil
	}
}

func (r *Report) parsePosition(body string) error {
	pos, table, symbol, comment, err := parseUncompressed(body)
	if err != nil {
		return err
	}
	r.HasPos = true
	r.Pos = pos
	r.Table = table
	r.Symbol = symbol
	r.parseExtension(comment)
	return nil
}

// parseExtension picks the course/speed ("CSE/SPD") and altitude
// ("/A=nnnnnn" in feet) data extensions out of the comment.
func (r *Report) parseExtension(comment string) {
	if len(comment) >= 7 && comment[3] == '/' {
		cse, errC := strconv.Atoi(comment[0:3])
		spd, errS := strconv.Atoi(comment[4:7])
		if errC == nil && errS == nil && cse >= 0 && cse <= 360 {
			r.Course = cse
			r.Speed = spd
			comment = comment[7:]
		}
	}
	if i := strings.Index(comment, "/A="); i >= 0 && len(comment) >= i+9 {
		if ft, err := strconv.Atoi(comment[i+3 : i+9]); err == nil {
			r.Altitude = ft * 3048 / 10000
			comment = comment[:i] + comment[i+9:]
		}
	}
	r.Comment = strings.TrimSpace(comment)
}

// Object report: ";NAME     *DDHHMMz<position>" with '*' live, '_' killed.
func (r *Report) parseObject(from, report string) error {
	if len(report) < 18 {
		return fmt.Errorf("object report too short: %q", report)
	}
	r.Name = strings.TrimRight(report[1:10], " ")
	r.Owner = from
	switch report[10] {
	case '*':
		r.Alive = true
	case '_':
		r.Alive = false
	default:
		return fmt.Errorf("bad object marker %q in %q", report[10], report)
	}
	// 7-character timestamp, then a normal position.
	return r.parsePosition(report[18:])
}

// Item report: ")NAME!<position>" with '!' live, '_' killed.
func (r *Report) parseItem(from, report string) error {
	end := strings.IndexAny(report[1:], "!_")
	if end < 0 || end > 9 {
		return fmt.Errorf("no item marker in %q", report)
	}
	end++
	r.Name = report[1:end]
	r.Owner = from
	r.Alive = report[end] == '!'
	return r.parsePosition(report[end+1:])
}
