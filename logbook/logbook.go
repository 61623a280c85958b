// Package logbook appends every received packet to a CSV log, one file
// per day.  File names come from a strftime pattern so operators can
// choose their own layout.
package logbook

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// DefaultPattern names log files by UTC date.
const DefaultPattern = "%Y-%m-%d.log"

var header = []string{"channel", "utime", "isotime", "source", "path", "dti", "latitude", "longitude", "report"}

// Logbook writes packets as CSV rows.  The file stays open between
// writes and rotates when the rendered name changes.
type Logbook struct {
	dir     string
	pattern string
	log     *log.Logger

	mu    sync.Mutex
	fname string
	f     *os.File
	w     *csv.Writer
}

// New creates a logbook writing under dir.  pattern is a strftime file
// name pattern; empty means DefaultPattern.
func New(dir, pattern string, logger *log.Logger) *Logbook {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &Logbook{
		dir:     dir,
		pattern: pattern,
		log:     logger.WithPrefix("logbook"),
	}
}

// ReceivePacket appends one row.  Duplicates are logged too, since the
// book is a record of traffic, not of state.
func (b *Logbook) ReceivePacket(p *aprs.Packet, dup bool) {
	if p == nil {
		return
	}
	now := time.Now().UTC()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.rotateLocked(now); err != nil {
		b.log.Error("cannot open log file", "err", err)
		return
	}

	source := ""
	if p.Source != nil {
		source = p.Source.Ident()
	}
	lat, lon := "", ""
	if rep, err := aprs.ParseReport(p.From, p.Report); err == nil && rep.HasPos {
		lat = strconv.FormatFloat(rep.Pos.Lat, 'f', 6, 64)
		lon = strconv.FormatFloat(rep.Pos.Lon, 'f', 6, 64)
	}
	row := []string{
		source,
		strconv.FormatInt(now.Unix(), 10),
		now.Format("2006-01-02T15:04:05Z"),
		p.From,
		p.PathString(),
		string(p.Type()),
		lat,
		lon,
		p.Report,
	}
	if err := b.w.Write(row); err != nil {
		b.log.Error("log write failed", "err", err)
		return
	}
	b.w.Flush()
}

// rotateLocked opens the file for the current time, closing the previous
// one when the rendered name changed.  New files get a header row.
func (b *Logbook) rotateLocked(now time.Time) error {
	fname, err := strftime.Format(b.pattern, now)
	if err != nil {
		return fmt.Errorf("bad file name pattern %q: %w", b.pattern, err)
	}
	if b.f != nil && fname == b.fname {
		return nil
	}
	if b.f != nil {
		b.w.Flush()
		b.f.Close()
		b.f = nil
	}

	full := filepath.Join(b.dir, fname)
	_, statErr := os.Stat(full)
	fresh := statErr != nil

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	b.f = f
	b.fname = fname
	b.w = csv.NewWriter(f)
	b.log.Info("opened log file", "file", full)

	if fresh {
		if err := b.w.Write(header); err != nil {
			return err
		}
		b.w.Flush()
	}
	return nil
}

// Close flushes and closes the current file.
func (b *Logbook) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f != nil {
		b.w.Flush()
		b.f.Close()
		b.f = nil
		b.fname = ""
	}
}
