package logbook

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PolaricServer/aprsd-go/aprs"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestReceivePacketWritesRow(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, "", log.Default())
	defer b.Close()

	p, err := aprs.ParseTNC2("LA7ECA-9>APRS,WIDE1-1*:!6001.50N/01045.30E>hi")
	require.NoError(t, err)
	b.ReceivePacket(p, false)

	fname := time.Now().UTC().Format("2006-01-02") + ".log"
	rows := readRows(t, filepath.Join(dir, fname))
	require.Len(t, rows, 2, "header plus one row")
	assert.Equal(t, "channel", rows[0][0])

	row := rows[1]
	assert.Equal(t, "LA7ECA-9", row[3])
	assert.Equal(t, "WIDE1-1*", row[4])
	assert.Equal(t, "!", row[5])
	assert.Equal(t, "60.025000", row[6])
	assert.Equal(t, "10.755000", row[7])
	assert.Equal(t, "!6001.50N/01045.30E>hi", row[8])
}

func TestHeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, "", log.Default())

	p, err := aprs.ParseTNC2("LA7ECA-9>APRS:>one")
	require.NoError(t, err)
	b.ReceivePacket(p, false)
	b.Close()

	// Reopening the same day's file must append, not re-write the header.
	b2 := New(dir, "", log.Default())
	defer b2.Close()
	p2, err := aprs.ParseTNC2("LA5C>APRS:>two")
	require.NoError(t, err)
	b2.ReceivePacket(p2, false)

	fname := time.Now().UTC().Format("2006-01-02") + ".log"
	rows := readRows(t, filepath.Join(dir, fname))
	require.Len(t, rows, 3)
	assert.Equal(t, "LA7ECA-9", rows[1][3])
	assert.Equal(t, "LA5C", rows[2][3])
}

func TestRotatesWhenNameChanges(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, "", log.Default())
	defer b.Close()

	require.NoError(t, b.rotateLocked(time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)))
	first := b.fname
	require.NoError(t, b.rotateLocked(time.Date(2026, 8, 31, 0, 1, 0, 0, time.UTC)))

	assert.NotEqual(t, first, b.fname)
	assert.Equal(t, "2026-08-31.log", b.fname)
	assert.FileExists(t, filepath.Join(dir, "2026-08-30.log"))
	assert.FileExists(t, filepath.Join(dir, "2026-08-31.log"))
}

func TestSameDayNoRotation(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, "", log.Default())
	defer b.Close()

	at := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	require.NoError(t, b.rotateLocked(at))
	f := b.f
	require.NoError(t, b.rotateLocked(at.Add(time.Hour)))
	assert.Same(t, f, b.f)
}

func TestBadPattern(t *testing.T) {
	b := New(t.TempDir(), "%", log.Default())
	err := b.rotateLocked(time.Now())
	assert.Error(t, err)
}

func TestDuplicatesLoggedToo(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, "", log.Default())
	defer b.Close()

	p, err := aprs.ParseTNC2("LA7ECA-9>APRS:>x")
	require.NoError(t, err)
	b.ReceivePacket(p, false)
	b.ReceivePacket(p, true)

	fname := time.Now().UTC().Format("2006-01-02") + ".log"
	rows := readRows(t, filepath.Join(dir, fname))
	assert.Len(t, rows, 3)
}
