package aprs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseUncompressed(t *testing.T) {
	pos, table, symbol, comment, err := parseUncompressed("6001.50N/01045.30E>hello")
	require.NoError(t, err)
	assert.InDelta(t, 60.025, pos.Lat, 1e-9)
	assert.InDelta(t, 10.755, pos.Lon, 1e-9)
	assert.Equal(t, byte('/'), table)
	assert.Equal(t, byte('>'), symbol)
	assert.Equal(t, "hello", comment)
}

func TestParseUncompressedSouthWest(t *testing.T) {
	pos, _, _, _, err := parseUncompressed("3351.00S\\07030.00W#")
	require.NoError(t, err)
	assert.InDelta(t, -33.85, pos.Lat, 1e-9)
	assert.InDelta(t, -70.5, pos.Lon, 1e-9)
}

func TestParseUncompressedAmbiguity(t *testing.T) {
	// Ambiguity spaces read as '5', centering on the cell.
	pos, _, _, _, err := parseUncompressed("60  .  N/010  .  E>")
	require.NoError(t, err)
	assert.InDelta(t, 60.0+55.55/60, pos.Lat, 1e-9)
	assert.InDelta(t, 10.0+55.55/60, pos.Lon, 1e-9)
}

func TestFormatUncompressedRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pos := Position{
			Lat: rapid.Float64Range(-89.99, 89.99).Draw(t, "lat"),
			Lon: rapid.Float64Range(-179.99, 179.99).Draw(t, "lon"),
		}
		body := FormatUncompressed(pos, '/', '>')
		got, table, symbol, _, err := parseUncompressed(body)
		require.NoError(t, err, "body %q", body)
		assert.Equal(t, byte('/'), table)
		assert.Equal(t, byte('>'), symbol)
		// Two decimal minutes resolve to roughly 20 m of latitude.
		assert.Less(t, pos.Distance(got), 40.0, "body %q", body)
	})
}

func TestFormatUncompressedEdgeAngles(t *testing.T) {
	// Negative zero must pick a hemisphere letter, not render a sign.
	body := FormatUncompressed(Position{Lat: 1, Lon: math.Copysign(0, -1)}, '/', '>')
	assert.Equal(t, "0100.00N/00000.00W>", body)

	// Minutes that would round to 60.00 carry into the degrees.
	body = FormatUncompressed(Position{Lat: 59.99999, Lon: 10.999999}, '/', '>')
	assert.Equal(t, "6000.00N/01100.00E>", body)
	_, _, _, _, err := parseUncompressed(body)
	assert.NoError(t, err)
}

func TestParseReportPosition(t *testing.T) {
	r, err := ParseReport("LA7ECA-9", "!6001.50N/01045.30E>hi there")
	require.NoError(t, err)
	assert.Equal(t, byte(ClassPosition), r.Class)
	assert.True(t, r.HasPos)
	assert.Equal(t, "hi there", r.Comment)
	assert.Equal(t, Unknown, r.Speed)
	assert.Equal(t, Unknown, r.Altitude)
}

func TestParseReportTimestamped(t *testing.T) {
	r, err := ParseReport("LA7ECA-9", "@092345z6001.50N/01045.30E>")
	require.NoError(t, err)
	assert.True(t, r.HasPos)
	assert.InDelta(t, 60.025, r.Pos.Lat, 1e-9)
}

func TestParseReportCourseSpeed(t *testing.T) {
	r, err := ParseReport("LA7ECA-9", "!6001.50N/01045.30E>088/036 comment")
	require.NoError(t, err)
	assert.Equal(t, 88, r.Course)
	assert.Equal(t, 36, r.Speed)
	assert.Equal(t, "comment", r.Comment)
}

func TestParseReportAltitude(t *testing.T) {
	r, err := ParseReport("LA7ECA-9", "!6001.50N/01045.30E>/A=001000 up high")
	require.NoError(t, err)
	assert.Equal(t, 1000*3048/10000, r.Altitude)
	assert.Equal(t, "up high", r.Comment)
}

func TestParseReportObject(t *testing.T) {
	r, err := ParseReport("LA5C", ";LEONID   *092345z6001.50N/01045.30E>")
	require.NoError(t, err)
	assert.Equal(t, byte(ClassObject), r.Class)
	assert.Equal(t, "LEONID", r.Name)
	assert.Equal(t, "LA5C", r.Owner)
	assert.True(t, r.Alive)
	assert.True(t, r.HasPos)
}

func TestParseReportObjectKilled(t *testing.T) {
	r, err := ParseReport("LA5C", ";LEONID   _092345z6001.50N/01045.30E>")
	require.NoError(t, err)
	assert.False(t, r.Alive)
}

func TestParseReportItem(t *testing.T) {
	r, err := ParseReport("LA5C", ")AID#2!6001.50N/01045.30E>")
	require.NoError(t, err)
	assert.Equal(t, byte(ClassItem), r.Class)
	assert.Equal(t, "AID#2", r.Name)
	assert.True(t, r.Alive)
	assert.True(t, r.HasPos)
}

func TestParseReportStatusHasNoPos(t *testing.T) {
	r, err := ParseReport("LA7ECA-9", ">just a status")
	require.NoError(t, err)
	assert.Equal(t, byte(ClassStatus), r.Class)
	assert.False(t, r.HasPos)
}

func TestDistance(t *testing.T) {
	oslo := Position{Lat: 59.9139, Lon: 10.7522}
	bergen := Position{Lat: 60.3913, Lon: 5.3221}
	d := oslo.Distance(bergen)
	assert.InDelta(t, 305000, d, 5000)
	assert.Zero(t, oslo.Distance(oslo))
}
