package aprs

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
)

// Position is a WGS84 latitude/longitude pair in decimal degrees.
type Position struct {
	Lat, Lon float64
}

const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance to q in meters.
func (p Position) Distance(q Position) float64 {
	a := s2.LatLngFromDegrees(p.Lat, p.Lon)
	b := s2.LatLngFromDegrees(q.Lat, q.Lon)
	return a.Distance(b).Radians() * earthRadiusMeters
}

// Uncompressed position: ddmm.mmN<table>dddmm.mmW<symbol>, with spaces
// allowed in the minutes for position ambiguity.
var uncompressedRe = regexp.MustCompile(
	`^(\d{2})([0-9 ]{2}\.[0-9 ]{2})([NnSs])` +
		`([\/\\0-9A-Z])` +
		`(\d{3})([0-9 ]{2}\.[0-9 ]{2})([EeWw])` +
		`([\x21-\x7e])` +
		`(.*)$`)

func parseDegrees(deg, min, dir string) (float64, error) {
	// Ambiguity spaces are centered on the cell.
	min = strings.ReplaceAll(min, " ", "5")

	d, err := strconv.ParseFloat(deg, 64)
	if err != nil {
		return 0, err
	}
	m, err := strconv.ParseFloat(min, 64)
	if err != nil {
		return 0, err
	}
	v := d + m/60.0
	switch dir {
	case "S", "s", "W", "w":
		v = -v
	}
	return v, nil
}

// parseUncompressed decodes the body of an uncompressed position report,
// starting at the latitude.  It returns the position, the symbol pair and
// the remaining comment text.
func parseUncompressed(body string) (Position, byte, byte, string, error) {
	m := uncompressedRe.FindStringSubmatch(body)
	if m == nil {
		return Position{}, 0, 0, "", fmt.Errorf("not an uncompressed position: %q", body)
	}
	lat, err := parseDegrees(m[1], m[2], m[3])
	if err != nil {
		return Position{}, 0, 0, "", fmt.Errorf("latitude: %w", err)
	}
	lon, err := parseDegrees(m[5], m[6], m[7])
	if err != nil {
		return Position{}, 0, 0, "", fmt.Errorf("longitude: %w", err)
	}
	return Position{Lat: lat, Lon: lon}, m[4][0], m[8][0], m[9], nil
}

// FormatUncompressed renders pos in the uncompressed ddmm.mmN/dddmm.mmW
// notation with the given symbol pair, for object beacons.
func FormatUncompressed(pos Position, table, symbol byte) string {
	lat, ns := pos.Lat, byte('N')
	if math.Signbit(lat) {
		lat, ns = -lat, 'S'
	}
	lon, ew := pos.Lon, byte('E')
	if math.Signbit(lon) {
		lon, ew = -lon, 'W'
	}
	latDeg, latMin := splitDegMin(lat)
	lonDeg, lonMin := splitDegMin(lon)
	return fmt.Sprintf("%02d%05.2f%c%c%03d%05.2f%c%c",
		latDeg, latMin, ns, table,
		lonDeg, lonMin, ew, symbol)
}

// splitDegMin breaks a non-negative angle into whole degrees and minutes
// pre-rounded to two decimals, carrying into the degrees when the minutes
// would otherwise print as 60.00.
func splitDegMin(v float64) (int, float64) {
	deg := int(v)
	min := math.Round((v-float64(deg))*60*100) / 100
	if min >= 60 {
		deg++
		min = 0
	}
	return deg, min
}
