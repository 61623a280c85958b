package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PolaricServer/aprsd-go/aprs"
)

func posPacket(from string) *aprs.Packet {
	// Roughly 60.025N 10.755E
	return &aprs.Packet{From: from, To: "APRS", Report: "!6001.50N/01045.30E>"}
}

func statusPacket(from string) *aprs.Packet {
	return &aprs.Packet{From: from, To: "APRS", Report: ">status"}
}

type fakeResolver map[string]aprs.Position

func (r fakeResolver) PointPosition(ident string) (aprs.Position, bool) {
	pos, ok := r[ident]
	return pos, ok
}

func TestRangeFilter(t *testing.T) {
	near := &Range{Center: aprs.Position{Lat: 60.0, Lon: 10.75}, Km: 10}
	far := &Range{Center: aprs.Position{Lat: 59.0, Lon: 10.75}, Km: 10}

	assert.True(t, near.Test(posPacket("LA7ECA-9")))
	assert.False(t, far.Test(posPacket("LA7ECA-9")))
	assert.False(t, near.Test(statusPacket("LA7ECA-9")), "no position, no match")
}

func TestItemRangeFilter(t *testing.T) {
	res := fakeResolver{"LA5C": {Lat: 60.0, Lon: 10.75}}

	f := &ItemRange{Ident: "LA5C", Km: 10, Resolver: res}
	assert.True(t, f.Test(posPacket("LA7ECA-9")))

	unknown := &ItemRange{Ident: "NOBODY", Km: 10, Resolver: res}
	assert.False(t, unknown.Test(posPacket("LA7ECA-9")), "unresolvable fails closed")

	nilRes := &ItemRange{Ident: "LA5C", Km: 10}
	assert.False(t, nilRes.Test(posPacket("LA7ECA-9")))
}

func TestTypeFilter(t *testing.T) {
	f := &Type{Classes: "ps"}
	assert.True(t, f.Test(posPacket("LA7ECA-9")))
	assert.True(t, f.Test(statusPacket("LA7ECA-9")))
	assert.False(t, f.Test(&aprs.Packet{From: "A", To: "B", Report: ":LA5C     :hello"}))
}

func TestTypeFilterNestedRange(t *testing.T) {
	res := fakeResolver{"LA5C": {Lat: 60.0, Lon: 10.75}}
	f, err := parseToken("t/p/LA5C/10", res)
	require.NoError(t, err)
	assert.True(t, f.Test(posPacket("LA7ECA-9")))
	assert.False(t, f.Test(statusPacket("LA7ECA-9")), "class mismatch")
}

func TestPrefixFilter(t *testing.T) {
	f := &Prefix{Prefixes: []string{"LA", "LB"}}
	assert.True(t, f.Test(statusPacket("LA7ECA-9")))
	assert.True(t, f.Test(statusPacket("LB4Z")))
	assert.False(t, f.Test(statusPacket("OH2XYZ")))
}

func TestBudlistWildcards(t *testing.T) {
	f, err := parseToken("b/LA7*/OH?X", nil)
	require.NoError(t, err)
	assert.True(t, f.Test(statusPacket("LA7ECA-9")))
	assert.True(t, f.Test(statusPacket("OH2X")))
	assert.False(t, f.Test(statusPacket("OH2XYZ")), "? matches one character only")
	assert.False(t, f.Test(statusPacket("LB7X")))
}

func TestCombinedIsOr(t *testing.T) {
	c := Parse("p/OH b/LA7ECA-9", nil, nil)
	assert.True(t, c.Test(statusPacket("OH2XYZ")))
	assert.True(t, c.Test(statusPacket("LA7ECA-9")))
	assert.False(t, c.Test(statusPacket("LB4Z")))
}

func TestEmptyCombinedPassesNothing(t *testing.T) {
	c := Parse("", nil, nil)
	assert.False(t, c.Test(statusPacket("LA7ECA-9")))
}

func TestParseDropsBadTokens(t *testing.T) {
	// One bad token must not poison the rest of the line.
	c := Parse("x/nope r/60/10.75/10 t/zz p/LA", nil, nil)
	assert.Len(t, c.Filters, 2)
	assert.True(t, c.Test(posPacket("LA7ECA-9")))
}

func TestParseTokens(t *testing.T) {
	good := []string{
		"r/60.0/10.75/25",
		"f/LA5C/10",
		"t/poimqstwu",
		"t/p/LA5C/10",
		"p/LA/LB/OH",
		"b/LA7ECA*",
	}
	for _, tok := range good {
		_, err := parseToken(tok, nil)
		assert.NoError(t, err, "token %q", tok)
	}

	bad := []string{
		"r/60/10.75",
		"r/x/y/z",
		"f/LA5C",
		"t/",
		"t/z",
		"t/p/LA5C",
		"p",
		"b",
		"q/abc",
	}
	for _, tok := range bad {
		_, err := parseToken(tok, nil)
		assert.Error(t, err, "token %q", tok)
	}
}
