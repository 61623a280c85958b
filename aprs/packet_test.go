package aprs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTNC2(t *testing.T) {
	p, err := ParseTNC2("LA7ECA-9>APRS,LA5C*,WIDE2-1:!6001.50N/01045.30E>comment")
	require.NoError(t, err)
	assert.Equal(t, "LA7ECA-9", p.From)
	assert.Equal(t, "APRS", p.To)
	require.Len(t, p.Via, 2)
	assert.Equal(t, "LA5C", p.Via[0].Call)
	assert.True(t, p.Via[0].Digipeated)
	assert.Equal(t, "WIDE2-1", p.Via[1].Call)
	assert.False(t, p.Via[1].Digipeated)
	assert.Equal(t, "!6001.50N/01045.30E>comment", p.Report)
	assert.Equal(t, byte('!'), p.Type())
}

func TestParseTNC2StarMarksEarlier(t *testing.T) {
	// A star on the last via means all preceding digis handled the
	// packet too.
	p, err := ParseTNC2("A>B,C,D*:>hi")
	require.NoError(t, err)
	require.Len(t, p.Via, 2)
	assert.True(t, p.Via[0].Digipeated)
	assert.True(t, p.Via[1].Digipeated)
}

func TestParseTNC2NoVia(t *testing.T) {
	p, err := ParseTNC2("A>B:>status here")
	require.NoError(t, err)
	assert.Empty(t, p.Via)
	assert.False(t, p.HasVia("WIDE1-1"))
	assert.Equal(t, "A>B:>status here", p.String())
}

func TestParseTNC2Rejects(t *testing.T) {
	for _, line := range []string{
		"",
		"no separator",
		">B:x",
		"A>:x",
		"A>B",
		"TOOLONGCALL1>B:x",
		"A B>C:x",
	} {
		_, err := ParseTNC2(line)
		assert.Error(t, err, "line %q", line)
	}
}

func TestPathStringSingleStar(t *testing.T) {
	// Only the last digipeated entry carries the star.
	p := &Packet{
		From: "LA7ECA-9",
		To:   "APRS",
		Via: []Via{
			{Call: "LA5C", Digipeated: true},
			{Call: "LD9ZS", Digipeated: true},
			{Call: "WIDE2-1"},
		},
		Report: ">x",
	}
	assert.Equal(t, "LA5C,LD9ZS*,WIDE2-1", p.PathString())
	assert.Equal(t, "LA7ECA-9>APRS,LA5C,LD9ZS*,WIDE2-1:>x", p.String())
}

func TestStringRoundTrip(t *testing.T) {
	line := "LA7ECA-9>APRS,LA5C*,WIDE2-1:!6001.50N/01045.30E>test"
	p, err := ParseTNC2(line)
	require.NoError(t, err)
	assert.Equal(t, line, p.String())
}

func TestCloneIsDeep(t *testing.T) {
	p, err := ParseTNC2("A>B,C*:>x")
	require.NoError(t, err)
	q := p.Clone()
	q.Via[0].Call = "ZZZ"
	q.Via = append(q.Via, Via{Call: "qAR"})
	assert.Equal(t, "C", p.Via[0].Call)
	assert.Len(t, p.Via, 1)
}

func TestPasscode(t *testing.T) {
	assert.Equal(t, 13023, Passcode("N0CALL"))
	assert.Equal(t, 19367, Passcode("LA7ECA"))
}

func TestPasscodeIgnoresCaseAndSSID(t *testing.T) {
	assert.Equal(t, Passcode("LA7ECA"), Passcode("la7eca-9"))
	assert.Equal(t, Passcode("N0CALL"), Passcode("n0call-15"))
}

func TestClassify(t *testing.T) {
	cases := map[byte]byte{
		'!':  ClassPosition,
		'=':  ClassPosition,
		'/':  ClassPosition,
		'@':  ClassPosition,
		'`':  ClassPosition,
		';':  ClassObject,
		')':  ClassItem,
		':':  ClassMessage,
		'?':  ClassQuery,
		'>':  ClassStatus,
		'T':  ClassTelemetry,
		'_':  ClassWeather,
		'#':  ClassWeather,
		'*':  ClassWeather,
		'{':  ClassUserDef,
		'A':  ClassUnknown,
		0x00: ClassUnknown,
	}
	for dti, want := range cases {
		assert.Equal(t, want, Classify(dti), "dti %q", dti)
	}
}
