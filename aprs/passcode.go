package aprs

import "strings"

// Passcode computes the APRS-IS passcode for a callsign: a base value of
// 0x73e2 XOR-folded with the uppercased base call two characters at a time,
// the second shifted down a byte, masked to 15 bits.  Any SSID suffix is
// ignored.
func Passcode(callsign string) int {
	call := strings.ToUpper(callsign)
	if i := strings.IndexByte(call, '-'); i >= 0 {
		call = call[:i]
	}

	hash := 0x73e2
	for i := 0; i < len(call); i += 2 {
		hash ^= int(call[i]) << 8
		if i+1 < len(call) {
			hash ^= int(call[i+1])
		}
	}
	return hash & 0x7fff
}
