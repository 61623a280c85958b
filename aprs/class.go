package aprs

// Class buckets for the data type identifier, used by the t/ filter.
const (
	ClassPosition  = 'p'
	ClassObject    = 'o'
	ClassItem      = 'i'
	ClassMessage   = 'm'
	ClassQuery     = 'q'
	ClassStatus    = 's'
	ClassTelemetry = 't'
	ClassWeather   = 'w'
	ClassUserDef   = 'u'
	ClassUnknown   = 'X'
)

// Classify maps an APRS data type identifier to its filter class.
func Classify(dti byte) byte {
	switch dti {
	case '!', '=', '/', '@', '\'', '`', '$':
		// Plain, timestamped, Mic-E and raw NMEA positions.
		return ClassPosition
	case ';':
		return ClassObject
	case ')':
		return ClassItem
	case ':':
		return ClassMessage
	case '?':
		return ClassQuery
	case '>':
		return ClassStatus
	case 'T':
		return ClassTelemetry
	case '_', '#', '*':
		return ClassWeather
	case '{':
		return ClassUserDef
	default:
		return ClassUnknown
	}
}
