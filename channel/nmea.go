package channel

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// NmeaRadioChannel reads waypoint sentences from an APRS-capable
// transceiver's NMEA port.  Kenwood radios emit $PKWDWPL for every
// station they hear:
//
//	$PKWDWPL,hhmmss,v,ddmm.mm,ns,dddmm.mm,ew,speed,course,ddmmyy,alt,name,ts*99
//
// Each waypoint is synthesized into a position packet so the rest of the
// pipeline treats the radio like any other channel.  The channel is
// receive-only; SendPacket is rejected.
type NmeaRadioChannel struct {
	base
	link *CommLink

	cancel context.CancelFunc
	done   chan struct{}
}

func NewNmeaRadioChannel(d *Deps, id string) Channel {
	device := d.Cfg.Str("channel."+id+".port", "")
	if device == "" {
		d.Log.Error("channel missing required serial port", "channel", id)
		return nil
	}
	baud := d.Cfg.Int("channel."+id+".baud", 9600)

	c := &NmeaRadioChannel{base: newBase(id, d)}
	c.link = &CommLink{
		Log: c.log,
		Dial: func(ctx context.Context) (io.ReadWriteCloser, error) {
			return openSerial(device, baud)
		},
		Serve:       c.serve,
		MaxRetries:  d.Cfg.Int("channel."+id+".retry", 0),
		BackoffStep: SerialBackoffStep,
		Ceiling:     time.Duration(d.Cfg.Int("channel."+id+".retry.time", 30)) * time.Minute,
		OnFailed:    failoverHook(d, id),
	}
	return c
}

func (c *NmeaRadioChannel) serve(ctx context.Context, conn io.ReadWriteCloser) error {
	lr := newLineReader(conn)
	for {
		line, err := lr.ReadLine()
		if err != nil {
			if isTimeout(err) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			return err
		}
		if !strings.HasPrefix(line, "$PKWDWPL,") && !strings.HasPrefix(line, "$GPWPL,") {
			continue
		}
		if !nmeaChecksumOK(line) {
			c.log.Debug("bad NMEA checksum", "line", line)
			continue
		}
		p, err := waypointToPacket(line)
		if err != nil {
			c.log.Debug("bad waypoint", "line", line, "err", err)
			continue
		}
		c.packetReceived(p)
	}
}

func (c *NmeaRadioChannel) Activate(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.link.Run(ctx, c.setState)
	}()
}

func (c *NmeaRadioChannel) Deactivate() {
	if c.cancel != nil {
		c.cancel()
	}
	c.link.Close()
	if c.done != nil {
		<-c.done
	}
}

func (c *NmeaRadioChannel) SendPacket(p *aprs.Packet) error {
	return fmt.Errorf("channel %s is receive-only", c.ident)
}

// nmeaChecksumOK verifies the *hh trailer: XOR of everything between '$'
// and '*'.
func nmeaChecksumOK(line string) bool {
	star := strings.LastIndexByte(line, '*')
	if star < 0 || len(line) < star+3 || line[0] != '$' {
		return false
	}
	want, err := strconv.ParseUint(line[star+1:star+3], 16, 8)
	if err != nil {
		return false
	}
	var cs byte
	for i := 1; i < star; i++ {
		cs ^= line[i]
	}
	return cs == byte(want)
}

// waypointToPacket turns a waypoint sentence into a synthetic position
// packet.
func waypointToPacket(line string) (*aprs.Packet, error) {
	star := strings.LastIndexByte(line, '*')
	fields := strings.Split(line[:star], ",")

	var name string
	var lat, lon float64
	var err error
	switch fields[0] {
	case "$GPWPL":
		// $GPWPL,ddmm.mmmm,ns,dddmm.mmmm,ew,name
		if len(fields) < 6 {
			return nil, fmt.Errorf("short $GPWPL")
		}
		name = fields[5]
		lat, lon, err = nmeaLatLon(fields[1], fields[2], fields[3], fields[4])
	case "$PKWDWPL":
		if len(fields) < 12 {
			return nil, fmt.Errorf("short $PKWDWPL")
		}
		name = fields[11]
		lat, lon, err = nmeaLatLon(fields[3], fields[4], fields[5], fields[6])
	default:
		return nil, fmt.Errorf("unsupported sentence %s", fields[0])
	}
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("waypoint without name")
	}

	pos := aprs.Position{Lat: lat, Lon: lon}
	return &aprs.Packet{
		From:   name,
		To:     "APRS",
		Report: "!" + aprs.FormatUncompressed(pos, '/', '/'),
	}, nil
}

// nmeaLatLon converts ddmm.mmmm,N,dddmm.mmmm,W to decimal degrees.
func nmeaLatLon(slat, ns, slon, ew string) (float64, float64, error) {
	lat, err := nmeaCoord(slat, 2)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	lon, err := nmeaCoord(slon, 3)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	if strings.EqualFold(ns, "S") {
		lat = -lat
	}
	if strings.EqualFold(ew, "W") {
		lon = -lon
	}
	return lat, lon, nil
}

func nmeaCoord(s string, degDigits int) (float64, error) {
	if len(s) < degDigits+2 {
		return 0, fmt.Errorf("coordinate %q too short", s)
	}
	deg, err := strconv.ParseFloat(s[:degDigits], 64)
	if err != nil {
		return 0, err
	}
	min, err := strconv.ParseFloat(s[degDigits:], 64)
	if err != nil {
		return 0, err
	}
	return deg + min/60, nil
}
