package channel

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PolaricServer/aprsd-go/aprs"
	"github.com/PolaricServer/aprsd-go/filter"
)

// InetSrvChannel accepts inbound APRS-IS-compatible client connections
// and acts as a mini broker: packets from one verified client are pushed
// to the channel's receivers and re-broadcast to every other client whose
// filter accepts them.
type InetSrvChannel struct {
	base
	d *Deps

	bind     string
	serverID string

	cancel context.CancelFunc
	lnMu   sync.Mutex
	ln     net.Listener

	cmu     sync.Mutex
	clients map[*SrvClient]struct{}
}

func NewInetSrvChannel(d *Deps, id string) Channel {
	port := d.Cfg.Int("channel."+id+".port", 14580)
	c := &InetSrvChannel{
		base:     newBase(id, d),
		d:        d,
		bind:     net.JoinHostPort(d.Cfg.Str("channel."+id+".bind", ""), strconv.Itoa(port)),
		serverID: d.Cfg.Str("channel."+id+".mycall", d.Cfg.Str("default.mycall", "NOCALL")),
		clients:  map[*SrvClient]struct{}{},
	}
	return c
}

func (c *InetSrvChannel) Activate(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.setState(Starting)

	ln, err := net.Listen("tcp", c.bind)
	if err != nil {
		c.log.Error("listen failed", "addr", c.bind, "err", err)
		c.setState(Failed)
		return
	}
	c.lnMu.Lock()
	c.ln = ln
	c.lnMu.Unlock()
	c.setState(Running)
	c.log.Info("accepting APRS-IS clients", "addr", ln.Addr())

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					c.setState(Off)
					return
				}
				c.log.Warn("accept failed", "err", err)
				continue
			}
			cl := &SrvClient{srv: c, conn: conn}
			c.cmu.Lock()
			c.clients[cl] = struct{}{}
			c.cmu.Unlock()
			go cl.run(ctx)
		}
	}()
}

func (c *InetSrvChannel) Deactivate() {
	if c.cancel != nil {
		c.cancel()
	}
	c.lnMu.Lock()
	if c.ln != nil {
		c.ln.Close()
	}
	c.lnMu.Unlock()

	c.cmu.Lock()
	for cl := range c.clients {
		cl.conn.Close()
	}
	c.cmu.Unlock()
}

// SendPacket broadcasts an outbound packet to every logged-in client
// whose filter accepts it.
func (c *InetSrvChannel) SendPacket(p *aprs.Packet) error {
	if c.State() != Running {
		return fmt.Errorf("channel %s not running", c.ident)
	}
	c.broadcast(p, nil)
	c.sentCnt.Add(1)
	return nil
}

func (c *InetSrvChannel) broadcast(p *aprs.Packet, from *SrvClient) {
	c.cmu.Lock()
	clients := make([]*SrvClient, 0, len(c.clients))
	for cl := range c.clients {
		clients = append(clients, cl)
	}
	c.cmu.Unlock()

	line := p.String()
	for _, cl := range clients {
		if cl == from {
			continue
		}
		if !cl.wants(p) {
			continue
		}
		cl.write(line)
	}
}

// clientPacket is the inbound path from one client session: fan out to
// the channel's receivers (parser, router) and to the other clients.
func (c *InetSrvChannel) clientPacket(from *SrvClient, p *aprs.Packet) {
	c.packetReceived(p)
	c.broadcast(p, from)
}

func (c *InetSrvChannel) dropClient(cl *SrvClient) {
	c.cmu.Lock()
	delete(c.clients, cl)
	c.cmu.Unlock()
}

// ClientCount reports the number of connected sessions.
func (c *InetSrvChannel) ClientCount() int {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	return len(c.clients)
}

// SrvClient is one accepted connection with its own login state.
type SrvClient struct {
	srv  *InetSrvChannel
	conn net.Conn

	mu       sync.Mutex
	userid   string
	verified bool
	loggedIn bool
	filt     *filter.Combined

	wmu sync.Mutex
}

func (cl *SrvClient) run(ctx context.Context) {
	defer func() {
		cl.srv.dropClient(cl)
		cl.conn.Close()
	}()

	cl.write("# " + SoftwareID)

	lr := newLineReader(cl.conn)
	if !cl.login(ctx, lr) {
		return
	}

	for {
		cl.conn.SetReadDeadline(time.Now().Add(readTimeout))
		line, err := lr.ReadLine()
		if err != nil {
			if isTimeout(err) {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			return
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := aprs.ParseTNC2(line)
		if err != nil {
			continue
		}
		cl.mu.Lock()
		verified := cl.verified
		cl.mu.Unlock()
		if !verified {
			// Unverified sessions may listen but never inject.
			continue
		}
		cl.srv.clientPacket(cl, cl.qualify(p))
	}
}

// login reads lines until a non-comment, non-empty line and parses it as
// "user CALL pass PASSCODE [vers ...] [filter ...]".  The submitted
// passcode is verified against the callsign hash.
func (cl *SrvClient) login(ctx context.Context, lr *lineReader) bool {
	for {
		cl.conn.SetReadDeadline(time.Now().Add(readTimeout))
		line, err := lr.ReadLine()
		if err != nil {
			if isTimeout(err) && ctx.Err() == nil {
				continue
			}
			return false
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Split off an optional filter suffix before tokenizing.
		var filterSpec string
		if i := strings.Index(strings.ToLower(line), " filter "); i >= 0 {
			filterSpec = strings.TrimSpace(line[i+len(" filter "):])
			line = strings.TrimSpace(line[:i])
		}

		fields := strings.Fields(line)
		if len(fields) < 4 || !strings.EqualFold(fields[0], "user") || !strings.EqualFold(fields[2], "pass") {
			cl.srv.log.Warn("malformed login", "remote", cl.conn.RemoteAddr(), "line", line)
			return false
		}
		call := strings.ToUpper(fields[1])
		pass, passErr := strconv.Atoi(fields[3])

		cl.mu.Lock()
		cl.userid = call
		cl.verified = passErr == nil && pass == aprs.Passcode(call)
		cl.loggedIn = true
		if filterSpec != "" {
			cl.filt = filter.Parse(filterSpec, cl.srv.d.Points, cl.srv.log)
		}
		verified := cl.verified
		cl.mu.Unlock()

		status := "unverified"
		if verified {
			status = "verified"
		}
		cl.write(fmt.Sprintf("# logresp %s %s, server %s", call, status, cl.srv.serverID))
		cl.srv.log.Info("client login", "user", call, "verified", verified,
			"remote", cl.conn.RemoteAddr())
		return true
	}
}

// wants decides whether an outbound packet goes to this client.  No
// filter means everything; a filter gates normally.  Sessions that have
// not completed login get nothing.
func (cl *SrvClient) wants(p *aprs.Packet) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if !cl.loggedIn {
		return false
	}
	if cl.filt == nil {
		return true
	}
	return cl.filt.Test(p)
}

func (cl *SrvClient) write(line string) {
	cl.wmu.Lock()
	defer cl.wmu.Unlock()
	cl.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	io.WriteString(cl.conn, line+"\r\n")
}

// qualify applies the q-construct rules once, before fan-out.  Packets
// originating at the connected client itself get ",TCPIP*,qAC,<server>";
// packets the client is relaying from RF get ",qAR,<login>".  A path that
// already carries a q construct is left alone; qAr, qAS and qAO entries
// arriving from peers are recognized but never generated here.
func (cl *SrvClient) qualify(p *aprs.Packet) *aprs.Packet {
	if hasQConstruct(p) {
		return p
	}
	cl.mu.Lock()
	userid := cl.userid
	cl.mu.Unlock()

	q := p.Clone()
	if strings.EqualFold(q.From, userid) {
		q.Via = append(q.Via,
			aprs.Via{Call: "TCPIP", Digipeated: true},
			aprs.Via{Call: "qAC"},
			aprs.Via{Call: cl.srv.serverID})
	} else {
		q.Via = append(q.Via,
			aprs.Via{Call: "qAR"},
			aprs.Via{Call: userid})
	}
	return q
}

func hasQConstruct(p *aprs.Packet) bool {
	for _, v := range p.Via {
		if len(v.Call) == 3 && (strings.HasPrefix(v.Call, "qA") || strings.HasPrefix(v.Call, "qa")) {
			return true
		}
	}
	return false
}
