package tracker

import (
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// Parser is the receiver at the end of every channel chain: it decodes
// position-bearing reports and applies them to the database.  Duplicates
// are ignored; the trail engine additionally tolerates out-of-order
// delivery on its own.
type Parser struct {
	db  *InMemoryDB
	log *log.Logger
}

func NewParser(db *InMemoryDB, logger *log.Logger) *Parser {
	if logger == nil {
		logger = log.Default()
	}
	return &Parser{db: db, log: logger.WithPrefix("parser")}
}

// ReceivePacket implements the channel receiver contract.
func (pr *Parser) ReceivePacket(p *aprs.Packet, dup bool) {
	if p == nil || dup {
		return
	}
	rep, err := aprs.ParseReport(p.From, p.Report)
	if err != nil {
		pr.log.Debug("unparsable report", "from", p.From, "err", err)
		return
	}

	now := time.Now()
	pr.recordRoutes(p, now)

	switch rep.Class {
	case aprs.ClassObject, aprs.ClassItem:
		obj := pr.db.GetObject(rep.Name, rep.Owner)
		if !rep.Alive {
			obj.Kill()
			return
		}
		obj.Touch(now)
		if rep.HasPos {
			prev := obj.Apply(pointUpdate(p, rep, now))
			pr.db.UpdateItem(obj, prev)
		}

	case aprs.ClassStatus:
		st := pr.db.GetStation(p.From)
		st.Touch(now)
		st.SetDescription(strings.TrimSpace(p.Report[1:]))

	default:
		if !rep.HasPos {
			return
		}
		st := pr.db.GetStation(p.From)
		prev := st.Apply(pointUpdate(p, rep, now))
		pr.db.UpdateItem(st, prev)
	}
}

func pointUpdate(p *aprs.Packet, rep *aprs.Report, now time.Time) Update {
	return Update{
		Time:     now,
		Pos:      rep.Pos,
		Speed:    rep.Speed,
		Course:   rep.Course,
		Altitude: rep.Altitude,
		Path:     p.PathString(),
		Table:    rep.Table,
		Symbol:   rep.Symbol,
		Descr:    rep.Comment,
	}
}

// recordRoutes adds one traffic-flow edge per digipeater hop actually
// used, skipping the q-construct and TCPIP markers the internet side
// appends.  Stations seen digipeating are flagged as infrastructure.
func (pr *Parser) recordRoutes(p *aprs.Packet, now time.Time) {
	routes := pr.db.GetRoutes()
	prev := strings.ToUpper(p.From)
	for _, v := range p.Via {
		call := strings.ToUpper(v.Call)
		if strings.HasPrefix(call, "Q") && len(call) == 3 || call == "TCPIP" {
			break
		}
		if !v.Digipeated {
			continue
		}
		routes.AddEdge(prev, call, now)
		if !strings.HasPrefix(call, "WIDE") && !strings.HasPrefix(call, "TRACE") {
			digi := pr.db.GetStation(call)
			digi.SetInfra(false, true)
			digi.Touch(now)
		}
		prev = call
	}
}
