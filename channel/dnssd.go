package channel

import (
	"context"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// DNSSDService is the DNS-SD service type announced for the APRS-IS
// server port, so local clients can discover it without typing in an
// address.
const DNSSDService = "_aprs-is._tcp"

// AnnounceDNSSD advertises an APRS-IS server port via mDNS/DNS-SD.  It
// returns after starting the responder; the announcement lives until ctx
// is cancelled.
func AnnounceDNSSD(ctx context.Context, logger *log.Logger, name string, port int) {
	cfg := dnssd.Config{
		Name: name,
		Type: DNSSDService,
		Port: port,
	}

	sv, err := dnssd.NewService(cfg)
	if err != nil {
		logger.Error("dns-sd service setup failed", "err", err)
		return
	}
	rp, err := dnssd.NewResponder()
	if err != nil {
		logger.Error("dns-sd responder setup failed", "err", err)
		return
	}
	if _, err := rp.Add(sv); err != nil {
		logger.Error("dns-sd announce failed", "err", err)
		return
	}

	logger.Info("announcing APRS-IS service", "name", name, "port", port)
	go func() {
		if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
			logger.Error("dns-sd responder stopped", "err", err)
		}
	}()
}
