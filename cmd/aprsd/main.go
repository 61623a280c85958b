// Command aprsd is the APRS gateway server: it opens the configured
// channels (radio TNCs, APRS-IS links, routers, the APRS-IS server
// port), tracks every station and object heard, and keeps a packet
// logbook.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/PolaricServer/aprsd-go/channel"
	"github.com/PolaricServer/aprsd-go/config"
	"github.com/PolaricServer/aprsd-go/dedupe"
	"github.com/PolaricServer/aprsd-go/logbook"
	"github.com/PolaricServer/aprsd-go/tracker"
)

func main() {
	configFile := pflag.StringP("config-file", "c", "aprsd.yaml", "Configuration file name.")
	logLevel := pflag.StringP("log-level", "l", "info", "Log level: debug, info, warn, error.")
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "aprsd",
	})
	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warn("unknown log level, using info", "level", *logLevel)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("cannot load configuration", "file", *configFile, "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := cfg.Watch(ctx, logger, nil); err != nil {
			logger.Warn("configuration watch disabled", "err", err)
		}
	}()

	db := tracker.NewInMemoryDB(&tracker.Shared{})
	parser := tracker.NewParser(db, logger)

	done := make(chan struct{})
	go db.Run(done, time.Minute)

	deps := &channel.Deps{
		Cfg:    cfg,
		Log:    logger,
		Dup:    dedupe.New(dedupe.DefaultCapacity),
		Points: db,
	}
	mgr := channel.NewManager(deps)
	mgr.RegisterDefaults()

	var book *logbook.Logbook
	if dir := cfg.Str("logbook.dir", ""); dir != "" {
		book = logbook.New(dir, cfg.Str("logbook.pattern", ""), logger)
		defer book.Close()
	}

	ids := splitList(cfg.Str("channels", ""))
	if len(ids) == 0 {
		logger.Fatal("no channels configured")
	}

	// Channels owned by a router hear through the router; attaching the
	// parser to them directly would deliver every packet twice.
	active := map[string]bool{}
	routed := map[string]bool{}
	for _, id := range ids {
		active[id] = true
		if cfg.Str("channel."+id+".type", "") == "ROUTER" {
			for _, m := range splitList(cfg.Str("channel."+id+".channels", "")) {
				routed[m] = true
			}
		}
	}

	for _, id := range ids {
		ch := mgr.NewInstance(id)
		if ch == nil {
			continue
		}
		if !routed[id] {
			ch.AddReceiver(parser)
			if book != nil {
				ch.AddReceiver(book)
			}
		}
		if backup := cfg.Str("channel."+id+".failover", ""); backup != "" {
			mgr.AddBackup(backup)
			if bc := mgr.Get(backup); bc != nil && !routed[backup] && !active[backup] {
				bc.AddReceiver(parser)
				if book != nil {
					bc.AddReceiver(book)
				}
			}
		}
	}
	mgr.ActivateAll(ctx, ids)

	for _, id := range ids {
		if cfg.Str("channel."+id+".type", "") != "APRSIS-SRV" {
			continue
		}
		if !cfg.Bool("channel."+id+".announce", true) {
			continue
		}
		name := cfg.Str("channel."+id+".mycall", cfg.Str("default.mycall", "NOCALL"))
		channel.AnnounceDNSSD(ctx, logger, name, cfg.Int("channel."+id+".port", 14580))
	}

	logger.Info("server running", "channels", ids)
	<-ctx.Done()
	logger.Info("shutting down")
	mgr.DeactivateAll()
	close(done)
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
