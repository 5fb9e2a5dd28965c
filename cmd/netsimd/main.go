// Command netsimd wires a small number of NetworkInterfaces into a Router
// and drives the periodic tick loop that drains routed traffic and ages ARP
// state.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinyrange/minnow/internal/config"
	"github.com/tinyrange/minnow/internal/netif"
	"github.com/tinyrange/minnow/internal/pcap"
	"github.com/tinyrange/minnow/internal/router"
)

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	debugAddr := flag.String("debug-addr", "", "address to serve the JSON /status endpoint on, e.g. :7070")
	pcapPath := flag.String("pcap", "", "path to write a libpcap capture of every frame")
	tickMillis := flag.Uint64("tick-ms", 100, "milliseconds between Router.Tick calls")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `netsimd - run a longest-prefix-match IPv4 router over simulated interfaces

USAGE:
  netsimd [flags]

FLAGS:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *debugAddr != "" {
		cfg.DebugHTTPAddr = *debugAddr
	}
	if *pcapPath != "" {
		cfg.PcapOutputPath = *pcapPath
	}
	log.Info("starting netsimd", "config", cfg)

	var capture *pcap.Writer
	if cfg.PcapOutputPath != "" {
		f, err := os.Create(cfg.PcapOutputPath)
		if err != nil {
			return fmt.Errorf("create pcap file: %w", err)
		}
		defer f.Close()
		w := pcap.NewWriter(f)
		if err := w.WriteFileHeader(65535, pcap.LinkTypeEthernet); err != nil {
			return fmt.Errorf("write pcap file header: %w", err)
		}
		capture = w
	}

	r := router.New(log)

	loopback := discardSink{}
	nic := netif.New(log, netif.EthernetAddr{0x02, 0, 0, 0, 0, 1}, netif.IPv4AddrFromBytes([4]byte{10, 0, 0, 1}), loopback)
	nic.Configure(cfg.ARPEntryTTLMillis, cfg.ARPRequestCooldown)
	if capture != nil {
		nic.AttachCapture(capture)
	}
	r.AddInterface(nic)

	if cfg.DebugHTTPAddr != "" {
		if err := r.EnableDebugHTTP(cfg.DebugHTTPAddr); err != nil {
			return fmt.Errorf("enable debug http: %w", err)
		}
		defer r.DisableDebugHTTP()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Duration(*tickMillis) * time.Millisecond)
	defer ticker.Stop()

	log.Info("netsimd running", "tickMillis", *tickMillis)
	for {
		select {
		case <-ctx.Done():
			log.Info("netsimd shutting down")
			return nil
		case <-ticker.C:
			r.Route()
			r.Tick(*tickMillis)
		}
	}
}

// discardSink is the default OutputPort when no real link is wired up; a
// production deployment replaces this with whatever carries frames onto
// the wire (a tap device, a test harness, ...).
type discardSink struct{}

func (discardSink) Send(frame []byte) error { return nil }

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "netsimd: %v\n", err)
		os.Exit(1)
	}
}
