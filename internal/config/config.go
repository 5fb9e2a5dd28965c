// Package config loads the tunables the data-plane leaves
// implementation-defined: ARP timing and the optional debug/capture
// surfaces. (internal/tcp's segment size and retransmission timeout are
// constructor arguments for whoever builds a Sender/Receiver; cmd/netsimd
// never does, since it only demonstrates the IP/ARP layer, so those two
// knobs have no place in a Config nothing reads them from.)
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the data-plane core needs at start-up.
type Config struct {
	ARPEntryTTLMillis  uint64 `yaml:"arp_entry_ttl_millis"`
	ARPRequestCooldown uint64 `yaml:"arp_request_cooldown_millis"`
	DebugHTTPAddr      string `yaml:"debug_http_addr"`
	PcapOutputPath     string `yaml:"pcap_output_path"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		ARPEntryTTLMillis:  30_000,
		ARPRequestCooldown: 5_000,
	}
}

// Load reads a YAML configuration file, filling in Default() for any
// fields the file leaves unset (zero-valued).
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var fromFile Config
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	if fromFile.ARPEntryTTLMillis != 0 {
		cfg.ARPEntryTTLMillis = fromFile.ARPEntryTTLMillis
	}
	if fromFile.ARPRequestCooldown != 0 {
		cfg.ARPRequestCooldown = fromFile.ARPRequestCooldown
	}
	cfg.DebugHTTPAddr = fromFile.DebugHTTPAddr
	cfg.PcapOutputPath = fromFile.PcapOutputPath

	return cfg, nil
}

// LogValue renders the config for structured logging without dumping
// every field at Info level twice.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("arp_entry_ttl_millis", c.ARPEntryTTLMillis),
		slog.Uint64("arp_request_cooldown_millis", c.ARPRequestCooldown),
		slog.String("debug_http_addr", c.DebugHTTPAddr),
		slog.String("pcap_output_path", c.PcapOutputPath),
	)
}
