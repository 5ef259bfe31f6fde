// Package config loads gateway configuration from an optional INI file,
// command line flags and environment variables, in that order of
// increasing precedence.
package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"time"

	ini "gopkg.in/ini.v1"
)

// Config holds the gateway configuration
type Config struct {
	// Signaling settings
	BindAddr      string // Address to bind for listening
	Port          int    // Signaling port
	AdvertiseAddr string // Address to advertise in session descriptions
	LogLevel      string
	LogFile       string // Rotating log file path, empty for stderr only
	NodeID        string // Instance identifier carried in events

	// Telephony settings
	TrunkAddress string // Where telephone-bound legs are bridged

	// Media settings
	STUNServer         string
	NegotiationTimeout time.Duration

	// Presence settings
	PresenceDefaultExpires int
	PresenceMinExpires     int
	PresenceMaxExpires     int

	// Routing settings
	LookupTimeout    time.Duration
	RetryBaseDelay   time.Duration
	RetryMultiplier  float64
	RetryMaxAttempts int

	// Metrics settings
	MetricsAddr string // Prometheus listen address, empty disables the endpoint
}

// defaults returns the baseline configuration before any source applies.
func defaults() *Config {
	return &Config{
		BindAddr:               "0.0.0.0",
		Port:                   8080,
		LogLevel:               "info",
		NegotiationTimeout:     10 * time.Second,
		PresenceDefaultExpires: 60,
		PresenceMinExpires:     30,
		PresenceMaxExpires:     120,
		LookupTimeout:          2 * time.Second,
		RetryBaseDelay:         500 * time.Millisecond,
		RetryMultiplier:        2.0,
		RetryMaxAttempts:       3,
		MetricsAddr:            ":9091",
	}
}

// Load reads configuration from the INI file named by -config (when it
// exists), then command line flags, then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to INI configuration file")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "Signaling listening port")
	flag.StringVar(&cfg.BindAddr, "bind", cfg.BindAddr, "Signaling bind address")
	flag.StringVar(&cfg.AdvertiseAddr, "advertise", "", "Address to advertise in session descriptions (auto-detected if not set)")
	flag.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFile, "logfile", "", "Rotating log file path")
	flag.StringVar(&cfg.NodeID, "node", "", "Node identifier (hostname if not set)")
	flag.StringVar(&cfg.TrunkAddress, "trunk", "", "Telephony trunk address")
	flag.StringVar(&cfg.STUNServer, "stun", "", "STUN server for candidate gathering")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus listen address (empty to disable)")
	flag.Parse()

	if configPath != "" {
		if err := cfg.applyFile(configPath); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if cfg.AdvertiseAddr == "" || !isValidAddress(cfg.AdvertiseAddr) {
		cfg.AdvertiseAddr = getPrimaryInterfaceIP()
	}
	if cfg.NodeID == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.NodeID = host
		} else {
			cfg.NodeID = "voicebridge"
		}
	}

	return cfg, nil
}

// applyFile overlays values from an INI file.
func (c *Config) applyFile(path string) error {
	file, err := ini.Load(path)
	if err != nil {
		return err
	}

	sec := file.Section("gateway")
	c.BindAddr = sec.Key("bind").MustString(c.BindAddr)
	c.Port = sec.Key("port").MustInt(c.Port)
	c.AdvertiseAddr = sec.Key("advertise").MustString(c.AdvertiseAddr)
	c.LogLevel = sec.Key("loglevel").MustString(c.LogLevel)
	c.LogFile = sec.Key("logfile").MustString(c.LogFile)
	c.NodeID = sec.Key("node").MustString(c.NodeID)
	c.MetricsAddr = sec.Key("metrics").MustString(c.MetricsAddr)

	sec = file.Section("telephony")
	c.TrunkAddress = sec.Key("trunk").MustString(c.TrunkAddress)

	sec = file.Section("media")
	c.STUNServer = sec.Key("stun_server").MustString(c.STUNServer)
	c.NegotiationTimeout = sec.Key("negotiation_timeout").MustDuration(c.NegotiationTimeout)

	sec = file.Section("presence")
	c.PresenceDefaultExpires = sec.Key("default_expires").MustInt(c.PresenceDefaultExpires)
	c.PresenceMinExpires = sec.Key("min_expires").MustInt(c.PresenceMinExpires)
	c.PresenceMaxExpires = sec.Key("max_expires").MustInt(c.PresenceMaxExpires)

	sec = file.Section("routing")
	c.LookupTimeout = sec.Key("lookup_timeout").MustDuration(c.LookupTimeout)
	c.RetryBaseDelay = sec.Key("retry_base_delay").MustDuration(c.RetryBaseDelay)
	c.RetryMultiplier = sec.Key("retry_multiplier").MustFloat64(c.RetryMultiplier)
	c.RetryMaxAttempts = sec.Key("retry_max_attempts").MustInt(c.RetryMaxAttempts)

	return nil
}

// applyEnv overlays values from environment variables.
func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}
	if bind := os.Getenv("BIND"); bind != "" {
		c.BindAddr = bind
	}
	if advertise := os.Getenv("ADVERTISE"); advertise != "" {
		c.AdvertiseAddr = advertise
	}
	if loglevel := os.Getenv("LOGLEVEL"); loglevel != "" {
		c.LogLevel = loglevel
	}
	if logfile := os.Getenv("LOGFILE"); logfile != "" {
		c.LogFile = logfile
	}
	if node := os.Getenv("NODE_ID"); node != "" {
		c.NodeID = node
	}
	if trunk := os.Getenv("TRUNK_ADDR"); trunk != "" {
		c.TrunkAddress = trunk
	}
	if stun := os.Getenv("STUN_SERVER"); stun != "" {
		c.STUNServer = stun
	}
	if metrics := os.Getenv("METRICS_ADDR"); metrics != "" {
		c.MetricsAddr = metrics
	}
}

// isValidAddress checks if the address is a valid IP or resolvable hostname
func isValidAddress(addr string) bool {
	if ip := net.ParseIP(addr); ip != nil {
		return true
	}
	if ips, err := net.LookupIP(addr); err == nil && len(ips) > 0 {
		return true
	}
	return false
}

// getPrimaryInterfaceIP detects the primary network interface IP address
func getPrimaryInterfaceIP() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}

	return "127.0.0.1"
}
