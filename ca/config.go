package ca

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the client-side network environment. Field semantics and
// defaults follow the EPICS_CA_* environment variables; a TOML file may set
// the same knobs, with the environment overriding it.
type Config struct {
	// AddrList is the explicit list of search destinations, each "host" or
	// "host:port". Entries without a port use ServerPort.
	AddrList []string `toml:"addr_list"`

	// AutoAddrList adds the broadcast address of every attached subnet to
	// the search destinations.
	AutoAddrList bool `toml:"auto_addr_list"`

	ServerPort   uint16 `toml:"server_port"`
	RepeaterPort uint16 `toml:"repeater_port"`

	// MaxArrayBytes bounds the payload a single request may carry.
	MaxArrayBytes int `toml:"max_array_bytes"`

	// ConnTimeout is the circuit inactivity timeout in seconds.
	ConnTimeout float64 `toml:"conn_tmo"`

	// BeaconPeriod is the expected server beacon interval in seconds.
	BeaconPeriod float64 `toml:"beacon_period"`

	// MaxSearchPeriod caps the search retry backoff in seconds.
	MaxSearchPeriod float64 `toml:"max_search_period"`
}

// DefaultConfig returns the protocol defaults.
func DefaultConfig() Config {
	return Config{
		AutoAddrList:    true,
		ServerPort:      DefaultServerPort,
		RepeaterPort:    DefaultRepeaterPort,
		MaxArrayBytes:   16384,
		ConnTimeout:     30,
		BeaconPeriod:    15,
		MaxSearchPeriod: 300,
	}
}

// ApplyEnv overlays the EPICS_CA_* environment onto c. Every malformed
// variable is reported; well-formed ones still apply.
func (c *Config) ApplyEnv() error {
	var errs []error
	if v, ok := os.LookupEnv("EPICS_CA_ADDR_LIST"); ok {
		c.AddrList = strings.Fields(v)
	}
	if v, ok := os.LookupEnv("EPICS_CA_AUTO_ADDR_LIST"); ok {
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "YES":
			c.AutoAddrList = true
		case "NO":
			c.AutoAddrList = false
		default:
			errs = append(errs, fmt.Errorf("ca: EPICS_CA_AUTO_ADDR_LIST must be YES or NO, have %q", v))
		}
	}
	envPort(&errs, "EPICS_CA_SERVER_PORT", &c.ServerPort)
	envPort(&errs, "EPICS_CA_REPEATER_PORT", &c.RepeaterPort)
	if v, ok := os.LookupEnv("EPICS_CA_MAX_ARRAY_BYTES"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("ca: EPICS_CA_MAX_ARRAY_BYTES: %w", err))
		} else {
			c.MaxArrayBytes = n
		}
	}
	envSeconds(&errs, "EPICS_CA_CONN_TMO", &c.ConnTimeout)
	envSeconds(&errs, "EPICS_CA_BEACON_PERIOD", &c.BeaconPeriod)
	envSeconds(&errs, "EPICS_CA_MAX_SEARCH_PERIOD", &c.MaxSearchPeriod)
	return errors.Join(errs...)
}

func envPort(errs *[]error, name string, dst *uint16) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 16)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("ca: %s: %w", name, err))
		return
	}
	*dst = uint16(n)
}

func envSeconds(errs *[]error, name string, dst *float64) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("ca: %s: %w", name, err))
		return
	}
	*dst = f
}

// LoadConfig reads a TOML file over the defaults, applies the environment on
// top, and validates the result. Unknown keys in the file are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("ca: read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("ca: unknown config keys in %s: %v", path, undecoded)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the protocol bounds.
func (c Config) Validate() error {
	var errs []error
	if c.ServerPort == 0 {
		errs = append(errs, errors.New("ca: server_port must be nonzero"))
	}
	if c.RepeaterPort == 0 {
		errs = append(errs, errors.New("ca: repeater_port must be nonzero"))
	}
	if c.ServerPort != 0 && c.ServerPort == c.RepeaterPort {
		errs = append(errs, errors.New("ca: server_port and repeater_port must differ"))
	}
	if c.MaxArrayBytes < BlockCapacity {
		errs = append(errs, fmt.Errorf("ca: max_array_bytes %d below the protocol minimum %d", c.MaxArrayBytes, BlockCapacity))
	}
	if c.ConnTimeout <= 0 {
		errs = append(errs, errors.New("ca: conn_tmo must be positive"))
	}
	if c.BeaconPeriod <= 0 {
		errs = append(errs, errors.New("ca: beacon_period must be positive"))
	}
	if c.MaxSearchPeriod <= 0 {
		errs = append(errs, errors.New("ca: max_search_period must be positive"))
	}
	for _, entry := range c.AddrList {
		if strings.TrimSpace(entry) == "" {
			errs = append(errs, errors.New("ca: empty addr_list entry"))
		}
	}
	return errors.Join(errs...)
}

// SearchDestinations resolves the configured address list and, when
// AutoAddrList is set, appends each attached subnet's broadcast address.
// Duplicates collapse; every destination carries an explicit port.
func (c Config) SearchDestinations() ([]net.Addr, error) {
	var out []net.Addr
	seen := make(map[netip.AddrPort]bool)
	add := func(ap netip.AddrPort) {
		if !seen[ap] {
			seen[ap] = true
			out = append(out, net.UDPAddrFromAddrPort(ap))
		}
	}
	for _, entry := range c.AddrList {
		ap, err := c.resolveEntry(entry)
		if err != nil {
			return nil, err
		}
		add(ap)
	}
	if c.AutoAddrList {
		bcasts, err := BroadcastDestinations(netip.Addr{})
		if err != nil {
			return nil, err
		}
		for _, a := range bcasts {
			add(netip.AddrPortFrom(a, c.ServerPort))
		}
	}
	if len(out) == 0 {
		return nil, ErrNoDestinations
	}
	return out, nil
}

// resolveEntry turns one addr_list entry into an IPv4 destination, using the
// system resolver for names.
func (c Config) resolveEntry(entry string) (netip.AddrPort, error) {
	host := entry
	port := c.ServerPort
	if h, p, err := net.SplitHostPort(entry); err == nil {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return netip.AddrPort{}, fmt.Errorf("ca: addr_list entry %q: %w", entry, err)
		}
		host, port = h, uint16(n)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return netip.AddrPortFrom(addr.Unmap(), port), nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("ca: resolve addr_list entry %q: %w", entry, err)
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			if a, ok := netip.AddrFromSlice(ip4); ok {
				return netip.AddrPortFrom(a, port), nil
			}
		}
	}
	return netip.AddrPort{}, fmt.Errorf("ca: no IPv4 address for addr_list entry %q", entry)
}
