// Package config loads the TOML configuration shared by the programs.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/omochice/netstream/internal/logging"
	"github.com/omochice/netstream/internal/server"
	"github.com/omochice/netstream/internal/transport/tcp"
	"github.com/omochice/netstream/internal/transport/udp"
	"github.com/omochice/netstream/internal/transport/ws"
	"github.com/omochice/netstream/pkg/stream"
)

// DefaultPort is used by TCP, UDP and WebSocket unless configured.
const DefaultPort = 9050

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

type TCPConfig struct {
	Host        string
	Port        uint16
	DialTimeout time.Duration
}

type UDPConfig struct {
	Host string
	Port uint16
}

type WSConfig struct {
	Host string
	Port uint16
	Path string
}

type ServerConfig struct {
	AcceptWait time.Duration
	// Workers sizes the executor pool; zero runs one goroutine per connection.
	Workers         int
	DetectWebSocket bool
	DetectWait      time.Duration
}

type CodecConfig struct {
	ByteOrder  string
	MaxLength  int
	BufferSize int
}

// Config is the full program configuration.
type Config struct {
	Log    logging.Config
	TCP    TCPConfig
	UDP    UDPConfig
	WS     WSConfig
	Server ServerConfig
	Codec  CodecConfig
}

func Default() Config {
	return Config{
		Log: logging.DefaultConfig(),
		TCP: TCPConfig{
			Host:        "127.0.0.1",
			Port:        DefaultPort,
			DialTimeout: tcp.DefaultDialTimeout,
		},
		UDP: UDPConfig{
			Host: "127.0.0.1",
			Port: DefaultPort,
		},
		WS: WSConfig{
			Host: "127.0.0.1",
			Port: DefaultPort,
			Path: "/",
		},
		Server: ServerConfig{
			AcceptWait: server.DefaultAcceptWait,
			DetectWait: server.DefaultDetectWait,
		},
		Codec: CodecConfig{
			ByteOrder:  "big",
			MaxLength:  stream.DefaultMaxLength,
			BufferSize: stream.DefaultBufferSize,
		},
	}
}

type fileConfig struct {
	Log struct {
		Level   string `toml:"level"`
		Format  string `toml:"format"`
		NoColor bool   `toml:"no_color"`
	} `toml:"log"`
	TCP struct {
		Host        string `toml:"host"`
		Port        int    `toml:"port"`
		DialTimeout string `toml:"dial_timeout"`
	} `toml:"tcp"`
	UDP struct {
		Host string `toml:"host"`
		Port int    `toml:"port"`
	} `toml:"udp"`
	WS struct {
		Host string `toml:"host"`
		Port int    `toml:"port"`
		Path string `toml:"path"`
	} `toml:"ws"`
	Server struct {
		AcceptWait      string `toml:"accept_wait"`
		Workers         int    `toml:"workers"`
		DetectWebSocket bool   `toml:"detect_websocket"`
		DetectWait      string `toml:"detect_wait"`
	} `toml:"server"`
	Codec struct {
		ByteOrder  string `toml:"byte_order"`
		MaxLength  int    `toml:"max_length"`
		BufferSize int    `toml:"buffer_size"`
	} `toml:"codec"`
}

// Load reads path on top of Default. Keys absent from the file keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %s", ErrInvalid, undecoded[0])
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.TrimSpace(raw.Log.Format)
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}

	if meta.IsDefined("tcp", "host") {
		cfg.TCP.Host = strings.TrimSpace(raw.TCP.Host)
	}
	if meta.IsDefined("tcp", "port") {
		if cfg.TCP.Port, err = parsePort("tcp.port", raw.TCP.Port); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("tcp", "dial_timeout") {
		if cfg.TCP.DialTimeout, err = parseDuration("tcp.dial_timeout", raw.TCP.DialTimeout); err != nil {
			return Config{}, err
		}
	}

	if meta.IsDefined("udp", "host") {
		cfg.UDP.Host = strings.TrimSpace(raw.UDP.Host)
	}
	if meta.IsDefined("udp", "port") {
		if cfg.UDP.Port, err = parsePort("udp.port", raw.UDP.Port); err != nil {
			return Config{}, err
		}
	}

	if meta.IsDefined("ws", "host") {
		cfg.WS.Host = strings.TrimSpace(raw.WS.Host)
	}
	if meta.IsDefined("ws", "port") {
		if cfg.WS.Port, err = parsePort("ws.port", raw.WS.Port); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("ws", "path") {
		cfg.WS.Path = strings.TrimSpace(raw.WS.Path)
	}

	if meta.IsDefined("server", "accept_wait") {
		if cfg.Server.AcceptWait, err = parseDuration("server.accept_wait", raw.Server.AcceptWait); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("server", "workers") {
		cfg.Server.Workers = raw.Server.Workers
	}
	if meta.IsDefined("server", "detect_websocket") {
		cfg.Server.DetectWebSocket = raw.Server.DetectWebSocket
	}
	if meta.IsDefined("server", "detect_wait") {
		if cfg.Server.DetectWait, err = parseDuration("server.detect_wait", raw.Server.DetectWait); err != nil {
			return Config{}, err
		}
	}

	if meta.IsDefined("codec", "byte_order") {
		cfg.Codec.ByteOrder = strings.TrimSpace(raw.Codec.ByteOrder)
	}
	if meta.IsDefined("codec", "max_length") {
		cfg.Codec.MaxLength = raw.Codec.MaxLength
	}
	if meta.IsDefined("codec", "buffer_size") {
		cfg.Codec.BufferSize = raw.Codec.BufferSize
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	if c.Server.AcceptWait <= 0 {
		return fmt.Errorf("%w: server.accept_wait must be positive", ErrInvalid)
	}
	if c.Server.DetectWait <= 0 {
		return fmt.Errorf("%w: server.detect_wait must be positive", ErrInvalid)
	}
	if c.Server.Workers < 0 {
		return fmt.Errorf("%w: server.workers must not be negative", ErrInvalid)
	}
	if _, err := stream.ParseOrder(c.Codec.ByteOrder); err != nil {
		return fmt.Errorf("%w: codec.byte_order: %w", ErrInvalid, err)
	}
	if c.Codec.MaxLength < 0 {
		return fmt.Errorf("%w: codec.max_length must not be negative", ErrInvalid)
	}
	if c.Codec.BufferSize < 0 {
		return fmt.Errorf("%w: codec.buffer_size must not be negative", ErrInvalid)
	}
	return nil
}

func parsePort(key string, v int) (uint16, error) {
	if v < 0 || v > 65535 {
		return 0, fmt.Errorf("%w: %s %d out of range", ErrInvalid, key, v)
	}
	return uint16(v), nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %w", ErrInvalid, key, err)
	}
	return d, nil
}

// Order returns the configured byte order; Validate guarantees it parses.
func (c Config) Order() stream.Order {
	order, err := stream.ParseOrder(c.Codec.ByteOrder)
	if err != nil {
		return stream.BigEndian
	}
	return order
}

// DataOptions returns the codec options for readers and writers.
func (c Config) DataOptions() []stream.DataOption {
	return []stream.DataOption{stream.WithMaxLength(c.Codec.MaxLength)}
}

func (c Config) TCPEndpoint() tcp.Endpoint {
	return tcp.Endpoint{Host: c.TCP.Host, Port: c.TCP.Port}
}

func (c Config) UDPServerEndpoint() udp.Endpoint {
	return udp.ServerEndpoint(c.UDP.Host, c.UDP.Port)
}

func (c Config) UDPClientEndpoint() udp.Endpoint {
	return udp.ClientEndpoint(c.UDP.Host, c.UDP.Port)
}

// UDPClientEndpointOn targets port on the configured UDP host, for servers
// bound to an ephemeral port.
func (c Config) UDPClientEndpointOn(port uint16) udp.Endpoint {
	return udp.ClientEndpoint(c.UDP.Host, port)
}

func (c Config) WSEndpoint() ws.Endpoint {
	return ws.Endpoint{Host: c.WS.Host, Port: c.WS.Port, Path: c.WS.Path}
}

// ServerConfig returns the accept loop settings.
func (c Config) ServerConfig() server.Config {
	return server.Config{
		Endpoint:        c.TCPEndpoint(),
		AcceptWait:      c.Server.AcceptWait,
		DetectWebSocket: c.Server.DetectWebSocket,
		DetectWait:      c.Server.DetectWait,
	}
}
