package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/buckleypaul/doorlink/internal/auth"
	"github.com/buckleypaul/doorlink/internal/link"
)

const (
	DefaultDeviceName     = "HC05"
	DefaultChannel        = 1
	DefaultBaudRate       = 9600
	DefaultTransport      = link.TransportRFCOMM
	DefaultConnectTimeout = 10 * time.Second
	DefaultWriteTimeout   = 2 * time.Second
	DefaultQueueSize      = 16
	DefaultLogLevel       = "info"
	DefaultLogFile        = "doorlink.log"

	dirName = ".doorlink"
)

// Duration is a time.Duration that reads and writes as "10s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds all doorlink configuration.
type Config struct {
	DeviceName     string          `json:"device_name,omitempty"`
	PeerAddress    string          `json:"peer_address,omitempty"`
	Channel        int             `json:"rfcomm_channel,omitempty"`
	ServiceUUID    string          `json:"service_uuid,omitempty"`
	Transport      string          `json:"transport,omitempty"`
	SerialPort     string          `json:"serial_port,omitempty"`
	SerialBaudRate int             `json:"serial_baud_rate,omitempty"`
	ConnectTimeout Duration        `json:"connect_timeout,omitempty"`
	WriteTimeout   Duration        `json:"write_timeout,omitempty"`
	QueueSize      int             `json:"queue_size,omitempty"`
	PIN            string          `json:"pin,omitempty"`
	Phrases        []auth.RuleSpec `json:"phrases,omitempty"`
	LogLevel       string          `json:"log_level,omitempty"`
	LogFile        string          `json:"log_file,omitempty"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		DeviceName:     DefaultDeviceName,
		Channel:        DefaultChannel,
		ServiceUUID:    link.SerialPortProfile,
		Transport:      DefaultTransport,
		SerialBaudRate: DefaultBaudRate,
		ConnectTimeout: Duration(DefaultConnectTimeout),
		WriteTimeout:   Duration(DefaultWriteTimeout),
		QueueSize:      DefaultQueueSize,
		PIN:            auth.DefaultPIN,
		Phrases:        auth.DefaultRules(),
		LogLevel:       DefaultLogLevel,
		LogFile:        DefaultLogFile,
	}
}

// Dir returns the local state directory under root.
func Dir(root string) string {
	return filepath.Join(root, dirName)
}

// Load reads and merges global and local configs.
// Order: defaults → global (~/.config/doorlink/config.json) → local (.doorlink/config.json).
func Load(root string) Config {
	cfg := Defaults()

	if home, err := os.UserHomeDir(); err == nil {
		globalPath := filepath.Join(home, ".config", "doorlink", "config.json")
		mergeFromFile(&cfg, globalPath)
	}

	if root != "" {
		mergeFromFile(&cfg, filepath.Join(Dir(root), "config.json"))
	}

	return cfg
}

// Save writes the config to .doorlink/config.json under root by default,
// or to the global config if global is true.
func Save(cfg Config, root string, global bool) error {
	var dir string
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, ".config", "doorlink")
	} else {
		dir = Dir(root)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// The file holds the PIN.
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o600)
}

// Validate reports the first setting that would keep a link from being built.
func (c Config) Validate() error {
	switch c.Transport {
	case link.TransportRFCOMM:
		if c.PeerAddress == "" {
			return errors.New("peer_address is not set")
		}
		if _, err := link.ParseAddress(c.PeerAddress); err != nil {
			return err
		}
		if c.Channel < 1 || c.Channel > 30 {
			return fmt.Errorf("rfcomm_channel %d out of range 1-30", c.Channel)
		}
	case link.TransportSerial:
		if c.SerialPort == "" {
			return errors.New("serial_port is not set")
		}
		if c.SerialBaudRate <= 0 {
			return fmt.Errorf("invalid serial_baud_rate %d", c.SerialBaudRate)
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if _, err := uuid.Parse(c.ServiceUUID); err != nil {
		return fmt.Errorf("service_uuid: %w", err)
	}
	if c.ConnectTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy builds the authorization policy from the phrase rules and PIN.
func (c Config) Policy() (*auth.Policy, error) {
	return auth.New(c.Phrases, c.PIN)
}

// Peer resolves the configured device into a link peer.
func (c Config) Peer() link.Peer {
	return link.Peer{
		Name:        c.DeviceName,
		Address:     c.PeerAddress,
		Channel:     uint8(c.Channel),
		ServiceUUID: c.ServiceUUID,
		Device:      c.SerialPort,
	}
}

// LinkOptions returns the timeouts and queue size for new links.
func (c Config) LinkOptions() link.Options {
	return link.Options{
		ConnectTimeout: time.Duration(c.ConnectTimeout),
		WriteTimeout:   time.Duration(c.WriteTimeout),
		QueueSize:      c.QueueSize,
	}
}

// LogPath resolves LogFile relative to the local state directory.
func (c Config) LogPath(root string) string {
	if c.LogFile == "" || filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(Dir(root), c.LogFile)
}

func mergeFromFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return
	}

	if fileCfg.DeviceName != "" {
		cfg.DeviceName = fileCfg.DeviceName
	}
	if fileCfg.PeerAddress != "" {
		cfg.PeerAddress = fileCfg.PeerAddress
	}
	if fileCfg.Channel != 0 {
		cfg.Channel = fileCfg.Channel
	}
	if fileCfg.ServiceUUID != "" {
		cfg.ServiceUUID = fileCfg.ServiceUUID
	}
	if fileCfg.Transport != "" {
		cfg.Transport = fileCfg.Transport
	}
	if fileCfg.SerialPort != "" {
		cfg.SerialPort = fileCfg.SerialPort
	}
	if fileCfg.SerialBaudRate != 0 {
		cfg.SerialBaudRate = fileCfg.SerialBaudRate
	}
	if fileCfg.ConnectTimeout != 0 {
		cfg.ConnectTimeout = fileCfg.ConnectTimeout
	}
	if fileCfg.WriteTimeout != 0 {
		cfg.WriteTimeout = fileCfg.WriteTimeout
	}
	if fileCfg.QueueSize != 0 {
		cfg.QueueSize = fileCfg.QueueSize
	}
	if fileCfg.PIN != "" {
		cfg.PIN = fileCfg.PIN
	}
	if len(fileCfg.Phrases) > 0 {
		cfg.Phrases = fileCfg.Phrases
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogFile != "" {
		cfg.LogFile = fileCfg.LogFile
	}
}
