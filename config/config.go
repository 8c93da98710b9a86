// Package config loads the YAML configuration for a SoupBinTCP server or
// client process: credentials, session id, heartbeat and timeout tuning,
// and the etcd endpoints used for venue registration/discovery.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/softstream-link/soupbintcp/message/fields"
)

// Config is the top-level process configuration.
type Config struct {
	Session SessionConfig `yaml:"session"`
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Etcd    EtcdConfig    `yaml:"etcd"`
	Logs    LogsConfig    `yaml:"logs"`
}

// SessionConfig carries the credentials and session id shared by both the
// server and client sides of one SoupBinTCP session.
type SessionConfig struct {
	Username             string        `yaml:"username"`
	Password             string        `yaml:"password"`
	SessionID            string        `yaml:"session_id"`
	MaxHbeatSendInterval time.Duration `yaml:"max_hbeat_send_interval"`
	IOTimeout            time.Duration `yaml:"io_timeout"`
	PollTimeout          time.Duration `yaml:"poll_timeout"`
	MaxBodySize          int           `yaml:"max_body_size"`
}

// ServerConfig configures the listening side.
type ServerConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	AdvertiseAddr string `yaml:"advertise_addr"`
	RegisterTTL   int64  `yaml:"register_ttl"`
}

// ClientConfig configures the dialing side.
type ClientConfig struct {
	StartSeq        uint64        `yaml:"start_seq"`
	MaxRecvInterval time.Duration `yaml:"max_recv_interval"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	Balancer        string        `yaml:"balancer"` // "round_robin" or "weighted_random"
}

// EtcdConfig configures the venue registry backing store.
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"`
}

// LogsConfig configures logrus output.
type LogsConfig struct {
	Level string `yaml:"level"`
}

// Load reads path, overlaying it onto sane defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Session: SessionConfig{
			MaxHbeatSendInterval: 2500 * time.Millisecond,
			IOTimeout:            time.Second,
			PollTimeout:          20 * time.Millisecond,
		},
		Server: ServerConfig{
			ListenAddr:  ":0",
			RegisterTTL: 10,
		},
		Client: ClientConfig{
			MaxRecvInterval: 15 * time.Second,
			DialTimeout:     3 * time.Second,
			Balancer:        "round_robin",
		},
		Etcd: EtcdConfig{
			Endpoints: []string{"localhost:2379"},
		},
		Logs: LogsConfig{
			Level: "info",
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UserName encodes Session.Username into the wire's fixed-width field.
func (c *Config) UserName() (fields.UserName, error) { return fields.NewUserName(c.Session.Username) }

// Password encodes Session.Password into the wire's fixed-width field.
func (c *Config) Password() (fields.Password, error) { return fields.NewPassword(c.Session.Password) }

// SessionID encodes Session.SessionID into the wire's fixed-width field.
func (c *Config) SessionID() (fields.SessionID, error) { return fields.NewSessionID(c.Session.SessionID) }

// StartSeq encodes Client.StartSeq into the wire's fixed-width field.
func (c *Config) StartSeq() fields.SequenceNumber { return fields.NewSequenceNumber(c.Client.StartSeq) }
