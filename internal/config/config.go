/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package config loads and validates node configuration for both the
RLog and BOrder clusters. No environment variables and no persisted
state are read; a node's identity, peer list, and protocol-specific
knobs all come from a config file or explicit flags passed at startup.
*/
package config

import (
	"encoding/json"
	"os"
	"time"

	"rlogborder/internal/errors"
)

// Protocol selects which consensus state machine a node runs.
type Protocol string

const (
	ProtocolRLog   Protocol = "rlog"
	ProtocolBOrder Protocol = "border"
)

// Config holds everything a node needs to start: its identity, its
// peers, and the timing knobs §4 of the design calls out by reference
// value (election timeout bounds, heartbeat interval, RPC timeout).
type Config struct {
	Protocol Protocol `json:"protocol"`

	NodeID     string `json:"node_id"`
	ListenAddr string `json:"listen_addr"`
	Peers      []Peer `json:"peers"`

	// RLog-only.
	ElectionTimeoutLo time.Duration `json:"election_timeout_lo"`
	ElectionTimeoutHi time.Duration `json:"election_timeout_hi"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	ElectionGrace     time.Duration `json:"election_grace"`

	// BOrder-only.
	IsPrimary bool `json:"is_primary"`

	RPCTimeout time.Duration `json:"rpc_timeout"`

	LogLevel string `json:"log_level"`
	LogJSON  bool   `json:"log_json"`
}

// Peer names one other cluster member.
type Peer struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// DefaultConfig returns a Config with the reference timing values from
// spec §4.1/§5: a 5s-10s election timeout range, a 1s heartbeat period,
// a 10s startup grace period, and 1-2s RPC timeouts.
func DefaultConfig() *Config {
	return &Config{
		Protocol:          ProtocolRLog,
		ListenAddr:        "0.0.0.0:8000",
		ElectionTimeoutLo: 5 * time.Second,
		ElectionTimeoutHi: 10 * time.Second,
		HeartbeatInterval: 1 * time.Second,
		ElectionGrace:     10 * time.Second,
		RPCTimeout:        2 * time.Second,
		LogLevel:          "info",
		LogJSON:           false,
	}
}

// Load reads and validates a Config from a JSON file, layering it over
// DefaultConfig so a file only needs to set what it overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Config("failed to read config file").WithCause(err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Config("failed to parse config file").WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent
// enough to start a node. It never dials a peer or touches the
// network; it's a pure sanity check on the loaded values.
func (c *Config) Validate() error {
	if c.Protocol != ProtocolRLog && c.Protocol != ProtocolBOrder {
		return errors.Config("protocol must be 'rlog' or 'border'")
	}
	if c.NodeID == "" {
		return errors.Config("node_id is required")
	}
	if c.ListenAddr == "" {
		return errors.Config("listen_addr is required")
	}
	for _, p := range c.Peers {
		if p.ID == "" || p.Addr == "" {
			return errors.Config("every peer requires both id and addr")
		}
		if p.ID == c.NodeID {
			return errors.Config("peer list must not include self")
		}
	}

	if c.Protocol == ProtocolRLog {
		if c.ElectionTimeoutLo <= 0 || c.ElectionTimeoutHi <= 0 {
			return errors.Config("election timeout bounds must be positive")
		}
		if c.ElectionTimeoutHi < 2*c.ElectionTimeoutLo {
			return errors.Config("election timeout hi must be at least 2x lo")
		}
		if c.HeartbeatInterval <= 0 {
			return errors.Config("heartbeat_interval must be positive")
		}
	}

	if c.RPCTimeout <= 0 {
		return errors.Config("rpc_timeout must be positive")
	}

	return nil
}

// AddressOf returns the address of the peer with the given id, and
// whether that peer is known. The RLog and BOrder nodes build their own
// id -> address map from Peers at construction and do not call this.
func (c *Config) AddressOf(id string) (string, bool) {
	for _, p := range c.Peers {
		if p.ID == id {
			return p.Addr, true
		}
	}
	return "", false
}
