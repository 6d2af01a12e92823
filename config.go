//----------------------------------------------------------------------
// This file is part of scanblink.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// scanblink is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// scanblink is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package scanblink

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"time"
)

// timing in time-units
const (
	ScanTicks      = 5 // scan every 5 units
	HeartbeatTicks = 1 // toggle outputs every unit
)

// Error messages
var (
	ErrPort = errors.New("invalid port")
	ErrIP   = errors.New("invalid IP address")
)

// Config of the firmware. All values are fixed at build time; there
// is no runtime reconfiguration.
type Config struct {
	SSID   string     // network to join (empty: scan only)
	Passwd string     // shared secret of the network
	Host   string     // DHCP hostname
	IP     netip.Addr // requested (or fallback static) address
	Port   uint16     // 9p diagnostics port (0: disabled)

	Unit time.Duration // length of one time-unit
}

// NewConfig parses the build-time strings. Empty ip and port strings
// are allowed and disable the respective feature.
func NewConfig(ssid, passwd, host, ip, port string) (cfg *Config, err error) {
	cfg = &Config{
		SSID:   ssid,
		Passwd: passwd,
		Host:   host,
		Unit:   time.Second,
	}
	if len(ip) > 0 {
		if cfg.IP, err = netip.ParseAddr(ip); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrIP, ip)
		}
	}
	if len(port) > 0 {
		var p uint64
		if p, err = strconv.ParseUint(port, 10, 16); err != nil || p == 0 {
			return nil, fmt.Errorf("%w: %q", ErrPort, port)
		}
		cfg.Port = uint16(p)
	}
	return cfg, nil
}

// ScanInterval between two scans of the supervisor.
func (cfg *Config) ScanInterval() time.Duration {
	return ScanTicks * cfg.unit()
}

// HeartbeatPeriod between two output toggles.
func (cfg *Config) HeartbeatPeriod() time.Duration {
	return HeartbeatTicks * cfg.unit()
}

// Diagnostics returns true if the 9p diagnostics server is enabled.
func (cfg *Config) Diagnostics() bool {
	return cfg.Port != 0
}

func (cfg *Config) unit() time.Duration {
	if cfg.Unit <= 0 {
		return time.Second
	}
	return cfg.Unit
}
