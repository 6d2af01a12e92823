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
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"time"
)

// Device is a hardware abstraction. It hands out the capabilities the
// firmware tasks consume; each capability is requested once during
// bootstrap.
type Device interface {
	// LED on or off (if applicable)
	LED(on bool)

	// LogWriter is the transport for diagnostic output.
	LogWriter() io.Writer

	// Timer used by all tasks for their suspension points.
	Timer() Timer

	// NewController initializes the radio driver.
	NewController(logger *slog.Logger) (Controller, error)

	// NewStack constructs the network stack with the resources
	// reserved in pool. It returns the runner to pump and the stack
	// handle used to open listeners.
	NewStack(pool *Pool, logger *slog.Logger) (StackRunner, Stack, error)

	// Outputs returns the configured indicator output lines.
	Outputs() ([]Output, error)
}

// Configurer is implemented by devices that need the build-time
// configuration before bootstrap.
type Configurer interface {
	Configure(cfg *Config)
}

// Reserver is implemented by devices that keep stack resources of
// their own. Reserve is called after the firmware reservations.
type Reserver interface {
	Reserve(pool *Pool) error
}

// ErrScanUnsupported is returned by controllers whose driver can't
// scan.
var ErrScanUnsupported = errors.New("scan not supported by driver")

//----------------------------------------------------------------------

// Mode of the radio controller
type Mode int

// radio modes
const (
	ModeUnset       Mode = iota // no mode configured yet
	ModeStation                 // client joining an existing network
	ModeAccessPoint             // hosting a network
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeStation:
		return "station"
	case ModeAccessPoint:
		return "access-point"
	}
	return "unset"
}

// Capabilities is the set of modes a controller supports.
type Capabilities []Mode

// Has returns true if the mode is supported.
func (c Capabilities) Has(m Mode) bool {
	for _, mode := range c {
		if mode == m {
			return true
		}
	}
	return false
}

// String lists the supported modes.
func (c Capabilities) String() string {
	names := make([]string, len(c))
	for i, m := range c {
		names[i] = m.String()
	}
	return "[" + strings.Join(names, ",") + "]"
}

// ScanConfig parameterizes a network scan. The zero value scans all
// channels for all visible networks.
type ScanConfig struct {
	SSID       string // only report networks with this name (if set)
	ShowHidden bool   // include networks without a broadcast name
}

// Network is a single record of a scan result.
type Network struct {
	SSID    string
	BSSID   [6]byte
	Channel uint8
	RSSI    int8
}

//----------------------------------------------------------------------

// Controller is the exclusive capability to configure and drive the
// radio. Implementations are not reentrant: only one task may hold it.
type Controller interface {
	// Capabilities of the radio
	Capabilities() Capabilities

	// SetMode must be called before Start.
	SetMode(mode Mode) error

	// Start the radio. Blocks (suspends) until the radio is up.
	Start(ctx context.Context) error

	// IsStarted reports if the radio is running.
	IsStarted() (bool, error)

	// Scan for nearby networks. Only valid while started.
	Scan(ctx context.Context, cfg ScanConfig) ([]Network, error)
}

// Associator is implemented by controllers that can join a network.
type Associator interface {
	Join(ctx context.Context, ssid, passwd string) error
	IsJoined() bool
}

// StackRunner drives the packet processing of the network stack.
type StackRunner interface {
	// Drive performs one processing step. It suspends while there is
	// no packet or timer work pending.
	Drive(ctx context.Context)
}

// Stack is the handle to the network stack used by services.
type Stack interface {
	// Listen returns a TCP listener on the given port. It fails while
	// the stack has no address.
	Listen(ctx context.Context, port uint16) (net.Listener, error)
}

// Addresser is implemented by stacks that must obtain an address
// after the radio joined a network.
type Addresser interface {
	// RequestAddr runs address acquisition (DHCP) and returns the
	// address assigned to the stack.
	RequestAddr(ctx context.Context) (netip.Addr, error)
}

// Output is a single digital output line.
type Output interface {
	Toggle()
	Set(on bool)
	Level() bool
}

// Timer is the monotonic time source of the scheduler.
type Timer interface {
	// Sleep suspends the calling task for d. It returns early with the
	// context error if ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}
