//go:build rp2350

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
	"fmt"
	"io"
	"log/slog"
	"machine"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/stacks"
)

// Error messages
var (
	errModeUnset       = errors.New("mode not set")
	errNotStarted      = errors.New("radio not started")
	errUnsupported     = errors.New("mode not supported")
	errDHCP            = errors.New("no DHCP reply")
	errNoAddr          = errors.New("no address assigned")
)

// heartbeat output lines
var outputPins = []machine.Pin{machine.GP11, machine.GP4}

const mtu = cyw43439.MTU

// Raspberry Pico2 W  [RP2350]
type Pico2WDevice struct {
	ref *cyw43439.Device // reference to device
	cfg *Config          // build-time configuration
}

// LED on or off (if applicable)
func (dev *Pico2WDevice) LED(on bool) {
	dev.ref.GPIOSet(0, on)
}

// Initialize device
func InitDevice() Device {
	dev := new(Pico2WDevice)
	dev.ref = cyw43439.NewPicoWDevice()
	return dev
}

// Configure passes the build-time configuration needed by the stack
// (hostname and requested address for DHCP).
func (dev *Pico2WDevice) Configure(cfg *Config) {
	dev.cfg = cfg
}

// LogWriter is the USB serial port.
func (dev *Pico2WDevice) LogWriter() io.Writer {
	return machine.Serial
}

// Timer on the runtime clock; sleeping yields to the scheduler.
func (dev *Pico2WDevice) Timer() Timer {
	return ClockTimer{}
}

// NewController initializes the CYW43439 (firmware upload and bus
// setup). A failure here is fatal.
func (dev *Pico2WDevice) NewController(logger *slog.Logger) (Controller, error) {
	wificfg := cyw43439.DefaultWifiConfig()
	wificfg.Logger = logger
	logger.Info("initializing pico W device...")
	devInitTime := time.Now()
	if err := dev.ref.Init(wificfg); err != nil {
		return nil, fmt.Errorf("cyw43439 init: %w", err)
	}
	logger.Info("cyw43439:Init", slog.Duration("duration", time.Since(devInitTime)))
	return &picoController{ref: dev.ref}, nil
}

// NewStack creates the port stack sized by the reserved resources and
// hooks it up to the NIC.
func (dev *Pico2WDevice) NewStack(pool *Pool, logger *slog.Logger) (StackRunner, Stack, error) {
	mac, err := dev.ref.HardwareAddr6()
	if err != nil {
		return nil, nil, fmt.Errorf("hardware address: %w", err)
	}
	stack := stacks.NewPortStack(stacks.PortStackConfig{
		MAC:             mac,
		MaxOpenPortsUDP: pool.Count(SlotUDP),
		MaxOpenPortsTCP: pool.Count(SlotTCP),
		MTU:             mtu,
		Logger:          logger,
	})
	dev.ref.RecvEthHandle(stack.RecvEth)

	ps := &picoStack{
		stack:  stack,
		logger: logger,
	}
	if dev.cfg != nil {
		ps.host = dev.cfg.Host
		ps.reqAddr = dev.cfg.IP
	}
	return &nicRunner{ref: dev.ref, stack: stack}, ps, nil
}

// Outputs configures the heartbeat pins as push-pull outputs, high.
func (dev *Pico2WDevice) Outputs() ([]Output, error) {
	outs := make([]Output, len(outputPins))
	for i, pin := range outputPins {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		out := &pinOutput{pin: pin}
		out.Set(true)
		outs[i] = out
	}
	return outs, nil
}

//----------------------------------------------------------------------

// picoController drives the CYW43439 in station mode.
type picoController struct {
	ref     *cyw43439.Device
	mode    Mode
	started bool
	joined  bool
}

func (c *picoController) Capabilities() Capabilities {
	return Capabilities{ModeStation}
}

func (c *picoController) SetMode(mode Mode) error {
	if mode != ModeStation {
		return fmt.Errorf("%w: %s", errUnsupported, mode)
	}
	c.mode = mode
	return nil
}

// Start checks the chip answers on the bus; the driver brings up the
// station interface during Init.
func (c *picoController) Start(ctx context.Context) error {
	if c.mode == ModeUnset {
		return errModeUnset
	}
	if _, err := c.ref.HardwareAddr6(); err != nil {
		return fmt.Errorf("radio start: %w", err)
	}
	c.started = true
	return ctx.Err()
}

func (c *picoController) IsStarted() (bool, error) {
	return c.started, nil
}

// Scan is not available in the pinned driver revision.
func (c *picoController) Scan(_ context.Context, _ ScanConfig) ([]Network, error) {
	if !c.started {
		return nil, errNotStarted
	}
	return nil, ErrScanUnsupported
}

func (c *picoController) Join(_ context.Context, ssid, passwd string) error {
	if !c.started {
		return errNotStarted
	}
	if err := c.ref.JoinWPA2(ssid, passwd); err != nil {
		return err
	}
	c.joined = true
	return nil
}

func (c *picoController) IsJoined() bool {
	return c.joined
}

//----------------------------------------------------------------------

// Maximum number of packets to queue before sending them.
const (
	queueSize                = 3
	maxRetriesBeforeDropping = 3
)

// nicRunner moves packets between the CYW43439 and the port stack.
type nicRunner struct {
	ref     *cyw43439.Device
	stack   *stacks.PortStack
	queue   [queueSize][mtu]byte
	lenBuf  [queueSize]int
	retries [queueSize]int
}

func (r *nicRunner) markSent(i int) {
	r.lenBuf[i] = 0
	r.retries[i] = 0
}

// Drive performs one poll/handle/send round. It sleeps if there was
// nothing to receive or send.
func (r *nicRunner) Drive(ctx context.Context) {
	stallRx := true
	gotPacket, err := r.ref.PollOne()
	if err != nil {
		println("poll error:", err.Error())
	}
	if gotPacket {
		stallRx = false
	}

	// Queue packets to be sent.
	for i := range r.queue {
		if r.retries[i] != 0 {
			continue // Packet currently queued for retransmission.
		}
		buf := r.queue[i][:]
		r.lenBuf[i], err = r.stack.HandleEth(buf)
		if err != nil {
			println("stack error n(should be 0)=", r.lenBuf[i], "err=", err.Error())
			r.lenBuf[i] = 0
			continue
		}
		if r.lenBuf[i] == 0 {
			break
		}
	}
	if r.lenBuf == [queueSize]int{} {
		if stallRx {
			// Avoid busy waiting when both Rx and Tx stall.
			ClockTimer{}.Sleep(ctx, 51*time.Millisecond)
		}
		return
	}

	// Send queued packets.
	for i := range r.queue {
		n := r.lenBuf[i]
		if n <= 0 {
			continue
		}
		if err := r.ref.SendEth(r.queue[i][:n]); err != nil {
			// Queue packet for retransmission.
			r.retries[i]++
			if r.retries[i] > maxRetriesBeforeDropping {
				r.markSent(i)
				println("dropped outgoing packet:", err.Error())
			}
		} else {
			r.markSent(i)
		}
	}
}

//----------------------------------------------------------------------

// picoStack obtains an address by DHCP (requested by the supervisor
// after joining) before listeners can be opened.
type picoStack struct {
	stack   *stacks.PortStack
	dhcp    *stacks.DHCPClient
	host    string
	reqAddr netip.Addr
	bound   atomic.Bool
	logger  *slog.Logger
}

// Listen returns a TCP listener on the given port.
func (s *picoStack) Listen(_ context.Context, port uint16) (net.Listener, error) {
	if !s.bound.Load() {
		return nil, errNoAddr
	}
	listener, err := stacks.NewTCPListener(s.stack, stacks.TCPListenerConfig{
		MaxConnections: PoolCapacity,
		ConnTxBufSize:  512,
		ConnRxBufSize:  512,
	})
	if err != nil {
		return nil, fmt.Errorf("listener: %w", err)
	}
	if err = listener.StartListening(port); err != nil {
		return nil, fmt.Errorf("listen on %d: %w", port, err)
	}
	return listener, nil
}

// RequestAddr performs DHCP. If it does not complete and a requested
// IP is configured, that address is used statically.
func (s *picoStack) RequestAddr(ctx context.Context) (netip.Addr, error) {
	if s.dhcp == nil {
		s.dhcp = stacks.NewDHCPClient(s.stack, dhcp.DefaultClientPort)
	}
	err := s.dhcp.BeginRequest(stacks.DHCPRequestConfig{
		RequestedAddr: s.reqAddr,
		Xid:           uint32(time.Now().Nanosecond()),
		Hostname:      s.host,
	})
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dhcp request: %w", err)
	}
	for i := 0; s.dhcp.State() != dhcp.StateBound; i++ {
		s.logger.Info("DHCP ongoing...")
		if err := (ClockTimer{}).Sleep(ctx, time.Second/2); err != nil {
			return netip.Addr{}, err
		}
		if i > 15 {
			if !s.reqAddr.IsValid() {
				return netip.Addr{}, errDHCP
			}
			s.logger.Info("DHCP did not complete, assigning static IP", slog.String("ip", s.reqAddr.String()))
			s.stack.SetAddr(s.reqAddr)
			s.bound.Store(true)
			return s.reqAddr, nil
		}
	}
	ip := s.dhcp.Offer()
	s.logger.Info("DHCP complete",
		slog.Uint64("cidrbits", uint64(s.dhcp.CIDRBits())),
		slog.String("ourIP", ip.String()),
		slog.String("gateway", s.dhcp.Gateway().String()),
		slog.String("router", s.dhcp.Router().String()),
		slog.Duration("lease", s.dhcp.IPLeaseTime()),
	)
	s.stack.SetAddr(ip) // It's important to set the IP address after DHCP completes.
	s.bound.Store(true)
	return ip, nil
}

//----------------------------------------------------------------------

// pinOutput is a GPIO output line.
type pinOutput struct {
	pin   machine.Pin
	level bool
}

func (o *pinOutput) Toggle() { o.Set(!o.level) }

func (o *pinOutput) Set(on bool) {
	o.level = on
	o.pin.Set(on)
}

func (o *pinOutput) Level() bool { return o.level }
