//go:build !rp2350

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
	"net"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// environment of the host build
const (
	EnvScenario = "SCANBLINK_SCENARIO" // path of a scenario file
	EnvLogFile  = "SCANBLINK_LOGFILE"  // path of a rotating log file
)

// Error messages
var (
	errModeUnset   = errors.New("mode not set")
	errNotStarted  = errors.New("radio not started")
	errUnsupported = errors.New("mode not supported")
)

//----------------------------------------------------------------------

// ScanStep is the outcome of one simulated scan.
type ScanStep struct {
	Error    string   `yaml:"error"`
	Networks []string `yaml:"networks"`
}

// Scenario scripts the simulated radio. Empty error strings mean
// success. The last scan step repeats forever.
type Scenario struct {
	RadioError string     `yaml:"radio_error"`
	StackError string     `yaml:"stack_error"`
	ModeError  string     `yaml:"mode_error"`
	StartError string     `yaml:"start_error"`
	JoinErrors []string   `yaml:"join_errors"`
	Scans      []ScanStep `yaml:"scans"`
	Outputs    int        `yaml:"outputs"`
	Sockets    int        `yaml:"sockets"` // TCP slots held by the device
}

// DefaultScenario is a fault-free radio with two outputs.
func DefaultScenario() *Scenario {
	return &Scenario{
		Scans:   []ScanStep{{Networks: []string{"scanblink-sim"}}},
		Outputs: 2,
	}
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(fname string) (*Scenario, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	sc := DefaultScenario()
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Outputs < 0 {
		return nil, fmt.Errorf("parse scenario: negative output count %d", sc.Outputs)
	}
	if sc.Sockets < 0 {
		return nil, fmt.Errorf("parse scenario: negative socket count %d", sc.Sockets)
	}
	return sc, nil
}

func fault(msg string) error {
	if len(msg) == 0 {
		return nil
	}
	return errors.New(msg)
}

//----------------------------------------------------------------------

// LinuxDevice simulates the platform (for testing purposes)
type LinuxDevice struct {
	scenario *Scenario
	logw     io.Writer
}

// LED on or off (not applicable)
func (dev *LinuxDevice) LED(on bool) {}

// Initialize device from the environment.
func InitDevice() Device {
	sc := DefaultScenario()
	if fname := os.Getenv(EnvScenario); len(fname) > 0 {
		var err error
		if sc, err = LoadScenario(fname); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			sc = DefaultScenario()
		}
	}
	var w io.Writer = os.Stderr
	if fname := os.Getenv(EnvLogFile); len(fname) > 0 {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   fname,
			MaxSize:    1, // megabytes
			MaxBackups: 3,
		})
	}
	return NewLinuxDevice(sc, w)
}

// NewLinuxDevice with given scenario and log transport.
func NewLinuxDevice(sc *Scenario, w io.Writer) *LinuxDevice {
	return &LinuxDevice{
		scenario: sc,
		logw:     w,
	}
}

// LogWriter returns the log transport.
func (dev *LinuxDevice) LogWriter() io.Writer {
	return dev.logw
}

// Timer on the host clock.
func (dev *LinuxDevice) Timer() Timer {
	return ClockTimer{}
}

// Reserve the sockets the scenario assigns to the device itself.
func (dev *LinuxDevice) Reserve(pool *Pool) error {
	for range dev.scenario.Sockets {
		if _, err := pool.Reserve(SlotTCP, "sim"); err != nil {
			return err
		}
	}
	return nil
}

// NewController returns the simulated radio.
func (dev *LinuxDevice) NewController(_ *slog.Logger) (Controller, error) {
	if err := fault(dev.scenario.RadioError); err != nil {
		return nil, err
	}
	return &simController{sc: dev.scenario}, nil
}

// NewStack returns an idle runner and a stack listening on the host.
func (dev *LinuxDevice) NewStack(pool *Pool, _ *slog.Logger) (StackRunner, Stack, error) {
	if err := fault(dev.scenario.StackError); err != nil {
		return nil, nil, err
	}
	return simRunner{}, &hostStack{listeners: pool.Count(SlotTCP)}, nil
}

// Outputs returns in-memory output lines (initially on).
func (dev *LinuxDevice) Outputs() ([]Output, error) {
	outs := make([]Output, dev.scenario.Outputs)
	for i := range outs {
		outs[i] = &memOutput{level: true}
	}
	return outs, nil
}

//----------------------------------------------------------------------

// simController plays back the scenario.
type simController struct {
	sc      *Scenario
	mode    Mode
	started bool
	joined  bool
	scans   int
	joins   int
}

func (c *simController) Capabilities() Capabilities {
	return Capabilities{ModeStation, ModeAccessPoint}
}

func (c *simController) SetMode(mode Mode) error {
	if err := fault(c.sc.ModeError); err != nil {
		return err
	}
	if !c.Capabilities().Has(mode) {
		return fmt.Errorf("%w: %s", errUnsupported, mode)
	}
	c.mode = mode
	return nil
}

func (c *simController) Start(ctx context.Context) error {
	if c.mode == ModeUnset {
		return errModeUnset
	}
	if err := fault(c.sc.StartError); err != nil {
		return err
	}
	c.started = true
	return ctx.Err()
}

func (c *simController) IsStarted() (bool, error) {
	return c.started, nil
}

func (c *simController) Scan(ctx context.Context, cfg ScanConfig) ([]Network, error) {
	if !c.started {
		return nil, errNotStarted
	}
	if len(c.sc.Scans) == 0 {
		return nil, ctx.Err()
	}
	step := c.sc.Scans[min(c.scans, len(c.sc.Scans)-1)]
	c.scans++
	if err := fault(step.Error); err != nil {
		return nil, err
	}
	nets := make([]Network, 0, len(step.Networks))
	for i, ssid := range step.Networks {
		if len(ssid) == 0 && !cfg.ShowHidden {
			continue
		}
		if len(cfg.SSID) > 0 && ssid != cfg.SSID {
			continue
		}
		nets = append(nets, Network{
			SSID:    ssid,
			BSSID:   [6]byte{0x02, 0, 0, 0, 0, byte(i)},
			Channel: uint8(1 + i%11),
			RSSI:    int8(-40 - 5*i),
		})
	}
	return nets, ctx.Err()
}

func (c *simController) Join(ctx context.Context, ssid, _ string) error {
	if !c.started {
		return errNotStarted
	}
	i := c.joins
	c.joins++
	if i < len(c.sc.JoinErrors) {
		if err := fault(c.sc.JoinErrors[i]); err != nil {
			return fmt.Errorf("join %s: %w", ssid, err)
		}
	}
	c.joined = true
	return ctx.Err()
}

func (c *simController) IsJoined() bool {
	return c.joined
}

//----------------------------------------------------------------------

// simRunner has no packets to process; it only waits.
type simRunner struct{}

func (simRunner) Drive(ctx context.Context) {
	t := time.NewTimer(51 * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// hostStack opens listeners on the host network.
type hostStack struct {
	listeners int // reserved TCP slots
}

// Listen returns a TCP listener on the given port.
func (s *hostStack) Listen(ctx context.Context, port uint16) (net.Listener, error) {
	if s.listeners == 0 {
		return nil, ErrPoolExhausted
	}
	cfg := new(net.ListenConfig)
	lis, err := cfg.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	s.listeners--
	return lis, nil
}

// memOutput is an output line in memory.
type memOutput struct {
	level bool
}

func (o *memOutput) Toggle()     { o.level = !o.level }
func (o *memOutput) Set(on bool) { o.level = on }
func (o *memOutput) Level() bool { return o.level }
