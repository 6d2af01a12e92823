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
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"time"

	"git.sr.ht/~moody/ninep"
)

// NewDiagnostics builds the read-only diagnostics namespace:
//
//	/status   current status code
//	/log      most recent log lines
//	/config   build-time configuration (without secret)
func NewDiagnostics(cfg *Config, state *Status, journal *Journal) (*Namespace, error) {
	ns := NewNamespace("sys", "sys")
	if err := ns.NewFile("/status", 0444, NewFuncFile(func() ([]byte, error) {
		return []byte(state.Report()), nil
	})); err != nil {
		return nil, err
	}
	if err := ns.NewFile("/log", 0444, NewFuncFile(func() ([]byte, error) {
		return journal.Bytes(), nil
	})); err != nil {
		return nil, err
	}
	conf := fmt.Sprintf("ssid %s\nhost %s\nport %d\n", cfg.SSID, cfg.Host, cfg.Port)
	if err := ns.NewFile("/config", 0444, NewTextFile(conf)); err != nil {
		return nil, err
	}
	return ns, nil
}

// DiagServer serves the diagnostics namespace over 9p.
type DiagServer struct {
	stack    Stack
	port     uint16
	ns       *Namespace
	state    *Status
	timer    Timer
	interval time.Duration
	logger   *slog.Logger
}

// NewDiagServer takes ownership of the stack handle.
func NewDiagServer(stack Stack, ns *Namespace, state *Status, timer Timer, cfg *Config, logger *slog.Logger) *DiagServer {
	return &DiagServer{
		stack:    stack,
		port:     cfg.Port,
		ns:       ns,
		state:    state,
		timer:    timer,
		interval: cfg.ScanInterval(),
		logger:   logger.With(slog.String("task", "diag")),
	}
}

// Run the server until ctx is done. Opening the listener is retried
// every interval (the stack has no address until the network is
// joined).
func (d *DiagServer) Run(ctx context.Context) {
	var lst net.Listener
	for {
		var err error
		if lst, err = d.stack.Listen(ctx, d.port); err == nil {
			break
		}
		d.logger.Error("listen failed", slog.Uint64("port", uint64(d.port)), slog.String("err", err.Error()))
		if d.timer.Sleep(ctx, d.interval) != nil {
			return
		}
	}
	d.logger.Info("serving diagnostics", slog.String("addr", lst.Addr().String()))
	go func() {
		<-ctx.Done()
		lst.Close()
	}()
	for {
		c, err := lst.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("accept failed", slog.String("err", err.Error()))
			d.state.Set(StatSRV, 3)
			if d.timer.Sleep(ctx, d.interval) != nil {
				return
			}
			continue
		}
		go serveConn(ctx, d.ns, c)
	}
}

// serveConn runs a 9p session on c until the peer disconnects or ctx
// is done.
func serveConn(ctx context.Context, fs ninep.FS, c net.Conn) {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()
	srv := ninep.NewSrv(func() ninep.FS { return fs })
	srv.ServeIO(connReader{c}, connWriter{c})
}

// connReader ends the session goroutine on a read error: ninep exits
// the process on any read failure (including EOF).
type connReader struct {
	c net.Conn
}

func (r connReader) Read(p []byte) (int, error) {
	n, err := r.c.Read(p)
	if err != nil {
		r.c.Close()
		runtime.Goexit()
	}
	return n, err
}

// connWriter drops responses after a write error so the reader side
// can end the session.
type connWriter struct {
	c net.Conn
}

func (w connWriter) Write(p []byte) (int, error) {
	if _, err := w.c.Write(p); err != nil {
		w.c.Close()
	}
	return len(p), nil
}
