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
	"log/slog"
)

// Run the firmware: bootstrap the device, spawn the supervisor and the
// stack pump and run the heartbeat on the calling goroutine. Run only
// returns on a bootstrap failure or when ctx is done.
func Run(ctx context.Context, dev Device, cfg *Config, state *Status) error {
	journal := NewJournal(JournalSize)
	logger := NewLogger(dev.LogWriter(), journal, slog.LevelInfo)

	reg, err := Bootstrap(dev, cfg, logger)
	if err != nil {
		state.Set(BootStat(err), 0)
		return err
	}
	state.Set(StatOK, 0)

	// move handles into their tasks
	ctrl, err := reg.TakeController()
	if err != nil {
		return err
	}
	runner, err := reg.TakeRunner()
	if err != nil {
		return err
	}
	outputs, err := reg.TakeOutputs()
	if err != nil {
		return err
	}
	timer := reg.Timer()

	sup := NewSupervisor(ctrl, timer, cfg, logger)
	if addr, err := reg.TakeAddresser(); err == nil {
		sup.SetAddresser(addr)
	}
	go sup.Run(ctx)
	go Pump(ctx, runner)

	if cfg.Diagnostics() {
		stack, err := reg.TakeStack()
		if err != nil {
			return err
		}
		ns, err := NewDiagnostics(cfg, state, journal)
		if err != nil {
			return err
		}
		go NewDiagServer(stack, ns, state, timer, cfg, logger).Run(ctx)
	}

	NewHeartbeat(outputs, timer, cfg, logger).Run(ctx)
	return ctx.Err()
}
