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
	"time"
)

// Heartbeat toggles the indicator outputs on a fixed period.
type Heartbeat struct {
	outputs []Output
	timer   Timer
	period  time.Duration
	logger  *slog.Logger
}

// NewHeartbeat takes ownership of the outputs.
func NewHeartbeat(outputs []Output, timer Timer, cfg *Config, logger *slog.Logger) *Heartbeat {
	return &Heartbeat{
		outputs: outputs,
		timer:   timer,
		period:  cfg.HeartbeatPeriod(),
		logger:  logger.With(slog.String("task", "heartbeat")),
	}
}

// Run until ctx is done.
func (hb *Heartbeat) Run(ctx context.Context) {
	for {
		hb.logger.Info("heartbeat")
		if hb.timer.Sleep(ctx, hb.period) != nil {
			return
		}
		for _, out := range hb.outputs {
			out.Toggle()
		}
	}
}
