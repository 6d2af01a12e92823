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

package main

import (
	"context"
	"errors"

	"github.com/bfix/scanblink"
)

// WiFi credentials and 9p diagnostics; set at build time:
//
//	tinygo flash -target pico2-w -ldflags '-X "main.SSID=xxx" -X "main.Passwd=xxx"' ./example
var (
	SSID   string
	Passwd string
	Host   string
	IP     string
	Port   string
)

// run the firmware; it only returns (and halts) on fatal failures.
func main() {
	ctx := context.Background()
	dev := scanblink.InitDevice()
	state := scanblink.NewStatus()
	defer state.Trap(ctx, dev)

	cfg, err := scanblink.NewConfig(SSID, Passwd, Host, IP, Port)
	if err != nil {
		println("config:", err.Error())
		if errors.Is(err, scanblink.ErrIP) {
			state.Set(scanblink.StatIP, 0)
		} else {
			state.Set(scanblink.StatPORT, 0)
		}
		return
	}
	if err = scanblink.Run(ctx, dev, cfg, state); err != nil {
		println("fatal:", err.Error())
	}
}
