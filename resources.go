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
)

// PoolCapacity is the number of stack resource slots.
const PoolCapacity = 3

// ErrPoolExhausted is a configuration error: more stack resources were
// requested than the pool can hold.
var ErrPoolExhausted = errors.New("stack resource pool exhausted")

// SlotKind is the type of a stack resource.
type SlotKind int

// slot kinds
const (
	SlotUDP SlotKind = iota
	SlotTCP
)

// String returns the protocol name.
func (k SlotKind) String() string {
	if k == SlotTCP {
		return "tcp"
	}
	return "udp"
}

type poolSlot struct {
	kind  SlotKind
	owner string
}

// Pool is a fixed table of network stack bookkeeping slots. Slots are
// handed out once and never returned.
type Pool struct {
	slots [PoolCapacity]poolSlot
	used  int
}

// Reserve the next free slot for owner.
func (p *Pool) Reserve(kind SlotKind, owner string) (int, error) {
	if p.used == len(p.slots) {
		return -1, fmt.Errorf("%w: %s/%s needs slot %d of %d",
			ErrPoolExhausted, owner, kind, p.used+1, len(p.slots))
	}
	idx := p.used
	p.slots[idx] = poolSlot{kind: kind, owner: owner}
	p.used++
	return idx, nil
}

// Count returns the number of reserved slots of a kind.
func (p *Pool) Count(kind SlotKind) (n int) {
	for _, s := range p.slots[:p.used] {
		if s.kind == kind {
			n++
		}
	}
	return
}

// Owner of a reserved slot (or empty string).
func (p *Pool) Owner(idx int) string {
	if idx < 0 || idx >= p.used {
		return ""
	}
	return p.slots[idx].owner
}

// Len is the number of reserved slots.
func (p *Pool) Len() int {
	return p.used
}

// Cap is the capacity of the pool.
func (p *Pool) Cap() int {
	return len(p.slots)
}
