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
)

// Error messages
var (
	ErrSlotTaken = errors.New("handle already taken")
	ErrSlotEmpty = errors.New("handle not available")
)

// slot holds a single handle until it is taken by its owner.
type slot[T any] struct {
	val   T
	set   bool
	taken bool
}

func (s *slot[T]) put(v T) {
	s.val = v
	s.set = true
}

// take moves the handle out of the slot.
func (s *slot[T]) take() (v T, err error) {
	if s.taken {
		return v, ErrSlotTaken
	}
	if !s.set {
		return v, ErrSlotEmpty
	}
	v = s.val
	var zero T
	s.val = zero
	s.taken = true
	return v, nil
}

// Registry holds the handles produced by bootstrap. Each slot is
// populated once and can be taken exactly once.
type Registry struct {
	Pool *Pool // stack resources (owned by the stack)

	ctrl    slot[Controller]
	runner  slot[StackRunner]
	stack   slot[Stack]
	addr    slot[Addresser]
	outputs slot[[]Output]
	timer   Timer
}

// Timer is shared by all tasks.
func (r *Registry) Timer() Timer {
	return r.timer
}

// TakeController moves the controller handle to the caller.
func (r *Registry) TakeController() (Controller, error) {
	return r.ctrl.take()
}

// TakeRunner moves the stack runner handle to the caller.
func (r *Registry) TakeRunner() (StackRunner, error) {
	return r.runner.take()
}

// TakeStack moves the stack handle to the caller.
func (r *Registry) TakeStack() (Stack, error) {
	return r.stack.take()
}

// TakeAddresser moves the address acquisition side of the stack to the
// caller (ErrSlotEmpty if the stack needs none).
func (r *Registry) TakeAddresser() (Addresser, error) {
	return r.addr.take()
}

// TakeOutputs moves the output handles to the caller.
func (r *Registry) TakeOutputs() ([]Output, error) {
	return r.outputs.take()
}
