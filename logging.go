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
	"bytes"
	"io"
	"log/slog"
	"sync"
)

// JournalSize is the number of log lines kept for diagnostics.
const JournalSize = 32

// NewLogger returns a text logger writing to w and to the journal (if
// not nil).
func NewLogger(w io.Writer, journal *Journal, level slog.Level) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	if journal != nil {
		w = io.MultiWriter(w, journal)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Journal keeps the most recent log lines in a ring.
type Journal struct {
	mu      sync.Mutex
	lines   [][]byte
	next    int    // index of the next line to overwrite
	full    bool   // ring has wrapped
	partial []byte // pending line without newline
}

// NewJournal with capacity for n lines.
func NewJournal(n int) *Journal {
	if n < 1 {
		n = 1
	}
	return &Journal{
		lines: make([][]byte, n),
	}
}

// Write appends the data; every complete line becomes an entry.
func (j *Journal) Write(p []byte) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	buf := append(j.partial, p...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		j.add(bytes.Clone(buf[:i+1]))
		buf = buf[i+1:]
	}
	j.partial = bytes.Clone(buf)
	return len(p), nil
}

func (j *Journal) add(line []byte) {
	j.lines[j.next] = line
	j.next++
	if j.next == len(j.lines) {
		j.next = 0
		j.full = true
	}
}

// Bytes returns the journal content, oldest line first.
func (j *Journal) Bytes() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []byte
	if j.full {
		for _, l := range j.lines[j.next:] {
			out = append(out, l...)
		}
	}
	for _, l := range j.lines[:j.next] {
		out = append(out, l...)
	}
	return out
}

// Len is the number of complete lines kept.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.full {
		return len(j.lines)
	}
	return j.next
}
