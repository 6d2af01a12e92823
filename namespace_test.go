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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build a test namespace
func newNamespace(t *testing.T) *Namespace {
	t.Helper()
	ns := NewNamespace("sys", "sys")
	require.NoError(t, ns.NewFile("/readme", 0444, NewTextFile("Just a test...\n")))
	require.NoError(t, ns.NewDir("/radio", 0555))
	require.NoError(t, ns.NewFile("/radio/mode", 0444, NewFuncFile(
		func() ([]byte, error) {
			return []byte(ModeStation.String() + "\n"), nil
		},
	)))
	return ns
}

func TestNamespaceGet(t *testing.T) {
	ns := newNamespace(t)

	root, err := ns.Get("/")
	require.NoError(t, err)
	assert.True(t, root.IsDir())
	assert.Same(t, ns.Root(), root)

	e, err := ns.Get("/radio/mode")
	require.NoError(t, err)
	assert.False(t, e.IsDir())
	assert.Equal(t, "mode", e.Name())
	data, err := e.Read()
	require.NoError(t, err)
	assert.Equal(t, "station\n", string(data))

	e, err = ns.Get("/readme")
	require.NoError(t, err)
	data, _ = e.Read()
	assert.Equal(t, "Just a test...\n", string(data))
}

func TestNamespaceErrors(t *testing.T) {
	ns := newNamespace(t)

	_, err := ns.Get("radio")
	assert.ErrorIs(t, err, errNoAbs)
	_, err = ns.Get("/missing")
	assert.ErrorIs(t, err, errNoFile)
	_, err = ns.Get("/readme/sub")
	assert.ErrorIs(t, err, errNoDir)

	assert.ErrorIs(t, ns.NewDir("/radio", 0555), errExists)
	assert.ErrorIs(t, ns.NewDir("/", 0555), errExists)
	assert.ErrorIs(t, ns.NewFile("/missing/file", 0444, NewTextFile("")), errNoFile)
	assert.ErrorIs(t, ns.NewFile("/readme/file", 0444, NewTextFile("")), errNoDir)
	assert.ErrorIs(t, ns.NewFile("/nil", 0444, nil), errNoFile)

	dir, err := ns.Get("/radio")
	require.NoError(t, err)
	_, err = dir.Read()
	assert.ErrorIs(t, err, errNoFile)
}

func TestNamespaceWalk(t *testing.T) {
	ns := newNamespace(t)
	radio, err := ns.Get("/radio")
	require.NoError(t, err)

	q := ns.Walk(&ns.Root().ref.Qid, "radio")
	require.NotNil(t, q)
	assert.Equal(t, radio.ref.Qid.Path, q.Path)
	assert.Nil(t, ns.Walk(&ns.Root().ref.Qid, "none"))
}

func TestNamespacesAreIndependent(t *testing.T) {
	a := newNamespace(t)
	b := NewNamespace("sys", "sys")
	assert.True(t, a.Root().IsDir())
	assert.True(t, b.Root().IsDir())
	assert.Zero(t, b.Root().ref.Qid.Path)
}

func TestFuncFileError(t *testing.T) {
	fail := errors.New("sensor offline")
	f := NewFuncFile(func() ([]byte, error) { return nil, fail })
	_, err := f.Read()
	assert.ErrorIs(t, err, fail)
}
