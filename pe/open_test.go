// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	b := newFixture().bytes(t)
	path := filepath.Join(t.TempDir(), "fixture.exe")
	require.NoError(t, os.WriteFile(path, b, 0o644))

	fromFile, err := Open(path)
	require.NoError(t, err)
	fromBytes, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, fromBytes, fromFile)
}

func TestOpenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.exe")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.exe"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
