package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunValidatesEmbeddedMigrations(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-cmd", "validate"}, &out))
	assert.Contains(t, out.String(), "validation passed")
}

func TestRunCreateThenValidateDir(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-cmd", "create", "-dir", dir, "-name", "add reminder index"}, &out))
	assert.Contains(t, out.String(), "created migration:")

	files, err := filepath.Glob(filepath.Join(dir, "*_add_reminder_index.sql"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"-cmd", "validate", "-dir", dir}, &out))
}

func TestRunRejectsBadInvocations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.sql"), []byte("SELECT 1;"), 0o644))

	for _, args := range [][]string{
		{"-cmd", "create"},
		{"-cmd", "rollback"},
		{"-cmd", "version"},
		{"-cmd", "validate", "-dir", dir},
		{"-bogus"},
	} {
		assert.Error(t, run(context.Background(), args, &bytes.Buffer{}), "%v", args)
	}
}
