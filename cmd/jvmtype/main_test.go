package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const failing = `
methods:
  - owner: a/Main
    name: ok
    desc: ()V
    access: [static]
    code: |
      return
  - owner: a/Main
    name: broken
    desc: ()V
    access: [static]
    code: |
      pop
      return
`

func TestRunWritesProfileOnFailure(t *testing.T) {
	dir := t.TempDir()
	listing := filepath.Join(dir, "main.yaml")
	require.NoError(t, os.WriteFile(listing, []byte(failing), 0o644))
	prof := filepath.Join(dir, "cpu.prof")

	require.NoError(t, flag.CommandLine.Parse([]string{"-cpuprofile", prof, listing}))
	t.Cleanup(func() { *cpuprofile = "" })

	assert.Equal(t, 1, run())

	info, err := os.Stat(prof)
	require.NoError(t, err)
	assert.NotZero(t, info.Size(), "profile was not flushed")
}

func TestRunNoArguments(t *testing.T) {
	require.NoError(t, flag.CommandLine.Parse(nil))
	assert.Equal(t, 2, run())
}
