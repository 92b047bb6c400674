package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.CorrectInvalidFees)
	assert.Equal(t, 50000, cfg.MemPoolSize)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.yml")
	require.NoError(t, os.WriteFile(path, []byte("CorrectInvalidFees: false\nMemPoolSize: 100\n"), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.CorrectInvalidFees)
	assert.Equal(t, 100, cfg.MemPoolSize)
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.yml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o600))
	_, err := Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestConsensusConstants(t *testing.T) {
	// These values are consensus critical and must never drift.
	assert.Equal(t, int64(100_000_000), OneQBR)
	assert.Equal(t, 44880, MaxPayloadLength)
	assert.Equal(t, 176, MinTransactionSize)
	assert.Equal(t, int64(100_000_000_000_000_000), MaxBalanceQNT)
	assert.Equal(t, 100*OneQBR, UnconfirmedPoolDepositQNT)
}
