package dstree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide_TruthTable(t *testing.T) {
	tests := []struct {
		name                string
		exists              bool
		valid               Validity
		reloadUnconfirmable bool
		want                bool
	}{
		{"absent file downloads", false, Invalid, false, true},
		{"valid file skips", true, Valid, false, false},
		{"invalid file downloads", true, Invalid, false, true},
		{"unconfirmable with reload downloads", true, ValidityUnknown, true, true},
		{"unconfirmable without reload skips", true, ValidityUnknown, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.exists, tt.valid, tt.reloadUnconfirmable)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecide_ReloadFlagIrrelevantWhenConfirmed(t *testing.T) {
	// The reload policy only matters for unconfirmable files.
	for _, reload := range []bool{true, false} {
		assert.True(t, Decide(false, Invalid, reload))
		assert.False(t, Decide(true, Valid, reload))
		assert.True(t, Decide(true, Invalid, reload))
	}
}

func writeBytes(t *testing.T, dir, name string, n int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, n), 0o600))

	return path
}

func TestValidateFile_Absent(t *testing.T) {
	exists, valid := ValidateFile(filepath.Join(t.TempDir(), "nope.csv"), 100)
	assert.False(t, exists)
	assert.Equal(t, Invalid, valid)
}

func TestValidateFile_SizeMatch(t *testing.T) {
	path := writeBytes(t, t.TempDir(), "a.csv", 1000)

	exists, valid := ValidateFile(path, 1000)
	assert.True(t, exists)
	assert.Equal(t, Valid, valid)
}

func TestValidateFile_SizeMismatch(t *testing.T) {
	path := writeBytes(t, t.TempDir(), "a.csv", 999)

	exists, valid := ValidateFile(path, 1000)
	assert.True(t, exists)
	assert.Equal(t, Invalid, valid)
}

func TestValidateFile_RemoteSizeUnknown(t *testing.T) {
	path := writeBytes(t, t.TempDir(), "a.csv", 42)

	exists, valid := ValidateFile(path, SizeUnknown)
	assert.True(t, exists)
	assert.Equal(t, ValidityUnknown, valid)
}

func TestValidity_String(t *testing.T) {
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "invalid", Invalid.String())
	assert.Equal(t, "unknown", ValidityUnknown.String())
}
