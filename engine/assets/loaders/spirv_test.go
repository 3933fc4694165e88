package loaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shader.spv")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadSPIRV(t *testing.T) {
	path := writeFile(t, []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	module, err := LoadSPIRV(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), module.CodeSize)
	assert.Equal(t, []uint32{SPIRVMagic, 0x00010000}, module.Code)
}

func TestLoadSPIRVRejectsBadFiles(t *testing.T) {
	_, err := LoadSPIRV(writeFile(t, []byte{0x03, 0x02, 0x23}))
	assert.Error(t, err)

	_, err = LoadSPIRV(writeFile(t, []byte{0xde, 0xad, 0xbe, 0xef}))
	assert.Error(t, err)

	_, err = LoadSPIRV(writeFile(t, nil))
	assert.Error(t, err)

	_, err = LoadSPIRV(filepath.Join(t.TempDir(), "missing.spv"))
	assert.Error(t, err)
}
