package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewShaderWords(t *testing.T) {
	t.Run("little endian repack", func(t *testing.T) {
		words, err := NewShaderWords([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x01, 0x00, 0x00})
		require.NoError(t, err)
		require.Equal(t, ShaderWords{0x07230203, 0x00010000}, words)
		require.Equal(t, uint64(8), words.Sizeof())
	})

	t.Run("rejects ragged blobs", func(t *testing.T) {
		_, err := NewShaderWords([]byte{0x01, 0x02, 0x03})
		require.Error(t, err)
	})

	t.Run("empty blob", func(t *testing.T) {
		words, err := NewShaderWords(nil)
		require.NoError(t, err)
		require.Zero(t, words.Sizeof())
	})
}

func TestLoadShader(t *testing.T) {
	t.Run("reads whole artifact", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vert.spv")
		require.NoError(t, os.WriteFile(path, []byte{0x03, 0x02, 0x23, 0x07}, 0o644))

		words, err := LoadShader(path)
		require.NoError(t, err)
		require.Equal(t, ShaderWords{0x07230203}, words)
	})

	t.Run("missing artifact is an error", func(t *testing.T) {
		_, err := LoadShader(filepath.Join(t.TempDir(), "nope.spv"))
		require.Error(t, err)
	})
}
