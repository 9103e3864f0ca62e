package render

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// ShaderWords is a SPIR-V blob repacked into the 32-bit words the device
// consumes.
type ShaderWords []uint32

// NewShaderWords reinterprets a little-endian byte blob as 32-bit words.
// The byte length must be a multiple of four.
func NewShaderWords(b []byte) (ShaderWords, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("shader blob is %d bytes, not a multiple of 4", len(b))
	}
	words := make([]uint32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, words); err != nil {
		return nil, err
	}
	return ShaderWords(words), nil
}

// Sizeof is the byte size of the blob, as the shader-module create info
// wants it.
func (words ShaderWords) Sizeof() uint64 {
	return uint64(len(words) * 4)
}

// LoadShader reads a whole pre-compiled shader artifact. Called at startup
// and again on every pipeline rebuild; a missing or malformed artifact is
// fatal at the pipeline build that needed it.
func LoadShader(path string) (ShaderWords, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shader artifact: %w", err)
	}
	words, err := NewShaderWords(b)
	if err != nil {
		return nil, fmt.Errorf("shader artifact %s: %w", path, err)
	}
	return words, nil
}
