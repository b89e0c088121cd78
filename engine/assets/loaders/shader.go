package loaders

import (
	"fmt"
	"os"

	"github.com/spaghettifunk/framegraph/engine/core"
)

const spirvMagic = 0x07230203

type ShaderLoader struct{}

// Load reads a SPIR-V binary and returns its words.
func (sl *ShaderLoader) Load(path string) (interface{}, error) {
	return LoadShader(path)
}

func LoadShader(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	code, err := bytesToBytecode(data)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", path, err)
	}
	return code, nil
}

func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V size %d is not a multiple of 4: %w", len(b), core.ErrInvalidData)
	}
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}
	if byteCode[0] != spirvMagic {
		return nil, fmt.Errorf("missing SPIR-V magic number: %w", core.ErrInvalidData)
	}
	return byteCode, nil
}
