package loaders

import (
	"fmt"
	"os"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

/**
 * @brief A compiled shader stage read from disk.
 */
type SPIRVModule struct {
	Path string
	// Size of the module in bytes.
	CodeSize uint64
	Code     []uint32
}

/**
 * @brief Reads a SPIR-V binary. The file must be a whole number of words
 * and start with the SPIR-V magic number.
 */
func LoadSPIRV(path string) (*SPIRVModule, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, fmt.Errorf("shader %s is %d bytes, not a whole number of SPIR-V words", path, len(buf))
	}
	code := bytesToBytecode(buf)
	if code[0] != SPIRVMagic {
		return nil, fmt.Errorf("shader %s does not start with the SPIR-V magic number (got 0x%08x)", path, code[0])
	}
	return &SPIRVModule{
		Path:     path,
		CodeSize: uint64(len(buf)),
		Code:     code,
	}, nil
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}
