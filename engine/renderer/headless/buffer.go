package headless

import (
	"fmt"

	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

type Buffer struct {
	backend    *Backend
	bufferType metadata.RenderBufferType
	data       []byte
}

func (b *Buffer) Type() metadata.RenderBufferType {
	return b.bufferType
}

func (b *Buffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *Buffer) LoadRange(offset uint64, data []byte) error {
	end := offset + uint64(len(data))
	if end > uint64(len(b.data)) {
		return fmt.Errorf("write %d..%d past the end of a %d byte %s buffer", offset, end, len(b.data), b.bufferType)
	}
	b.backend.recordWrite(b, metadata.MemoryRange{Offset: offset, Size: uint64(len(data))})
	copy(b.data[offset:end], data)
	return nil
}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}
