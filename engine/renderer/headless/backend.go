// Package headless implements a renderer backend without a device. Buffers
// live in host memory and submitted draws stay pending until a fence that
// covers them is observed signaled. Pending draws read their inputs when
// they complete, so a host write that lands in a range an incomplete draw
// still reads is recorded as a hazard.
package headless

import (
	"fmt"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/math"
	"github.com/spaghettifunk/strata/engine/renderer"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

// LatencyFunc returns how many unsuccessful polls a new fence answers
// before it signals.
type LatencyFunc func() uint32

// ExecutedDraw is one completed multi-draw, decoded at completion time.
type ExecutedDraw struct {
	Sequence  uint64
	Frame     uint64
	Commands  []metadata.IndirectDrawCommand
	Instances [][]math.Mat4
	Uniforms  metadata.FrameUniforms
}

// Hazard is a host write into a range an incomplete draw still reads.
type Hazard struct {
	Sequence uint64
	Buffer   metadata.RenderBufferType
	Write    metadata.MemoryRange
}

type readRange struct {
	buffer *Buffer
	span   metadata.MemoryRange
}

type submission struct {
	sequence uint64
	frame    uint64
	call     renderer.DrawIndirectCall
	reads    []readRange
}

type Backend struct {
	latency     LatencyFunc
	initialized bool
	width       uint32
	height      uint32
	frame       uint64
	frameOpen   bool
	layout      *metadata.VertexLayout
	buffers     map[*Buffer]struct{}
	pending     []*submission
	submitted   uint64
	completed   []ExecutedDraw
	hazards     []Hazard
	fenceWaits  uint64
}

func New(latency uint32) *Backend {
	return NewWithLatency(func() uint32 { return latency })
}

func NewWithLatency(latency LatencyFunc) *Backend {
	return &Backend{
		latency: latency,
		buffers: make(map[*Buffer]struct{}),
	}
}

func (b *Backend) Initialize(config *metadata.RendererBackendConfig) error {
	b.width = config.Width
	b.height = config.Height
	b.initialized = true
	core.LogInfo("Headless renderer initialized (%dx%d).", b.width, b.height)
	return nil
}

func (b *Backend) Shutdown() error {
	b.complete(b.submitted)
	if len(b.buffers) > 0 {
		core.LogWarn("headless renderer shut down with %d live buffers", len(b.buffers))
	}
	b.initialized = false
	return nil
}

func (b *Backend) Resized(width, height uint32) error {
	b.width = width
	b.height = height
	return nil
}

func (b *Backend) BeginFrame(deltaTime float64) error {
	if !b.initialized {
		return core.ErrBackendNotInitialized
	}
	if b.width == 0 || b.height == 0 {
		return core.ErrSwapchainBooting
	}
	b.frameOpen = true
	return nil
}

func (b *Backend) EndFrame(deltaTime float64) error {
	if !b.frameOpen {
		return fmt.Errorf("EndFrame called without a frame in progress")
	}
	b.frameOpen = false
	b.frame++
	return nil
}

func (b *Backend) RenderBufferCreate(renderbufferType metadata.RenderBufferType, totalSize uint64) (renderer.RenderBuffer, error) {
	if !b.initialized {
		return nil, core.ErrBackendNotInitialized
	}
	if totalSize == 0 {
		return nil, fmt.Errorf("cannot create a zero sized %s buffer", renderbufferType)
	}
	buf := &Buffer{
		backend:    b,
		bufferType: renderbufferType,
		data:       make([]byte, totalSize),
	}
	b.buffers[buf] = struct{}{}
	return buf, nil
}

func (b *Backend) RenderBufferDestroy(buffer renderer.RenderBuffer) error {
	buf, ok := buffer.(*Buffer)
	if !ok || buf.backend != b {
		return fmt.Errorf("buffer was not created by this backend")
	}
	delete(b.buffers, buf)
	return nil
}

func (b *Backend) BindVertexLayout(layout *metadata.VertexLayout) error {
	if layout == nil || len(layout.Bindings) == 0 {
		return fmt.Errorf("empty vertex layout")
	}
	b.layout = layout
	return nil
}

func (b *Backend) DrawIndexedIndirect(call *renderer.DrawIndirectCall) error {
	if !b.initialized {
		return core.ErrBackendNotInitialized
	}
	if b.layout == nil {
		return fmt.Errorf("draw issued without a bound vertex layout")
	}
	vertices, err := b.own(call.Vertices)
	if err != nil {
		return err
	}
	indices, err := b.own(call.Indices)
	if err != nil {
		return err
	}
	instances, err := b.own(call.Instances)
	if err != nil {
		return err
	}
	commands, err := b.own(call.Commands)
	if err != nil {
		return err
	}
	if call.Stride != uint32(metadata.IndirectCommandStride) {
		return fmt.Errorf("unsupported indirect stride %d", call.Stride)
	}

	table := metadata.MemoryRange{Offset: call.CommandOffset, Size: uint64(call.DrawCount) * uint64(call.Stride)}
	if table.End() > commands.Size() {
		return fmt.Errorf("command table %d..%d exceeds buffer of %d bytes", table.Offset, table.End(), commands.Size())
	}

	b.submitted++
	sub := &submission{
		sequence: b.submitted,
		frame:    b.frame,
		call:     *call,
		reads:    []readRange{{buffer: commands, span: table}},
	}
	for i, cmd := range metadata.DecodeIndirectCommands(commands.data[table.Offset:table.End()], call.DrawCount) {
		inst := metadata.MemoryRange{
			Offset: call.InstanceOffset + uint64(cmd.BaseInstance)*metadata.InstanceStride,
			Size:   uint64(cmd.InstanceCount) * metadata.InstanceStride,
		}
		if inst.End() > instances.Size() {
			return fmt.Errorf("command %d reads instances %d..%d past buffer of %d bytes", i, inst.Offset, inst.End(), instances.Size())
		}
		idx := metadata.MemoryRange{
			Offset: uint64(cmd.FirstIndex) * metadata.IndexSize,
			Size:   uint64(cmd.IndexCount) * metadata.IndexSize,
		}
		if idx.End() > indices.Size() {
			return fmt.Errorf("command %d reads indices %d..%d past buffer of %d bytes", i, idx.Offset, idx.End(), indices.Size())
		}
		if cmd.BaseVertex < 0 || uint64(cmd.BaseVertex)*metadata.VertexStride >= vertices.Size() {
			return fmt.Errorf("command %d has base vertex %d outside the vertex buffer", i, cmd.BaseVertex)
		}
		sub.reads = append(sub.reads, readRange{buffer: instances, span: inst}, readRange{buffer: indices, span: idx})
	}
	b.pending = append(b.pending, sub)
	return nil
}

func (b *Backend) FenceInsert() (renderer.Fence, error) {
	if !b.initialized {
		return nil, core.ErrBackendNotInitialized
	}
	return &Fence{
		backend:   b,
		sequence:  b.submitted,
		remaining: b.latency(),
	}, nil
}

func (b *Backend) own(rb renderer.RenderBuffer) (*Buffer, error) {
	buf, ok := rb.(*Buffer)
	if !ok || buf == nil {
		return nil, fmt.Errorf("draw references a buffer not created by the headless backend")
	}
	if _, live := b.buffers[buf]; !live {
		return nil, fmt.Errorf("draw references a destroyed %s buffer", buf.bufferType)
	}
	return buf, nil
}

// complete retires every pending submission up to and including sequence.
func (b *Backend) complete(sequence uint64) {
	n := 0
	for n < len(b.pending) && b.pending[n].sequence <= sequence {
		b.retire(b.pending[n])
		n++
	}
	b.pending = b.pending[n:]
}

func (b *Backend) retire(sub *submission) {
	commands := sub.call.Commands.(*Buffer)
	instances := sub.call.Instances.(*Buffer)
	table := commands.data[sub.call.CommandOffset : sub.call.CommandOffset+uint64(sub.call.DrawCount)*uint64(sub.call.Stride)]
	draw := ExecutedDraw{
		Sequence: sub.sequence,
		Frame:    sub.frame,
		Commands: metadata.DecodeIndirectCommands(table, sub.call.DrawCount),
		Uniforms: sub.call.Uniforms,
	}
	for _, cmd := range draw.Commands {
		start := sub.call.InstanceOffset + uint64(cmd.BaseInstance)*metadata.InstanceStride
		draw.Instances = append(draw.Instances, metadata.DecodeInstances(instances.data[start:], cmd.InstanceCount))
	}
	b.completed = append(b.completed, draw)
}

func (b *Backend) recordWrite(buf *Buffer, span metadata.MemoryRange) {
	for _, sub := range b.pending {
		for _, r := range sub.reads {
			if r.buffer == buf && r.span.Overlaps(span) {
				core.LogWarn("host write %d..%d into %s buffer overlaps draw %d still in flight", span.Offset, span.End(), buf.bufferType, sub.sequence)
				b.hazards = append(b.hazards, Hazard{Sequence: sub.sequence, Buffer: buf.bufferType, Write: span})
				return
			}
		}
	}
}

// Completed returns the draws retired so far, oldest first.
func (b *Backend) Completed() []ExecutedDraw {
	return b.completed
}

func (b *Backend) Hazards() []Hazard {
	return b.hazards
}

func (b *Backend) PendingCount() int {
	return len(b.pending)
}

func (b *Backend) Submitted() uint64 {
	return b.submitted
}

func (b *Backend) FenceWaits() uint64 {
	return b.fenceWaits
}

func (b *Backend) FrameCount() uint64 {
	return b.frame
}

func (b *Backend) LiveBuffers() int {
	return len(b.buffers)
}
