package shader

import (
	"fmt"
	"slices"
	"sync"

	"render-demo/internal/opengl"
)

// UniformBlock is a GPU buffer holding one std140 image of T, attached
// to a binding index that programs refer to by block name.
type UniformBlock[T Std140] struct {
	dev     opengl.Device
	buffer  uint32
	binding uint32
	size    int
}

// NewUniformBlock allocates a buffer sized for T and attaches it to
// binding.
func NewUniformBlock[T Std140](dev opengl.Device, binding uint32) (*UniformBlock[T], error) {
	var zero T
	size := zero.Std140Size()

	buf := dev.CreateBuffer()
	if err := opengl.CheckAlloc(buf, "uniform buffer"); err != nil {
		return nil, err
	}
	dev.BindBuffer(opengl.UniformBuffer, buf)
	dev.BufferData(opengl.UniformBuffer, size, nil, opengl.StaticDraw)
	dev.BindBuffer(opengl.UniformBuffer, 0)
	dev.BindBufferBase(opengl.UniformBuffer, binding, buf)

	return &UniformBlock[T]{dev: dev, buffer: buf, binding: binding, size: size}, nil
}

// Upload replaces the whole buffer with v.
func (b *UniformBlock[T]) Upload(v T) {
	data := v.AppendStd140(make([]byte, 0, b.size))
	if len(data) != b.size {
		panic(fmt.Sprintf("shader: %T encodes %d bytes, buffer holds %d", v, len(data), b.size))
	}
	b.dev.BindBuffer(opengl.UniformBuffer, b.buffer)
	b.dev.BufferSubData(opengl.UniformBuffer, 0, data)
	b.dev.BindBuffer(opengl.UniformBuffer, 0)
}

// ReadBack copies the buffer contents from the GPU.
func (b *UniformBlock[T]) ReadBack() []byte {
	data := make([]byte, b.size)
	b.dev.BindBuffer(opengl.UniformBuffer, b.buffer)
	b.dev.GetBufferSubData(opengl.UniformBuffer, 0, data)
	b.dev.BindBuffer(opengl.UniformBuffer, 0)
	return data
}

func (b *UniformBlock[T]) Binding() uint32 { return b.binding }

func (b *UniformBlock[T]) Uniform() UniformValue { return Block(b) }

func (b *UniformBlock[T]) Delete() {
	if b.buffer == 0 {
		return
	}
	b.dev.DeleteBuffer(b.buffer)
	b.buffer = 0
}

// Bindings hands out uniform buffer binding indices. Two live blocks
// never share an index.
type Bindings struct {
	mu   sync.Mutex
	next uint32
	free []uint32
}

func (b *Bindings) Next() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.free); n > 0 {
		i := b.free[n-1]
		b.free = b.free[:n-1]
		return i
	}
	i := b.next
	b.next++
	return i
}

// Release returns an index once its block is deleted. Indices never
// handed out, or already free, are ignored.
func (b *Bindings) Release(i uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i >= b.next || slices.Contains(b.free, i) {
		return
	}
	b.free = append(b.free, i)
}
