package core

import "github.com/go-gl/mathgl/mgl32"

// InstanceParamsProperty is the per-instance vec4 array uploaded alongside
// each transform by the GPU pass.
const InstanceParamsProperty = "InstanceParams"

// PropertyBlock carries per-draw material overrides: named scalars and
// named per-instance vec4 arrays indexed like the transform buffer.
type PropertyBlock struct {
	floats  map[string]float32
	vectors map[string][]mgl32.Vec4
}

func NewPropertyBlock() *PropertyBlock {
	return &PropertyBlock{
		floats:  make(map[string]float32),
		vectors: make(map[string][]mgl32.Vec4),
	}
}

func (b *PropertyBlock) SetFloat(name string, v float32) {
	b.floats[name] = v
}

func (b *PropertyBlock) Float(name string) (float32, bool) {
	v, ok := b.floats[name]
	return v, ok
}

// VectorArray returns the named array resized to n, reusing its storage.
func (b *PropertyBlock) VectorArray(name string, n int) []mgl32.Vec4 {
	arr := b.vectors[name]
	if cap(arr) < n {
		grown := make([]mgl32.Vec4, n)
		copy(grown, arr)
		arr = grown
	}
	arr = arr[:n]
	b.vectors[name] = arr
	return arr
}

// Vectors returns the named array without resizing it.
func (b *PropertyBlock) Vectors(name string) []mgl32.Vec4 {
	if b == nil {
		return nil
	}
	return b.vectors[name]
}

func (b *PropertyBlock) Clear() {
	clear(b.floats)
	for k, v := range b.vectors {
		b.vectors[k] = v[:0]
	}
}
