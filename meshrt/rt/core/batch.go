package core

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxInstancesPerDraw is the largest instance count accepted by one
// instanced draw call.
const MaxInstancesPerDraw = 1023

type BatchConfig struct {
	MeshOffset mgl32.Vec3
	MeshScale  mgl32.Vec3
	Rotation   RotationPolicy

	SortByDepth bool
	SortOrder   SortOrder

	FrustumCull    bool
	BoundRadius    float32
	FrustumPadding float32

	// Capacity caps the instances per batch; <= 0 uses the builder capacity.
	Capacity int
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MeshScale:   mgl32.Vec3{1, 1, 1},
		Rotation:    RotationFromParticle,
		SortOrder:   NearestFirst,
		BoundRadius: 1,
		Capacity:    MaxInstancesPerDraw,
	}
}

// InstanceCandidate is one visible particle within a single Build call.
type InstanceCandidate struct {
	Index     int // position in the particle snapshot
	Transform mgl32.Mat4
	DepthKey  float32
}

// TransformBuffer is the ordered output of a batch build. Both slices alias
// the builder's scratch storage and stay valid until the next Build.
type TransformBuffer struct {
	Transforms []mgl32.Mat4
	Indices    []int
}

func (b TransformBuffer) Count() int { return len(b.Transforms) }

// BatchBuilder turns a particle snapshot into an ordered instance batch.
// Its working set and output buffers are allocated once and reused.
type BatchBuilder struct {
	capacity   int
	candidates []InstanceCandidate
	keys       []float32
	transforms []mgl32.Mat4
	indices    []int
}

func NewBatchBuilder(capacity int) *BatchBuilder {
	if capacity <= 0 {
		capacity = MaxInstancesPerDraw
	}
	return &BatchBuilder{
		capacity:   capacity,
		candidates: make([]InstanceCandidate, 0, capacity),
		keys:       make([]float32, 0, capacity),
		transforms: make([]mgl32.Mat4, 0, capacity),
		indices:    make([]int, 0, capacity),
	}
}

func (b *BatchBuilder) Capacity() int { return b.capacity }

// Candidates returns the working set of the last Build in output order.
func (b *BatchBuilder) Candidates() []InstanceCandidate { return b.candidates }

func (b *BatchBuilder) effectiveCapacity(cfg *BatchConfig) int {
	if cfg.Capacity > 0 && cfg.Capacity < b.capacity {
		return cfg.Capacity
	}
	return b.capacity
}

// Build computes instance transforms for the first capacity particles, in
// snapshot order, culls and orders them, and flattens the result.
func (b *BatchBuilder) Build(particles []ParticleSample, cfg BatchConfig, view View) TransformBuffer {
	b.candidates = b.candidates[:0]
	b.keys = b.keys[:0]

	limit := min(len(particles), b.effectiveCapacity(&cfg))

	for i := 0; i < limit; i++ {
		p := &particles[i]

		rot := Orientation(cfg.Rotation, p, view.Position)
		scale := MulComponents(p.Size, cfg.MeshScale)
		pos := p.Position.Add(rot.Rotate(cfg.MeshOffset))

		if cfg.FrustumCull && !IsSphereInFrustum(view.Planes, pos, cfg.BoundRadius*maxComponent(scale), cfg.FrustumPadding) {
			continue
		}

		c := InstanceCandidate{
			Index:     i,
			Transform: ComposeTRS(pos, rot, scale),
		}
		if cfg.SortByDepth {
			c.DepthKey = view.Position.Sub(pos).LenSqr()
		}
		b.insert(c, &cfg)
	}

	b.transforms = b.transforms[:0]
	b.indices = b.indices[:0]
	for i := range b.candidates {
		b.transforms = append(b.transforms, b.candidates[i].Transform)
		b.indices = append(b.indices, b.candidates[i].Index)
	}

	return TransformBuffer{Transforms: b.transforms, Indices: b.indices}
}

func (b *BatchBuilder) insert(c InstanceCandidate, cfg *BatchConfig) {
	if !cfg.SortByDepth {
		b.candidates = append(b.candidates, c)
		b.keys = append(b.keys, c.DepthKey)
		return
	}
	idx := FindInsertIndex(c.DepthKey, b.keys, cfg.SortOrder)
	b.candidates = slices.Insert(b.candidates, idx, c)
	b.keys = slices.Insert(b.keys, idx, c.DepthKey)
}
