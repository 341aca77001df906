package instancing

import (
	"errors"
	"fmt"

	"github.com/gekko3d/instancing/meshrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrNoMesh                = errors.New("mesh instancing: no mesh assigned")
	ErrInsufficientMaterials = errors.New("mesh instancing: fewer materials than submeshes")
	ErrNotInitialised        = errors.New("mesh instancing: particle source or dispatcher missing")
)

// ParticleSource is the live particle pool a system draws from.
type ParticleSource interface {
	MaxParticles() int
	// Particles copies the live particles into dst and returns how many
	// were written.
	Particles(dst []core.ParticleSample) int
}

// BoundedSource is a ParticleSource that can report a box around its live
// particles, letting a culled system skip the whole batch.
type BoundedSource interface {
	ParticleSource
	Bounds() (box [2]mgl32.Vec3, maxSize float32, ok bool)
}

// Dispatcher issues instanced draws. It is called once per submesh with
// at most core.MaxInstancesPerDraw transforms.
type Dispatcher interface {
	DrawInstanced(mesh *core.Mesh, submesh int, material *core.Material, transforms []mgl32.Mat4, count int, props *core.PropertyBlock, shadows core.ShadowCastingMode)
}

// PropertyUpdater fills per-instance material properties after the batch
// is built and before it is drawn.
type PropertyUpdater interface {
	UpdateProperties(sys *MeshInstanceParticleSystem, props *core.PropertyBlock)
}

// MeshInstanceParticleSystem draws every live particle of Source as an
// instance of Mesh.
type MeshInstanceParticleSystem struct {
	Mesh          *core.Mesh
	Materials     []*core.Material
	Config        core.BatchConfig
	ShadowCasting core.ShadowCastingMode

	Source     ParticleSource
	Dispatcher Dispatcher
	Properties PropertyUpdater
	Logger     Logger

	particles []core.ParticleSample
	builder   *core.BatchBuilder
	props     *core.PropertyBlock
	rendered  core.TransformBuffer
}

func NewMeshInstanceParticleSystem(mesh *core.Mesh, materials []*core.Material, source ParticleSource, dispatcher Dispatcher) *MeshInstanceParticleSystem {
	return &MeshInstanceParticleSystem{
		Mesh:       mesh,
		Materials:  materials,
		Config:     core.DefaultBatchConfig(),
		Source:     source,
		Dispatcher: dispatcher,
	}
}

// Update is the per-frame hook. Frames that cannot be drawn are skipped.
func (s *MeshInstanceParticleSystem) Update(cam *core.CameraState, aspect float32) {
	if cam == nil {
		return
	}
	if _, err := s.Render(cam.View(aspect)); err != nil {
		loggerOrNop(s.Logger).Debugf("skipping particle batch: %v", err)
	}
}

func (s *MeshInstanceParticleSystem) initialiseIfNeeded() {
	if s.props == nil {
		s.props = core.NewPropertyBlock()
	}

	maxParticles := s.Source.MaxParticles()
	if maxParticles < 1 {
		maxParticles = 1
	}
	if len(s.particles) != maxParticles {
		s.particles = make([]core.ParticleSample, maxParticles)
		s.builder = core.NewBatchBuilder(min(maxParticles, core.MaxInstancesPerDraw))
		s.rendered = core.TransformBuffer{}
	}
}

func (s *MeshInstanceParticleSystem) validate() error {
	if s.Source == nil || s.Dispatcher == nil {
		return ErrNotInitialised
	}
	if s.Mesh == nil {
		return ErrNoMesh
	}
	if len(s.Materials) < s.Mesh.SubMeshCount() {
		return fmt.Errorf("%w: %d materials for %d submeshes", ErrInsufficientMaterials, len(s.Materials), s.Mesh.SubMeshCount())
	}
	for i := 0; i < s.Mesh.SubMeshCount(); i++ {
		if s.Materials[i] == nil {
			return fmt.Errorf("%w: material %d is nil", ErrInsufficientMaterials, i)
		}
	}
	return nil
}

// Render builds this frame's batch for view and dispatches it. It returns
// the number of instances drawn. On error nothing is drawn.
func (s *MeshInstanceParticleSystem) Render(view core.View) (int, error) {
	s.rendered = core.TransformBuffer{}
	if err := s.validate(); err != nil {
		return 0, err
	}
	s.initialiseIfNeeded()

	if s.Config.FrustumCull && !s.sourceVisible(view) {
		return 0, nil
	}

	alive := s.Source.Particles(s.particles)
	alive = max(0, min(alive, len(s.particles)))
	if alive == 0 {
		return 0, nil
	}

	s.rendered = s.builder.Build(s.particles[:alive], s.Config, view)
	count := s.rendered.Count()
	if count == 0 {
		return 0, nil
	}

	if s.Properties != nil {
		s.Properties.UpdateProperties(s, s.props)
	}

	for i := 0; i < s.Mesh.SubMeshCount(); i++ {
		s.Dispatcher.DrawInstanced(s.Mesh, i, s.Materials[i], s.rendered.Transforms, count, s.props, s.ShadowCasting)
	}
	return count, nil
}

// sourceVisible is the coarse whole-source cull. The box is grown by the
// largest cull sphere any particle can get from Config, so it never rejects
// a particle the per-instance test would keep.
func (s *MeshInstanceParticleSystem) sourceVisible(view core.View) bool {
	bs, ok := s.Source.(BoundedSource)
	if !ok {
		return true
	}
	box, maxSize, ok := bs.Bounds()
	if !ok {
		return true
	}
	scale := s.Config.MeshScale
	maxScale := max(abs32(scale[0]), abs32(scale[1]), abs32(scale[2]))
	margin := max(0, s.Config.BoundRadius)*maxSize*maxScale + s.Config.MeshOffset.Len() + max(0, s.Config.FrustumPadding)
	return core.AABBInFrustum(core.ExpandAABB(box, margin), view.Planes)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// NumRenderedParticles is the instance count of the last Render.
func (s *MeshInstanceParticleSystem) NumRenderedParticles() int {
	return s.rendered.Count()
}

// RenderedParticleIndex maps instance i of the last Render back to its
// position in the particle snapshot.
func (s *MeshInstanceParticleSystem) RenderedParticleIndex(i int) int {
	return s.rendered.Indices[i]
}

// RenderedParticle returns the particle drawn as instance i.
func (s *MeshInstanceParticleSystem) RenderedParticle(i int) *core.ParticleSample {
	return &s.particles[s.rendered.Indices[i]]
}

// Transforms returns the transform buffer of the last Render.
func (s *MeshInstanceParticleSystem) Transforms() core.TransformBuffer {
	return s.rendered
}
