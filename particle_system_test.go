package instancing

import (
	"fmt"
	"testing"

	"github.com/gekko3d/instancing/meshrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	max       int
	particles []core.ParticleSample
}

func (s *sliceSource) MaxParticles() int { return s.max }

func (s *sliceSource) Particles(dst []core.ParticleSample) int {
	return copy(dst, s.particles)
}

type drawCall struct {
	submesh    int
	material   *core.Material
	transforms []mgl32.Mat4
	count      int
	shadows    core.ShadowCastingMode
}

type recordingDispatcher struct {
	calls []drawCall
}

func (d *recordingDispatcher) DrawInstanced(mesh *core.Mesh, submesh int, material *core.Material, transforms []mgl32.Mat4, count int, props *core.PropertyBlock, shadows core.ShadowCastingMode) {
	d.calls = append(d.calls, drawCall{
		submesh:    submesh,
		material:   material,
		transforms: append([]mgl32.Mat4(nil), transforms[:count]...),
		count:      count,
		shadows:    shadows,
	})
}

type countingUpdater struct {
	calls int
	seen  []int
}

func (u *countingUpdater) UpdateProperties(sys *MeshInstanceParticleSystem, props *core.PropertyBlock) {
	u.calls++
	u.seen = u.seen[:0]
	for i := 0; i < sys.NumRenderedParticles(); i++ {
		u.seen = append(u.seen, sys.RenderedParticleIndex(i))
	}
}

type recordingLogger struct {
	nopLogger
	debug []string
}

func (l *recordingLogger) Debugf(format string, args ...any) {
	l.debug = append(l.debug, fmt.Sprintf(format, args...))
}

func particlesAt(zs ...float32) []core.ParticleSample {
	ps := make([]core.ParticleSample, len(zs))
	for i, z := range zs {
		ps[i] = core.ParticleSample{Position: mgl32.Vec3{0, 0, z}, Size: mgl32.Vec3{1, 1, 1}}
	}
	return ps
}

func originView() core.View {
	cam := core.NewCameraState()
	cam.Position = mgl32.Vec3{}
	return cam.View(1)
}

func newTestSystem(submeshes bool, particles []core.ParticleSample) (*MeshInstanceParticleSystem, *recordingDispatcher) {
	mesh := core.NewCubeMesh("cube", submeshes)
	materials := []*core.Material{
		core.NewMaterial("sides", [4]float32{1, 0, 0, 1}),
		core.NewMaterial("caps", [4]float32{0, 1, 0, 1}),
	}
	d := &recordingDispatcher{}
	src := &sliceSource{max: 64, particles: particles}
	return NewMeshInstanceParticleSystem(mesh, materials, src, d), d
}

func TestRender_NoMesh(t *testing.T) {
	sys, d := newTestSystem(false, particlesAt(-5))
	sys.Mesh = nil

	n, err := sys.Render(originView())
	assert.ErrorIs(t, err, ErrNoMesh)
	assert.Zero(t, n)
	assert.Empty(t, d.calls)
}

func TestRender_InsufficientMaterials(t *testing.T) {
	sys, d := newTestSystem(true, particlesAt(-5))
	sys.Materials = sys.Materials[:1]

	_, err := sys.Render(originView())
	assert.ErrorIs(t, err, ErrInsufficientMaterials)
	assert.Empty(t, d.calls)

	sys.Materials = []*core.Material{sys.Materials[0], nil}
	_, err = sys.Render(originView())
	assert.ErrorIs(t, err, ErrInsufficientMaterials)
	assert.Empty(t, d.calls)
}

func TestRender_NotInitialised(t *testing.T) {
	sys, _ := newTestSystem(false, particlesAt(-5))
	sys.Dispatcher = nil
	_, err := sys.Render(originView())
	assert.ErrorIs(t, err, ErrNotInitialised)
}

func TestRender_NoParticles(t *testing.T) {
	sys, d := newTestSystem(false, nil)
	updater := &countingUpdater{}
	sys.Properties = updater

	n, err := sys.Render(originView())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, d.calls)
	assert.Zero(t, updater.calls)
	assert.Zero(t, sys.NumRenderedParticles())
}

func TestRender_OneDrawPerSubmesh(t *testing.T) {
	sys, d := newTestSystem(true, particlesAt(-5, -1, -3))
	sys.ShadowCasting = core.ShadowsOn

	n, err := sys.Render(originView())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, d.calls, 2)
	for i, c := range d.calls {
		assert.Equal(t, i, c.submesh)
		assert.Same(t, sys.Materials[i], c.material)
		assert.Equal(t, 3, c.count)
		assert.Len(t, c.transforms, 3)
		assert.Equal(t, core.ShadowsOn, c.shadows)
	}
}

func TestRender_SortedScenario(t *testing.T) {
	sys, d := newTestSystem(false, particlesAt(-5, -1, -3))
	sys.Config.SortByDepth = true
	updater := &countingUpdater{}
	sys.Properties = updater

	_, err := sys.Render(originView())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 0}, updater.seen)
	assert.Equal(t, 1, updater.calls)
	require.Len(t, d.calls, 1)
	assert.Equal(t, float32(-1), core.TranslationOf(d.calls[0].transforms[0]).Z())
	assert.Equal(t, float32(-5), sys.RenderedParticle(2).Position.Z())
}

func TestRender_CapacityIsBoundedByInstancingLimit(t *testing.T) {
	ps := make([]core.ParticleSample, 1500)
	for i := range ps {
		ps[i] = core.ParticleSample{Position: mgl32.Vec3{0, 0, -float32(i) - 1}, Size: mgl32.Vec3{1, 1, 1}}
	}
	sys, d := newTestSystem(false, ps)
	sys.Source = &sliceSource{max: 2000, particles: ps}

	n, err := sys.Render(originView())
	require.NoError(t, err)
	assert.Equal(t, core.MaxInstancesPerDraw, n)
	assert.Equal(t, core.MaxInstancesPerDraw, d.calls[0].count)
	assert.Equal(t, core.MaxInstancesPerDraw-1, sys.RenderedParticleIndex(n-1))
}

func TestUpdate_SkipsAndLogs(t *testing.T) {
	sys, d := newTestSystem(false, particlesAt(-5))
	sys.Mesh = nil
	logger := &recordingLogger{}
	sys.Logger = logger

	sys.Update(core.NewCameraState(), 1)
	assert.Empty(t, d.calls)
	require.Len(t, logger.debug, 1)
	assert.Contains(t, logger.debug[0], ErrNoMesh.Error())
}

func TestUpdate_DrawsFromEmitter(t *testing.T) {
	cfg := DefaultEmitterConfig()
	cfg.MaxParticles = 50
	em := NewParticleEmitter(cfg, 1)
	em.Emit(20)

	cam := core.NewCameraState()
	cam.Position = mgl32.Vec3{0, 0, 20}

	d := &recordingDispatcher{}
	sys := NewMeshInstanceParticleSystem(core.NewCubeMesh("cube", false), []*core.Material{core.NewMaterial("m", [4]float32{1, 1, 1, 1})}, em, d)
	sys.Update(cam, 16.0/9.0)

	require.Len(t, d.calls, 1)
	assert.Equal(t, 20, d.calls[0].count)
}

type boundedSource struct {
	sliceSource
	box     [2]mgl32.Vec3
	maxSize float32
	queried int
}

func (s *boundedSource) Bounds() ([2]mgl32.Vec3, float32, bool) {
	s.queried++
	return s.box, s.maxSize, len(s.particles) > 0
}

func TestRender_BoundedSourceCulledAsAWhole(t *testing.T) {
	sys, d := newTestSystem(false, nil)
	src := &boundedSource{
		sliceSource: sliceSource{max: 8, particles: particlesAt(50, 60)},
		box:         [2]mgl32.Vec3{{0, 0, 50}, {0, 0, 60}},
		maxSize:     1,
	}
	sys.Source = src
	sys.Config.FrustumCull = true

	n, err := sys.Render(originView())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, d.calls)
	assert.Equal(t, 1, src.queried)
}

func TestRender_BoundedSourceMarginKeepsEdgeParticles(t *testing.T) {
	sys, d := newTestSystem(false, nil)
	// Just behind the near plane, but its cull sphere still reaches into view.
	ps := []core.ParticleSample{{Position: mgl32.Vec3{0, 0, 0.5}, Size: mgl32.Vec3{2, 2, 2}}}
	src := &boundedSource{
		sliceSource: sliceSource{max: 8, particles: ps},
		box:         [2]mgl32.Vec3{ps[0].Position, ps[0].Position},
		maxSize:     2,
	}
	sys.Source = src
	sys.Config.FrustumCull = true

	n, err := sys.Render(originView())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, d.calls, 1)
}

func TestRender_BoundsIgnoredWithoutCulling(t *testing.T) {
	sys, d := newTestSystem(false, nil)
	src := &boundedSource{sliceSource: sliceSource{max: 8, particles: particlesAt(50)}}
	sys.Source = src

	n, err := sys.Render(originView())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, d.calls, 1)
	assert.Zero(t, src.queried)
}
