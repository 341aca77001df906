package app

import (
	"fmt"
	"time"

	"github.com/gekko3d/instancing"
	"github.com/gekko3d/instancing/meshrt/rt/core"
	"github.com/gekko3d/instancing/meshrt/rt/debugview"
	"github.com/gekko3d/instancing/meshrt/rt/gpu"
	"github.com/gekko3d/instancing/meshrt/rt/gpuanim"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

type Options struct {
	Particles int
	Rotation  core.RotationPolicy
	Sort      bool
	Order     core.SortOrder
	Cull      bool
	Debug     bool
}

type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Pass    *gpu.MeshInstancePass
	Camera  *core.CameraState
	Time    *instancing.Time
	Emitter *instancing.ParticleEmitter
	System  *instancing.MeshInstanceParticleSystem
	Logger  instancing.Logger

	Animation *gpuanim.Renderer
	Profiler  *Profiler

	LightDir      mgl32.Vec3
	MouseCaptured bool
	MouseX        float64
	MouseY        float64
	DebugMode     bool
	SnapshotCount int

	FrameCount     int
	FPS            float64
	FPSTime        float64
	LastRenderTime float64
}

func NewApp(window *glfw.Window, opts Options) *App {
	logger := instancing.NewDefaultLogger("meshrt", opts.Debug)

	emitterCfg := instancing.DefaultEmitterConfig()
	if opts.Particles > 0 {
		emitterCfg.MaxParticles = opts.Particles
		emitterCfg.SpawnRate = float32(opts.Particles) / 3
	}
	emitter := instancing.NewParticleEmitter(emitterCfg, time.Now().UnixNano())

	mesh := core.NewCubeMesh("particle_cube", true)
	materials := []*core.Material{
		core.NewMaterial("ember_sides", [4]float32{1.0, 0.55, 0.15, 0.85}),
		core.NewMaterial("ember_caps", [4]float32{1.0, 0.85, 0.4, 0.85}),
	}

	sys := instancing.NewMeshInstanceParticleSystem(mesh, materials, emitter, nil)
	sys.Config.Rotation = opts.Rotation
	sys.Config.SortByDepth = opts.Sort
	sys.Config.SortOrder = opts.Order
	sys.Config.FrustumCull = opts.Cull
	sys.Config.BoundRadius = 0.87 // half diagonal of the unit cube
	sys.Config.FrustumPadding = 0.5
	sys.Logger = logger

	animRenderer, frames := newParticleAnimation()
	sys.Properties = frames

	cam := core.NewCameraState()
	cam.Position = mgl32.Vec3{0, 6, 25}
	cam.Pitch = -0.15

	return &App{
		Window:    window,
		Camera:    cam,
		Time:      instancing.NewTime(),
		Emitter:   emitter,
		System:    sys,
		Logger:    logger,
		Animation: animRenderer,
		Profiler:  NewProfiler(),
		LightDir:  mgl32.Vec3{-0.4, -1, -0.3},
		DebugMode: opts.Debug,
	}
}

// staticAnimator drives every particle from one controller.
type staticAnimator struct {
	controller *gpuanim.Controller
}

func (s staticAnimator) RuntimeController() *gpuanim.Controller { return s.controller }

// newParticleAnimation bakes the particle clips and returns the frame
// updater that spreads them over particles: mostly tumbling, some
// flickering faster.
func newParticleAnimation() (*gpuanim.Renderer, *gpuanim.FrameUpdater) {
	tumble := gpuanim.NewAnimationClip("tumble", 48, 24, true)
	flicker := gpuanim.NewAnimationClip("flicker", 12, 24, true)
	ctrl := gpuanim.NewController("particle", tumble, flicker)

	renderer := &gpuanim.Renderer{AnimationTexture: gpuanim.Bake(tumble, flicker)}
	gpuanim.NewOverrider(renderer, ctrl).CreateOverrideControllers()
	oc := gpuanim.OverrideControllerFor(renderer, staticAnimator{ctrl})

	return renderer, &gpuanim.FrameUpdater{
		Controller: oc,
		Clip:       tumble,
		Animations: []gpuanim.ParticleAnimation{
			{AnimationIndex: oc.AnimationIndex(tumble.Name), Probability: 0.8, SpeedRange: [2]float32{0.75, 1.25}},
			{AnimationIndex: oc.AnimationIndex(flicker.Name), Probability: 0.2, SpeedRange: [2]float32{1.5, 3}},
		},
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	format := caps.Formats[0]

	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	a.Pass, err = gpu.NewMeshInstancePass(a.Device, format, 4)
	if err != nil {
		return fmt.Errorf("instanced mesh pass: %w", err)
	}
	a.Pass.Logger = a.Logger
	a.System.Dispatcher = a.Pass

	a.Logger.Infof("viewer ready: %dx%d, %d max particles, rotation=%s sort=%v/%s cull=%v",
		width, height, a.Emitter.MaxParticles(), a.System.Config.Rotation,
		a.System.Config.SortByDepth, a.System.Config.SortOrder, a.System.Config.FrustumCull)
	return nil
}

func (a *App) Resize(w, h int) {
	if w > 0 && h > 0 {
		a.Config.Width = uint32(w)
		a.Config.Height = uint32(h)
		a.Surface.Configure(a.Adapter, a.Device, a.Config)
	}
}

func (a *App) aspect() float32 {
	if a.Config == nil || a.Config.Height == 0 {
		return 1
	}
	return float32(a.Config.Width) / float32(a.Config.Height)
}

func (a *App) Update() {
	a.Time.Tick(time.Now())
	dt := a.Time.Seconds()

	a.moveCamera(dt)

	a.Profiler.BeginScope("simulate")
	a.Emitter.Update(a.Time)
	a.Profiler.EndScope("simulate")
	a.Profiler.SetCount("alive", a.Emitter.Alive())
}

func (a *App) moveCamera(dt float32) {
	if a.Window == nil {
		return
	}
	step := a.Camera.Speed * dt
	forward := a.Camera.GetForward()
	right := a.Camera.GetRight()

	if a.Window.GetKey(glfw.KeyW) == glfw.Press {
		a.Camera.Position = a.Camera.Position.Add(forward.Mul(step))
	}
	if a.Window.GetKey(glfw.KeyS) == glfw.Press {
		a.Camera.Position = a.Camera.Position.Sub(forward.Mul(step))
	}
	if a.Window.GetKey(glfw.KeyD) == glfw.Press {
		a.Camera.Position = a.Camera.Position.Add(right.Mul(step))
	}
	if a.Window.GetKey(glfw.KeyA) == glfw.Press {
		a.Camera.Position = a.Camera.Position.Sub(right.Mul(step))
	}
}

// Look applies a mouse delta to the camera.
func (a *App) Look(dx, dy float32) {
	a.Camera.Yaw += dx * a.Camera.Sensitivity
	a.Camera.Pitch -= dy * a.Camera.Sensitivity
	a.Camera.Pitch = mgl32.Clamp(a.Camera.Pitch, -1.5, 1.5)
}

// Snapshot writes a top-down picture of the last batch.
func (a *App) Snapshot() {
	a.SnapshotCount++
	path := fmt.Sprintf("meshrt_snapshot_%03d.png", a.SnapshotCount)
	img := debugview.Snapshot(a.System.Transforms(), a.Camera.View(a.aspect()), debugview.DefaultOptions())
	if err := debugview.WritePNG(path, img); err != nil {
		a.Logger.Errorf("%v", err)
		return
	}
	a.Logger.Infof("wrote %s", path)
}

func (a *App) Render() {
	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.Logger.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.Logger.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		a.Logger.Errorf("CreateCommandEncoder failed: %v", err)
		return
	}

	camView := a.Camera.View(a.aspect())
	a.Pass.UpdateCamera(camView.ViewProj, a.LightDir)

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{0.02, 0.02, 0.04, 1},
		}},
	})

	a.Profiler.BeginScope("batch")
	a.Pass.Begin(rPass)
	a.System.Update(a.Camera, a.aspect())
	a.Pass.End()
	a.Profiler.EndScope("batch")
	a.Profiler.SetCount("drawn", a.System.NumRenderedParticles())

	if err := rPass.End(); err != nil {
		a.Logger.Errorf("Render pass End failed: %v", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		a.Logger.Errorf("Encoder Finish failed: %v", err)
		return
	}
	a.Profiler.BeginScope("submit")
	a.Queue.Submit(cmd)
	a.Surface.Present()
	a.Profiler.EndScope("submit")

	now := glfw.GetTime()
	if a.LastRenderTime > 0 {
		a.FrameCount++
		a.FPSTime += now - a.LastRenderTime
		if a.FPSTime >= 1.0 {
			a.FPS = float64(a.FrameCount) / a.FPSTime
			a.FrameCount = 0
			a.FPSTime = 0
			if a.DebugMode {
				a.Logger.Debugf("%.1f fps\n%s", a.FPS, a.Profiler.GetStatsString())
			}
		}
	}
	a.LastRenderTime = now
}

func (a *App) Release() {
	if a.Pass != nil {
		a.Pass.Release()
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}
