package gpuanim

import (
	"github.com/google/uuid"
)

type ClipId string
type ControllerId string

// AnimationClip is a skeletal clip as authored. Only its timing matters here.
type AnimationClip struct {
	ID         ClipId
	Name       string
	FrameCount int
	FPS        float32
	Loop       bool
}

func NewAnimationClip(name string, frameCount int, fps float32, loop bool) *AnimationClip {
	return &AnimationClip{
		ID:         ClipId(uuid.NewString()),
		Name:       name,
		FrameCount: frameCount,
		FPS:        fps,
		Loop:       loop,
	}
}

// CreateOverrideClip makes an empty stand-in clip with the same timing as
// clip, so a state machine can play it while the pose comes from the
// animation texture.
func CreateOverrideClip(clip *AnimationClip) *AnimationClip {
	return &AnimationClip{
		ID:         ClipId(uuid.NewString()),
		Name:       clip.Name + "_GPU",
		FrameCount: clip.FrameCount,
		FPS:        clip.FPS,
		Loop:       clip.Loop,
	}
}

func (c *AnimationClip) Duration() float32 {
	if c.FPS <= 0 {
		return 0
	}
	return float32(c.FrameCount) / c.FPS
}

// Controller is an animation state machine. Base is set when the
// controller only overrides the clips of another controller.
type Controller struct {
	ID    ControllerId
	Name  string
	Clips []*AnimationClip
	Base  *Controller
}

func NewController(name string, clips ...*AnimationClip) *Controller {
	return &Controller{ID: ControllerId(uuid.NewString()), Name: name, Clips: clips}
}

// NewOverrideOf wraps base the way an override controller does.
func NewOverrideOf(name string, base *Controller) *Controller {
	return &Controller{ID: ControllerId(uuid.NewString()), Name: name, Clips: base.Clips, Base: base}
}

// Runtime unwraps override controllers down to the controller they override.
func (c *Controller) Runtime() *Controller {
	for c != nil && c.Base != nil {
		c = c.Base
	}
	return c
}

// Animator is anything driven by a controller.
type Animator interface {
	RuntimeController() *Controller
}

// Animation is one clip baked into an animation texture.
type Animation struct {
	Name       string
	StartFrame int
	FrameCount int
	FPS        float32
	Loop       bool
}

type AnimationTexture struct {
	Animations []Animation
}

func (t *AnimationTexture) GetAnimations() []Animation {
	if t == nil {
		return nil
	}
	return t.Animations
}

// Bake lays out clips back to back and returns the resulting texture layout.
func Bake(clips ...*AnimationClip) *AnimationTexture {
	tex := &AnimationTexture{}
	frame := 0
	for _, c := range clips {
		tex.Animations = append(tex.Animations, Animation{
			Name:       c.Name,
			StartFrame: frame,
			FrameCount: c.FrameCount,
			FPS:        c.FPS,
			Loop:       c.Loop,
		})
		frame += c.FrameCount
	}
	return tex
}

type ClipOverride struct {
	Original *AnimationClip
	Override *AnimationClip
}

// OverrideController pairs a runtime controller with the baked animations
// and the stand-in clips that replace its originals.
type OverrideController struct {
	Controller *Controller
	Animations []Animation
	overrides  map[ClipId]*AnimationClip
}

func NewOverrideController(c *Controller, animations []Animation, overrides ...ClipOverride) *OverrideController {
	oc := &OverrideController{
		Controller: c,
		Animations: animations,
		overrides:  make(map[ClipId]*AnimationClip, len(overrides)),
	}
	for _, o := range overrides {
		oc.overrides[o.Original.ID] = o.Override
	}
	return oc
}

// Clip returns the clip played in place of original.
func (oc *OverrideController) Clip(original *AnimationClip) *AnimationClip {
	if o, ok := oc.overrides[original.ID]; ok {
		return o
	}
	return original
}

func (oc *OverrideController) NumOverrides() int { return len(oc.overrides) }

// AnimationIndex finds the baked animation for a clip name, or -1.
func (oc *OverrideController) AnimationIndex(name string) int {
	for i, a := range oc.Animations {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// Renderer is the GPU animated renderer side: its baked texture and an
// optional overrider.
type Renderer struct {
	AnimationTexture *AnimationTexture
	Overrider        *Overrider
}

// Overrider bakes stand-in clips for a set of controllers once and hands
// out one cached OverrideController per runtime controller.
type Overrider struct {
	Controllers []*Controller

	renderer      *Renderer
	overrideClips []ClipOverride
	cache         map[ControllerId]*OverrideController
}

// NewOverrider attaches a new overrider to renderer.
func NewOverrider(renderer *Renderer, controllers ...*Controller) *Overrider {
	o := &Overrider{
		Controllers: controllers,
		renderer:    renderer,
		cache:       make(map[ControllerId]*OverrideController),
	}
	renderer.Overrider = o
	return o
}

// CreateOverrideControllers creates an override clip for every clip of
// every controller.
func (o *Overrider) CreateOverrideControllers() {
	o.overrideClips = o.overrideClips[:0]
	for _, c := range o.Controllers {
		if c == nil {
			continue
		}
		for _, clip := range c.Clips {
			o.overrideClips = append(o.overrideClips, ClipOverride{
				Original: clip,
				Override: CreateOverrideClip(clip),
			})
		}
	}
	clear(o.cache)
}

func (o *Overrider) OverrideClips() []ClipOverride { return o.overrideClips }

// OverrideController returns the cached override controller for the
// animator's runtime controller, creating it on first use.
func (o *Overrider) OverrideController(animator Animator) *OverrideController {
	rc := animator.RuntimeController().Runtime()
	if rc == nil {
		return nil
	}
	if oc, ok := o.cache[rc.ID]; ok {
		return oc
	}

	var overrides []ClipOverride
	for _, clip := range rc.Clips {
		for _, oclip := range o.overrideClips {
			if oclip.Original == clip {
				overrides = append(overrides, oclip)
			}
		}
	}
	oc := NewOverrideController(rc, o.renderer.AnimationTexture.GetAnimations(), overrides...)
	o.cache[rc.ID] = oc
	return oc
}

// OverrideControllerFor uses the renderer's overrider when it has one and
// otherwise builds a plain override controller with no clip overrides.
func OverrideControllerFor(renderer *Renderer, animator Animator) *OverrideController {
	if renderer.Overrider != nil {
		return renderer.Overrider.OverrideController(animator)
	}
	rc := animator.RuntimeController().Runtime()
	if rc == nil {
		return nil
	}
	return NewOverrideController(rc, renderer.AnimationTexture.GetAnimations())
}
