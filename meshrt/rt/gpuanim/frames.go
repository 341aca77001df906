package gpuanim

import (
	"github.com/gekko3d/instancing"
	"github.com/gekko3d/instancing/meshrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// ParticleAnimation is one weighted entry of a particle animation set.
// AnimationIndex indexes the controller's baked animations.
type ParticleAnimation struct {
	AnimationIndex int
	Probability    float32
	// SpeedRange is the playback speed {min, max}. The zero value plays at 1x.
	SpeedRange [2]float32
}

// FrameUpdater writes the animation texture frame of every rendered
// particle into core.InstanceParamsProperty as
// {frame, animation index, normalised age, speed}.
//
// With Animations set, each particle picks an entry by weighted
// probability and a speed from its range, both derived from the
// particle's RandomSeed so the choice is stable over its life. Otherwise
// every particle plays Clip at 1x. Particles play from their spawn time.
type FrameUpdater struct {
	Controller *OverrideController
	Clip       *AnimationClip
	Animations []ParticleAnimation
}

var _ instancing.PropertyUpdater = (*FrameUpdater)(nil)

func (u *FrameUpdater) UpdateProperties(sys *instancing.MeshInstanceParticleSystem, props *core.PropertyBlock) {
	n := sys.NumRenderedParticles()
	params := props.VectorArray(core.InstanceParamsProperty, n)

	clipIdx := -1
	if u.Controller != nil && u.Clip != nil {
		clipIdx = u.Controller.AnimationIndex(u.Clip.Name)
	}

	for i := 0; i < n; i++ {
		p := sys.RenderedParticle(i)

		idx, speed := clipIdx, float32(1)
		if len(u.Animations) > 0 {
			idx, speed = u.choose(p.RandomSeed)
		}
		if u.Controller == nil || idx < 0 || idx >= len(u.Controller.Animations) {
			params[i] = mgl32.Vec4{0, -1, p.NormalizedAge(), speed}
			continue
		}
		anim := u.Controller.Animations[idx]
		params[i] = mgl32.Vec4{float32(SampleFrame(anim, p.Age*speed)), float32(idx), p.NormalizedAge(), speed}
	}
}

// choose maps a particle seed to an animation index and playback speed.
func (u *FrameUpdater) choose(seed uint32) (int, float32) {
	entry := PickAnimation(u.Animations, unitFloat(hashSeed(seed)))
	if entry == nil {
		return -1, 1
	}
	return entry.AnimationIndex, entry.Speed(unitFloat(hashSeed(seed ^ 0x9e3779b9)))
}

// PickAnimation returns the entry whose cumulative probability window
// contains r in [0,1). Negative probabilities count as zero; if every
// weight is zero the first entry wins.
func PickAnimation(anims []ParticleAnimation, r float32) *ParticleAnimation {
	if len(anims) == 0 {
		return nil
	}
	var total float32
	for _, a := range anims {
		total += max(0, a.Probability)
	}
	if total <= 0 {
		return &anims[0]
	}

	target := r * total
	var acc float32
	last := 0
	for i := range anims {
		w := max(0, anims[i].Probability)
		if w == 0 {
			continue
		}
		acc += w
		last = i
		if target < acc {
			return &anims[i]
		}
	}
	return &anims[last]
}

// Speed interpolates SpeedRange at t in [0,1].
func (a ParticleAnimation) Speed(t float32) float32 {
	lo, hi := a.SpeedRange[0], a.SpeedRange[1]
	if lo == 0 && hi == 0 {
		return 1
	}
	return lo + (hi-lo)*t
}

// hashSeed is a 32-bit integer finaliser (murmur3 fmix32).
func hashSeed(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x85ebca6b
	x ^= x >> 13
	x *= 0xc2b2ae35
	x ^= x >> 16
	return x
}

// unitFloat maps a hash to [0,1) using its top 24 bits.
func unitFloat(h uint32) float32 {
	return float32(h>>8) / (1 << 24)
}

// SampleFrame maps a playback time to an absolute texture frame.
func SampleFrame(anim Animation, t float32) int {
	if anim.FrameCount <= 0 {
		return anim.StartFrame
	}
	if t < 0 {
		t = 0
	}
	frame := int(t * anim.FPS)
	if anim.Loop {
		frame %= anim.FrameCount
	} else if frame >= anim.FrameCount {
		frame = anim.FrameCount - 1
	}
	return anim.StartFrame + frame
}
