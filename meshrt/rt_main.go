package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/gekko3d/instancing/meshrt/rt/app"
	"github.com/gekko3d/instancing/meshrt/rt/core"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging and per-second frame stats")
	particles := flag.Int("particles", 2000, "Maximum live particles")
	rotation := flag.String("rotation", "billboard", "Instance rotation: particle, billboard or velocity")
	sortOrder := flag.String("sort", "near", "Depth order: near, far or off")
	cull := flag.Bool("cull", true, "Cull particles outside the view frustum")
	flag.Parse()

	opts := app.Options{
		Particles: *particles,
		Cull:      *cull,
		Debug:     *debug,
	}
	policy, ok := core.ParseRotationPolicy(*rotation)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown rotation %q\n", *rotation)
		os.Exit(2)
	}
	opts.Rotation = policy
	switch *sortOrder {
	case "off":
	case "near":
		opts.Sort, opts.Order = true, core.NearestFirst
	case "far":
		opts.Sort, opts.Order = true, core.FarthestFirst
	default:
		fmt.Fprintf(os.Stderr, "unknown sort order %q\n", *sortOrder)
		os.Exit(2)
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "MeshRT Instancing", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, opts)
	if err := application.Init(); err != nil {
		panic(err)
	}
	defer application.Release()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})

	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if application.MouseCaptured {
			application.Look(float32(xpos-application.MouseX), float32(ypos-application.MouseY))
		}
		application.MouseX = xpos
		application.MouseY = ypos
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyTab:
			application.MouseCaptured = !application.MouseCaptured
			if application.MouseCaptured {
				w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
			} else {
				w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
			}
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyF2:
			application.Snapshot()
		case glfw.KeySpace:
			application.Emitter.Emit(application.Emitter.MaxParticles() / 4)
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		application.Render()
	}
}
