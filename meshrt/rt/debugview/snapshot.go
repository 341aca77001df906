// Package debugview renders a top-down picture of an instance batch, for
// checking culling and draw order without a GPU.
package debugview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/gekko3d/instancing/meshrt/rt/core"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

type Options struct {
	Width  int
	Height int
	// Extent is the world distance from the camera to the image edge.
	Extent     float32
	Background color.RGBA
}

func DefaultOptions() Options {
	return Options{
		Width:      512,
		Height:     512,
		Extent:     50,
		Background: color.RGBA{16, 16, 24, 255},
	}
}

// OrderColor shades instance i of n from blue (drawn first) to red (drawn last).
func OrderColor(i, n int) color.RGBA {
	t := float32(0)
	if n > 1 {
		t = float32(i) / float32(n-1)
	}
	return color.RGBA{uint8(40 + 215*t), 60, uint8(255 - 215*t), 255}
}

// Project maps a world position onto the snapshot, XZ plane, camera centred.
func Project(opts Options, view core.View, x, z float32) (float32, float32) {
	ppuX := float32(opts.Width) / (2 * opts.Extent)
	ppuY := float32(opts.Height) / (2 * opts.Extent)
	return (x-view.Position.X())*ppuX + float32(opts.Width)/2,
		(z-view.Position.Z())*ppuY + float32(opts.Height)/2
}

// Snapshot draws every instance of buf as a diamond sized by its scale.
func Snapshot(buf core.TransformBuffer, view core.View, opts Options) *image.RGBA {
	if opts.Width <= 0 || opts.Height <= 0 {
		def := DefaultOptions()
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.Extent <= 0 {
		opts.Extent = DefaultOptions().Extent
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	ppu := float32(opts.Width) / (2 * opts.Extent)
	z := vector.NewRasterizer(1, 1)
	z.DrawOp = draw.Over

	n := buf.Count()
	for i, m := range buf.Transforms {
		t := core.TranslationOf(m)
		cx, cy := Project(opts, view, t.X(), t.Z())

		half := max(2, m.Col(0).Vec3().Len()*ppu/2)
		size := int(2*half) + 1
		x0, y0 := int(cx-half), int(cy-half)

		z.Reset(size, size)
		h := float32(size) / 2
		z.MoveTo(h, 0)
		z.LineTo(float32(size), h)
		z.LineTo(h, float32(size))
		z.LineTo(0, h)
		z.ClosePath()
		z.Draw(img, image.Rect(x0, y0, x0+size, y0+size), image.NewUniform(OrderColor(i, n)), image.Point{})
	}

	// Camera marker.
	camX, camY := Project(opts, view, view.Position.X(), view.Position.Z())
	draw.Draw(img, image.Rect(int(camX)-2, int(camY)-2, int(camX)+3, int(camY)+3), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(6, 16),
	}
	d.DrawString(fmt.Sprintf("instances: %d", n))
	return img
}

func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: encode %s: %w", path, err)
	}
	return f.Close()
}
