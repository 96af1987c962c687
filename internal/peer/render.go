package peer

import (
	"image"
	"image/color"
	stddraw "image/draw"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Feed canvas geometry
const (
	FrameWidth   = 640
	FrameHeight  = 480
	avatarRadius = 80
	statusRadius = 8
)

var (
	gradientFrom = color.RGBA{0x66, 0x7e, 0xea, 0xff}
	gradientTo   = color.RGBA{0x76, 0x4b, 0xa2, 0xff}
	statusGreen  = color.NRGBA{0x4a, 0xde, 0x80, 0xff}
	labelColor   = color.NRGBA{0xff, 0xff, 0xff, 0xcc}
)

// circle is an alpha mask for a filled circle
type circle struct {
	p image.Point
	r int
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(c.p.X-c.r, c.p.Y-c.r, c.p.X+c.r, c.p.Y+c.r)
}

func (c *circle) At(x, y int) color.Color {
	xx, yy, rr := float64(x-c.p.X)+0.5, float64(y-c.p.Y)+0.5, float64(c.r)
	if xx*xx+yy*yy < rr*rr {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}

// renderBase draws the static part of the companion card: background,
// circular avatar, name and label.
func renderBase(name string, avatar image.Image) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, FrameWidth, FrameHeight))
	fillGradient(img)

	cx, cy := FrameWidth/2, FrameHeight/2
	center := image.Pt(cx, cy-50)
	mask := &circle{p: center, r: avatarRadius}
	dst := mask.Bounds()

	if avatar == nil {
		avatar = initialAvatar(name)
	}
	// mask is already in frame coordinates
	draw.CatmullRom.Scale(img, dst, avatar, avatar.Bounds(), draw.Over, &draw.Options{
		DstMask: mask,
	})

	drawCentered(img, name, cy+80, color.White)
	drawCentered(img, "AI Companion", cy+110, labelColor)

	return img
}

// renderFrame copies base and adds the status dot, pulsing with tick
func renderFrame(dst, base *image.RGBA, tick uint64) {
	copy(dst.Pix, base.Pix)

	dot := statusGreen
	// fade the dot over a one second cycle at 30 fps
	phase := int(tick % 30)
	if phase > 15 {
		phase = 30 - phase
	}
	dot.A = uint8(255 - phase*6)

	center := image.Pt(FrameWidth/2+100, FrameHeight/2-100)
	m := &circle{p: center, r: statusRadius}
	stddraw.DrawMask(dst, m.Bounds(), image.NewUniform(dot), image.Point{}, m, m.Bounds().Min, stddraw.Over)
}

func fillGradient(img *image.RGBA) {
	w, h := FrameWidth, FrameHeight
	den := float64(w*w + h*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t := float64(x*w+y*h) / den
			img.SetRGBA(x, y, lerp(gradientFrom, gradientTo, t))
		}
	}
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t) }
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 0xff}
}

func drawCentered(img *image.RGBA, text string, baseline int, c color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P((FrameWidth-width)/2, baseline),
	}
	d.DrawString(text)
}

// initialAvatar is the fallback when the avatar image cannot be loaded:
// the first letter of the name on a darker disc.
func initialAvatar(name string) image.Image {
	size := avatarRadius * 2
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	stddraw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{0x4c, 0x3f, 0x91, 0xff}), image.Point{}, stddraw.Src)

	letter := "?"
	if r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name)); r != utf8.RuneError {
		letter = strings.ToUpper(string(r))
	}

	face := basicfont.Face7x13
	width := font.MeasureString(face, letter).Ceil()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P((size-width)/2, size/2+5),
	}
	d.DrawString(letter)
	return img
}
