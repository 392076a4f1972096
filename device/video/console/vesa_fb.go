package console

import (
	"corekernel/device"
	"corekernel/kernel"
	"corekernel/kernel/boot/limine"
	"corekernel/kernel/kfmt"
	"corekernel/kernel/mem"
	"corekernel/kernel/mem/pmm"
	"corekernel/kernel/mem/vmm"
	"image/color"
	"io"
	"reflect"
	"unsafe"
)

// Fixed glyph cell dimensions, in pixels. The bootloader hands us a linear
// framebuffer but no bitmap font; every character occupies a solid cell of
// this size regardless of its value.
const (
	glyphWidth  = 8
	glyphHeight = 16
)

// VesaFbConsole is a console.Device backed by the linear framebuffer the
// bootloader reports. It renders characters as solid colored cells rather
// than shaped glyphs.
type VesaFbConsole struct {
	bpp           uint32
	bytesPerPixel uint32
	fbPhysAddr    uintptr
	fb            []uint8

	redMaskSize, redShift     uint32
	greenMaskSize, greenShift uint32
	blueMaskSize, blueShift   uint32

	width  uint32
	height uint32
	pitch  uint32

	widthInChars  uint32
	heightInChars uint32

	palette   color.Palette
	defaultFg uint8
	defaultBg uint8
}

// NewVesaFbConsole creates a console.Device for the given framebuffer
// description.
func NewVesaFbConsole(fb *limine.Framebuffer) *VesaFbConsole {
	cons := &VesaFbConsole{
		bpp:           uint32(fb.BitsPerPixel),
		bytesPerPixel: uint32(fb.BitsPerPixel+7) >> 3,
		fbPhysAddr:    fb.Address,
		width:         uint32(fb.Width),
		height:        uint32(fb.Height),
		pitch:         uint32(fb.Pitch),
		redMaskSize:   uint32(fb.RedMaskSize),
		redShift:      uint32(fb.RedMaskShift),
		greenMaskSize: uint32(fb.GreenMaskSize),
		greenShift:    uint32(fb.GreenMaskShift),
		blueMaskSize:  uint32(fb.BlueMaskSize),
		blueShift:     uint32(fb.BlueMaskShift),
		defaultFg:     7,
		defaultBg:     0,
	}
	cons.widthInChars = cons.width / glyphWidth
	cons.heightInChars = cons.height / glyphHeight
	return cons
}

// Dimensions returns the console width and height in the specified dimension.
func (cons *VesaFbConsole) Dimensions(dim Dimension) (uint32, uint32) {
	if dim == Characters {
		return cons.widthInChars, cons.heightInChars
	}
	return cons.width, cons.height
}

// DefaultColors returns the default foreground and background colors used by
// this console.
func (cons *VesaFbConsole) DefaultColors() (fg, bg uint8) {
	return cons.defaultFg, cons.defaultBg
}

// Fill sets the contents of the specified rectangular (character) region to
// the requested background color.
func (cons *VesaFbConsole) Fill(x, y, width, height uint32, _, bg uint8) {
	if x == 0 {
		x = 1
	} else if x > cons.widthInChars {
		x = cons.widthInChars
	}
	if y == 0 {
		y = 1
	} else if y > cons.heightInChars {
		y = cons.heightInChars
	}
	if x+width-1 > cons.widthInChars {
		width = cons.widthInChars - x + 1
	}
	if y+height-1 > cons.heightInChars {
		height = cons.heightInChars - y + 1
	}

	cons.fillPixels((x-1)*glyphWidth, (y-1)*glyphHeight, width*glyphWidth, height*glyphHeight, bg)
}

func (cons *VesaFbConsole) fillPixels(pX, pY, pW, pH uint32, colorIndex uint8) {
	comp := cons.packColor(colorIndex)
	rowStart := cons.fbOffset(pX, pY)
	for ; pH > 0; pH, rowStart = pH-1, rowStart+cons.pitch {
		for off := rowStart; off < rowStart+pW*cons.bytesPerPixel; off += cons.bytesPerPixel {
			for b := uint32(0); b < cons.bytesPerPixel && b < uint32(len(comp)); b++ {
				cons.fb[off+b] = comp[b]
			}
		}
	}
}

// Scroll shifts the console contents vertically by lines character rows.
func (cons *VesaFbConsole) Scroll(dir ScrollDir, lines uint32) {
	if lines == 0 || lines > cons.heightInChars {
		return
	}

	shift := lines * glyphHeight * cons.pitch
	switch dir {
	case ScrollDirUp:
		copy(cons.fb, cons.fb[shift:])
	case ScrollDirDown:
		copy(cons.fb[shift:], cons.fb)
	}
}

// Write renders ch as a solid cell of the fg color at (x,y); without a
// bitmap font the glyph shape itself is not drawn.
func (cons *VesaFbConsole) Write(ch byte, fg, bg uint8, x, y uint32) {
	if x < 1 || x > cons.widthInChars || y < 1 || y > cons.heightInChars {
		return
	}

	col := bg
	if ch != ' ' && ch != 0 {
		col = fg
	}
	cons.fillPixels((x-1)*glyphWidth, (y-1)*glyphHeight, glyphWidth, glyphHeight, col)
}

func (cons *VesaFbConsole) fbOffset(x, y uint32) uint32 {
	return y*cons.pitch + x*cons.bytesPerPixel
}

// packColor encodes a palette entry into the framebuffer's native pixel
// format.
func (cons *VesaFbConsole) packColor(colorIndex uint8) []uint8 {
	c := cons.palette[colorIndex].(color.RGBA)
	packed := (uint32(c.R>>(8-cons.redMaskSize)) << cons.redShift) |
		(uint32(c.G>>(8-cons.greenMaskSize)) << cons.greenShift) |
		(uint32(c.B>>(8-cons.blueMaskSize)) << cons.blueShift)

	out := make([]uint8, cons.bytesPerPixel)
	for i := range out {
		out[i] = uint8(packed >> (8 * uint(i)))
	}
	return out
}

// Palette returns the active color palette for this console.
func (cons *VesaFbConsole) Palette() color.Palette {
	return cons.palette
}

// SetPaletteColor updates the color definition for the specified palette
// index.
func (cons *VesaFbConsole) SetPaletteColor(index uint8, rgba color.RGBA) {
	cons.palette[index] = rgba
}

// loadDefaultPalette populates the 16-color EGA-style palette used by the
// shell and panic output.
func (cons *VesaFbConsole) loadDefaultPalette() {
	cons.palette = make(color.Palette, 256)
	ega := []color.RGBA{
		{R: 0, G: 0, B: 0},
		{R: 0, G: 0, B: 128},
		{R: 0, G: 128, B: 0},
		{R: 0, G: 128, B: 128},
		{R: 128, G: 0, B: 0},
		{R: 128, G: 0, B: 128},
		{R: 64, G: 64, B: 0},
		{R: 128, G: 128, B: 128},
		{R: 64, G: 64, B: 64},
		{R: 0, G: 0, B: 255},
		{R: 0, G: 255, B: 0},
		{R: 0, G: 255, B: 255},
		{R: 255, G: 0, B: 0},
		{R: 255, G: 0, B: 255},
		{R: 255, G: 255, B: 0},
		{R: 255, G: 255, B: 255},
	}

	var i int
	for ; i < len(ega); i++ {
		cons.palette[i] = ega[i]
	}
	for ; i < len(cons.palette); i++ {
		cons.palette[i] = ega[0]
	}
}

// DriverName returns the name of this driver.
func (cons *VesaFbConsole) DriverName() string { return "vesa_fb_console" }

// DriverVersion returns the version of this driver.
func (cons *VesaFbConsole) DriverVersion() (uint16, uint16, uint16) { return 0, 0, 1 }

// DriverInit maps the physical framebuffer into kernel address space and
// loads the default palette.
func (cons *VesaFbConsole) DriverInit(w io.Writer) *kernel.Error {
	fbSize := mem.Size(cons.height * cons.pitch)
	fbPage, err := mapRegionFn(
		pmm.Frame(cons.fbPhysAddr>>mem.PageShift),
		fbSize,
		vmm.FlagPresent|vmm.FlagRW,
	)
	if err != nil {
		return err
	}

	cons.fb = *(*[]uint8)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(fbSize),
		Cap:  int(fbSize),
		Data: fbPage.Address(),
	}))

	kfmt.Fprintf(w, "mapped framebuffer to 0x%x\n", fbPage.Address())
	kfmt.Fprintf(w, "framebuffer dimensions: %dx%dx%d\n", cons.width, cons.height, cons.bpp)

	cons.loadDefaultPalette()
	return nil
}

// probeForVesaFbConsole checks for the presence of a bootloader-provided
// framebuffer.
func probeForVesaFbConsole() device.Driver {
	fb := getFramebufferFn()
	if fb == nil {
		return nil
	}
	return NewVesaFbConsole(fb)
}

var (
	getFramebufferFn = limine.PrimaryFramebuffer
	mapRegionFn      = vmm.MapRegion
)

func init() {
	device.RegisterDriver(&device.DriverInfo{Order: device.DetectOrderEarly, Probe: probeForVesaFbConsole})
}
