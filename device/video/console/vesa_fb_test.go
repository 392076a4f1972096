package console

import (
	"corekernel/kernel/boot/limine"
	"testing"
)

func testFramebuffer() *limine.Framebuffer {
	return &limine.Framebuffer{
		Width: 80 * glyphWidth, Height: 25 * glyphHeight,
		Pitch: 80 * glyphWidth * 4, BitsPerPixel: 32,
		RedMaskSize: 8, RedMaskShift: 16,
		GreenMaskSize: 8, GreenMaskShift: 8,
		BlueMaskSize: 8, BlueMaskShift: 0,
	}
}

func TestVesaFbConsoleDimensions(t *testing.T) {
	cons := NewVesaFbConsole(testFramebuffer())
	w, h := cons.Dimensions(Characters)
	if w != 80 || h != 25 {
		t.Fatalf("expected 80x25 character grid, got %dx%d", w, h)
	}

	pw, ph := cons.Dimensions(Pixels)
	if pw != 80*glyphWidth || ph != 25*glyphHeight {
		t.Fatalf("unexpected pixel dimensions %dx%d", pw, ph)
	}
}

func TestVesaFbConsoleFillAndWrite(t *testing.T) {
	cons := NewVesaFbConsole(testFramebuffer())
	cons.loadDefaultPalette()
	cons.fb = make([]uint8, cons.height*cons.pitch)

	cons.Fill(1, 1, cons.widthInChars, cons.heightInChars, 0, 4)
	// red background (palette index 4) should now be present at the first pixel
	if cons.fb[0] == 0 && cons.fb[1] == 0 && cons.fb[2] == 0 {
		t.Errorf("expected fill to set a non-black pixel at origin")
	}

	cons.Write('A', 15, 0, 1, 1)
	if cons.fb[0] == 0 && cons.fb[1] == 0 && cons.fb[2] == 0 {
		t.Errorf("expected write to set a non-black pixel for a visible character")
	}
}

func TestVesaFbConsoleScroll(t *testing.T) {
	cons := NewVesaFbConsole(testFramebuffer())
	cons.loadDefaultPalette()
	cons.fb = make([]uint8, cons.height*cons.pitch)
	for i := range cons.fb {
		cons.fb[i] = uint8(i % 256)
	}

	before := append([]uint8(nil), cons.fb...)
	cons.Scroll(ScrollDirUp, 1)

	shift := glyphHeight * cons.pitch
	if cons.fb[0] != before[shift] {
		t.Errorf("expected scroll up to shift rows toward the start of the buffer")
	}
}
