// Package keyboard translates PS/2 Set-1 scancodes into ASCII characters.
// It is the narrow interface the mini-shell consumes; the actual keyboard
// controller I/O (port reads, IRQ acknowledgement) lives in the IRQ
// handler that calls Translate, not in this package.
package keyboard

// Translate maps a PS/2 Set-1 make-code scancode to the character it
// produces under an unshifted US QWERTY layout. ok is false for scancodes
// that do not produce a printable character (modifier keys, break codes,
// function keys) or that the shell handles specially (Backspace, Enter).
func Translate(scancode uint8) (ch byte, ok bool) {
	if int(scancode) >= len(table) {
		return 0, false
	}
	c := table[scancode]
	if c == 0 {
		return 0, false
	}
	return c, true
}

// table is grounded on the reference keyboard driver's unshifted
// characterTable: index is the Set-1 make code, value is the ASCII
// character it produces (0 for keys this shell does not translate).
var table = [0x3A]byte{
	0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5',
	0x07: '6', 0x08: '7', 0x09: '8', 0x0A: '9', 0x0B: '0',
	0x0C: '-', 0x0D: '=',
	0x10: 'q', 0x11: 'w', 0x12: 'e', 0x13: 'r', 0x14: 't',
	0x15: 'y', 0x16: 'u', 0x17: 'i', 0x18: 'o', 0x19: 'p',
	0x1A: '[', 0x1B: ']',
	0x1E: 'a', 0x1F: 's', 0x20: 'd', 0x21: 'f', 0x22: 'g',
	0x23: 'h', 0x24: 'j', 0x25: 'k', 0x26: 'l', 0x27: ';',
	0x28: '\'', 0x29: '`', 0x2B: '\\',
	0x2C: 'z', 0x2D: 'x', 0x2E: 'c', 0x2F: 'v', 0x30: 'b',
	0x31: 'n', 0x32: 'm', 0x33: ',', 0x34: '.', 0x35: '/',
	0x39: ' ',
}
