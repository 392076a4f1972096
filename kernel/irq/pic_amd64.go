package irq

import "corekernel/kernel/cpu"

const (
	picMasterCommand = 0x20
	picMasterData    = 0x21
	picSlaveCommand  = 0xA0
	picSlaveData     = 0xA1

	picEOI = 0x20

	icw1Init  = 0x10
	icw1ICW4  = 0x01
	icw4_8086 = 0x01

	pic1VectorOffset = 0x20 // IRQ0 maps to vector 32
	pic2VectorOffset = 0x28 // IRQ8 maps to vector 40
)

// picMask tracks which IRQ lines are currently masked, one bit per line.
// Every line starts masked; HandleIRQ clears exactly the bit for the line
// it installs a handler for, leaving all others untouched.
var picMask uint16 = 0xFFFF

// portOutFn is mocked by tests so mask tracking can be verified without
// touching real I/O ports.
var portOutFn = cpu.OutB

// remapPIC reprograms the master and slave 8259 PICs so IRQ0-15 are
// delivered on vectors 32-47 instead of their power-on default of 8-15,
// which collides with the CPU exception vectors.
func remapPIC() {
	portOutFn(picMasterCommand, icw1Init|icw1ICW4)
	cpu.IODelay()
	portOutFn(picSlaveCommand, icw1Init|icw1ICW4)
	cpu.IODelay()

	portOutFn(picMasterData, pic1VectorOffset)
	cpu.IODelay()
	portOutFn(picSlaveData, pic2VectorOffset)
	cpu.IODelay()

	portOutFn(picMasterData, 4) // slave PIC lives on master's IRQ2
	cpu.IODelay()
	portOutFn(picSlaveData, 2) // slave's cascade identity
	cpu.IODelay()

	portOutFn(picMasterData, icw4_8086)
	cpu.IODelay()
	portOutFn(picSlaveData, icw4_8086)
	cpu.IODelay()

	applyMask()
}

// maskIRQ sets the mask bit for exactly the given line and leaves every
// other line's bit as it was.
func maskIRQ(line uint8) {
	picMask |= 1 << line
	applyMask()
}

// unmaskIRQ clears the mask bit for exactly the given line and leaves
// every other line's bit as it was.
func unmaskIRQ(line uint8) {
	picMask &^= (1 << line)
	applyMask()
}

func applyMask() {
	portOutFn(picMasterData, uint8(picMask))
	portOutFn(picSlaveData, uint8(picMask>>8))
}

// sendEOI acknowledges the interrupt for the given IRQ line. Lines served
// by the slave PIC (8-15) require an EOI to both PICs.
func sendEOI(line uint8) {
	if line >= 8 {
		portOutFn(picSlaveCommand, picEOI)
	}
	portOutFn(picMasterCommand, picEOI)
}
