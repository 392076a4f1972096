package irq

import "testing"

func TestUnmaskIRQLeavesOtherLinesUntouched(t *testing.T) {
	defer func() { picMask = 0xFFFF; portOutFn = func(uint16, uint8) {} }()

	var masterWrites, slaveWrites []uint8
	picMask = 0xFFFF
	portOutFn = func(port uint16, value uint8) {
		switch port {
		case picMasterData:
			masterWrites = append(masterWrites, value)
		case picSlaveData:
			slaveWrites = append(slaveWrites, value)
		}
	}

	unmaskIRQ(1) // keyboard

	if picMask != 0xFFFD {
		t.Fatalf("expected mask 0xfffd, got %#x", picMask)
	}
	if len(masterWrites) == 0 || masterWrites[len(masterWrites)-1] != 0xFD {
		t.Fatalf("expected master PIC mask byte 0xfd, got %#x", masterWrites)
	}

	unmaskIRQ(9) // a slave-PIC line

	if picMask != 0xFDFD {
		t.Fatalf("expected mask 0xfdfd, got %#x", picMask)
	}
	if len(slaveWrites) == 0 || slaveWrites[len(slaveWrites)-1] != 0xFD {
		t.Fatalf("expected slave PIC mask byte 0xfd, got %#x", slaveWrites)
	}

	maskIRQ(1)
	if picMask != 0xFDFF {
		t.Fatalf("expected mask 0xfdff after re-masking IRQ1, got %#x", picMask)
	}
}

func TestSendEOI(t *testing.T) {
	defer func() { portOutFn = func(uint16, uint8) {} }()

	var ports []uint16
	portOutFn = func(port uint16, value uint8) {
		ports = append(ports, port)
	}

	sendEOI(1)
	if len(ports) != 1 || ports[0] != picMasterCommand {
		t.Fatalf("expected single master EOI, got %v", ports)
	}

	ports = nil
	sendEOI(9)
	if len(ports) != 2 || ports[0] != picSlaveCommand || ports[1] != picMasterCommand {
		t.Fatalf("expected slave then master EOI, got %v", ports)
	}
}
