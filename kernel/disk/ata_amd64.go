// Package disk implements a PIO-mode driver for the slave ATA device on the
// primary IDE bus. Only single-sector reads and writes are supported; there
// is no DMA, no queuing and no support for addressing the master drive.
package disk

import (
	"corekernel/kernel"
	"corekernel/kernel/cpu"
	"corekernel/kernel/kfmt"
)

const (
	dataPort      = 0x1F0
	errorPort     = 0x1F1
	featuresPort  = 0x1F1
	sectorCntPort = 0x1F2
	lbaLowPort    = 0x1F3
	lbaMidPort    = 0x1F4
	lbaHighPort   = 0x1F5
	driveHeadPort = 0x1F6
	statusPort    = 0x1F7
	commandPort   = 0x1F7

	// controlPort is the device control register on the primary bus's
	// alternate status/control block. Writing 0 to it clears SRST.
	controlPort = 0x3F6
)

const (
	statusERR = 0x01
	statusDRQ = 0x08
	statusBSY = 0x80
)

const (
	cmdReadSectors  = 0x20
	cmdWriteSectors = 0x30
	cmdCacheFlush   = 0xE7
	cmdIdentify     = 0xEC
)

// driveSelectSlave addresses the slave drive on the primary bus in LBA
// mode. The high nibble encodes "1 LBA 1 DRV" per the ATA spec; DRV=1
// selects the slave.
const driveSelectSlave = 0xF0 | (1 << 4)

// errorBitNames names each of the eight causes reported by the ATA error
// register, in bit order.
var errorBitNames = [8]string{
	"AMNF - address mark not found",
	"TKZNF - track zero not found",
	"ABRT - aborted command",
	"MCR - media change request",
	"IDNF - ID not found",
	"MC - media changed",
	"UNC - uncorrectable data error",
	"BBK - bad block detected",
}

const sectorSize = 512

// pollLimit bounds every busy-wait loop in this driver. ATA and UHCI
// operations must fail rather than hang forever on unresponsive hardware.
const pollLimit = 1 << 20

var (
	outBFn   = cpu.OutB
	inBFn    = cpu.InB
	outWFn   = cpu.OutW
	inWFn    = cpu.InW
	ioDelayFn = cpu.IODelay

	errDriveNotPresent = &kernel.Error{Module: "disk", Message: "slave ATA drive not present on primary bus"}
	errNotATA          = &kernel.Error{Module: "disk", Message: "slave device on primary bus is not an ATA drive"}
	errTimeout         = &kernel.Error{Module: "disk", Message: "timed out waiting for drive to become ready"}
	errDeviceFault     = &kernel.Error{Module: "disk", Message: "drive reported an error"}
	errShortBuffer     = &kernel.Error{Module: "disk", Message: "buffer shorter than one sector"}
)

// Init probes the slave drive on the primary bus and verifies that it
// responds to IDENTIFY as an ATA device. It is ground in identifyCompatibility
// from the reference driver: select the slave, zero the LBA/sector-count
// ports, issue IDENTIFY, treat a zero first status read as "no drive",
// discard the next 14 status reads, poll until BSY clears, then check the
// LBA mid/high ports for the ATA signature.
func Init() *kernel.Error {
	outBFn(driveHeadPort, driveSelectSlave)
	outBFn(sectorCntPort, 0)
	outBFn(lbaLowPort, 0)
	outBFn(lbaMidPort, 0)
	outBFn(lbaHighPort, 0)
	outBFn(commandPort, cmdIdentify)

	if inBFn(statusPort) == 0 {
		return errDriveNotPresent
	}

	for i := 0; i < 14; i++ {
		inBFn(statusPort)
	}

	for i := 0; ; i++ {
		if i >= pollLimit {
			return errTimeout
		}
		if inBFn(statusPort)&statusBSY == 0 {
			break
		}
	}

	if inBFn(lbaMidPort) != 0 || inBFn(lbaHighPort) != 0 {
		return errNotATA
	}

	for i := 0; i < 256; i++ {
		inWFn(dataPort)
	}

	return nil
}

// ReadSector reads the 512 bytes of sector lba from the slave drive on the
// primary bus into buf, which must be at least sectorSize bytes long.
func ReadSector(lba uint32, buf []byte) *kernel.Error {
	if len(buf) < sectorSize {
		return errShortBuffer
	}

	if err := selectAndIssue(lba, cmdReadSectors); err != nil {
		return err
	}

	if err := pollReady(); err != nil {
		decodeError()
		return err
	}

	for i := 0; i < sectorSize/2; i++ {
		word := inWFn(dataPort)
		buf[2*i] = byte(word)
		buf[2*i+1] = byte(word >> 8)
	}

	return nil
}

// WriteSector writes the first sectorSize bytes of buf to sector lba on the
// slave drive on the primary bus and flushes the write cache.
func WriteSector(lba uint32, buf []byte) *kernel.Error {
	if len(buf) < sectorSize {
		return errShortBuffer
	}

	if err := selectAndIssue(lba, cmdWriteSectors); err != nil {
		return err
	}

	if err := pollReady(); err != nil {
		decodeError()
		return err
	}

	for i := 0; i < sectorSize/2; i++ {
		word := uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
		outWFn(dataPort, word)
	}

	outBFn(commandPort, cmdCacheFlush)

	return pollBusy()
}

// selectAndIssue addresses the slave drive, waits out the 400ns selection
// delay, loads the sector count and LBA registers and issues cmd.
func selectAndIssue(lba uint32, cmd uint8) *kernel.Error {
	outBFn(driveHeadPort, driveSelectSlave|uint8((lba>>24)&0x0F))
	ioDelayFn()

	outBFn(featuresPort, 0)
	outBFn(sectorCntPort, 1)
	outBFn(lbaLowPort, uint8(lba))
	outBFn(lbaMidPort, uint8(lba>>8))
	outBFn(lbaHighPort, uint8(lba>>16))
	outBFn(commandPort, cmd)

	return nil
}

// pollReady polls the status port until BSY clears and DRQ sets, matching
// the reference driver's quirk of re-checking the condition four times in a
// row rather than trusting the first observation.
func pollReady() *kernel.Error {
	for i := 0; i < 4; i++ {
		for j := 0; ; j++ {
			if j >= pollLimit {
				return errTimeout
			}
			status := inBFn(statusPort)
			if status&statusERR != 0 {
				return errDeviceFault
			}
			if status&statusBSY == 0 && status&statusDRQ != 0 {
				break
			}
		}
	}
	return nil
}

// pollBusy waits for BSY to clear after a CACHE FLUSH command, returning an
// error if the drive reports a fault or the wait exceeds pollLimit.
func pollBusy() *kernel.Error {
	for i := 0; ; i++ {
		if i >= pollLimit {
			return errTimeout
		}
		status := inBFn(statusPort)
		if status&statusERR != 0 {
			decodeError()
			return errDeviceFault
		}
		if status&statusBSY == 0 {
			return nil
		}
	}
}

// decodeError reads the error register and logs every named cause whose bit
// is set.
func decodeError() {
	errReg := inBFn(errorPort)
	for i, name := range errorBitNames {
		if errReg&(1<<uint(i)) != 0 {
			kfmt.Printf("[disk] ERROR: %s\n", name)
		}
	}
}
