// Package device defines the driver registration framework shared by every
// hardware collaborator (console, TTY) that the HAL probes for during
// kernel init. The ATA disk is not registered here; kmain calls it directly.
package device

import (
	"corekernel/kernel"
	"io"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. Any diagnostic output
	// produced during initialization is written to w.
	DriverInit(w io.Writer) *kernel.Error
}

// ProbeFn is a function that attempts to detect and initialize a driver for
// a particular piece of hardware. It returns nil if the hardware is not
// present.
type ProbeFn func() Driver

// Detection order constants. Lower values are probed first.
const (
	DetectOrderEarly = iota
	DetectOrderBeforeACPI
	DetectOrderACPI
	DetectOrderLast
)

// DriverInfo associates a probe function with the relative order in which it
// should run.
type DriverInfo struct {
	// Order controls relative probe ordering; lower values run first.
	Order int

	// Probe is invoked by the HAL to detect and initialize this driver.
	Probe ProbeFn
}

// DriverInfoList implements sort.Interface, ordering entries by Order.
type DriverInfoList []*DriverInfo

func (l DriverInfoList) Len() int           { return len(l) }
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }
func (l DriverInfoList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }

var registeredDrivers DriverInfoList

// RegisterDriver adds info to the set of drivers the HAL will probe during
// DetectHardware. Drivers call this from an init() block.
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns the currently registered drivers.
func DriverList() DriverInfoList {
	return registeredDrivers
}
