package router

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
)

// Monitor samples free system memory. The router consults it
// synchronously before every gated call.
type Monitor interface {
	FreeMemoryGB() (float64, error)
}

// SystemMonitor reads free memory from the host.
type SystemMonitor struct{}

// FreeMemoryGB returns currently available RAM in GB.
func (SystemMonitor) FreeMemoryGB() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("failed to read virtual memory stats: %w", err)
	}
	return float64(vm.Available) / (1 << 30), nil
}

// MonitorFunc adapts a function to the Monitor interface.
type MonitorFunc func() (float64, error)

func (f MonitorFunc) FreeMemoryGB() (float64, error) { return f() }
