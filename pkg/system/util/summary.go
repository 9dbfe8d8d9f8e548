package util

import (
	"context"
	"strconv"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/ja7ad/treeusage/pkg/types"
)

// SystemSummary returns host name, kernel version, logical CPU count and
// total memory for the console banner. Unknown values are "?".
func SystemSummary(ctx context.Context) (hostname, kernel, cpus, memory string) {
	hostname, kernel, cpus, memory = "?", "?", "?", "?"
	if info, err := host.InfoWithContext(ctx); err == nil {
		if info.Hostname != "" {
			hostname = info.Hostname
		}
		if info.KernelVersion != "" {
			kernel = info.KernelVersion
		}
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		cpus = strconv.Itoa(n)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm.Total > 0 {
		memory = types.Bytes(vm.Total).Humanized()
	}
	return hostname, kernel, cpus, memory
}
