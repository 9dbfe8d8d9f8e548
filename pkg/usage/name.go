//go:build linux

package usage

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// NotAvailable is the display name used when a process name cannot be found.
const NotAvailable = "N/A"

const nameTimeout = 200 * time.Millisecond

// lookupName allows tests to stub name lookups that normally hit /proc.
var lookupName = processName

func processName(ctx context.Context, pid int) (string, error) {
	if pid <= 0 || pid > math.MaxInt32 {
		return "", fmt.Errorf("invalid pid %d", pid)
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid)) // #nosec G115 -- range checked above
	if err != nil {
		return "", err
	}
	return p.NameWithContext(ctx)
}

// displayName never fails: the name is decoration, the aggregate is the data.
func displayName(ctx context.Context, pid int) string {
	ctx, cancel := context.WithTimeout(ctx, nameTimeout)
	defer cancel()

	name, err := lookupName(ctx, pid)
	if err != nil || name == "" {
		return NotAvailable
	}
	return name
}
