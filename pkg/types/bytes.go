package types

import (
	"fmt"
	"math"
)

// Bytes is a size in bytes.
type Bytes uint64

// FromKiB converts a kernel kB figure (VmHWM, ru_maxrss) to Bytes,
// saturating instead of wrapping on absurd inputs.
func FromKiB(kb uint64) Bytes {
	if kb > math.MaxUint64/1024 {
		return Bytes(math.MaxUint64)
	}
	return Bytes(kb * 1024)
}

var units = []struct {
	shift uint
	name  string
}{
	{40, "TB"},
	{30, "GB"},
	{20, "MB"},
	{10, "KB"},
}

// Humanized returns the size with a 1024-based unit, e.g. "12.35 MB".
func (b Bytes) Humanized() string {
	for _, u := range units {
		if b >= 1<<u.shift {
			return fmt.Sprintf("%.2f %s", float64(b)/float64(uint64(1)<<u.shift), u.name)
		}
	}
	return fmt.Sprintf("%d B", uint64(b))
}

func (b Bytes) String() string { return b.Humanized() }
