package types

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes_Humanized_Boundaries(t *testing.T) {
	cases := []struct {
		in   Bytes
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KB"},
		{1024*1024 - 1, "1024.00 KB"},
		{1024 * 1024, "1.00 MB"},
		{1 << 30, "1.00 GB"},
		{1<<40 - 1, "1024.00 GB"},
		{1 << 40, "1.00 TB"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(uint64(tc.in)), func(t *testing.T) {
			require.Equal(t, tc.want, tc.in.Humanized())
			require.Equal(t, tc.want, tc.in.String())
		})
	}
}

func TestFromKiB(t *testing.T) {
	assert.Equal(t, Bytes(0), FromKiB(0))
	assert.Equal(t, Bytes(4096), FromKiB(4))
	assert.Equal(t, "12.35 MB", FromKiB(12646).Humanized())
	assert.Equal(t, Bytes(math.MaxUint64), FromKiB(math.MaxUint64), "saturates")
}
