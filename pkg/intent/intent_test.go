package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Intent
	}{
		{"list my processes", Intent{Kind: List}},
		{"ps -u", Intent{Kind: List}},
		{"show me what's running", Intent{Kind: List}},
		{"Stop monitoring", Intent{Kind: Stop}},
		{"clear", Intent{Kind: Stop}},
		{"halt", Intent{Kind: Stop}},
		{"monitor PID 12345", Intent{Kind: Monitor, PIDs: []int{12345}, Interval: time.Second}},
		{"watch 999 888 777", Intent{Kind: Monitor, PIDs: []int{999, 888, 777}, Interval: time.Second}},
		{
			"update on 12345 and 45678 every 0.5s",
			Intent{Kind: Monitor, PIDs: []int{12345, 45678}, Interval: 500 * time.Millisecond},
		},
		{"monitor 100 every 250ms", Intent{Kind: Monitor, PIDs: []int{100}, Interval: 250 * time.Millisecond}},
		{"monitor 100 every 2 seconds", Intent{Kind: Monitor, PIDs: []int{100}, Interval: 2 * time.Second}},
		{"show 4242", Intent{Kind: Monitor, PIDs: []int{4242}, Interval: time.Second}},
		{"monitor 4242 4242", Intent{Kind: Monitor, PIDs: []int{4242}, Interval: time.Second}},
		{"monitor 4242 every 0s", Intent{Kind: Monitor, PIDs: []int{4242}, Interval: time.Second}},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			assert.Equal(t, c.want, Parse(c.in))
		})
	}
}

func TestParse_Unknown(t *testing.T) {
	for _, in := range []string{"", "   ", "hello there", "monitor 12", "what is 42"} {
		got := Parse(in)
		assert.Equal(t, Unknown, got.Kind, in)
		assert.NotEmpty(t, got.Message, in)
		assert.Empty(t, got.PIDs, in)
	}
	assert.Contains(t, Parse("monitor 12").Message, "three digits")
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "list", List.String())
	assert.Equal(t, "monitor", Monitor.String())
	assert.Equal(t, "stop", Stop.String())
	assert.Equal(t, "unknown", Unknown.String())
}
