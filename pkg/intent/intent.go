// Package intent turns a free-text command into a structured request:
// list processes, monitor PIDs at an interval, stop, or unknown.
package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is what a command asks for.
type Kind int

const (
	Unknown Kind = iota // not understood; Intent.Message explains
	List                // show the user's processes
	Monitor             // watch Intent.PIDs every Intent.Interval
	Stop                // stop monitoring and clear the view
)

func (k Kind) String() string {
	switch k {
	case List:
		return "list"
	case Monitor:
		return "monitor"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// DefaultInterval applies when a monitor command names no interval.
const DefaultInterval = time.Second

// Help is the message attached to Unknown intents.
const Help = "I didn't understand. Try 'list processes', 'monitor <pid> every 0.5s' or 'stop'."

// Intent is the classified form of one command.
type Intent struct {
	Kind     Kind
	PIDs     []int         // Monitor only, in the order written, without duplicates
	Interval time.Duration // Monitor only
	Message  string        // Unknown only
}

var (
	// "every 0.5s", "every 250 ms", "every 2 seconds"
	everyRe = regexp.MustCompile(`every\s+(\d+(?:\.\d+)?)\s*(ms|milliseconds?|s|secs?|seconds?)?\b`)
	// Short numbers are more likely counts or fractions than PIDs.
	pidRe = regexp.MustCompile(`\b\d{3,}\b`)
)

// Parse classifies text. It never fails; unrecognised input yields Unknown.
func Parse(text string) Intent {
	lowered := strings.ToLower(strings.TrimSpace(text))

	switch {
	case lowered == "":
		return Intent{Kind: Unknown, Message: Help}
	case strings.Contains(lowered, "list"), strings.Contains(lowered, "ps -u"):
		return Intent{Kind: List}
	case containsAny(lowered, "stop", "clear", "halt"):
		return Intent{Kind: Stop}
	}

	interval := DefaultInterval
	rest := lowered
	if m := everyRe.FindStringSubmatchIndex(lowered); m != nil {
		if d, ok := parseInterval(lowered[m[2]:m[3]], unit(lowered, m)); ok {
			interval = d
		}
		rest = lowered[:m[0]] + " " + lowered[m[1]:]
	}

	if pids := findPIDs(rest); len(pids) > 0 {
		return Intent{Kind: Monitor, PIDs: pids, Interval: interval}
	}
	if strings.Contains(lowered, "show") {
		return Intent{Kind: List}
	}
	if strings.Contains(lowered, "monitor") || strings.Contains(lowered, "watch") {
		return Intent{Kind: Unknown, Message: "No process IDs found. PIDs have at least three digits, e.g. 'monitor 1234'."}
	}
	return Intent{Kind: Unknown, Message: Help}
}

func unit(s string, m []int) string {
	if m[4] < 0 {
		return "s"
	}
	return s[m[4]:m[5]]
}

func parseInterval(num, unit string) (time.Duration, bool) {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	scale := time.Second
	if strings.HasPrefix(unit, "m") {
		scale = time.Millisecond
	}
	return time.Duration(v * float64(scale)), true
}

func findPIDs(s string) []int {
	var pids []int
	seen := map[int]bool{}
	for _, m := range pidRe.FindAllString(s, -1) {
		pid, err := strconv.Atoi(m)
		if err != nil || pid <= 0 || seen[pid] {
			continue
		}
		seen[pid] = true
		pids = append(pids, pid)
	}
	return pids
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
