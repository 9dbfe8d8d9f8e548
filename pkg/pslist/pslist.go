// Package pslist lists the processes owned by a user, like `ps -u $USER`.
package pslist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrNoProcesses is returned by Current when nothing was found.
var ErrNoProcesses = errors.New("pslist: no processes")

// Entry is one row of the listing.
type Entry struct {
	PID     int32
	TTY     string
	CPUTime time.Duration
	Command string
}

// CurrentUser returns $USER, or the account of the running process when the
// variable is unset.
func CurrentUser() (string, error) {
	if name := os.Getenv("USER"); name != "" {
		return name, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("pslist: current user: %w", err)
	}
	return u.Username, nil
}

// List returns the processes whose effective UID belongs to username, ordered
// by PID. Processes that exit while being listed are skipped.
func List(ctx context.Context, username string) ([]Entry, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return nil, fmt.Errorf("pslist: %w", err)
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("pslist: uid %q: %w", u.Uid, err)
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("pslist: %w", err)
	}

	entries := make([]Entry, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		uids, err := p.UidsWithContext(ctx)
		// uids = real, effective, saved, filesystem
		if err != nil || len(uids) < 2 || uint64(uids[1]) != uid {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		e := Entry{PID: p.Pid, TTY: "?", Command: name}
		if tty, err := p.TerminalWithContext(ctx); err == nil && tty != "" {
			e.TTY = tty
		}
		if t, err := p.TimesWithContext(ctx); err == nil {
			e.CPUTime = time.Duration((t.User + t.System) * float64(time.Second))
		}
		entries = append(entries, e)
	}

	slices.SortFunc(entries, func(a, b Entry) int { return int(a.PID) - int(b.PID) })
	return entries, nil
}

// Current lists the processes of CurrentUser.
func Current(ctx context.Context) ([]Entry, error) {
	name, err := CurrentUser()
	if err != nil {
		return nil, err
	}
	entries, err := List(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w for user %s", ErrNoProcesses, name)
	}
	return entries, nil
}

// Write renders entries with the columns of ps(1): PID TTY TIME CMD.
func Write(w io.Writer, entries []Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PID\tTTY\tTIME\tCMD\t")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", e.PID, e.TTY, clock(e.CPUTime), e.Command)
	}
	return tw.Flush()
}

// clock formats like ps: [DD-]HH:MM:SS.
func clock(d time.Duration) string {
	s := int64(d / time.Second)
	days, s := s/86400, s%86400
	h, m, sec := s/3600, (s%3600)/60, s%60
	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:%02d", days, h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
