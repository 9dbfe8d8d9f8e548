//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/ja7ad/treeusage/pkg/types"
	"github.com/ja7ad/treeusage/pkg/usage"
)

// printer writes snapshot rows as an aligned table on a terminal and as
// comma separated lines otherwise.
type printer struct {
	out    io.Writer
	tw     *tabwriter.Writer
	pretty bool
}

func newPrinter(f *os.File) *printer {
	p := &printer{out: f, pretty: term.IsTerminal(int(f.Fd()))}
	if p.pretty {
		p.tw = tabwriter.NewWriter(f, 0, 0, 2, ' ', 0)
	}
	return p
}

func (p *printer) header() {
	if !p.pretty {
		fmt.Fprintln(p.out, "# time, pid, name, user_s, sys_s, cpu_pct, peak_rss_kb, minor_faults, major_faults")
		return
	}
	fmt.Fprintln(p.tw, "TIME\tPID\tNAME\tUSER (s)\tSYS (s)\tCPU %\tPEAK RSS\tMINFLT\tMAJFLT")
	fmt.Fprintln(p.tw, "----\t---\t----\t--------\t-------\t-----\t--------\t------\t------")
	p.tw.Flush()
}

// row prints one snapshot. cpu is the utilisation in cores, negative when
// no rate is known yet.
func (p *printer) row(s usage.Snapshot, cpu float64) {
	pct := "-"
	if cpu >= 0 {
		pct = fmt.Sprintf("%.1f", cpu*100)
	}
	if !p.pretty {
		fmt.Fprintf(p.out, "%s, %d, %s, %.3f, %.3f, %s, %d, %d, %d\n",
			s.At.Format(time.RFC3339), s.PID, s.Name, s.UserTime, s.SysTime, pct,
			s.MaxRSSKB, s.MinorFaults, s.MajorFaults)
		return
	}
	fmt.Fprintf(p.tw, "%s\t%d\t%s\t%.3f\t%.3f\t%s\t%s\t%d\t%d\n",
		s.At.Format("15:04:05.000"), s.PID, s.Name, s.UserTime, s.SysTime, pct,
		types.FromKiB(s.MaxRSSKB).Humanized(), s.MinorFaults, s.MajorFaults)
	p.tw.Flush()
}

// note prints an out-of-band line such as an eviction.
func (p *printer) note(format string, args ...any) {
	fmt.Fprintf(p.out, "# "+format+"\n", args...)
}

const _console = `treeusage - process tree resource usage

       Host: %s
       Kernel: %s
       CPUs: %s
       Mem: %s
       Strategy: %s

Tree usage as of %s:

`
