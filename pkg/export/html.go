//go:build linux

package export

import (
	"bytes"
	"html/template"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/ja7ad/treeusage/pkg/types"
	"github.com/ja7ad/treeusage/pkg/usage"
)

// HTMLReport collects snapshots and renders a single page on Close.
type HTMLReport struct {
	mu      sync.Mutex
	out     io.WriteCloser
	started time.Time
	trees   map[int]*treeView
}

type treeView struct {
	PID     int
	Name    string
	Rows    []usage.Snapshot
	Evicted string
}

// Last returns the newest snapshot. Templates only call it on non-empty rows.
func (t *treeView) Last() usage.Snapshot { return t.Rows[len(t.Rows)-1] }

// PeakRSS is the largest peak seen over the session.
func (t *treeView) PeakRSS() types.Bytes {
	var kb uint64
	for _, r := range t.Rows {
		kb = max(kb, r.MaxRSSKB)
	}
	return types.FromKiB(kb)
}

// CreateHTML creates (or truncates) path; the report is written on Close.
func CreateHTML(path string) (*HTMLReport, error) {
	f, err := create(path)
	if err != nil {
		return nil, err
	}
	return NewHTML(f), nil
}

// NewHTML renders into out on Close and then closes it.
func NewHTML(out io.WriteCloser) *HTMLReport {
	return &HTMLReport{out: out, started: time.Now(), trees: map[int]*treeView{}}
}

func (h *HTMLReport) Write(s usage.Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := h.tree(s.PID)
	t.Name = s.Name
	t.Rows = append(t.Rows, s)
	return nil
}

// Evicted records why a root stopped being watched.
func (h *HTMLReport) Evicted(pid int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tree(pid).Evicted = err.Error()
}

func (h *HTMLReport) tree(pid int) *treeView {
	t, ok := h.trees[pid]
	if !ok {
		t = &treeView{PID: pid, Name: usage.NotAvailable}
		h.trees[pid] = t
	}
	return t
}

func (h *HTMLReport) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	type view struct {
		Started time.Time
		Trees   []*treeView
	}
	data := view{Started: h.started}
	for _, t := range h.trees {
		data.Trees = append(data.Trees, t)
	}
	slices.SortFunc(data.Trees, func(a, b *treeView) int { return a.PID - b.PID })

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		_ = h.out.Close()
		return err
	}
	if _, err := h.out.Write(buf.Bytes()); err != nil {
		_ = h.out.Close()
		return err
	}
	return h.out.Close()
}

var tpl = template.Must(template.New("rep").Parse(`<!doctype html>
<html lang="en"><meta charset="utf-8">
<title>Tree Usage Report</title>
<style>
body{font-family:system-ui,Segoe UI,Roboto,Helvetica,Arial,sans-serif;margin:20px}
h1,h2{margin:0 0 8px}
table{border-collapse:collapse;width:100%;font-size:14px;margin-bottom:18px}
th,td{border:1px solid #ddd;padding:6px 8px;text-align:right}
th:first-child,td:first-child{text-align:left}
.small{color:#555}
.badge{display:inline-block;background:#eef;border:1px solid #ccd;padding:2px 6px;border-radius:6px;margin-right:6px;}
.gone{color:#a33}
</style>

<h1>Tree Usage Report</h1>
<p class="small">Session started {{.Started.Format "2006-01-02 15:04:05"}} &nbsp;|&nbsp; Trees: {{len .Trees}}</p>

{{range .Trees}}
<h2><span class="badge">PID {{.PID}}</span> {{.Name}}</h2>
{{if .Evicted}}<p class="gone">Stopped watching: {{.Evicted}}</p>{{end}}
{{if .Rows}}
<p class="small">
Samples: {{len .Rows}} &nbsp;|&nbsp;
CPU: {{printf "%.2f" .Last.CPUTime}} s &nbsp;|&nbsp;
Peak RSS: {{.PeakRSS}} &nbsp;|&nbsp;
Faults: {{.Last.MinorFaults}} minor, {{.Last.MajorFaults}} major
</p>
<table>
<thead>
<tr><th>time</th><th>user (s)</th><th>sys (s)</th><th>max RSS (kB)</th><th>minor faults</th><th>major faults</th></tr>
</thead>
<tbody>
{{range .Rows}}
<tr>
<td>{{.At.Format "15:04:05.000"}}</td>
<td>{{printf "%.2f" .UserTime}}</td>
<td>{{printf "%.2f" .SysTime}}</td>
<td>{{.MaxRSSKB}}</td>
<td>{{.MinorFaults}}</td>
<td>{{.MajorFaults}}</td>
</tr>
{{end}}
</tbody>
</table>
{{end}}
{{end}}
</html>`))
