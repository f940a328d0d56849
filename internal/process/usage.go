package process

import (
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Usage is a point-in-time resource sample of a running process. It is
// reported for diagnostics only; nothing enforces limits on it.
type Usage struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
}

// SampleUsage reads the current usage of pid. It fails when the process is
// gone or the platform does not expose the counters.
func SampleUsage(pid int) (Usage, error) {
	var u Usage
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return u, err
	}
	mi, err := p.MemoryInfo()
	if err != nil {
		return u, err
	}
	u.RSSBytes = mi.RSS
	if c, err := p.CPUPercent(); err == nil {
		u.CPUPercent = c
	}
	if n, err := p.NumThreads(); err == nil {
		u.Threads = n
	}
	return u, nil
}
