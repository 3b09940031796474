// Package health reports process liveness plus a snapshot of host
// resource usage for the monitoring endpoint.
package health

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type Snapshot struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds int64     `json:"uptimeSeconds"`

	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	MemoryUsedMB  uint64  `json:"memoryUsedMb"`
	HostUptime    uint64  `json:"hostUptimeSeconds"`
}

type Checker struct {
	started time.Time
}

func NewChecker() *Checker {
	return &Checker{started: time.Now()}
}

// Check gathers the snapshot. Host probes that fail leave their
// fields zero rather than failing the whole check; the endpoint
// stays usable on platforms gopsutil does not fully support.
func (c *Checker) Check() Snapshot {
	now := time.Now()
	s := Snapshot{
		Status:        "healthy",
		Timestamp:     now.UTC(),
		UptimeSeconds: int64(now.Sub(c.started).Seconds()),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		s.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemoryPercent = vm.UsedPercent
		s.MemoryUsedMB = vm.Used / (1 << 20)
	}
	if up, err := host.Uptime(); err == nil {
		s.HostUptime = up
	}

	return s
}
