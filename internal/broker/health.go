package broker

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Health is the /healthz payload.
type Health struct {
	Status      string        `json:"status"`
	Uptime      string        `json:"uptime"`
	Connections int           `json:"connections"`
	Topics      int           `json:"topics"`
	Goroutines  int           `json:"goroutines"`
	Process     ProcessHealth `json:"process"`
	HostMemUsed float64       `json:"hostMemUsedPercent,omitempty"`
}

type ProcessHealth struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes,omitempty"`
	CPUPercent float64 `json:"cpuPercent,omitempty"`
	Threads    int32   `json:"threads,omitempty"`
	OpenFiles  int     `json:"openFiles,omitempty"`
}

// collectHealth gathers process and host statistics. Statistics the platform
// cannot provide are left zero; they never make the broker unhealthy.
func (s *Server) collectHealth(ctx context.Context) Health {
	h := Health{
		Status:      "ok",
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Connections: s.hub.ClientCount(),
		Topics:      s.store.Count(),
		Goroutines:  runtime.NumGoroutine(),
		Process:     ProcessHealth{PID: int32(os.Getpid())},
	}

	if p, err := process.NewProcessWithContext(ctx, h.Process.PID); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			h.Process.RSSBytes = mi.RSS
		}
		if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
			h.Process.CPUPercent = cpu
		}
		if n, err := p.NumThreadsWithContext(ctx); err == nil {
			h.Process.Threads = n
		}
		if files, err := p.OpenFilesWithContext(ctx); err == nil {
			h.Process.OpenFiles = len(files)
		}
	} else {
		s.logger.Debug().Err(err).Msg("process stats unavailable")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		h.HostMemUsed = vm.UsedPercent
	}
	return h
}
