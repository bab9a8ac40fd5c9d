package adapters

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// GopsutilSystemInfo reports memory usage of the current process
// and the host, backed by gopsutil.
type GopsutilSystemInfo struct {
	pid int32
}

var _ ports.SystemInfo = (*GopsutilSystemInfo)(nil)

// NewGopsutilSystemInfo creates a GopsutilSystemInfo for the running process
func NewGopsutilSystemInfo() *GopsutilSystemInfo {
	return &GopsutilSystemInfo{pid: int32(os.Getpid())}
}

// MemoryUsage returns resident and virtual memory of the process plus
// the host's used-memory percentage
func (s *GopsutilSystemInfo) MemoryUsage() (domain.MemoryStats, error) {
	proc, err := process.NewProcess(s.pid)
	if err != nil {
		return domain.MemoryStats{}, fmt.Errorf("failed to inspect process %d: %w", s.pid, err)
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return domain.MemoryStats{}, fmt.Errorf("failed to read process memory info: %w", err)
	}

	stats := domain.MemoryStats{
		RSS: memInfo.RSS,
		VMS: memInfo.VMS,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.UsedPercent = vm.UsedPercent
	}

	return stats, nil
}
