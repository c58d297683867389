// Package status samples host and process resource usage and publishes it to
// subscribers, polling only while someone is listening.
package status

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
)

// SystemStatus is a point-in-time resource snapshot. Percentages are 0-100
// rounded to two decimals; Speed is in GHz.
type SystemStatus struct {
	CPU    CPUStatus    `json:"cpu"`
	Memory MemoryStatus `json:"memory"`
}

type CPUStatus struct {
	Model string  `json:"model"`
	Speed float64 `json:"speed"`
	Usage Usage   `json:"usage"`
}

type MemoryStatus struct {
	Usage Usage `json:"usage"`
}

// Usage splits a measurement between the whole host and this process.
type Usage struct {
	System  float64 `json:"system"`
	Process float64 `json:"process"`
}

// Sampler produces status snapshots.
type Sampler interface {
	Sample(ctx context.Context) (SystemStatus, error)
}

// HostSampler reads the host and the current process through gopsutil.
type HostSampler struct {
	pid int32
}

// NewHostSampler samples the calling process.
func NewHostSampler() *HostSampler {
	return &HostSampler{pid: int32(os.Getpid())}
}

// Sample implements Sampler.
func (s *HostSampler) Sample(ctx context.Context) (SystemStatus, error) {
	var st SystemStatus

	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return st, fmt.Errorf("cpu info: %w", err)
	}
	if len(infos) > 0 {
		st.CPU.Model = infos[0].ModelName
		st.CPU.Speed = round2(infos[0].Mhz / 1000)
	}

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return st, fmt.Errorf("cpu usage: %w", err)
	}
	if len(percents) > 0 {
		st.CPU.Usage.System = round2(percents[0])
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return st, fmt.Errorf("memory usage: %w", err)
	}
	st.Memory.Usage.System = round2(vm.UsedPercent)

	proc, err := process.NewProcessWithContext(ctx, s.pid)
	if err != nil {
		return st, fmt.Errorf("process %d: %w", s.pid, err)
	}
	if p, err := proc.CPUPercentWithContext(ctx); err == nil {
		st.CPU.Usage.Process = round2(p)
	}
	if p, err := proc.MemoryPercentWithContext(ctx); err == nil {
		st.Memory.Usage.Process = round2(float64(p))
	}

	return st, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
