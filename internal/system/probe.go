package system

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

type Info struct {
	OS       string `json:"os"`
	Platform string `json:"platform"`
	Release  string `json:"release"`
	Arch     string `json:"arch"`
	CPUModel string `json:"cpu_model"`
	Cores    int    `json:"cores"`
	Memory   uint64 `json:"memory_bytes"`
}

type Status struct {
	Info        Info      `json:"info"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemPercent  float64   `json:"mem_percent"`
	MemUsed     uint64    `json:"mem_used"`
	MemTotal    uint64    `json:"mem_total"`
	DiskPercent float64   `json:"disk_percent"`
	DiskUsed    uint64    `json:"disk_used"`
	DiskTotal   uint64    `json:"disk_total"`
	BootTime    time.Time `json:"boot_time"`
}

type Process struct {
	PID        int32   `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu_percent"`
}

// Probe reads host metrics. Static info is collected once.
type Probe struct {
	cpuInterval time.Duration
	diskPath    string

	once sync.Once
	info Info
	err  error
}

func NewProbe() *Probe {
	p := &Probe{cpuInterval: time.Second, diskPath: "/"}
	if runtime.GOOS == "windows" {
		p.diskPath = `C:\`
	}
	return p
}

func (p *Probe) Info(ctx context.Context) (Info, error) {
	p.once.Do(func() {
		p.info, p.err = collectInfo(ctx)
	})
	return p.info, p.err
}

func collectInfo(ctx context.Context) (Info, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("host info: %w", err)
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return Info{}, fmt.Errorf("cpu count: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("memory: %w", err)
	}

	info := Info{
		OS:       h.OS,
		Platform: strings.TrimSpace(h.Platform + " " + h.PlatformVersion),
		Release:  h.KernelVersion,
		Arch:     h.KernelArch,
		Cores:    cores,
		Memory:   vm.Total,
	}
	// model name is best effort; some virtual CPUs do not report one
	if ci, err := cpu.InfoWithContext(ctx); err == nil && len(ci) > 0 {
		info.CPUModel = ci[0].ModelName
	}
	return info, nil
}

// Status samples CPU usage over the probe interval.
func (p *Probe) Status(ctx context.Context) (Status, error) {
	info, err := p.Info(ctx)
	if err != nil {
		return Status{}, err
	}

	pct, err := cpu.PercentWithContext(ctx, p.cpuInterval, false)
	if err != nil {
		return Status{}, fmt.Errorf("cpu percent: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("memory: %w", err)
	}
	du, err := disk.UsageWithContext(ctx, p.diskPath)
	if err != nil {
		return Status{}, fmt.Errorf("disk usage: %w", err)
	}
	boot, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("boot time: %w", err)
	}

	st := Status{
		Info:        info,
		MemPercent:  vm.UsedPercent,
		MemUsed:     vm.Used,
		MemTotal:    vm.Total,
		DiskPercent: du.UsedPercent,
		DiskUsed:    du.Used,
		DiskTotal:   du.Total,
		BootTime:    time.Unix(int64(boot), 0),
	}
	if len(pct) > 0 {
		st.CPUPercent = pct[0]
	}
	return st, nil
}

func (s Status) Report() string {
	var b strings.Builder
	b.WriteString("System Status Report:\n")
	fmt.Fprintf(&b, "System: %s %s\n", s.Info.Platform, s.Info.Release)
	if s.Info.CPUModel != "" {
		fmt.Fprintf(&b, "Processor: %s\n", s.Info.CPUModel)
	}
	fmt.Fprintf(&b, "CPU Usage: %.1f%%\n", s.CPUPercent)
	fmt.Fprintf(&b, "Memory: %.1f%% used (%s / %s)\n", s.MemPercent, humanize.IBytes(s.MemUsed), humanize.IBytes(s.MemTotal))
	fmt.Fprintf(&b, "Disk Usage: %.1f%% used (%s / %s)\n", s.DiskPercent, humanize.IBytes(s.DiskUsed), humanize.IBytes(s.DiskTotal))
	fmt.Fprintf(&b, "CPU Cores: %d\n", s.Info.Cores)
	fmt.Fprintf(&b, "Boot Time: %s (%s)", s.BootTime.Format("2006-01-02 15:04:05"), humanize.Time(s.BootTime))
	return b.String()
}

// Processes returns up to limit processes, busiest first. Processes that
// exit while being inspected are skipped.
func (p *Probe) Processes(ctx context.Context, limit int) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	out := make([]Process, 0, len(procs))
	for _, pr := range procs {
		name, err := pr.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, _ := pr.CPUPercentWithContext(ctx)
		out = append(out, Process{PID: pr.Pid, Name: name, CPUPercent: cpuPct})
	}

	slices.SortStableFunc(out, func(a, b Process) int {
		return cmp.Compare(b.CPUPercent, a.CPUPercent)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
