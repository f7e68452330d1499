package soc

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/socmon/internal/logger"
	"github.com/shoenig/go-m1cpu"
	"golang.org/x/sys/unix"
)

// sysctlCount reads an integer sysctl, zero when the key is absent.
func sysctlCount(name string) int {
	v, err := unix.SysctlUint32(name)
	if err != nil {
		return 0
	}

	return int(v)
}

// sysctlBytes reads a 64-bit size sysctl, zero when the key is absent.
func sysctlBytes(name string) uint64 {
	v, err := unix.SysctlUint64(name)
	if err != nil {
		return 0
	}

	return v
}

// parseGPUCoreCount scans system_profiler display output for the core
// count line.
func parseGPUCoreCount(output string) int {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "Total Number of Cores") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0
		}
		return n
	}

	return 0
}

func gpuCoreCount(ctx context.Context) int {
	out, err := exec.CommandContext(ctx, "system_profiler", "-detailLevel", "basic", "SPDisplaysDataType").Output()
	if err != nil {
		logger.Debug().Err(err).Msg("system_profiler display query failed")
		return 0
	}

	return parseGPUCoreCount(string(out))
}

// DetectTopology describes the host SoC. Detection is best effort and
// runs once at startup; fields the host does not expose stay zero.
func DetectTopology(ctx context.Context) Topology {
	t := Topology{
		AppleSilicon:     m1cpu.IsAppleSilicon(),
		PhysicalCores:    sysctlCount("hw.physicalcpu"),
		LogicalCores:     sysctlCount("hw.logicalcpu"),
		PerformanceCores: sysctlCount("hw.perflevel0.physicalcpu"),
		EfficiencyCores:  sysctlCount("hw.perflevel1.physicalcpu"),
		L2CacheBytes:     sysctlBytes("hw.perflevel0.l2cachesize"),
		L3CacheBytes:     sysctlBytes("hw.l3cachesize"),
		DetectedAt:       time.Now(),
	}

	if t.AppleSilicon {
		t.Model = m1cpu.ModelName()
		t.PClusterMax = Gigahertz(m1cpu.PCoreGHz())
		t.EClusterMax = Gigahertz(m1cpu.ECoreGHz())
		t.GPUCores = gpuCoreCount(ctx)
	}
	if t.Model == "" {
		if model, err := unix.Sysctl("machdep.cpu.brand_string"); err == nil {
			t.Model = model
		}
	}

	return t
}

// NominalFrequencies reports the rated cluster clocks, used as the
// stand-in before any sampled window exists.
func (t Topology) NominalFrequencies() ClusterFrequencies {
	f := ClusterFrequencies{
		PCluster: t.PClusterMax,
		ECluster: t.EClusterMax,
	}
	switch {
	case f.PCluster > 0 && f.ECluster > 0:
		f.Average = (f.PCluster + f.ECluster) / 2
	case f.PCluster > 0:
		f.Average = f.PCluster
	default:
		f.Average = f.ECluster
	}

	return f
}
