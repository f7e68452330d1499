package host

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	pshost "github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"codeberg.org/mutker/socmon/internal/errors"
	"codeberg.org/mutker/socmon/internal/logger"
)

// Sampler reads coarse utilization through gopsutil. CPU percentages
// are computed against the previous call, so NewSampler primes the
// internal baseline and the first scheduled sample covers a real
// window instead of process lifetime.
type Sampler struct{}

func NewSampler(ctx context.Context) *Sampler {
	if _, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		logger.Debug().Err(err).Msg("Failed to prime CPU usage baseline")
	}

	return &Sampler{}
}

// Usage returns utilization since the previous call. Load, memory and
// uptime are best-effort; only the CPU sample gates the result.
func (s *Sampler) Usage(ctx context.Context) (Usage, error) {
	errFactory := errors.New()

	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Usage{}, errFactory.Wrap(ErrUsageReadFailed, err)
	}

	u := Usage{}
	if len(pct) > 0 {
		u.CPUPercent = pct[0]
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		u.Load1 = avg.Load1
		u.Load5 = avg.Load5
		u.Load15 = avg.Load15
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		u.MemoryUsed = vm.Used
		u.MemoryTotal = vm.Total
		u.MemoryUsedPercent = vm.UsedPercent
	}

	if uptime, err := pshost.UptimeWithContext(ctx); err == nil {
		u.UptimeSeconds = uptime
	}

	return u, nil
}
