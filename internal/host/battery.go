package host

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/socmon/internal/errors"
)

const batteryReadTimeout = 2 * time.Second

// Battery shells out to pmset and parses the first battery line.
// Desktops without a battery return ErrBatteryNotFound.
func (s *Sampler) Battery(ctx context.Context) (Battery, error) {
	errFactory := errors.New()

	ctx, cancel := context.WithTimeout(ctx, batteryReadTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "pmset", "-g", "batt").Output()
	if err != nil {
		return Battery{}, errFactory.Wrap(ErrBatteryReadFailed, err)
	}

	b, ok := parseBattery(string(out))
	if !ok {
		return Battery{}, errFactory.New(ErrBatteryNotFound)
	}

	return b, nil
}

// parseBattery extracts charge state from pmset -g batt output, e.g.
//
//	Now drawing from 'Battery Power'
//	 -InternalBattery-0 (id=4456547)	87%; discharging; 4:11 remaining present: true
func parseBattery(raw string) (Battery, bool) {
	var timeLeft string

	for _, line := range strings.Split(raw, "\n") {
		if strings.Contains(line, "remaining") {
			parts := strings.Fields(line)
			for i, p := range parts {
				if p == "remaining" && i > 0 {
					timeLeft = parts[i-1]
				}
			}
		}

		if !strings.Contains(line, "%") {
			continue
		}

		fields := strings.Fields(line)
		for i, f := range fields {
			if !strings.Contains(f, "%") {
				continue
			}
			value := strings.TrimSuffix(strings.TrimSuffix(f, ";"), "%")
			percent, err := strconv.ParseFloat(value, 64)
			if err != nil {
				break
			}

			b := Battery{
				Present:  true,
				Percent:  percent,
				TimeLeft: timeLeft,
			}
			if i+1 < len(fields) {
				b.Status = strings.TrimSuffix(fields[i+1], ";")
			}
			b.Charging = b.Status == "charging"

			return b, true
		}
	}

	return Battery{}, false
}
