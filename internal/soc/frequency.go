package soc

import (
	"strconv"
	"strings"

	"codeberg.org/mutker/socmon/internal/errors"
	"codeberg.org/mutker/socmon/internal/logger"
)

const (
	cpuStatsGroup            = "CPU Stats"
	cpuPerformanceStatesName = "CPU Core Performance States"
)

type clusterKind int

const (
	clusterUnknown clusterKind = iota
	clusterP
	clusterE
)

func (k clusterKind) String() string {
	switch k {
	case clusterP:
		return "P"
	case clusterE:
		return "E"
	default:
		return "unclassified"
	}
}

// classifyCluster maps a channel name onto its core cluster. Names
// vary across chip generations; prefixes cover per-core channels,
// substrings the cluster level ones. Efficiency markers are checked
// first so combined names never land in the performance bucket.
func classifyCluster(name string) clusterKind {
	switch {
	case strings.HasPrefix(name, "ECPU"),
		strings.Contains(name, "E-Cluster"),
		strings.Contains(name, "Efficiency"):
		return clusterE
	case strings.HasPrefix(name, "PCPU"),
		strings.Contains(name, "P-Cluster"),
		strings.Contains(name, "Performance"):
		return clusterP
	}

	return clusterUnknown
}

// parseStateMHz extracts the clock from a performance state label such
// as "2400 MHz". Labels change across OS releases; anything that does
// not carry a sane megahertz number is reported unparseable.
func parseStateMHz(label string) (float64, bool) {
	if !strings.Contains(label, "MHz") {
		return 0, false
	}
	for _, field := range strings.Fields(label) {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			continue
		}
		if v > 0 && v < 10000 {
			return v, true
		}
		return 0, false
	}

	return 0, false
}

// isIdleState matches the non-running states. Their residency widens
// the averaging window without contributing clock.
func isIdleState(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "IDLE", "DOWN", "OFF":
		return true
	}

	return false
}

// validChannel rejects malformed channel descriptions instead of
// letting one bad channel abort the whole read.
func validChannel(ch Channel) bool {
	return ch.Name != "" && len(ch.States) > 0
}

// freqAccumulator folds state residencies into a residency weighted
// average clock.
type freqAccumulator struct {
	sum   float64
	total float64
}

func (a *freqAccumulator) add(states []ChannelState) {
	for _, s := range states {
		res := float64(s.Residency)
		if res <= 0 {
			continue
		}
		if isIdleState(s.Name) {
			a.total += res
			continue
		}
		mhz, ok := parseStateMHz(s.Name)
		if !ok {
			continue
		}
		a.sum += mhz * res
		a.total += res
	}
}

func (a *freqAccumulator) gigahertz() Gigahertz {
	if a.total <= 0 {
		return 0
	}

	return Gigahertz(a.sum / a.total / 1000)
}

// clusterFrequencies folds decoded performance state channels into per
// cluster averages. Channels that fail validation or belong to neither
// cluster are skipped.
func clusterFrequencies(channels []Channel) ClusterFrequencies {
	var pAcc, eAcc freqAccumulator

	for _, ch := range channels {
		if !validChannel(ch) {
			continue
		}
		switch classifyCluster(ch.Name) {
		case clusterP:
			pAcc.add(ch.States)
		case clusterE:
			eAcc.add(ch.States)
		}
	}

	combined := freqAccumulator{
		sum:   pAcc.sum + eAcc.sum,
		total: pAcc.total + eAcc.total,
	}

	return ClusterFrequencies{
		PCluster: pAcc.gigahertz(),
		ECluster: eAcc.gigahertz(),
		Average:  combined.gigahertz(),
	}
}

// FrequencyReader samples per-cluster clock speeds by delta sampling
// the CPU performance state channels. A window that yields no usable
// data never overwrites the last good result.
type FrequencyReader struct {
	// Diagnostics logs every decoded channel of each window at debug
	// level, for channel layout troubleshooting on new chips.
	Diagnostics bool

	source   deltaSource
	lastGood ClusterFrequencies
	hasLast  bool
}

func NewFrequencyReader() *FrequencyReader {
	return &FrequencyReader{
		source: deltaSource{
			groups: []channelGroup{{group: cpuStatsGroup, subgroup: cpuPerformanceStatesName}},
		},
	}
}

func (r *FrequencyReader) Open() error {
	return r.source.open()
}

// Close drops the subscription and baseline. The last good window
// survives so a reopened reader can keep answering until fresh data
// arrives.
func (r *FrequencyReader) Close() {
	r.source.close()
}

func (r *FrequencyReader) Sample() (ClusterFrequencies, error) {
	errFactory := errors.New()

	channels, _, err := r.source.window()
	if err != nil {
		if r.hasLast && deltaFailure(err) {
			return r.lastGood, nil
		}
		return ClusterFrequencies{}, err
	}

	freqs := clusterFrequencies(channels)
	if r.Diagnostics {
		logFrequencyWindow(channels, freqs)
	}
	if freqs.Average > 0 {
		r.lastGood = freqs
		r.hasLast = true
		return freqs, nil
	}
	if r.hasLast {
		return r.lastGood, nil
	}
	if len(channels) == 0 {
		return ClusterFrequencies{}, errFactory.New(ErrNoUsableChannels)
	}

	return freqs, nil
}

// logFrequencyWindow records the raw evidence behind one window: each
// channel with its state count, summed residency and derived clock,
// then the folded cluster averages.
func logFrequencyWindow(channels []Channel, freqs ClusterFrequencies) {
	for _, ch := range channels {
		if !validChannel(ch) {
			continue
		}
		var acc freqAccumulator
		acc.add(ch.States)
		logger.Debug().
			Str("channel", ch.Name).
			Str("cluster", classifyCluster(ch.Name).String()).
			Int("states", len(ch.States)).
			Float64("residency", acc.total).
			Float64("ghz", float64(acc.gigahertz())).
			Msg("Frequency channel")
	}
	logger.Debug().
		Float64("pcluster_ghz", float64(freqs.PCluster)).
		Float64("ecluster_ghz", float64(freqs.ECluster)).
		Float64("average_ghz", float64(freqs.Average)).
		Msg("Frequency window")
}
