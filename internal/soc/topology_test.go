package soc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const displayProfile = `Graphics/Displays:

    Apple M3 Max:

      Chipset Model: Apple M3 Max
      Type: GPU
      Bus: Built-In
      Total Number of Cores: 40
      Vendor: Apple (0x106b)
      Metal Support: Metal 3
`

func TestParseGPUCoreCount(t *testing.T) {
	assert.Equal(t, 40, parseGPUCoreCount(displayProfile))
	assert.Equal(t, 0, parseGPUCoreCount("Chipset Model: Apple M3 Max\n"))
	assert.Equal(t, 0, parseGPUCoreCount("Total Number of Cores: many\n"))
	assert.Equal(t, 0, parseGPUCoreCount(""))
}

func TestNominalFrequencies(t *testing.T) {
	topo := Topology{PClusterMax: 4.0, EClusterMax: 2.0}
	freqs := topo.NominalFrequencies()
	assert.InDelta(t, 4.0, float64(freqs.PCluster), 1e-9)
	assert.InDelta(t, 2.0, float64(freqs.ECluster), 1e-9)
	assert.InDelta(t, 3.0, float64(freqs.Average), 1e-9)

	topo = Topology{PClusterMax: 3.5}
	assert.InDelta(t, 3.5, float64(topo.NominalFrequencies().Average), 1e-9)

	topo = Topology{}
	assert.Zero(t, topo.NominalFrequencies().Average)
}
