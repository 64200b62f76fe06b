package initwfn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GlorotUConfig configures Glorot uniform initialization, which samples
// from U[-w, w] with w = gain * sqrt(6 / (fanIn + fanOut))
type GlorotUConfig struct {
	Gain float64 `yaml:"gain"`
}

// NewGlorotU returns a new Glorot uniform weight initializer
func NewGlorotU(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotUConfig{Gain: gain})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (g GlorotUConfig) Type() Type { return GlorotU }

// Validate checks the configuration for errors
func (g GlorotUConfig) Validate() error { return validateGain(g.Gain) }

// Create returns a Gorgonia InitWFn which samples from src
func (g GlorotUConfig) Create(src rand.Source) G.InitWFn {
	return scaled(func(fanIn, fanOut float64) float64 {
		width := g.Gain * math.Sqrt(6/(fanIn+fanOut))
		return distuv.Uniform{Min: -width, Max: width, Src: src}.Rand()
	})
}

// GlorotNConfig configures Glorot normal initialization, which samples
// from N(0, σ²) with σ = gain * sqrt(2 / (fanIn + fanOut))
type GlorotNConfig struct {
	Gain float64 `yaml:"gain"`
}

// NewGlorotN returns a new Glorot normal weight initializer
func NewGlorotN(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotNConfig{Gain: gain})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (g GlorotNConfig) Type() Type { return GlorotN }

// Validate checks the configuration for errors
func (g GlorotNConfig) Validate() error { return validateGain(g.Gain) }

// Create returns a Gorgonia InitWFn which samples from src
func (g GlorotNConfig) Create(src rand.Source) G.InitWFn {
	return scaled(func(fanIn, fanOut float64) float64 {
		sigma := g.Gain * math.Sqrt(2/(fanIn+fanOut))
		return distuv.Normal{Mu: 0, Sigma: sigma, Src: src}.Rand()
	})
}

// HeUConfig configures He uniform initialization, which samples from
// U[-w, w] with w = gain * sqrt(3 / fanIn)
type HeUConfig struct {
	Gain float64 `yaml:"gain"`
}

// NewHeU returns a new He uniform weight initializer
func NewHeU(gain float64) (*InitWFn, error) {
	return newInitWFn(HeUConfig{Gain: gain})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (h HeUConfig) Type() Type { return HeU }

// Validate checks the configuration for errors
func (h HeUConfig) Validate() error { return validateGain(h.Gain) }

// Create returns a Gorgonia InitWFn which samples from src
func (h HeUConfig) Create(src rand.Source) G.InitWFn {
	return scaled(func(fanIn, _ float64) float64 {
		width := h.Gain * math.Sqrt(3/fanIn)
		return distuv.Uniform{Min: -width, Max: width, Src: src}.Rand()
	})
}

// HeNConfig configures He normal initialization, which samples from
// N(0, σ²) with σ = gain / sqrt(fanIn)
type HeNConfig struct {
	Gain float64 `yaml:"gain"`
}

// NewHeN returns a new He normal weight initializer
func NewHeN(gain float64) (*InitWFn, error) {
	return newInitWFn(HeNConfig{Gain: gain})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (h HeNConfig) Type() Type { return HeN }

// Validate checks the configuration for errors
func (h HeNConfig) Validate() error { return validateGain(h.Gain) }

// Create returns a Gorgonia InitWFn which samples from src
func (h HeNConfig) Create(src rand.Source) G.InitWFn {
	return scaled(func(fanIn, _ float64) float64 {
		sigma := h.Gain / math.Sqrt(fanIn)
		return distuv.Normal{Mu: 0, Sigma: sigma, Src: src}.Rand()
	})
}

// scaled returns a Gorgonia InitWFn which fills a weight matrix of
// shape (fanIn, fanOut) with samples drawn by sample. Weights of any
// other rank are treated as a single fan in.
func scaled(sample func(fanIn, fanOut float64) float64) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		size, fanIn, fanOut := 1, 1, 1
		for _, dim := range s {
			size *= dim
		}
		switch len(s) {
		case 0:
		case 1:
			fanIn = s[0]
		default:
			fanIn, fanOut = s[0], size/s[0]
		}

		values := make([]float64, size)
		for i := range values {
			values[i] = sample(float64(fanIn), float64(fanOut))
		}
		return backing(dt, values)
	}
}

func validateGain(gain float64) error {
	if gain <= 0 || math.IsInf(gain, 0) || math.IsNaN(gain) {
		return fmt.Errorf("validate: gain must be positive and finite "+
			"\n\thave(%v)", gain)
	}
	return nil
}
