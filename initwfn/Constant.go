package initwfn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ZeroesConfig configures an initializer which sets all weights to 0
type ZeroesConfig struct{}

// NewZeroes returns a new zeroes weight intializer
func NewZeroes() (*InitWFn, error) {
	return newInitWFn(ZeroesConfig{})
}

// Type returns the type of the weight initializer created using this
// config
func (z ZeroesConfig) Type() Type { return Zeroes }

// Validate checks the configuration for errors
func (z ZeroesConfig) Validate() error { return nil }

// Create returns the Gorgonia InitWFn. Constant initializers do not
// sample, so src is unused.
func (z ZeroesConfig) Create(rand.Source) G.InitWFn { return constant(0) }

// OnesConfig configures an initializer which sets all weights to 1
type OnesConfig struct{}

// NewOnes returns a new ones weight intializer
func NewOnes() (*InitWFn, error) {
	return newInitWFn(OnesConfig{})
}

// Type returns the type of the weight initializer created using this
// config
func (o OnesConfig) Type() Type { return Ones }

// Validate checks the configuration for errors
func (o OnesConfig) Validate() error { return nil }

// Create returns the Gorgonia InitWFn
func (o OnesConfig) Create(rand.Source) G.InitWFn { return constant(1) }

// ConstantConfig configures an initializer which sets all weights to
// Value
type ConstantConfig struct {
	Value float64 `yaml:"value"`
}

// NewConstant returns a new constant weight intializer
func NewConstant(value float64) (*InitWFn, error) {
	return newInitWFn(ConstantConfig{value})
}

// Type returns the type of the weight initializer created using this
// config
func (c ConstantConfig) Type() Type { return Constant }

// Validate checks the configuration for errors
func (c ConstantConfig) Validate() error {
	if math.IsInf(c.Value, 0) || math.IsNaN(c.Value) {
		return fmt.Errorf("validate: constant must be finite \n\thave(%v)",
			c.Value)
	}
	return nil
}

// Create returns the Gorgonia InitWFn
func (c ConstantConfig) Create(rand.Source) G.InitWFn {
	return constant(c.Value)
}

func constant(value float64) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		size := 1
		for _, dim := range s {
			size *= dim
		}

		values := make([]float64, size)
		for i := range values {
			values[i] = value
		}
		return backing(dt, values)
	}
}

// backing converts values to a backing slice of type dt
func backing(dt tensor.Dtype, values []float64) interface{} {
	switch dt {
	case tensor.Float64:
		return values
	case tensor.Float32:
		out := make([]float32, len(values))
		for i, v := range values {
			out[i] = float32(v)
		}
		return out
	default:
		panic(fmt.Sprintf("initwfn: unsupported dtype %v", dt))
	}
}
