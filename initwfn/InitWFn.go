// Package initwfn implements seeded weight initializers for Gorgonia
// which can be serialized into configuration files.
package initwfn

import (
	"fmt"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
)

// Type describes different types of InitWFn that are available.
// Type is used to implement a basic type system of InitWFn's.
type Type string

// Available InitWFn types
const (
	GlorotU  Type = "GlorotU"
	GlorotN  Type = "GlorotN"
	HeU      Type = "HeU"
	HeN      Type = "HeN"
	Zeroes   Type = "Zeroes"
	Ones     Type = "Ones"
	Constant Type = "Constant"
)

// InitWFn describes a weight initialization algorithm. It can be YAML
// marshalled and unmarshalled, and creates Gorgonia InitWFns which
// draw from a seeded source so that networks are reproducible.
type InitWFn struct {
	Type
	Config
}

// newInitWFn returns a new InitWFn
func newInitWFn(c Config) (*InitWFn, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newInitWFn: %v", err)
	}
	return &InitWFn{Type: c.Type(), Config: c}, nil
}

// InitWFn returns a Gorgonia InitWFn seeded with seed. All weights
// initialized by the returned function are drawn from the same stream,
// so initializing the same layers in the same order with the same seed
// gives the same weights.
func (i *InitWFn) InitWFn(seed uint64) G.InitWFn {
	return i.Config.Create(rand.NewSource(seed))
}

// String implements the fmt.Stringer interface
func (i *InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: %v}", i.Type, i.Config)
}

// MarshalYAML implements the yaml.Marshaler interface
func (i *InitWFn) MarshalYAML() (interface{}, error) {
	return struct {
		Type   Type   `yaml:"type"`
		Config Config `yaml:"config,omitempty"`
	}{i.Type, i.Config}, nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface. The
// concrete Config is chosen by the type field, for example:
//
//	type: GlorotU
//	config:
//	  gain: 1.0
func (i *InitWFn) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var typed struct {
		Type   Type        `yaml:"type"`
		Config interface{} `yaml:"config"`
	}
	if err := unmarshal(&typed); err != nil {
		return err
	}

	var config Config
	var err error
	switch typed.Type {
	case GlorotU:
		c := struct {
			Type   Type          `yaml:"type"`
			Config GlorotUConfig `yaml:"config"`
		}{typed.Type, GlorotUConfig{Gain: 1.0}}
		err = unmarshal(&c)
		config = c.Config

	case GlorotN:
		c := struct {
			Type   Type          `yaml:"type"`
			Config GlorotNConfig `yaml:"config"`
		}{typed.Type, GlorotNConfig{Gain: 1.0}}
		err = unmarshal(&c)
		config = c.Config

	case HeU:
		c := struct {
			Type   Type      `yaml:"type"`
			Config HeUConfig `yaml:"config"`
		}{typed.Type, HeUConfig{Gain: 1.0}}
		err = unmarshal(&c)
		config = c.Config

	case HeN:
		c := struct {
			Type   Type      `yaml:"type"`
			Config HeNConfig `yaml:"config"`
		}{typed.Type, HeNConfig{Gain: 1.0}}
		err = unmarshal(&c)
		config = c.Config

	case Zeroes:
		config = ZeroesConfig{}

	case Ones:
		config = OnesConfig{}

	case Constant:
		c := struct {
			Type   Type           `yaml:"type"`
			Config ConstantConfig `yaml:"config"`
		}{Type: typed.Type}
		err = unmarshal(&c)
		config = c.Config

	default:
		return fmt.Errorf("unmarshalYAML: unknown InitWFn type %q",
			typed.Type)
	}
	if err != nil {
		return fmt.Errorf("unmarshalYAML: could not unmarshal %v config: %v",
			typed.Type, err)
	}

	init, err := newInitWFn(config)
	if err != nil {
		return fmt.Errorf("unmarshalYAML: %v", err)
	}
	*i = *init
	return nil
}

// Config implements a weight initializer configuration and can be used
// to create the described Gorgonia InitWFn's.
type Config interface {
	// Create returns the Gorgonia InitWFn that the Config describes,
	// drawing any random weights from src
	Create(src rand.Source) G.InitWFn

	// Type returns the type of Gorgonia InitWFn that is returned
	Type() Type

	Validate() error
}
