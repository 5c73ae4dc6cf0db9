package pipeline

import (
	dcodec "github.com/cocosip/go-dicom/pkg/imaging/codec"

	"github.com/cocosip/go-dicom-jpeg/codec"
)

// Ensure Parameters implements codec.Parameters
var _ dcodec.Parameters = (*Parameters)(nil)

// Parameters carries the decoder options through the go-dicom codec
// interface
type Parameters struct {
	Config codec.Config

	// internal storage for compatibility with generic parameter interface
	params map[string]interface{}
}

// NewParameters creates Parameters holding the default configuration
func NewParameters() *Parameters {
	return &Parameters{
		Config: *codec.DefaultConfig(),
		params: make(map[string]interface{}),
	}
}

// GetParameter retrieves a parameter by name (implements codec.Parameters)
func (p *Parameters) GetParameter(name string) interface{} {
	switch name {
	case ParamTrustDeclaredColorTransform:
		return p.Config.TrustDeclaredColorTransform
	case ParamAllowPartialImageOnFrameFailure:
		return p.Config.AllowPartialImageOnFrameFailure
	case ParamPreferPlanarOutput:
		return p.Config.PreferPlanarOutput
	case ParamIgnoreOffsetTable:
		return p.Config.IgnoreOffsetTable
	default:
		return p.params[name]
	}
}

// SetParameter sets a parameter value (implements codec.Parameters)
func (p *Parameters) SetParameter(name string, value interface{}) {
	b, isBool := value.(bool)
	switch {
	case name == ParamTrustDeclaredColorTransform && isBool:
		p.Config.TrustDeclaredColorTransform = b
	case name == ParamAllowPartialImageOnFrameFailure && isBool:
		p.Config.AllowPartialImageOnFrameFailure = b
	case name == ParamPreferPlanarOutput && isBool:
		p.Config.PreferPlanarOutput = b
	case name == ParamIgnoreOffsetTable && isBool:
		p.Config.IgnoreOffsetTable = b
	default:
		if p.params == nil {
			p.params = make(map[string]interface{})
		}
		p.params[name] = value
	}
}

// Clone returns an independent copy, extra parameters included
func (p *Parameters) Clone() *Parameters {
	c := &Parameters{Config: p.Config, params: make(map[string]interface{}, len(p.params))}
	for k, v := range p.params {
		c.params[k] = v
	}
	return c
}

// Validate checks the parameters; every combination of options is valid
func (p *Parameters) Validate() error {
	return nil
}

// WithPartialImages enables zero-filling of frames that fail to decode
func (p *Parameters) WithPartialImages(allow bool) *Parameters {
	p.Config.AllowPartialImageOnFrameFailure = allow
	return p
}

// WithPlanarOutput selects plane-by-plane colour output
func (p *Parameters) WithPlanarOutput(planar bool) *Parameters {
	p.Config.PreferPlanarOutput = planar
	return p
}
