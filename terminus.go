package amqp

import (
	"github.com/yumeiwang/amqp-engine/internal/encoding"
	"github.com/yumeiwang/amqp-engine/internal/frames"
)

// TerminusType distinguishes a link's source from its target; the two
// share almost all of their fields on the wire (AMQP 1.0 §3.5).
type TerminusType uint8

const (
	TerminusUnspecified TerminusType = iota
	TerminusSource
	TerminusTarget
)

// Terminus is the engine's unified model of a link's source or target,
// populated by the application before ATTACH and updated from the
// peer's ATTACH once it arrives. Grounded on proton-c's pn_terminus_t
// and its copy-on-negotiate semantics (pn_terminus_copy).
type Terminus struct {
	Type                  TerminusType
	Address               string
	Durable               encoding.Durability
	ExpiryPolicy          encoding.ExpiryPolicy
	Timeout               uint32
	Dynamic               bool
	DistributionMode      encoding.DistributionMode
	DynamicNodeProperties map[encoding.Symbol]interface{}
	Filter                map[encoding.Symbol]interface{}
	Outcomes              []encoding.Symbol
	Capabilities          []encoding.Symbol
}

// Copy deep-copies src into t, matching pn_terminus_copy: after ATTACH
// negotiation the engine needs an independent snapshot of whichever
// side's terminus the other party echoed back, uncoupled from the
// application's original (and possibly still-mutable) request.
func (t *Terminus) Copy(src *Terminus) {
	*t = Terminus{
		Type:             src.Type,
		Address:          src.Address,
		Durable:          src.Durable,
		ExpiryPolicy:     src.ExpiryPolicy,
		Timeout:          src.Timeout,
		Dynamic:          src.Dynamic,
		DistributionMode: src.DistributionMode,
	}
	t.DynamicNodeProperties = copySymbolMap(src.DynamicNodeProperties)
	t.Filter = copySymbolMap(src.Filter)
	t.Outcomes = append([]encoding.Symbol(nil), src.Outcomes...)
	t.Capabilities = append([]encoding.Symbol(nil), src.Capabilities...)
}

func copySymbolMap(m map[encoding.Symbol]interface{}) map[encoding.Symbol]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[encoding.Symbol]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t *Terminus) toSourceFrame() *frames.Source {
	if t == nil {
		return nil
	}
	return &frames.Source{
		Address:               t.Address,
		Durable:               t.Durable,
		ExpiryPolicy:          t.ExpiryPolicy,
		Timeout:               t.Timeout,
		Dynamic:               t.Dynamic,
		DynamicNodeProperties: t.DynamicNodeProperties,
		DistributionMode:      t.DistributionMode,
		Filter:                t.Filter,
		Outcomes:              t.Outcomes,
		Capabilities:          t.Capabilities,
	}
}

func (t *Terminus) toTargetFrame() *frames.Target {
	if t == nil {
		return nil
	}
	return &frames.Target{
		Address:               t.Address,
		Durable:               t.Durable,
		ExpiryPolicy:          t.ExpiryPolicy,
		Timeout:               t.Timeout,
		Dynamic:               t.Dynamic,
		DynamicNodeProperties: t.DynamicNodeProperties,
		Capabilities:          t.Capabilities,
	}
}

func terminusFromSourceFrame(s *frames.Source) *Terminus {
	if s == nil {
		return nil
	}
	return &Terminus{
		Type:                  TerminusSource,
		Address:               s.Address,
		Durable:               s.Durable,
		ExpiryPolicy:          s.ExpiryPolicy,
		Timeout:               s.Timeout,
		Dynamic:               s.Dynamic,
		DynamicNodeProperties: s.DynamicNodeProperties,
		DistributionMode:      s.DistributionMode,
		Filter:                s.Filter,
		Outcomes:              s.Outcomes,
		Capabilities:          s.Capabilities,
	}
}

func terminusFromTargetFrame(t *frames.Target) *Terminus {
	if t == nil {
		return nil
	}
	return &Terminus{
		Type:                  TerminusTarget,
		Address:               t.Address,
		Durable:               t.Durable,
		ExpiryPolicy:          t.ExpiryPolicy,
		Timeout:               t.Timeout,
		Dynamic:               t.Dynamic,
		DynamicNodeProperties: t.DynamicNodeProperties,
		Capabilities:          t.Capabilities,
	}
}
