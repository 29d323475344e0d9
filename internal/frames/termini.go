package frames

import (
	"github.com/pkg/errors"
	"github.com/yumeiwang/amqp-engine/internal/buffer"
	"github.com/yumeiwang/amqp-engine/internal/encoding"
)

// Source is the wire form of an AMQP source terminus, attached to an
// ATTACH performative. Field set trimmed to what this engine's Terminus
// model (spec §3) round-trips.
type Source struct {
	Address               string
	Durable               encoding.Durability
	ExpiryPolicy          encoding.ExpiryPolicy
	Timeout               uint32
	Dynamic               bool
	DynamicNodeProperties map[encoding.Symbol]interface{}
	DistributionMode      encoding.DistributionMode
	Filter                map[encoding.Symbol]interface{}
	Outcomes              []encoding.Symbol
	Capabilities          []encoding.Symbol
}

func (s *Source) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorSource, []encoding.MarshalField{
		{Value: s.Address, Omit: s.Address == ""},
		{Value: s.Durable, Omit: s.Durable == encoding.DurabilityNone},
		{Value: encoding.Symbol(s.ExpiryPolicy), Omit: s.ExpiryPolicy == "" || s.ExpiryPolicy == encoding.ExpirySessionEnd},
		{Value: s.Timeout, Omit: s.Timeout == 0},
		{Value: s.Dynamic, Omit: !s.Dynamic},
		{Value: s.DynamicNodeProperties, Omit: len(s.DynamicNodeProperties) == 0},
		{Value: encoding.Symbol(s.DistributionMode), Omit: s.DistributionMode == ""},
		{Value: s.Filter, Omit: len(s.Filter) == 0},
		{Value: nil, Omit: true}, // default-outcome: not modeled
		{Value: s.Outcomes, Omit: len(s.Outcomes) == 0},
		{Value: s.Capabilities, Omit: len(s.Capabilities) == 0},
	})
}

// fields binds s's members to positional wire fields, shared by direct
// unmarshal (a Source frame body stands alone) and decodeSource (a
// Source nested inside an ATTACH's positional list).
func (s *Source) fields() []encoding.UnmarshalField {
	return []encoding.UnmarshalField{
		{Field: &s.Address},
		{Field: &s.Durable},
		{Field: &s.ExpiryPolicy, HandleNull: func() error { s.ExpiryPolicy = encoding.ExpirySessionEnd; return nil }},
		{Field: &s.Timeout},
		{Field: &s.Dynamic},
		{Field: &s.DynamicNodeProperties},
		{Field: &s.DistributionMode},
		{Field: &s.Filter},
		{}, // default-outcome: not modeled
		{Field: &s.Outcomes},
		{Field: &s.Capabilities},
	}
}

func (s *Source) Unmarshal(r *buffer.Buffer) error {
	items, err := encoding.ReadComposite(r, encoding.DescriptorSource)
	if err != nil {
		return err
	}
	return encoding.AssignFields(items, s.fields()...)
}

// decodeSource converts a generically-decoded described value (as found
// nested inside an ATTACH's positional item list) into a Source.
func decodeSource(v interface{}) (*Source, error) {
	if v == nil {
		return nil, nil
	}
	dt, ok := v.(*encoding.DescribedType)
	if !ok {
		return nil, errors.Errorf("frames: expected source, got %T", v)
	}
	if dt.Descriptor != encoding.DescriptorSource {
		return nil, errors.Errorf("frames: expected source descriptor, got %#x", dt.Descriptor)
	}
	items, _ := dt.Value.([]interface{})
	s := &Source{}
	if err := encoding.AssignFields(items, s.fields()...); err != nil {
		return nil, err
	}
	return s, nil
}

// Target is the wire form of an AMQP target terminus.
type Target struct {
	Address               string
	Durable               encoding.Durability
	ExpiryPolicy          encoding.ExpiryPolicy
	Timeout               uint32
	Dynamic               bool
	DynamicNodeProperties map[encoding.Symbol]interface{}
	Capabilities          []encoding.Symbol
}

func (t *Target) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorTarget, []encoding.MarshalField{
		{Value: t.Address, Omit: t.Address == ""},
		{Value: t.Durable, Omit: t.Durable == encoding.DurabilityNone},
		{Value: encoding.Symbol(t.ExpiryPolicy), Omit: t.ExpiryPolicy == "" || t.ExpiryPolicy == encoding.ExpirySessionEnd},
		{Value: t.Timeout, Omit: t.Timeout == 0},
		{Value: t.Dynamic, Omit: !t.Dynamic},
		{Value: t.DynamicNodeProperties, Omit: len(t.DynamicNodeProperties) == 0},
		{Value: t.Capabilities, Omit: len(t.Capabilities) == 0},
	})
}

func (t *Target) fields() []encoding.UnmarshalField {
	return []encoding.UnmarshalField{
		{Field: &t.Address},
		{Field: &t.Durable},
		{Field: &t.ExpiryPolicy, HandleNull: func() error { t.ExpiryPolicy = encoding.ExpirySessionEnd; return nil }},
		{Field: &t.Timeout},
		{Field: &t.Dynamic},
		{Field: &t.DynamicNodeProperties},
		{Field: &t.Capabilities},
	}
}

func (t *Target) Unmarshal(r *buffer.Buffer) error {
	items, err := encoding.ReadComposite(r, encoding.DescriptorTarget)
	if err != nil {
		return err
	}
	return encoding.AssignFields(items, t.fields()...)
}

// decodeTarget converts a generically-decoded described value (nested
// inside an ATTACH's positional item list) into a Target.
func decodeTarget(v interface{}) (*Target, error) {
	if v == nil {
		return nil, nil
	}
	dt, ok := v.(*encoding.DescribedType)
	if !ok {
		return nil, errors.Errorf("frames: expected target, got %T", v)
	}
	if dt.Descriptor != encoding.DescriptorTarget {
		return nil, errors.Errorf("frames: expected target descriptor, got %#x", dt.Descriptor)
	}
	items, _ := dt.Value.([]interface{})
	t := &Target{}
	if err := encoding.AssignFields(items, t.fields()...); err != nil {
		return nil, err
	}
	return t, nil
}
