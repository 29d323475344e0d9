package frames

import (
	"github.com/pkg/errors"
	"github.com/yumeiwang/amqp-engine/internal/buffer"
	"github.com/yumeiwang/amqp-engine/internal/encoding"
)

// DeliveryState is the composite family of delivery outcomes/states
// carried in TRANSFER and DISPOSITION performatives (AMQP 1.0 §3.4):
// received, accepted, rejected, released, modified.
type DeliveryState interface {
	encoding.Marshaler
	isDeliveryState()
}

// StateReceived marks a partial TRANSFER's resume point.
type StateReceived struct {
	SectionNumber uint32
	SectionOffset uint64
}

func (*StateReceived) isDeliveryState() {}

func (s *StateReceived) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorReceived, []encoding.MarshalField{
		{Value: s.SectionNumber},
		{Value: s.SectionOffset},
	})
}

// StateAccepted is the terminal "accepted" outcome.
type StateAccepted struct{}

func (*StateAccepted) isDeliveryState() {}

func (s *StateAccepted) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorAccepted, nil)
}

// StateRejected is the terminal "rejected" outcome.
type StateRejected struct {
	Error *encoding.Error
}

func (*StateRejected) isDeliveryState() {}

func (s *StateRejected) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorRejected, []encoding.MarshalField{
		{Value: s.Error, Omit: s.Error == nil},
	})
}

// StateReleased is the terminal "released" outcome.
type StateReleased struct{}

func (*StateReleased) isDeliveryState() {}

func (s *StateReleased) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorReleased, nil)
}

// StateModified is the terminal "modified" outcome.
type StateModified struct {
	DeliveryFailed     bool
	UndeliverableHere  bool
	MessageAnnotations map[encoding.Symbol]interface{}
}

func (*StateModified) isDeliveryState() {}

func (s *StateModified) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorModified, []encoding.MarshalField{
		{Value: s.DeliveryFailed, Omit: !s.DeliveryFailed},
		{Value: s.UndeliverableHere, Omit: !s.UndeliverableHere},
		{Value: s.MessageAnnotations, Omit: len(s.MessageAnnotations) == 0},
	})
}

// decodeDeliveryState converts the generic (descriptor, []interface{})
// pair the codec produces for an embedded composite into the concrete
// DeliveryState TRANSFER/DISPOSITION carry. v is nil when the state
// field was absent from the wire.
func decodeDeliveryState(v interface{}) (DeliveryState, error) {
	if v == nil {
		return nil, nil
	}
	dt, ok := v.(*encoding.DescribedType)
	if !ok {
		return nil, errors.Errorf("frames: expected described delivery-state, got %T", v)
	}
	items, _ := dt.Value.([]interface{})
	item := func(i int) interface{} {
		if i < len(items) {
			return items[i]
		}
		return nil
	}
	switch dt.Descriptor {
	case encoding.DescriptorReceived:
		s := &StateReceived{}
		if n, ok := item(0).(uint32); ok {
			s.SectionNumber = n
		}
		if n, ok := item(1).(uint64); ok {
			s.SectionOffset = n
		}
		return s, nil
	case encoding.DescriptorAccepted:
		return &StateAccepted{}, nil
	case encoding.DescriptorRejected:
		s := &StateRejected{}
		if err := encoding.AssignFields(items, encoding.UnmarshalField{Field: &s.Error}); err != nil {
			return nil, err
		}
		return s, nil
	case encoding.DescriptorReleased:
		return &StateReleased{}, nil
	case encoding.DescriptorModified:
		s := &StateModified{}
		if b, ok := item(0).(bool); ok {
			s.DeliveryFailed = b
		}
		if b, ok := item(1).(bool); ok {
			s.UndeliverableHere = b
		}
		if m, ok := item(2).(map[encoding.Symbol]interface{}); ok {
			s.MessageAnnotations = m
		}
		return s, nil
	default:
		return nil, errors.Errorf("frames: unknown delivery-state descriptor %#x", dt.Descriptor)
	}
}
