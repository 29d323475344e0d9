package amqp

import (
	"github.com/yumeiwang/amqp-engine/internal/encoding"
	"github.com/yumeiwang/amqp-engine/internal/frames"
)

// toFrameState converts the engine's public DeliveryState into the wire
// form the codec knows how to marshal.
func toFrameState(s DeliveryState) frames.DeliveryState {
	switch t := s.(type) {
	case nil:
		return nil
	case *Received:
		return &frames.StateReceived{SectionNumber: t.SectionNumber, SectionOffset: t.SectionOffset}
	case *Accepted:
		return &frames.StateAccepted{}
	case *Rejected:
		return &frames.StateRejected{Error: toWireCondition(t.Error)}
	case *Released:
		return &frames.StateReleased{}
	case *Modified:
		return &frames.StateModified{
			DeliveryFailed:     t.DeliveryFailed,
			UndeliverableHere:  t.UndeliverableHere,
			MessageAnnotations: toSymbolMap(t.MessageAnnotations),
		}
	default:
		return nil
	}
}

// fromFrameState converts a decoded wire delivery-state into the
// engine's public vocabulary.
func fromFrameState(s frames.DeliveryState) DeliveryState {
	switch t := s.(type) {
	case nil:
		return nil
	case *frames.StateReceived:
		return &Received{SectionNumber: t.SectionNumber, SectionOffset: t.SectionOffset}
	case *frames.StateAccepted:
		return &Accepted{}
	case *frames.StateRejected:
		return &Rejected{Error: fromWireCondition(t.Error)}
	case *frames.StateReleased:
		return &Released{}
	case *frames.StateModified:
		return &Modified{
			DeliveryFailed:     t.DeliveryFailed,
			UndeliverableHere:  t.UndeliverableHere,
			MessageAnnotations: fromSymbolMap(t.MessageAnnotations),
		}
	default:
		return nil
	}
}

func toWireCondition(c *Condition) *encoding.Error {
	if c == nil || !c.IsSet() {
		return nil
	}
	return &encoding.Error{
		Condition:   encoding.Symbol(c.Name),
		Description: c.Description,
		Info:        toSymbolMap(c.Info),
	}
}

func fromWireCondition(e *encoding.Error) *Condition {
	if e == nil {
		return nil
	}
	return &Condition{
		Name:        string(e.Condition),
		Description: e.Description,
		Info:        fromSymbolMap(e.Info),
	}
}

func toSymbolMap(m map[string]interface{}) map[encoding.Symbol]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[encoding.Symbol]interface{}, len(m))
	for k, v := range m {
		out[encoding.Symbol(k)] = v
	}
	return out
}

func fromSymbolMap(m map[encoding.Symbol]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

// dispositionRun is a contiguous run of deliveries, on one link
// direction, that share the same settlement/state pair and can be
// reported with a single DISPOSITION frame (§4.6's batching).
type dispositionRun struct {
	role    encoding.Role
	first   uint32
	last    uint32
	settled bool
	state   DeliveryState
}

// stateEqual compares two delivery states for the purpose of batching;
// it only needs to distinguish outcome kind plus the handful of scalar
// fields used in the scenarios this engine batches (identical Accepted
// states are always equal since they carry no data).
func stateEqual(a, b DeliveryState) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case *Accepted:
		_, ok := b.(*Accepted)
		return ok
	case *Released:
		_, ok := b.(*Released)
		return ok
	case *Rejected:
		y, ok := b.(*Rejected)
		return ok && x.Error == y.Error
	case *Modified:
		y, ok := b.(*Modified)
		return ok && x.DeliveryFailed == y.DeliveryFailed && x.UndeliverableHere == y.UndeliverableHere
	case *Received:
		y, ok := b.(*Received)
		return ok && x.SectionNumber == y.SectionNumber && x.SectionOffset == y.SectionOffset
	default:
		return false
	}
}

// batchDispositions groups a run of deliveries (already sorted by
// delivery-id) into the minimal set of dispositionRuns.
func batchDispositions(deliveries []*Delivery) []dispositionRun {
	var runs []dispositionRun
	for _, d := range deliveries {
		if !d.hasID {
			continue
		}
		if n := len(runs); n > 0 {
			r := &runs[n-1]
			if r.role == d.link.Role && r.last+1 == d.id && r.settled == d.locallySettled && stateEqual(r.state, d.LocalState) {
				r.last = d.id
				continue
			}
		}
		runs = append(runs, dispositionRun{
			role:    d.link.Role,
			first:   d.id,
			last:    d.id,
			settled: d.locallySettled,
			state:   d.LocalState,
		})
	}
	return runs
}
