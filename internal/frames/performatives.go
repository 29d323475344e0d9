package frames

import (
	"time"

	"github.com/yumeiwang/amqp-engine/internal/buffer"
	"github.com/yumeiwang/amqp-engine/internal/encoding"
)

// Open is the connection-scoped OPEN performative, sent once on channel 0
// to move a connection's local state from UNINIT to ACTIVE.
type Open struct {
	ContainerID         string
	Hostname            string
	MaxFrameSize        uint32
	ChannelMax          uint16
	IdleTimeout         time.Duration
	OutgoingLocales     []encoding.Symbol
	IncomingLocales     []encoding.Symbol
	OfferedCapabilities []encoding.Symbol
	DesiredCapabilities []encoding.Symbol
	Properties          map[encoding.Symbol]interface{}
}

func (*Open) isFrameBody() {}

func (o *Open) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorOpen, []encoding.MarshalField{
		{Value: o.ContainerID},
		{Value: o.Hostname, Omit: o.Hostname == ""},
		{Value: o.MaxFrameSize, Omit: o.MaxFrameSize == 0},
		{Value: o.ChannelMax, Omit: o.ChannelMax == 0},
		{Value: o.IdleTimeout, Omit: o.IdleTimeout == 0},
		{Value: o.OutgoingLocales, Omit: len(o.OutgoingLocales) == 0},
		{Value: o.IncomingLocales, Omit: len(o.IncomingLocales) == 0},
		{Value: o.OfferedCapabilities, Omit: len(o.OfferedCapabilities) == 0},
		{Value: o.DesiredCapabilities, Omit: len(o.DesiredCapabilities) == 0},
		{Value: o.Properties, Omit: len(o.Properties) == 0},
	})
}

func (o *Open) Unmarshal(r *buffer.Buffer) error {
	return encoding.UnmarshalComposite(r, encoding.DescriptorOpen,
		encoding.UnmarshalField{Field: &o.ContainerID},
		encoding.UnmarshalField{Field: &o.Hostname},
		encoding.UnmarshalField{Field: &o.MaxFrameSize, HandleNull: func() error { o.MaxFrameSize = 4294967295; return nil }},
		encoding.UnmarshalField{Field: &o.ChannelMax, HandleNull: func() error { o.ChannelMax = 65535; return nil }},
		encoding.UnmarshalField{Field: &o.IdleTimeout},
		encoding.UnmarshalField{Field: &o.OutgoingLocales},
		encoding.UnmarshalField{Field: &o.IncomingLocales},
		encoding.UnmarshalField{Field: &o.OfferedCapabilities},
		encoding.UnmarshalField{Field: &o.DesiredCapabilities},
		encoding.UnmarshalField{Field: &o.Properties},
	)
}

// Begin maps a channel number to a new session and carries the session's
// initial transfer-window state.
type Begin struct {
	RemoteChannel       *uint16
	NextOutgoingID      uint32
	IncomingWindow      uint32
	OutgoingWindow      uint32
	HandleMax           uint32
	OfferedCapabilities []encoding.Symbol
	DesiredCapabilities []encoding.Symbol
	Properties          map[encoding.Symbol]interface{}
}

func (*Begin) isFrameBody() {}

func (b *Begin) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorBegin, []encoding.MarshalField{
		{Value: b.RemoteChannel, Omit: b.RemoteChannel == nil},
		{Value: b.NextOutgoingID},
		{Value: b.IncomingWindow},
		{Value: b.OutgoingWindow},
		{Value: b.HandleMax, Omit: b.HandleMax == 4294967295},
		{Value: b.OfferedCapabilities, Omit: len(b.OfferedCapabilities) == 0},
		{Value: b.DesiredCapabilities, Omit: len(b.DesiredCapabilities) == 0},
		{Value: b.Properties, Omit: len(b.Properties) == 0},
	})
}

func (b *Begin) Unmarshal(r *buffer.Buffer) error {
	b.HandleMax = 4294967295
	return encoding.UnmarshalComposite(r, encoding.DescriptorBegin,
		encoding.UnmarshalField{Field: &b.RemoteChannel},
		encoding.UnmarshalField{Field: &b.NextOutgoingID},
		encoding.UnmarshalField{Field: &b.IncomingWindow},
		encoding.UnmarshalField{Field: &b.OutgoingWindow},
		encoding.UnmarshalField{Field: &b.HandleMax},
		encoding.UnmarshalField{Field: &b.OfferedCapabilities},
		encoding.UnmarshalField{Field: &b.DesiredCapabilities},
		encoding.UnmarshalField{Field: &b.Properties},
	)
}

// Attach negotiates a link's handle, direction and termini on a session.
type Attach struct {
	Name                string
	Handle              uint32
	Role                encoding.Role
	SenderSettleMode    *encoding.SenderSettleMode
	ReceiverSettleMode  *encoding.ReceiverSettleMode
	Source              *Source
	Target              *Target
	InitialDeliveryCount *uint32
	MaxMessageSize      *uint64
	OfferedCapabilities []encoding.Symbol
	DesiredCapabilities []encoding.Symbol
	Properties          map[encoding.Symbol]interface{}
}

func (*Attach) isFrameBody() {}

func (a *Attach) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorAttach, []encoding.MarshalField{
		{Value: a.Name},
		{Value: a.Handle},
		{Value: a.Role},
		{Value: a.SenderSettleMode, Omit: a.SenderSettleMode == nil},
		{Value: a.ReceiverSettleMode, Omit: a.ReceiverSettleMode == nil},
		{Value: a.Source, Omit: a.Source == nil},
		{Value: a.Target, Omit: a.Target == nil},
		{Value: nil, Omit: true}, // unsettled: link recovery not modeled
		{Value: nil, Omit: true}, // incomplete-unsettled
		{Value: a.InitialDeliveryCount, Omit: a.InitialDeliveryCount == nil},
		{Value: a.MaxMessageSize, Omit: a.MaxMessageSize == nil},
		{Value: a.OfferedCapabilities, Omit: len(a.OfferedCapabilities) == 0},
		{Value: a.DesiredCapabilities, Omit: len(a.DesiredCapabilities) == 0},
		{Value: a.Properties, Omit: len(a.Properties) == 0},
	})
}

func (a *Attach) Unmarshal(r *buffer.Buffer) error {
	items, err := encoding.ReadComposite(r, encoding.DescriptorAttach)
	if err != nil {
		return err
	}
	if err := encoding.AssignFields(items,
		encoding.UnmarshalField{Field: &a.Name},
		encoding.UnmarshalField{Field: &a.Handle},
		encoding.UnmarshalField{Field: &a.Role},
		encoding.UnmarshalField{Field: &a.SenderSettleMode},
		encoding.UnmarshalField{Field: &a.ReceiverSettleMode},
		encoding.UnmarshalField{}, // source: decoded below
		encoding.UnmarshalField{}, // target: decoded below
		encoding.UnmarshalField{}, // unsettled
		encoding.UnmarshalField{}, // incomplete-unsettled
		encoding.UnmarshalField{Field: &a.InitialDeliveryCount},
		encoding.UnmarshalField{Field: &a.MaxMessageSize},
		encoding.UnmarshalField{Field: &a.OfferedCapabilities},
		encoding.UnmarshalField{Field: &a.DesiredCapabilities},
		encoding.UnmarshalField{Field: &a.Properties},
	); err != nil {
		return err
	}
	if len(items) > 5 {
		src, err := decodeSource(items[5])
		if err != nil {
			return err
		}
		a.Source = src
	}
	if len(items) > 6 {
		tgt, err := decodeTarget(items[6])
		if err != nil {
			return err
		}
		a.Target = tgt
	}
	return nil
}

// Flow carries session transfer-window and link credit updates.
type Flow struct {
	NextIncomingID *uint32
	IncomingWindow uint32
	NextOutgoingID uint32
	OutgoingWindow uint32
	Handle         *uint32
	DeliveryCount  *uint32
	LinkCredit     *uint32
	Available      *uint32
	Drain          bool
	Echo           bool
	Properties     map[encoding.Symbol]interface{}
}

func (*Flow) isFrameBody() {}

func (f *Flow) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorFlow, []encoding.MarshalField{
		{Value: f.NextIncomingID, Omit: f.NextIncomingID == nil},
		{Value: f.IncomingWindow},
		{Value: f.NextOutgoingID},
		{Value: f.OutgoingWindow},
		{Value: f.Handle, Omit: f.Handle == nil},
		{Value: f.DeliveryCount, Omit: f.DeliveryCount == nil},
		{Value: f.LinkCredit, Omit: f.LinkCredit == nil},
		{Value: f.Available, Omit: f.Available == nil},
		{Value: f.Drain, Omit: !f.Drain},
		{Value: f.Echo, Omit: !f.Echo},
		{Value: f.Properties, Omit: len(f.Properties) == 0},
	})
}

func (f *Flow) Unmarshal(r *buffer.Buffer) error {
	return encoding.UnmarshalComposite(r, encoding.DescriptorFlow,
		encoding.UnmarshalField{Field: &f.NextIncomingID},
		encoding.UnmarshalField{Field: &f.IncomingWindow},
		encoding.UnmarshalField{Field: &f.NextOutgoingID},
		encoding.UnmarshalField{Field: &f.OutgoingWindow},
		encoding.UnmarshalField{Field: &f.Handle},
		encoding.UnmarshalField{Field: &f.DeliveryCount},
		encoding.UnmarshalField{Field: &f.LinkCredit},
		encoding.UnmarshalField{Field: &f.Available},
		encoding.UnmarshalField{Field: &f.Drain},
		encoding.UnmarshalField{Field: &f.Echo},
		encoding.UnmarshalField{Field: &f.Properties},
	)
}

// Transfer carries a message (or a chunk of one) plus its delivery
// metadata. The payload itself travels outside the composite, appended
// to the frame body (see Frame.Payload).
type Transfer struct {
	Handle             uint32
	DeliveryID         *uint32
	DeliveryTag        []byte
	MessageFormat      *uint32
	Settled            *bool
	More               bool
	ReceiverSettleMode *encoding.ReceiverSettleMode
	State              DeliveryState
	Resume             bool
	Aborted            bool
	Batchable          bool
}

func (*Transfer) isFrameBody() {}

func (t *Transfer) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorTransfer, []encoding.MarshalField{
		{Value: t.Handle},
		{Value: t.DeliveryID, Omit: t.DeliveryID == nil},
		{Value: t.DeliveryTag, Omit: len(t.DeliveryTag) == 0},
		{Value: t.MessageFormat, Omit: t.MessageFormat == nil},
		{Value: t.Settled, Omit: t.Settled == nil},
		{Value: t.More, Omit: !t.More},
		{Value: t.ReceiverSettleMode, Omit: t.ReceiverSettleMode == nil},
		{Value: t.State, Omit: t.State == nil},
		{Value: t.Resume, Omit: !t.Resume},
		{Value: t.Aborted, Omit: !t.Aborted},
		{Value: t.Batchable, Omit: !t.Batchable},
	})
}

func (t *Transfer) Unmarshal(r *buffer.Buffer) error {
	items, err := encoding.ReadComposite(r, encoding.DescriptorTransfer)
	if err != nil {
		return err
	}
	if err := encoding.AssignFields(items,
		encoding.UnmarshalField{Field: &t.Handle},
		encoding.UnmarshalField{Field: &t.DeliveryID},
		encoding.UnmarshalField{Field: &t.DeliveryTag},
		encoding.UnmarshalField{Field: &t.MessageFormat},
		encoding.UnmarshalField{Field: &t.Settled},
		encoding.UnmarshalField{Field: &t.More},
		encoding.UnmarshalField{Field: &t.ReceiverSettleMode},
		encoding.UnmarshalField{}, // state: decoded below
		encoding.UnmarshalField{Field: &t.Resume},
		encoding.UnmarshalField{Field: &t.Aborted},
		encoding.UnmarshalField{Field: &t.Batchable},
	); err != nil {
		return err
	}
	if len(items) > 7 {
		state, err := decodeDeliveryState(items[7])
		if err != nil {
			return err
		}
		t.State = state
	}
	return nil
}

// Disposition conveys the sender's or receiver's terminal state for a
// contiguous run of deliveries, batched by delivery-id range (§4.6).
type Disposition struct {
	Role       encoding.Role
	First      uint32
	Last       *uint32
	Settled    bool
	State      DeliveryState
	Batchable  bool
}

func (*Disposition) isFrameBody() {}

func (d *Disposition) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorDisposition, []encoding.MarshalField{
		{Value: d.Role},
		{Value: d.First},
		{Value: d.Last, Omit: d.Last == nil},
		{Value: d.Settled, Omit: !d.Settled},
		{Value: d.State, Omit: d.State == nil},
		{Value: d.Batchable, Omit: !d.Batchable},
	})
}

func (d *Disposition) Unmarshal(r *buffer.Buffer) error {
	items, err := encoding.ReadComposite(r, encoding.DescriptorDisposition)
	if err != nil {
		return err
	}
	if err := encoding.AssignFields(items,
		encoding.UnmarshalField{Field: &d.Role},
		encoding.UnmarshalField{Field: &d.First},
		encoding.UnmarshalField{Field: &d.Last},
		encoding.UnmarshalField{Field: &d.Settled},
		encoding.UnmarshalField{}, // state: decoded below
		encoding.UnmarshalField{Field: &d.Batchable},
	); err != nil {
		return err
	}
	if len(items) > 4 {
		state, err := decodeDeliveryState(items[4])
		if err != nil {
			return err
		}
		d.State = state
	}
	return nil
}

// Detach unmaps a link's handle, optionally tearing down the link
// permanently (Closed) and/or reporting an error condition.
type Detach struct {
	Handle uint32
	Closed bool
	Error  *encoding.Error
}

func (*Detach) isFrameBody() {}

func (d *Detach) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorDetach, []encoding.MarshalField{
		{Value: d.Handle},
		{Value: d.Closed, Omit: !d.Closed},
		{Value: d.Error, Omit: d.Error == nil},
	})
}

func (d *Detach) Unmarshal(r *buffer.Buffer) error {
	return encoding.UnmarshalComposite(r, encoding.DescriptorDetach,
		encoding.UnmarshalField{Field: &d.Handle},
		encoding.UnmarshalField{Field: &d.Closed},
		encoding.UnmarshalField{Field: &d.Error},
	)
}

// End unmaps a session's channel, optionally reporting an error condition.
type End struct {
	Error *encoding.Error
}

func (*End) isFrameBody() {}

func (e *End) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorEnd, []encoding.MarshalField{
		{Value: e.Error, Omit: e.Error == nil},
	})
}

func (e *End) Unmarshal(r *buffer.Buffer) error {
	return encoding.UnmarshalComposite(r, encoding.DescriptorEnd,
		encoding.UnmarshalField{Field: &e.Error},
	)
}

// Close tears down the connection, optionally reporting an error condition.
type Close struct {
	Error *encoding.Error
}

func (*Close) isFrameBody() {}

func (c *Close) Marshal(wr *buffer.Buffer) error {
	return encoding.MarshalComposite(wr, encoding.DescriptorClose, []encoding.MarshalField{
		{Value: c.Error, Omit: c.Error == nil},
	})
}

func (c *Close) Unmarshal(r *buffer.Buffer) error {
	return encoding.UnmarshalComposite(r, encoding.DescriptorClose,
		encoding.UnmarshalField{Field: &c.Error},
	)
}
