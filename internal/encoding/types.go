package encoding

import "github.com/yumeiwang/amqp-engine/internal/buffer"

// Role is the AMQP sender/receiver role boolean: false=sender, true=receiver.
type Role bool

const (
	RoleSender   Role = false
	RoleReceiver Role = true
)

func (r Role) String() string {
	if r {
		return "Receiver"
	}
	return "Sender"
}

func (r Role) Marshal(wr *buffer.Buffer) error {
	return Marshal(wr, bool(r))
}

// SenderSettleMode per AMQP 1.0 §2.6.8.
type SenderSettleMode uint8

const (
	SenderSettleModeUnsettled SenderSettleMode = 0
	SenderSettleModeSettled   SenderSettleMode = 1
	SenderSettleModeMixed     SenderSettleMode = 2
)

// ReceiverSettleMode per AMQP 1.0 §2.6.9.
type ReceiverSettleMode uint8

const (
	ReceiverSettleModeFirst  ReceiverSettleMode = 0
	ReceiverSettleModeSecond ReceiverSettleMode = 1
)

// Durability of a terminus per AMQP 1.0 §3.5.3.
type Durability uint32

const (
	DurabilityNone         Durability = 0
	DurabilityConfiguration Durability = 1
	DurabilityUnsettledState Durability = 2
)

// ExpiryPolicy of a terminus per AMQP 1.0 §3.5.5.
type ExpiryPolicy Symbol

const (
	ExpiryLinkDetach       ExpiryPolicy = "link-detach"
	ExpirySessionEnd       ExpiryPolicy = "session-end"
	ExpiryConnectionClose  ExpiryPolicy = "connection-close"
	ExpiryNever            ExpiryPolicy = "never"
)

// DistributionMode per AMQP 1.0 §3.5.9.
type DistributionMode Symbol

const (
	DistributionModeUnspecified DistributionMode = ""
	DistributionModeMove        DistributionMode = "move"
	DistributionModeCopy        DistributionMode = "copy"
)

// Error is the wire representation of an AMQP error condition, carried
// in DETACH/END/CLOSE/DISPOSITION frames.
type Error struct {
	Condition   Symbol
	Description string
	Info        map[Symbol]interface{}
}

func (e *Error) Marshal(wr *buffer.Buffer) error {
	return MarshalComposite(wr, DescriptorError, []MarshalField{
		{Value: e.Condition, Omit: e.Condition == ""},
		{Value: e.Description, Omit: e.Description == ""},
		{Value: e.Info, Omit: len(e.Info) == 0},
	})
}

func (e *Error) Unmarshal(r *buffer.Buffer) error {
	return UnmarshalComposite(r, DescriptorError,
		UnmarshalField{Field: &e.Condition},
		UnmarshalField{Field: &e.Description},
		UnmarshalField{Field: &e.Info},
	)
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return string(e.Condition) + ": " + e.Description
}
