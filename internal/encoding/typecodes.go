package encoding

// AMQP 1.0 primitive type codes (subset needed by the performatives and
// termini this engine exchanges). The full primitive and array type
// matrix is not reproduced since the codec is an external collaborator
// per this engine's scope, not its subject.
type TypeCode uint8

const (
	TypeCodeNull TypeCode = 0x40

	TypeCodeBoolTrue  TypeCode = 0x41
	TypeCodeBoolFalse TypeCode = 0x42
	TypeCodeBool      TypeCode = 0x56

	TypeCodeUbyte TypeCode = 0x50
	TypeCodeByte  TypeCode = 0x51

	TypeCodeUshort TypeCode = 0x60
	TypeCodeShort  TypeCode = 0x61

	TypeCodeUint0      TypeCode = 0x43
	TypeCodeSmallUint  TypeCode = 0x52
	TypeCodeUint       TypeCode = 0x70
	TypeCodeSmallint   TypeCode = 0x54
	TypeCodeInt        TypeCode = 0x71
	TypeCodeULong0     TypeCode = 0x44
	TypeCodeSmallULong TypeCode = 0x53
	TypeCodeULong      TypeCode = 0x80
	TypeCodeSmalllong  TypeCode = 0x55
	TypeCodeLong       TypeCode = 0x81

	TypeCodeTimestamp TypeCode = 0x83

	TypeCodeVbin8  TypeCode = 0xa0
	TypeCodeVbin32 TypeCode = 0xb0

	TypeCodeStr8  TypeCode = 0xa1
	TypeCodeStr32 TypeCode = 0xb1

	TypeCodeSym8  TypeCode = 0xa3
	TypeCodeSym32 TypeCode = 0xb3

	TypeCodeList0  TypeCode = 0x45
	TypeCodeList8  TypeCode = 0xc0
	TypeCodeList32 TypeCode = 0xd0

	TypeCodeMap8  TypeCode = 0xc1
	TypeCodeMap32 TypeCode = 0xd1

	TypeCodeArray8  TypeCode = 0xe0
	TypeCodeArray32 TypeCode = 0xf0

	// TypeCodeDescribed prefixes a descriptor + value pair (composite
	// performatives, termini, outcomes, errors all use this).
	TypeCodeDescribed TypeCode = 0x00
)

// Descriptor codes for the composite types this engine exchanges. Real
// AMQP descriptors are a (domain-id, code) pair encoded as a ulong; only
// the low code is tracked here since this engine only ever speaks to
// itself (and, transitively, a real peer using the low codes below,
// which match the AMQP 1.0 spec).
type Descriptor uint64

const (
	DescriptorOpen        Descriptor = 0x10
	DescriptorBegin       Descriptor = 0x11
	DescriptorAttach      Descriptor = 0x12
	DescriptorFlow        Descriptor = 0x13
	DescriptorTransfer    Descriptor = 0x14
	DescriptorDisposition Descriptor = 0x15
	DescriptorDetach      Descriptor = 0x16
	DescriptorEnd         Descriptor = 0x17
	DescriptorClose       Descriptor = 0x18

	DescriptorError  Descriptor = 0x1d
	DescriptorSource Descriptor = 0x28
	DescriptorTarget Descriptor = 0x29

	DescriptorReceived Descriptor = 0x23
	DescriptorAccepted Descriptor = 0x24
	DescriptorRejected Descriptor = 0x25
	DescriptorReleased Descriptor = 0x26
	DescriptorModified Descriptor = 0x27
)
