// Package frames implements the AMQP 1.0 frame envelope and the nine
// performatives this engine exchanges (OPEN, BEGIN, ATTACH, FLOW,
// TRANSFER, DISPOSITION, DETACH, END, CLOSE). This is the frame codec
// spec.md places deliberately out of the engine's scope ("the frame
// codec... the core uses it via post_frame/scan_args"); it is kept as a
// real, if trimmed, external collaborator rather than stubbed out.
package frames

import (
	"github.com/pkg/errors"
	"github.com/yumeiwang/amqp-engine/internal/buffer"
	"github.com/yumeiwang/amqp-engine/internal/encoding"
)

// FrameBody is implemented by every performative this engine sends or
// receives.
type FrameBody interface {
	encoding.Marshaler
	isFrameBody()
}

// Frame is a decoded AMQP frame: a channel-tagged performative, plus any
// trailing payload bytes for TRANSFER.
type Frame struct {
	Channel uint16
	Body    FrameBody
	Payload []byte
}

const frameHeaderSize = 8 // size(4) + doff(1) + type(1) + channel(2)

// WriteFrame appends the wire encoding of fr to wr, including payload
// if fr.Body is a *Transfer. wr must be an output-only buffer (nothing
// yet read from it) since the frame size is backpatched by absolute
// offset.
func WriteFrame(wr *buffer.Buffer, fr Frame) error {
	start := wr.Len()
	wr.Write([]byte{0, 0, 0, 0, 2, 0}) // size placeholder, doff=2, type=AMQP
	wr.WriteUint16(fr.Channel)

	if fr.Body != nil {
		if err := fr.Body.Marshal(wr); err != nil {
			return errors.Wrap(err, "frames: marshal body")
		}
	}
	if len(fr.Payload) > 0 {
		if _, err := wr.Write(fr.Payload); err != nil {
			return err
		}
	}

	size := wr.Len() - start
	wr.PutUint32At(start, uint32(size))
	return nil
}

// ReadFrame decodes one complete frame from b, which must hold exactly
// FrameSize(b) bytes (the caller is responsible for knowing how many
// bytes to slice off the input buffer; see §4.7's consume() loop).
func ReadFrame(b []byte) (Frame, error) {
	if len(b) < frameHeaderSize {
		return Frame{}, errors.New("frames: short frame header")
	}
	doff := b[4]
	channel := uint16(b[6])<<8 | uint16(b[7])
	bodyStart := int(doff) * 4
	if bodyStart > len(b) {
		return Frame{}, errors.New("frames: data offset beyond frame")
	}
	body := b[bodyStart:]
	if len(body) == 0 {
		// empty frame: heartbeat.
		return Frame{Channel: channel, Body: nil}, nil
	}

	fb, consumed, err := decodeBody(body)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Channel: channel, Body: fb, Payload: body[consumed:]}, nil
}

// FrameSize reads just the 4-byte size prefix, for callers pulling
// frames off a byte stream one at a time.
func FrameSize(b []byte) (uint32, bool) {
	if len(b) < 4 {
		return 0, false
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), true
}

func decodeBody(body []byte) (FrameBody, int, error) {
	if len(body) < 2 || encoding.TypeCode(body[0]) != encoding.TypeCodeDescribed {
		return nil, 0, errors.New("frames: body missing descriptor")
	}
	desc, err := peekDescriptor(body[1:])
	if err != nil {
		return nil, 0, err
	}

	r := buffer.New(body)
	var fb FrameBody
	switch desc {
	case encoding.DescriptorOpen:
		fb = &Open{}
	case encoding.DescriptorBegin:
		fb = &Begin{}
	case encoding.DescriptorAttach:
		fb = &Attach{}
	case encoding.DescriptorFlow:
		fb = &Flow{}
	case encoding.DescriptorTransfer:
		fb = &Transfer{}
	case encoding.DescriptorDisposition:
		fb = &Disposition{}
	case encoding.DescriptorDetach:
		fb = &Detach{}
	case encoding.DescriptorEnd:
		fb = &End{}
	case encoding.DescriptorClose:
		fb = &Close{}
	default:
		return nil, 0, errors.Errorf("frames: unknown descriptor %#x", desc)
	}
	if um, ok := fb.(encoding.Unmarshaler); ok {
		if err := um.Unmarshal(r); err != nil {
			return nil, 0, errors.Wrap(err, "frames: unmarshal body")
		}
	}
	return fb, len(body) - r.Len(), nil
}

// peekDescriptor reads the ulong descriptor value starting at b without
// requiring a buffer, since the caller needs to know the performative
// type before picking which concrete struct's Unmarshal to invoke.
func peekDescriptor(b []byte) (encoding.Descriptor, error) {
	if len(b) == 0 {
		return 0, errors.New("frames: truncated descriptor")
	}
	switch encoding.TypeCode(b[0]) {
	case encoding.TypeCodeULong0:
		return 0, nil
	case encoding.TypeCodeSmallULong:
		if len(b) < 2 {
			return 0, errors.New("frames: truncated descriptor")
		}
		return encoding.Descriptor(b[1]), nil
	case encoding.TypeCodeULong:
		if len(b) < 9 {
			return 0, errors.New("frames: truncated descriptor")
		}
		var n uint64
		for _, c := range b[1:9] {
			n = n<<8 | uint64(c)
		}
		return encoding.Descriptor(n), nil
	default:
		return 0, errors.Errorf("frames: unsupported descriptor encoding %#x", b[0])
	}
}
