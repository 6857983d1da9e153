// Package tftp implements the TFTP wire protocol: packet encoding and
// decoding per RFC 1350 with the option extension of RFC 2347, and the
// server-side option negotiation rules of RFC 2348/2349.
package tftp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPacket is returned by Decode for any datagram that does not
// parse as a well-formed TFTP packet: truncated header, unknown opcode,
// missing null terminators or an odd number of option strings.
var ErrMalformedPacket = errors.New("malformed TFTP packet")

// Packet is one TFTP datagram.
type Packet interface {
	Opcode() uint16
	Encode() []byte
}

// Option is one negotiable option as it appears on the wire. Order is
// preserved: RFC 2347 requires the OACK to list options in a server-chosen
// order, and clients may care about the request order.
type Option struct {
	Name  string
	Value string
}

// ReadRequest is an RRQ packet.
type ReadRequest struct {
	Filename string
	Mode     string
	Options  []Option
}

// WriteRequest is a WRQ packet. It is decoded only so the session can
// reject it with an "illegal TFTP operation" error; the server never
// accepts writes.
type WriteRequest struct {
	Filename string
	Mode     string
}

// Data is a DATA packet. The payload must not exceed the negotiated block
// size; Encode does not enforce this because a violation is a programming
// error, not a wire condition.
type Data struct {
	Block   uint16
	Payload []byte
}

// Ack is an ACK packet.
type Ack struct {
	Block uint16
}

// Error is an ERROR packet.
type Error struct {
	Code    uint16
	Message string
}

// OptionAck is an OACK packet (RFC 2347).
type OptionAck struct {
	Options []Option
}

func (p *ReadRequest) Opcode() uint16  { return OpcodeRRQ }
func (p *WriteRequest) Opcode() uint16 { return OpcodeWRQ }
func (p *Data) Opcode() uint16         { return OpcodeDATA }
func (p *Ack) Opcode() uint16          { return OpcodeACK }
func (p *Error) Opcode() uint16        { return OpcodeERROR }
func (p *OptionAck) Opcode() uint16    { return OpcodeOACK }

func (p *ReadRequest) Encode() []byte {
	var buf bytes.Buffer
	writeUint16(&buf, OpcodeRRQ)
	writeCString(&buf, p.Filename)
	writeCString(&buf, p.Mode)
	for _, opt := range p.Options {
		writeCString(&buf, opt.Name)
		writeCString(&buf, opt.Value)
	}
	return buf.Bytes()
}

func (p *WriteRequest) Encode() []byte {
	var buf bytes.Buffer
	writeUint16(&buf, OpcodeWRQ)
	writeCString(&buf, p.Filename)
	writeCString(&buf, p.Mode)
	return buf.Bytes()
}

func (p *Data) Encode() []byte {
	buf := make([]byte, 4+len(p.Payload))
	binary.BigEndian.PutUint16(buf[0:2], OpcodeDATA)
	binary.BigEndian.PutUint16(buf[2:4], p.Block)
	copy(buf[4:], p.Payload)
	return buf
}

func (p *Ack) Encode() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], OpcodeACK)
	binary.BigEndian.PutUint16(buf[2:4], p.Block)
	return buf
}

func (p *Error) Encode() []byte {
	var buf bytes.Buffer
	writeUint16(&buf, OpcodeERROR)
	writeUint16(&buf, p.Code)
	writeCString(&buf, p.Message)
	return buf.Bytes()
}

func (p *OptionAck) Encode() []byte {
	var buf bytes.Buffer
	writeUint16(&buf, OpcodeOACK)
	for _, opt := range p.Options {
		writeCString(&buf, opt.Name)
		writeCString(&buf, opt.Value)
	}
	return buf.Bytes()
}

// Decode parses a raw datagram into a typed packet. Any framing violation
// is reported as ErrMalformedPacket (wrapped with detail); callers translate
// it into an ERROR reply rather than crashing the session.
func Decode(data []byte) (Packet, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: %d bytes, need at least 2", ErrMalformedPacket, len(data))
	}

	opcode := binary.BigEndian.Uint16(data[0:2])
	switch opcode {
	case OpcodeRRQ:
		return decodeReadRequest(data[2:])
	case OpcodeWRQ:
		return decodeWriteRequest(data[2:])
	case OpcodeDATA:
		return decodeData(data)
	case OpcodeACK:
		return decodeAck(data)
	case OpcodeERROR:
		return decodeError(data)
	case OpcodeOACK:
		return decodeOptionAck(data[2:])
	default:
		return nil, fmt.Errorf("%w: unknown opcode %d", ErrMalformedPacket, opcode)
	}
}

func decodeReadRequest(body []byte) (*ReadRequest, error) {
	fields, err := splitCStrings(body)
	if err != nil {
		return nil, err
	}
	if len(fields) < 2 || len(fields)%2 != 0 {
		return nil, fmt.Errorf("%w: RRQ with %d string fields", ErrMalformedPacket, len(fields))
	}

	req := &ReadRequest{
		Filename: fields[0],
		Mode:     strings.ToLower(fields[1]),
	}
	for i := 2; i < len(fields); i += 2 {
		req.Options = append(req.Options, Option{
			Name:  strings.ToLower(fields[i]),
			Value: fields[i+1],
		})
	}
	return req, nil
}

func decodeWriteRequest(body []byte) (*WriteRequest, error) {
	fields, err := splitCStrings(body)
	if err != nil {
		return nil, err
	}
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: WRQ with %d string fields", ErrMalformedPacket, len(fields))
	}
	return &WriteRequest{Filename: fields[0], Mode: strings.ToLower(fields[1])}, nil
}

func decodeData(data []byte) (*Data, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: DATA of %d bytes", ErrMalformedPacket, len(data))
	}
	return &Data{
		Block:   binary.BigEndian.Uint16(data[2:4]),
		Payload: data[4:],
	}, nil
}

func decodeAck(data []byte) (*Ack, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: ACK of %d bytes", ErrMalformedPacket, len(data))
	}
	return &Ack{Block: binary.BigEndian.Uint16(data[2:4])}, nil
}

func decodeError(data []byte) (*Error, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("%w: ERROR of %d bytes", ErrMalformedPacket, len(data))
	}
	msg := data[4:]
	// message is null-terminated; tolerate a missing terminator from
	// sloppy clients
	if msg[len(msg)-1] == 0 {
		msg = msg[:len(msg)-1]
	}
	return &Error{
		Code:    binary.BigEndian.Uint16(data[2:4]),
		Message: string(msg),
	}, nil
}

func decodeOptionAck(body []byte) (*OptionAck, error) {
	fields, err := splitCStrings(body)
	if err != nil {
		return nil, err
	}
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("%w: OACK with %d string fields", ErrMalformedPacket, len(fields))
	}

	oack := &OptionAck{}
	for i := 0; i < len(fields); i += 2 {
		oack.Options = append(oack.Options, Option{
			Name:  strings.ToLower(fields[i]),
			Value: fields[i+1],
		})
	}
	return oack, nil
}

// splitCStrings splits a sequence of null-terminated strings. The final
// string must be terminated and empty strings are rejected, matching the
// strictness TFTP expects for filename/mode/option fields.
func splitCStrings(body []byte) ([]string, error) {
	if len(body) == 0 {
		return nil, nil
	}
	if body[len(body)-1] != 0 {
		return nil, fmt.Errorf("%w: missing null terminator", ErrMalformedPacket)
	}

	var fields []string
	for _, tok := range bytes.Split(body[:len(body)-1], []byte{0}) {
		if len(tok) == 0 {
			return nil, fmt.Errorf("%w: empty string field", ErrMalformedPacket)
		}
		fields = append(fields, string(tok))
	}
	return fields, nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}
