package rtmp

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/Zereker/rtmp/amf"
)

// ErrNotCommand is returned when a packet does not carry an AMF0 command.
var ErrNotCommand = errors.New("packet is not an amf0 command")

// Command is an AMF0 command message: a name, a transaction id, a command
// object and optional arguments.
type Command struct {
	Name          string
	TransactionID float64
	// Object is the command object. Decoded commands carry amf.Properties
	// or nil; commands to encode take *amf.ObjectValue or nil (null).
	Object any
	Args   []any
}

// DecodeCommand parses the body of a command packet.
func DecodeCommand(p *Packet) (*Command, error) {
	body := p.Body
	switch p.PacketType {
	case PacketTypeCommand:
	case PacketTypeFlexMessage:
		// AMF3 command messages start with a format byte, then AMF0
		if len(body) == 0 {
			return nil, ErrNotCommand
		}
		body = body[1:]
	default:
		return nil, errors.Wrapf(ErrNotCommand, "packet type %#x", int(p.PacketType))
	}

	d := amf.NewDecoder(bytes.NewReader(body))

	v, err := d.Decode()
	if err != nil {
		return nil, errors.Wrap(err, "decode command name")
	}
	name, ok := v.(string)
	if !ok {
		return nil, errors.Wrapf(ErrNotCommand, "name is %T", v)
	}

	cmd := &Command{Name: name}
	if d.BytesRead() == len(body) {
		return cmd, nil
	}

	if v, err = d.Decode(); err != nil {
		return nil, errors.Wrap(err, "decode transaction id")
	}
	cmd.TransactionID, _ = v.(float64)
	if d.BytesRead() == len(body) {
		return cmd, nil
	}

	if cmd.Object, err = d.Decode(); err != nil {
		return nil, errors.Wrap(err, "decode command object")
	}
	for d.BytesRead() < len(body) {
		arg, err := d.Decode()
		if err != nil {
			return nil, errors.Wrapf(err, "decode argument %d", len(cmd.Args))
		}
		cmd.Args = append(cmd.Args, arg)
	}
	return cmd, nil
}

// Encode returns the AMF0 body of c.
func (c *Command) Encode() ([]byte, error) {
	var e amf.Encoder
	e.Add(c.Name)
	e.Add(c.TransactionID)
	if c.Object == nil {
		e.Add(amf.NullValue{})
	} else {
		e.Add(c.Object)
	}
	for _, arg := range c.Args {
		if arg == nil {
			arg = amf.NullValue{}
		}
		e.Add(arg)
	}
	return e.Encode()
}

// Packet encodes c into a command packet on the command channel.
func (c *Command) Packet() (*Packet, error) {
	body, err := c.Encode()
	if err != nil {
		return nil, errors.Wrapf(err, "encode command %s", c.Name)
	}
	return NewPacket(ChannelCommand, HeaderMedium, PacketTypeCommand, 0, body), nil
}
