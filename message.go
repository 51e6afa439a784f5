package frccan

import "github.com/samsamfire/frccan/pkg/ident"

// A received message
type Message struct {
	Data      [8]byte
	Length    uint8
	Timestamp uint32 // Microseconds since the bus manager creation, wraps around
}

// Valid part of Data
func (msg *Message) Payload() []byte {
	length := msg.Length
	if length > 8 {
		length = 8
	}
	return msg.Data[:length]
}

// MessageHandler receives every dispatched message of a [BusManager].
// Both methods are called from within [BusManager.Update].
type MessageHandler interface {
	// A registered device matched the message
	HandleMessage(dev *Device, apiId uint16, rtr bool, msg Message)
	// No registered device matched the message
	HandleUnknown(id ident.ID, msg Message)
}

// DeviceHandler receives the messages of a single device, in place
// of the [MessageHandler] of the bus manager.
type DeviceHandler interface {
	Handle(dev *Device, apiId uint16, rtr bool, msg Message)
}

type DeviceHandlerFunc func(dev *Device, apiId uint16, rtr bool, msg Message)

func (f DeviceHandlerFunc) Handle(dev *Device, apiId uint16, rtr bool, msg Message) {
	f(dev, apiId, rtr, msg)
}

// HandlerFuncs implements [MessageHandler] with plain functions, nil ones are skipped
type HandlerFuncs struct {
	Message func(dev *Device, apiId uint16, rtr bool, msg Message)
	Unknown func(id ident.ID, msg Message)
}

func (h HandlerFuncs) HandleMessage(dev *Device, apiId uint16, rtr bool, msg Message) {
	if h.Message != nil {
		h.Message(dev, apiId, rtr, msg)
	}
}

func (h HandlerFuncs) HandleUnknown(id ident.ID, msg Message) {
	if h.Unknown != nil {
		h.Unknown(id, msg)
	}
}
