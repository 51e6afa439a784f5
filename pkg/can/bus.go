package can

import (
	"fmt"
)

// SocketCAN style flags, carried in the upper bits of Frame.ID
const (
	CanEffFlag uint32 = 0x80000000 // Extended (29 bit) frame format
	CanRtrFlag uint32 = 0x40000000 // Remote transmission request
	CanErrFlag uint32 = 0x20000000 // Error frame
)

const (
	CanSffMask uint32 = 0x000007FF
	CanEffMask uint32 = 0x1FFFFFFF
)

// Max payload of a classic CAN frame
const MaxDLC = 8

// CAN bus errors
const (
	CanErrorTxWarning   = 0x0001 // CAN transmitter warning
	CanErrorTxPassive   = 0x0002 // CAN transmitter passive
	CanErrorTxBusOff    = 0x0004 // CAN transmitter bus off
	CanErrorTxOverflow  = 0x0008 // CAN transmitter overflow
	CanErrorRxWarning   = 0x0100 // CAN receiver warning
	CanErrorRxPassive   = 0x0200 // CAN receiver passive
	CanErrorRxOverflow  = 0x0800 // CAN receiver overflow
	CanErrorWarnPassive = 0x0303 // Combination
)

// A CAN frame
type Frame struct {
	ID    uint32
	Flags uint8
	DLC   uint8
	Data  [8]byte
}

func NewFrame(id uint32, flags uint8, dlc uint8) Frame {
	return Frame{ID: id, Flags: flags, DLC: dlc}
}

// Identifier without the flag bits
func (f Frame) Ident() uint32 {
	return f.ID & CanEffMask
}

func (f Frame) IsExtended() bool {
	return f.ID&CanEffFlag != 0
}

func (f Frame) IsRTR() bool {
	return f.ID&CanRtrFlag != 0
}

func (f Frame) String() string {
	dlc := f.DLC
	if dlc > MaxDLC {
		dlc = MaxDLC
	}
	if f.IsRTR() {
		return fmt.Sprintf("%08X [%d] remote request", f.Ident(), f.DLC)
	}
	return fmt.Sprintf("%08X [%d] % X", f.Ident(), f.DLC, f.Data[:dlc])
}

// Interface for handling a received CAN frame
type FrameListener interface {
	Handle(frame Frame)
}

// A CAN Bus interface
type Bus interface {
	Connect(...any) error                   // Connect to the CAN bus
	Disconnect() error                      // Disconnect from CAN bus
	Send(frame Frame) error                 // Send a frame on the bus
	Subscribe(callback FrameListener) error // Subscribe to all received CAN frames
}

// Register a new CAN bus interface type
// This should be called inside an init() function of plugin
func RegisterInterface(interfaceType string, newInterface NewInterfaceFunc) {
	interfaceRegistry[interfaceType] = newInterface
}

type NewInterfaceFunc func(channel string) (Bus, error)

var interfaceRegistry = make(map[string]NewInterfaceFunc)

// Names of all the registered interfaces
func Interfaces() []string {
	names := make([]string, 0, len(interfaceRegistry))
	for name := range interfaceRegistry {
		names = append(names, name)
	}
	return names
}

// Create a new CAN bus with given interface
// Drivers need to be imported for their interface to be available
// e.g. socketcan, socketcanv2, virtualcan, replay
func NewBus(canInterface string, channel string, bitrate int) (Bus, error) {
	createInterface, ok := interfaceRegistry[canInterface]
	if !ok {
		return nil, fmt.Errorf("unsupported interface : %v", canInterface)
	}
	return createInterface(channel)
}
