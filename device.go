package frccan

import (
	"fmt"

	can "github.com/samsamfire/frccan/pkg/can"
	"github.com/samsamfire/frccan/pkg/ident"
)

// Device is a logical device on the bus, identified by its device number,
// manufacturer and device type. The identity never changes once created.
// A device can always transmit, it only receives once added to the read list
// of its bus manager.
type Device struct {
	ident.Filter
	bm      *BusManager
	handler DeviceHandler
}

func NewDevice(bm *BusManager, deviceNumber uint8, manufacturer ident.Manufacturer, deviceType ident.DeviceType) *Device {
	return &Device{
		Filter: ident.NewFilter(deviceNumber, manufacturer, deviceType),
		bm:     bm,
	}
}

// Create a team use device of miscellaneous type
func NewTeamDevice(bm *BusManager, deviceNumber uint8) *Device {
	return NewDevice(bm, deviceNumber, ident.ManufacturerTeamUse, ident.DeviceTypeMiscellaneous)
}

func (dev *Device) DeviceNumber() uint8 {
	return dev.Mask().DeviceNumber()
}

func (dev *Device) Manufacturer() ident.Manufacturer {
	return dev.Mask().Manufacturer()
}

func (dev *Device) DeviceType() ident.DeviceType {
	return dev.Mask().DeviceType()
}

// Set a handler receiving this device's messages instead of the bus manager handler.
// This should be done before adding the device to the read list.
func (dev *Device) SetHandler(handler DeviceHandler) {
	dev.handler = handler
}

// Start receiving messages
func (dev *Device) AddToReadList() error {
	if dev.bm == nil {
		return ErrNoBus
	}
	return dev.bm.Register(dev)
}

// Stop receiving messages
func (dev *Device) RemoveFromReadList() {
	if dev.bm == nil {
		return
	}
	dev.bm.Unregister(dev)
}

// Send a data frame with the given API id
func (dev *Device) WritePacket(data []byte, apiId uint16) error {
	if len(data) > can.MaxDLC {
		return ErrFrameLength
	}
	if dev.bm == nil {
		return ErrNoBus
	}
	frame := can.NewFrame(uint32(dev.ID(apiId))|can.CanEffFlag, 0, uint8(len(data)))
	copy(frame.Data[:], data)
	return dev.bm.Send(frame)
}

// Send a remote transmission request with the given API id.
// length is the size of the expected answer.
func (dev *Device) WriteRTRFrame(length uint8, apiId uint16) error {
	if length > can.MaxDLC {
		return ErrFrameLength
	}
	if dev.bm == nil {
		return ErrNoBus
	}
	frame := can.NewFrame(uint32(dev.ID(apiId))|can.CanEffFlag|can.CanRtrFlag, 0, length)
	return dev.bm.Send(frame)
}

func (dev *Device) String() string {
	return fmt.Sprintf("%v#%d (%v)", dev.DeviceType(), dev.DeviceNumber(), dev.Manufacturer())
}
