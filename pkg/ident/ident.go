// Package ident implements the FRC 29 bit CAN identifier.
//
// FRC packet id field bits :
//
//	+--------------+-----------------------+-----------------+-----------+------------------+
//	| Device Type  |     Manufacturer      |    API Class    | API Index |  Device Number   |
//	+--------------+-----------------------+-----------------+-----------+------------------+
//	|28:27:26:25:24|23:22:21:20:19:18:17:16|15:14:13:12:11:10| 9: 8: 7: 6| 5: 4 : 3: 2: 1: 0|
//	+--------------+-----------------------+-----------------+-----------+------------------+
//
// Matching and extraction treat bits 15 to 6 as a single 10 bit API id.
// The class / index split is only exposed as a reading aid.
package ident

import "fmt"

const (
	Mask      uint32 = 0x1FFFFFFF // Full 29 bit identifier
	MatchMask uint32 = 0x1FFF003F // Device type, manufacturer and device number
	APIMask   uint32 = 0x0000FFC0 // API id
	APIShift         = 6
)

const (
	deviceTypeShift   = 24
	manufacturerShift = 16
	deviceTypeMask    = 0x1F
	manufacturerMask  = 0xFF
	apiIdMask         = 0x3FF
	deviceNumberMask  = 0x3F
)

// Field limits
const (
	MaxDeviceType   = deviceTypeMask
	MaxManufacturer = manufacturerMask
	MaxAPIID        = apiIdMask
	MaxDeviceNumber = deviceNumberMask
)

// Periodic robot controller heartbeat, i.e. New(0x61, 0, NI, RobotController)
const HeartbeatID ID = 0x01011840

// ID is a 29 bit FRC CAN identifier
type ID uint32

// Create a new identifier. Every field is truncated to its width,
// callers needing strict bounds have to check beforehand.
func New(apiId uint16, deviceNumber uint8, manufacturer Manufacturer, deviceType DeviceType) ID {
	return ID((uint32(deviceType)&deviceTypeMask)<<deviceTypeShift |
		(uint32(manufacturer)&manufacturerMask)<<manufacturerShift |
		(uint32(apiId)&apiIdMask)<<APIShift |
		uint32(deviceNumber)&deviceNumberMask)
}

func (id ID) DeviceType() DeviceType {
	return DeviceType((uint32(id) >> deviceTypeShift) & deviceTypeMask)
}

func (id ID) Manufacturer() Manufacturer {
	return Manufacturer((uint32(id) >> manufacturerShift) & manufacturerMask)
}

// 10 bit API id, bits 15 to 6
func (id ID) APIID() uint16 {
	return uint16((uint32(id) & APIMask) >> APIShift)
}

// Upper 6 bits of the API id
func (id ID) APIClass() uint8 {
	return uint8(id.APIID() >> 4)
}

// Lower 4 bits of the API id
func (id ID) APIIndex() uint8 {
	return uint8(id.APIID() & 0xF)
}

func (id ID) DeviceNumber() uint8 {
	return uint8(uint32(id) & deviceNumberMask)
}

// Same identifier with the API id field zeroed
func (id ID) MessageMask() ID {
	return ID(uint32(id) & MatchMask)
}

func (id ID) String() string {
	return fmt.Sprintf("0x%08X (type=%v manufacturer=%v api=0x%03X device=%d)",
		uint32(id), id.DeviceType(), id.Manufacturer(), id.APIID(), id.DeviceNumber())
}
