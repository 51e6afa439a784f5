package ident

// Filter selects all the messages addressed to or sent by a single device,
// whatever their API id.
type Filter struct {
	mask ID
}

func NewFilter(deviceNumber uint8, manufacturer Manufacturer, deviceType DeviceType) Filter {
	return Filter{mask: New(0, deviceNumber, manufacturer, deviceType)}
}

// Identifier of the device with a zero API id
func (f Filter) Mask() ID {
	return f.mask
}

// Match returns the API id carried by id if it belongs to the device.
func (f Filter) Match(id ID) (uint16, bool) {
	if uint32(id)&MatchMask != uint32(f.mask) {
		return 0, false
	}
	return uint16((uint32(id) & APIMask) >> APIShift), true
}

// Full identifier for a message of this device
func (f Filter) ID(apiId uint16) ID {
	return New(apiId, f.mask.DeviceNumber(), f.mask.Manufacturer(), f.mask.DeviceType())
}
