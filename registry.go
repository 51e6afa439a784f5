package frccan

import "github.com/samsamfire/frccan/pkg/ident"

// Maximum number of devices receiving at the same time
const MaxDevices = 16

// Fixed size list of receiving devices, kept in registration order.
// Being a plain array, a copy of the registry is a consistent snapshot.
type registry struct {
	devices [MaxDevices]*Device
	count   int
}

func (r *registry) index(dev *Device) int {
	for i := 0; i < r.count; i++ {
		if r.devices[i] == dev {
			return i
		}
	}
	return -1
}

func (r *registry) add(dev *Device) error {
	if r.index(dev) >= 0 {
		return nil
	}
	if r.count == MaxDevices {
		return ErrRegistryFull
	}
	r.devices[r.count] = dev
	r.count++
	return nil
}

func (r *registry) remove(dev *Device) bool {
	i := r.index(dev)
	if i < 0 {
		return false
	}
	copy(r.devices[i:r.count], r.devices[i+1:r.count])
	r.count--
	r.devices[r.count] = nil
	return true
}

// First registered device matching id
func (r *registry) match(id ident.ID) (*Device, uint16, bool) {
	for i := 0; i < r.count; i++ {
		if apiId, ok := r.devices[i].Match(id); ok {
			return r.devices[i], apiId, true
		}
	}
	return nil, 0, false
}
