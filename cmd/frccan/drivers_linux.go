//go:build linux

package main

import (
	can "github.com/samsamfire/frccan/pkg/can"
	"github.com/samsamfire/frccan/pkg/can/socketcanv2"
	"github.com/samsamfire/frccan/pkg/ident"
)

// Only raw sockets support kernel filtering, other buses are left untouched
func applyKernelFilters(bus can.Bus, filters []ident.Filter) (bool, error) {
	raw, ok := bus.(*socketcanv2.SocketcanBus)
	if !ok {
		return false, nil
	}
	return true, raw.SetFilters(socketcanv2.FiltersForDevices(filters...))
}
