// Package frccan routes FRC CAN traffic to the logical devices sharing a bus.
//
// Every device is addressed by a structured 29 bit identifier (see [ident.ID]).
// A [BusManager] owns the bus binding, a bounded registry of up to [MaxDevices]
// receiving devices and the handlers called for received messages.
// Frames delivered by the bus are buffered and dispatched synchronously by
// [BusManager.Update], which is meant to be called cyclically from a single goroutine :
//
//	bm := frccan.NewBusManager(bus, 0)
//	bm.SetHandler(handler)
//	motor := frccan.NewDevice(bm, 5, ident.ManufacturerCTRE, ident.DeviceTypeMotorController)
//	_ = motor.AddToReadList()
//	for range ticker.C {
//		bm.Update()
//	}
package frccan
