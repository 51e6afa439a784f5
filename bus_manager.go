package frccan

import (
	"math"
	"sync"
	"time"

	"github.com/samsamfire/frccan/internal/fifo"
	can "github.com/samsamfire/frccan/pkg/can"
	"github.com/samsamfire/frccan/pkg/ident"
	log "github.com/sirupsen/logrus"
)

const DefaultRxBufferSize = 64

type rxFrame struct {
	frame     can.Frame
	timestamp uint32
}

// Bus manager is a wrapper around the CAN bus interface.
// It buffers the received frames and dispatches them to the registered
// devices when [BusManager.Update] is called.
type BusManager struct {
	mu       sync.Mutex
	bus      can.Bus // Bus interface that can be adapted
	handler  MessageHandler
	devices  registry
	rxMu     sync.Mutex
	rx       *fifo.Fifo[rxFrame]
	dropped  uint32
	canError uint16
	start    time.Time
}

// Create a new bus manager. rxBufferSize is the number of frames that
// can be buffered between two updates, 0 for default.
func NewBusManager(bus can.Bus, rxBufferSize uint16) *BusManager {
	if rxBufferSize == 0 {
		rxBufferSize = DefaultRxBufferSize
	} else if rxBufferSize == math.MaxUint16 {
		rxBufferSize--
	}
	return &BusManager{
		bus: bus,
		// Fifo keeps one free slot
		rx:    fifo.NewFifo[rxFrame](rxBufferSize + 1),
		start: time.Now(),
	}
}

// Connect to the CAN bus and subscribe to received frames
func (bm *BusManager) Connect(args ...any) error {
	bus := bm.Bus()
	if bus == nil {
		return ErrNoBus
	}
	err := bus.Connect(args...)
	if err != nil {
		return err
	}
	return bus.Subscribe(bm)
}

func (bm *BusManager) Disconnect() error {
	bus := bm.Bus()
	if bus == nil {
		return nil
	}
	return bus.Disconnect()
}

// Set bus
func (bm *BusManager) SetBus(bus can.Bus) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.bus = bus
}

func (bm *BusManager) Bus() can.Bus {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.bus
}

// Set the handler for dispatched messages
func (bm *BusManager) SetHandler(handler MessageHandler) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.handler = handler
}

// Implements the FrameListener interface
// Received frames are only buffered here, they are dispatched on next update.
// If the buffer is full, the frame is dropped.
func (bm *BusManager) Handle(frame can.Frame) {
	timestamp := uint32(time.Since(bm.start).Microseconds())
	bm.rxMu.Lock()
	defer bm.rxMu.Unlock()
	if !bm.rx.Push(rxFrame{frame: frame, timestamp: timestamp}) {
		bm.dropped++
		bm.canError |= can.CanErrorRxOverflow
	}
}

// Send a CAN message
// Limited error handling
func (bm *BusManager) Send(frame can.Frame) error {
	bus := bm.Bus()
	if bus == nil {
		return ErrNoBus
	}
	err := bus.Send(frame)
	if err != nil {
		log.Warnf("[CAN] %v", err)
	}
	return err
}

// Add a device to the read list.
// Fails with [ErrRegistryFull] if [MaxDevices] are already registered.
// Changes made during an update are visible from the next update.
func (bm *BusManager) Register(dev *Device) error {
	if dev == nil {
		return ErrIllegalArgument
	}
	bm.mu.Lock()
	defer bm.mu.Unlock()
	err := bm.devices.add(dev)
	if err != nil {
		log.Warnf("[DISPATCH] cannot register %v : %v", dev, err)
		return err
	}
	log.Debugf("[DISPATCH] registered %v, mask x%08x (%d/%d)", dev, uint32(dev.Mask()), bm.devices.count, MaxDevices)
	return nil
}

// Remove a device from the read list, does nothing if not registered
func (bm *BusManager) Unregister(dev *Device) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.devices.remove(dev) {
		log.Debugf("[DISPATCH] unregistered %v (%d/%d)", dev, bm.devices.count, MaxDevices)
	}
}

// Number of registered devices
func (bm *BusManager) Registered() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.devices.count
}

// Dispatch the frames received since last update, in reception order.
// Each frame goes to the first registered device that matches it, or to
// the unknown message handler. Frames received during the update are left
// for the next one. Returns the number of frames processed.
// This should be called cyclically, never concurrently.
func (bm *BusManager) Update() int {
	bm.mu.Lock()
	bus := bm.bus
	handler := bm.handler
	devices := bm.devices
	bm.mu.Unlock()

	if bus == nil {
		return 0
	}

	bm.rxMu.Lock()
	pending := bm.rx.GetOccupied()
	space := bm.rx.GetSpace()
	bm.rxMu.Unlock()

	processed := 0
	for ; processed < pending; processed++ {
		bm.rxMu.Lock()
		rx, ok := bm.rx.Pop()
		bm.rxMu.Unlock()
		if !ok {
			break
		}
		bm.dispatch(&devices, handler, rx)
	}

	bm.rxMu.Lock()
	overflow := bm.canError&can.CanErrorRxOverflow != 0
	bm.canError &^= can.CanErrorRxOverflow
	dropped := bm.dropped
	bm.rxMu.Unlock()
	if overflow {
		log.Warnf("[DISPATCH] receive buffer overflow (%d pending, %d free), %d frames dropped in total", pending, space, dropped)
	}
	return processed
}

func (bm *BusManager) dispatch(devices *registry, handler MessageHandler, rx rxFrame) {
	frame := rx.frame
	msg := Message{Data: frame.Data, Length: frame.DLC, Timestamp: rx.timestamp}
	id := ident.ID(frame.Ident())

	dev, apiId, ok := devices.match(id)
	if !ok {
		if log.IsLevelEnabled(log.DebugLevel) {
			log.Debugf("[DISPATCH] unknown message %v", id)
		}
		if handler != nil {
			handler.HandleUnknown(id, msg)
		}
		return
	}
	rtr := frame.IsRTR()
	if dev.handler != nil {
		dev.handler.Handle(dev, apiId, rtr, msg)
	} else if handler != nil {
		handler.HandleMessage(dev, apiId, rtr, msg)
	}
}

// Number of frames waiting for the next update and number of
// frames that can still be buffered
func (bm *BusManager) RxUsage() (pending int, free int) {
	bm.rxMu.Lock()
	defer bm.rxMu.Unlock()
	return bm.rx.GetOccupied(), bm.rx.GetSpace()
}

// Get CAN error
func (bm *BusManager) Error() uint16 {
	bm.rxMu.Lock()
	defer bm.rxMu.Unlock()
	return bm.canError
}

// Total number of frames dropped because the receive buffer was full
func (bm *BusManager) Dropped() uint32 {
	bm.rxMu.Lock()
	defer bm.rxMu.Unlock()
	return bm.dropped
}
