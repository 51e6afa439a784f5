package frccan

import (
	"errors"
	"sync"
	"testing"

	can "github.com/samsamfire/frccan/pkg/can"
	"github.com/samsamfire/frccan/pkg/ident"
	"github.com/stretchr/testify/assert"
)

// In memory bus, frames are injected with receive
type testBus struct {
	mu       sync.Mutex
	listener can.FrameListener
	sent     []can.Frame
	sendErr  error
}

func (b *testBus) Connect(...any) error { return nil }
func (b *testBus) Disconnect() error    { return nil }

func (b *testBus) Send(frame can.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, frame)
	return nil
}

func (b *testBus) Subscribe(listener can.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = listener
	return nil
}

func (b *testBus) receive(id ident.ID, rtr bool, data ...byte) {
	frame := can.NewFrame(uint32(id)|can.CanEffFlag, 0, uint8(len(data)))
	if rtr {
		frame.ID |= can.CanRtrFlag
	}
	copy(frame.Data[:], data)
	b.listener.Handle(frame)
}

type matched struct {
	dev   *Device
	apiId uint16
	rtr   bool
	msg   Message
}

type unknown struct {
	id  ident.ID
	msg Message
}

type recorder struct {
	matched []matched
	unknown []unknown
}

func (r *recorder) HandleMessage(dev *Device, apiId uint16, rtr bool, msg Message) {
	r.matched = append(r.matched, matched{dev, apiId, rtr, msg})
}

func (r *recorder) HandleUnknown(id ident.ID, msg Message) {
	r.unknown = append(r.unknown, unknown{id, msg})
}

func newTestManager(t *testing.T) (*BusManager, *testBus, *recorder) {
	bus := &testBus{}
	bm := NewBusManager(bus, 0)
	rec := &recorder{}
	bm.SetHandler(rec)
	assert.Nil(t, bm.Connect())
	return bm, bus, rec
}

func TestUpdateEmpty(t *testing.T) {
	bm, _, rec := newTestManager(t)
	assert.Equal(t, 0, bm.Update())
	assert.Empty(t, rec.matched)
	assert.Empty(t, rec.unknown)
}

func TestUpdateWithoutBus(t *testing.T) {
	bm := NewBusManager(nil, 0)
	rec := &recorder{}
	bm.SetHandler(rec)
	bm.Handle(can.NewFrame(uint32(ident.HeartbeatID)|can.CanEffFlag, 0, 8))
	assert.Equal(t, 0, bm.Update())
	assert.Empty(t, rec.unknown)
	assert.ErrorIs(t, bm.Connect(), ErrNoBus)
	assert.Nil(t, bm.Disconnect())
}

func TestUpdateMatch(t *testing.T) {
	bm, bus, rec := newTestManager(t)
	motor := NewDevice(bm, 5, ident.ManufacturerCTRE, ident.DeviceTypeMotorController)
	assert.Nil(t, motor.AddToReadList())

	bus.receive(ident.New(0x1A3, 5, ident.ManufacturerCTRE, ident.DeviceTypeMotorController), false, 1, 2, 3)
	bus.receive(ident.New(0x010, 5, ident.ManufacturerCTRE, ident.DeviceTypeMotorController), true)
	assert.Equal(t, 2, bm.Update())

	assert.Empty(t, rec.unknown)
	assert.Len(t, rec.matched, 2)
	assert.Same(t, motor, rec.matched[0].dev)
	assert.EqualValues(t, 0x1A3, rec.matched[0].apiId)
	assert.False(t, rec.matched[0].rtr)
	assert.Equal(t, []byte{1, 2, 3}, rec.matched[0].msg.Payload())
	assert.EqualValues(t, 0x010, rec.matched[1].apiId)
	assert.True(t, rec.matched[1].rtr)
	assert.LessOrEqual(t, rec.matched[0].msg.Timestamp, rec.matched[1].msg.Timestamp)

	// Frames are consumed
	assert.Equal(t, 0, bm.Update())
	assert.Len(t, rec.matched, 2)
}

func TestUpdateUnknown(t *testing.T) {
	bm, bus, rec := newTestManager(t)
	motor := NewDevice(bm, 5, ident.ManufacturerCTRE, ident.DeviceTypeMotorController)
	assert.Nil(t, motor.AddToReadList())

	id := ident.New(0x1A3, 6, ident.ManufacturerCTRE, ident.DeviceTypeMotorController)
	bus.receive(id, false, 0xAA)
	assert.Equal(t, 1, bm.Update())
	assert.Empty(t, rec.matched)
	assert.Len(t, rec.unknown, 1)
	assert.Equal(t, id, rec.unknown[0].id)
	assert.Equal(t, []byte{0xAA}, rec.unknown[0].msg.Payload())
}

func TestUpdateFirstRegisteredWins(t *testing.T) {
	bm, bus, rec := newTestManager(t)
	first := NewDevice(bm, 5, ident.ManufacturerCTRE, ident.DeviceTypeMotorController)
	second := NewDevice(bm, 5, ident.ManufacturerCTRE, ident.DeviceTypeMotorController)
	assert.Nil(t, first.AddToReadList())
	assert.Nil(t, second.AddToReadList())

	for i := 0; i < 3; i++ {
		bus.receive(first.ID(uint16(i)), false)
	}
	bm.Update()
	assert.Len(t, rec.matched, 3)
	for _, m := range rec.matched {
		assert.Same(t, first, m.dev)
	}

	// Once the first leaves, the second one takes over
	first.RemoveFromReadList()
	bus.receive(first.ID(7), false)
	bm.Update()
	assert.Same(t, second, rec.matched[3].dev)
}

func TestUpdateArrivalOrder(t *testing.T) {
	bm, bus, rec := newTestManager(t)
	a := NewTeamDevice(bm, 1)
	b := NewTeamDevice(bm, 2)
	assert.Nil(t, a.AddToReadList())
	assert.Nil(t, b.AddToReadList())

	bus.receive(b.ID(1), false)
	bus.receive(ident.HeartbeatID, false)
	bus.receive(a.ID(2), false)
	bus.receive(b.ID(3), false)
	bm.Update()
	assert.Len(t, rec.matched, 3)
	assert.Len(t, rec.unknown, 1)
	assert.Same(t, b, rec.matched[0].dev)
	assert.Same(t, a, rec.matched[1].dev)
	assert.Same(t, b, rec.matched[2].dev)
	assert.EqualValues(t, []uint16{1, 2, 3}, []uint16{rec.matched[0].apiId, rec.matched[1].apiId, rec.matched[2].apiId})
}

func TestDeviceHandler(t *testing.T) {
	bm, bus, rec := newTestManager(t)
	dev := NewTeamDevice(bm, 9)
	var got []uint16
	dev.SetHandler(DeviceHandlerFunc(func(d *Device, apiId uint16, rtr bool, msg Message) {
		assert.Same(t, dev, d)
		got = append(got, apiId)
	}))
	assert.Nil(t, dev.AddToReadList())
	bus.receive(dev.ID(0x42), false, 1)
	bm.Update()
	assert.Equal(t, []uint16{0x42}, got)
	assert.Empty(t, rec.matched)
}

func TestHandlerFuncs(t *testing.T) {
	bm, bus, _ := newTestManager(t)
	unknownCount := 0
	bm.SetHandler(HandlerFuncs{Unknown: func(id ident.ID, msg Message) { unknownCount++ }})
	dev := NewTeamDevice(bm, 3)
	assert.Nil(t, dev.AddToReadList())
	bus.receive(dev.ID(1), false)
	bus.receive(ident.HeartbeatID, false)
	assert.Equal(t, 2, bm.Update())
	assert.Equal(t, 1, unknownCount)

	// No handler at all, frames are swallowed
	bm.SetHandler(nil)
	bus.receive(ident.HeartbeatID, false)
	assert.Equal(t, 1, bm.Update())
}

func TestRegisterDuringUpdate(t *testing.T) {
	bm, bus, rec := newTestManager(t)
	trigger := NewTeamDevice(bm, 1)
	late := NewTeamDevice(bm, 2)
	trigger.SetHandler(DeviceHandlerFunc(func(d *Device, apiId uint16, rtr bool, msg Message) {
		assert.Nil(t, late.AddToReadList())
		d.RemoveFromReadList()
	}))
	assert.Nil(t, trigger.AddToReadList())

	bus.receive(trigger.ID(0), false)
	bus.receive(late.ID(0), false)
	bus.receive(trigger.ID(1), false)
	bm.Update()
	// Registry changes only apply to the next update
	assert.Len(t, rec.unknown, 1)
	assert.Equal(t, 1, bm.Registered())

	bus.receive(late.ID(0), false)
	bus.receive(trigger.ID(1), false)
	bm.Update()
	assert.Len(t, rec.matched, 1)
	assert.Same(t, late, rec.matched[0].dev)
	assert.Len(t, rec.unknown, 2)
}

func TestRegistryCapacity(t *testing.T) {
	bm, bus, rec := newTestManager(t)
	devices := make([]*Device, 0, MaxDevices)
	for i := 0; i < MaxDevices; i++ {
		dev := NewTeamDevice(bm, uint8(i))
		assert.Nil(t, dev.AddToReadList())
		devices = append(devices, dev)
	}
	extra := NewTeamDevice(bm, 40)
	assert.ErrorIs(t, extra.AddToReadList(), ErrRegistryFull)
	assert.Equal(t, MaxDevices, bm.Registered())

	// Existing entries are untouched
	for _, dev := range devices {
		bus.receive(dev.ID(1), false)
	}
	bus.receive(extra.ID(1), false)
	bm.Update()
	assert.Len(t, rec.matched, MaxDevices)
	for i, m := range rec.matched {
		assert.Same(t, devices[i], m.dev)
	}
	assert.Len(t, rec.unknown, 1)

	// Space is available again after removal
	devices[3].RemoveFromReadList()
	assert.Nil(t, extra.AddToReadList())
}

func TestRegisterTwice(t *testing.T) {
	bm, _, _ := newTestManager(t)
	dev := NewTeamDevice(bm, 1)
	assert.Nil(t, dev.AddToReadList())
	assert.Nil(t, dev.AddToReadList())
	assert.Equal(t, 1, bm.Registered())
	dev.RemoveFromReadList()
	dev.RemoveFromReadList()
	assert.Equal(t, 0, bm.Registered())
	assert.ErrorIs(t, bm.Register(nil), ErrIllegalArgument)
}

func TestRxOverflow(t *testing.T) {
	bus := &testBus{}
	bm := NewBusManager(bus, 4)
	rec := &recorder{}
	bm.SetHandler(rec)
	assert.Nil(t, bm.Connect())
	for i := 0; i < 6; i++ {
		bus.receive(ident.New(uint16(i), 0, 0, 0), false)
	}
	assert.EqualValues(t, 2, bm.Dropped())
	assert.NotZero(t, bm.Error()&can.CanErrorRxOverflow)
	pending, free := bm.RxUsage()
	assert.Equal(t, 4, pending)
	assert.Equal(t, 0, free)
	assert.Equal(t, 4, bm.Update())
	assert.Zero(t, bm.Error()&can.CanErrorRxOverflow)
	pending, free = bm.RxUsage()
	assert.Equal(t, 0, pending)
	assert.Equal(t, 4, free)
	// Oldest frames are kept
	assert.EqualValues(t, 0, rec.unknown[0].id.APIID())
	assert.EqualValues(t, 3, rec.unknown[3].id.APIID())
}

func TestWritePacket(t *testing.T) {
	bm, bus, _ := newTestManager(t)
	motor := NewDevice(bm, 5, ident.ManufacturerCTRE, ident.DeviceTypeMotorController)
	assert.Nil(t, motor.WritePacket([]byte{1, 2, 3, 4}, 0x1A3))
	assert.Len(t, bus.sent, 1)
	frame := bus.sent[0]
	assert.True(t, frame.IsExtended())
	assert.False(t, frame.IsRTR())
	assert.EqualValues(t, ident.New(0x1A3, 5, ident.ManufacturerCTRE, ident.DeviceTypeMotorController), frame.Ident())
	assert.EqualValues(t, 4, frame.DLC)
	assert.Equal(t, [8]byte{1, 2, 3, 4}, frame.Data)

	assert.ErrorIs(t, motor.WritePacket(make([]byte, 9), 0), ErrFrameLength)
	assert.Len(t, bus.sent, 1)

	bus.sendErr = errors.New("tx buffer full")
	assert.EqualError(t, motor.WritePacket(nil, 1), "tx buffer full")
}

func TestWriteRTRFrame(t *testing.T) {
	bm, bus, _ := newTestManager(t)
	dev := NewTeamDevice(bm, 12)
	assert.Nil(t, dev.WriteRTRFrame(6, 0x30))
	frame := bus.sent[0]
	assert.True(t, frame.IsRTR())
	assert.True(t, frame.IsExtended())
	assert.EqualValues(t, 6, frame.DLC)
	assert.EqualValues(t, ident.New(0x30, 12, ident.ManufacturerTeamUse, ident.DeviceTypeMiscellaneous), frame.Ident())
	assert.ErrorIs(t, dev.WriteRTRFrame(9, 0x30), ErrFrameLength)
}

func TestWriteWithoutBus(t *testing.T) {
	dev := NewTeamDevice(NewBusManager(nil, 0), 1)
	assert.ErrorIs(t, dev.WritePacket([]byte{1}, 1), ErrNoBus)
	assert.ErrorIs(t, dev.WriteRTRFrame(1, 1), ErrNoBus)

	orphan := NewTeamDevice(nil, 1)
	assert.ErrorIs(t, orphan.WritePacket(nil, 1), ErrNoBus)
	assert.ErrorIs(t, orphan.AddToReadList(), ErrNoBus)
	orphan.RemoveFromReadList()
}

func TestDeviceIdentity(t *testing.T) {
	dev := NewDevice(nil, 5, ident.ManufacturerCTRE, ident.DeviceTypeMotorController)
	assert.EqualValues(t, 5, dev.DeviceNumber())
	assert.Equal(t, ident.ManufacturerCTRE, dev.Manufacturer())
	assert.Equal(t, ident.DeviceTypeMotorController, dev.DeviceType())
	assert.Equal(t, "MotorController#5 (CTRE)", dev.String())

	team := NewTeamDevice(nil, 3)
	assert.Equal(t, ident.ManufacturerTeamUse, team.Manufacturer())
	assert.Equal(t, ident.DeviceTypeMiscellaneous, team.DeviceType())
}
