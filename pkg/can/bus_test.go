package can

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type dummyBus struct{ channel string }

func (b *dummyBus) Connect(...any) error { return nil }
func (b *dummyBus) Disconnect() error { return nil }
func (b *dummyBus) Send(frame Frame) error { return nil }
func (b *dummyBus) Subscribe(l FrameListener) error { return nil }

func TestFrameFlags(t *testing.T) {
	frame := NewFrame(0x01011840|CanEffFlag|CanRtrFlag, 0, 0)
	assert.True(t, frame.IsExtended())
	assert.True(t, frame.IsRTR())
	assert.EqualValues(t, 0x01011840, frame.Ident())

	frame = NewFrame(0x123, 0, 2)
	assert.False(t, frame.IsExtended())
	assert.False(t, frame.IsRTR())
	assert.EqualValues(t, 0x123, frame.Ident())
}

func TestFrameString(t *testing.T) {
	frame := Frame{ID: 0x02040185 | CanEffFlag, DLC: 2, Data: [8]byte{0xAB, 0x01}}
	assert.Equal(t, "02040185 [2] AB 01", frame.String())
	frame.ID |= CanRtrFlag
	assert.Equal(t, "02040185 [2] remote request", frame.String())
}

func TestNewBus(t *testing.T) {
	RegisterInterface("dummy", func(channel string) (Bus, error) {
		return &dummyBus{channel: channel}, nil
	})
	bus, err := NewBus("dummy", "can7", 1_000_000)
	assert.Nil(t, err)
	assert.Equal(t, "can7", bus.(*dummyBus).channel)
	assert.Contains(t, Interfaces(), "dummy")

	_, err = NewBus("unknown", "can0", 1_000_000)
	assert.NotNil(t, err)
}
