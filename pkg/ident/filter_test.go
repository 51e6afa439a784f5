package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterMatchSameDevice(t *testing.T) {
	filter := NewFilter(5, ManufacturerCTRE, DeviceTypeMotorController)
	for _, apiId := range []uint16{0, 1, 0x1A3, 0x2FF, MaxAPIID} {
		extracted, ok := filter.Match(New(apiId, 5, ManufacturerCTRE, DeviceTypeMotorController))
		assert.True(t, ok)
		assert.Equal(t, apiId, extracted)
	}
}

func TestFilterNoMatch(t *testing.T) {
	filter := NewFilter(5, ManufacturerCTRE, DeviceTypeMotorController)
	_, ok := filter.Match(New(0x1A3, 6, ManufacturerCTRE, DeviceTypeMotorController))
	assert.False(t, ok)
	_, ok = filter.Match(New(0x1A3, 5, ManufacturerREV, DeviceTypeMotorController))
	assert.False(t, ok)
	_, ok = filter.Match(New(0x1A3, 5, ManufacturerCTRE, DeviceTypeGyroSensor))
	assert.False(t, ok)
}

func TestFilterSubIndex(t *testing.T) {
	filter := NewFilter(5, ManufacturerCTRE, DeviceTypeMotorController)
	extracted, ok := filter.Match(New(0x1A3, 5, ManufacturerCTRE, DeviceTypeMotorController))
	assert.True(t, ok)
	assert.EqualValues(t, 0x1A3, extracted)
}

func TestFilterID(t *testing.T) {
	filter := NewFilter(0, ManufacturerNI, DeviceTypeRobotController)
	assert.Equal(t, HeartbeatID, filter.ID(0x61))
	assert.Equal(t, New(0, 0, ManufacturerNI, DeviceTypeRobotController), filter.Mask())
}
