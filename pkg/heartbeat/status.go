// Package heartbeat handles the periodic robot controller heartbeat.
//
// The heartbeat is sent by the robot controller with identifier [ident.HeartbeatID].
// Its first payload byte carries the robot state flags.
package heartbeat

import (
	"errors"
	"fmt"

	"github.com/samsamfire/frccan/pkg/ident"
)

// API id of the heartbeat, within the robot controller namespace
const APIID uint16 = 0x61

// Length of a heartbeat frame
const PayloadLength = 8

const (
	IsRedAllianceMask     uint8 = 0x01
	IsEnabledMask         uint8 = 0x02
	IsAutonomousMask      uint8 = 0x04
	IsTestMask            uint8 = 0x08
	IsWatchdogEnabledMask uint8 = 0x10
)

var ErrShortPayload = errors.New("heartbeat payload is empty")

// Robot state carried by a heartbeat
type Status struct {
	RedAlliance     bool
	Enabled         bool
	Autonomous      bool
	Test            bool
	WatchdogEnabled bool
}

// Decode the status flags from a heartbeat payload
func Decode(payload []byte) (Status, error) {
	if len(payload) == 0 {
		return Status{}, ErrShortPayload
	}
	flags := payload[0]
	return Status{
		RedAlliance:     flags&IsRedAllianceMask != 0,
		Enabled:         flags&IsEnabledMask != 0,
		Autonomous:      flags&IsAutonomousMask != 0,
		Test:            flags&IsTestMask != 0,
		WatchdogEnabled: flags&IsWatchdogEnabledMask != 0,
	}, nil
}

// Flags byte of the status
func (s Status) Byte() uint8 {
	var flags uint8
	if s.RedAlliance {
		flags |= IsRedAllianceMask
	}
	if s.Enabled {
		flags |= IsEnabledMask
	}
	if s.Autonomous {
		flags |= IsAutonomousMask
	}
	if s.Test {
		flags |= IsTestMask
	}
	if s.WatchdogEnabled {
		flags |= IsWatchdogEnabledMask
	}
	return flags
}

// Full heartbeat payload
func (s Status) Payload() []byte {
	payload := make([]byte, PayloadLength)
	payload[0] = s.Byte()
	return payload
}

func (s Status) String() string {
	alliance := "blue"
	if s.RedAlliance {
		alliance = "red"
	}
	mode := "teleop"
	if s.Autonomous {
		mode = "auto"
	} else if s.Test {
		mode = "test"
	}
	return fmt.Sprintf("alliance=%v enabled=%v mode=%v watchdog=%v", alliance, s.Enabled, mode, s.WatchdogEnabled)
}

// Identity of the heartbeat sender
func Filter() ident.Filter {
	return ident.NewFilter(0, ident.ManufacturerNI, ident.DeviceTypeRobotController)
}
