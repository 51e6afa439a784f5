package ident

import (
	"fmt"
	"strconv"
	"strings"
)

type DeviceType uint8

const (
	DeviceTypeBroadcast         DeviceType = 0
	DeviceTypeRobotController   DeviceType = 1
	DeviceTypeMotorController   DeviceType = 2
	DeviceTypeRelayController   DeviceType = 3
	DeviceTypeGyroSensor        DeviceType = 4
	DeviceTypeAccelerometer     DeviceType = 5
	DeviceTypeUltrasonicSensor  DeviceType = 6
	DeviceTypeGearToothSensor   DeviceType = 7
	DeviceTypePowerDistribution DeviceType = 8
	DeviceTypePneumatics        DeviceType = 9
	DeviceTypeMiscellaneous     DeviceType = 10
	DeviceTypeFirmwareUpdate    DeviceType = 31
)

var deviceTypeNames = map[DeviceType]string{
	DeviceTypeBroadcast:         "Broadcast",
	DeviceTypeRobotController:   "RobotController",
	DeviceTypeMotorController:   "MotorController",
	DeviceTypeRelayController:   "RelayController",
	DeviceTypeGyroSensor:        "GyroSensor",
	DeviceTypeAccelerometer:     "Accelerometer",
	DeviceTypeUltrasonicSensor:  "UltrasonicSensor",
	DeviceTypeGearToothSensor:   "GearToothSensor",
	DeviceTypePowerDistribution: "PowerDistribution",
	DeviceTypePneumatics:        "Pneumatics",
	DeviceTypeMiscellaneous:     "Miscellaneous",
	DeviceTypeFirmwareUpdate:    "FirmwareUpdate",
}

func (t DeviceType) String() string {
	name, ok := deviceTypeNames[t]
	if !ok {
		return fmt.Sprintf("DeviceType(%d)", uint8(t))
	}
	return name
}

type Manufacturer uint8

const (
	ManufacturerBroadcast   Manufacturer = 0
	ManufacturerNI          Manufacturer = 1
	ManufacturerLM          Manufacturer = 2
	ManufacturerDEKA        Manufacturer = 3
	ManufacturerCTRE        Manufacturer = 4
	ManufacturerREV         Manufacturer = 5
	ManufacturerGrapple     Manufacturer = 6
	ManufacturerMS          Manufacturer = 7
	ManufacturerTeamUse     Manufacturer = 8
	ManufacturerKauaiLabs   Manufacturer = 9
	ManufacturerCopperforge Manufacturer = 10
	ManufacturerPWF         Manufacturer = 11
	ManufacturerStudica     Manufacturer = 12
)

var manufacturerNames = map[Manufacturer]string{
	ManufacturerBroadcast:   "Broadcast",
	ManufacturerNI:          "NI",
	ManufacturerLM:          "LM",
	ManufacturerDEKA:        "DEKA",
	ManufacturerCTRE:        "CTRE",
	ManufacturerREV:         "REV",
	ManufacturerGrapple:     "Grapple",
	ManufacturerMS:          "MS",
	ManufacturerTeamUse:     "TeamUse",
	ManufacturerKauaiLabs:   "KauaiLabs",
	ManufacturerCopperforge: "Copperforge",
	ManufacturerPWF:         "PWF",
	ManufacturerStudica:     "Studica",
}

func (m Manufacturer) String() string {
	name, ok := manufacturerNames[m]
	if !ok {
		return fmt.Sprintf("Manufacturer(%d)", uint8(m))
	}
	return name
}

// Parse a device type from its name (case insensitive) or its numeric value
func ParseDeviceType(s string) (DeviceType, error) {
	s = strings.TrimSpace(s)
	for t, name := range deviceTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	value, err := strconv.ParseUint(s, 0, 8)
	if err != nil || value > MaxDeviceType {
		return 0, fmt.Errorf("invalid device type : %q", s)
	}
	return DeviceType(value), nil
}

// Parse a manufacturer from its name (case insensitive) or its numeric value
func ParseManufacturer(s string) (Manufacturer, error) {
	s = strings.TrimSpace(s)
	for m, name := range manufacturerNames {
		if strings.EqualFold(name, s) {
			return m, nil
		}
	}
	value, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid manufacturer : %q", s)
	}
	return Manufacturer(value), nil
}
