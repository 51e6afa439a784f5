package config

import (
	"strings"

	"gopkg.in/ini.v1"
)

const (
	busSection   = "bus"
	devicePrefix = "device."
)

// INI layout :
//
//	[bus]
//	interface = socketcan
//	channel = can0
//	bitrate = 1000000
//	rx_buffer = 64
//
//	[device.left_drive]
//	number = 5
//	manufacturer = CTRE
//	type = MotorController
func loadINI(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	bus := file.Section(busSection)
	cfg.Bus.Interface = bus.Key("interface").MustString(cfg.Bus.Interface)
	cfg.Bus.Channel = bus.Key("channel").MustString(cfg.Bus.Channel)
	cfg.Bus.Bitrate = bus.Key("bitrate").MustInt(cfg.Bus.Bitrate)
	cfg.Bus.RxBufferSize = bus.Key("rx_buffer").MustInt(cfg.Bus.RxBufferSize)

	// Sections keep the file order
	for _, section := range file.Sections() {
		name, ok := strings.CutPrefix(section.Name(), devicePrefix)
		if !ok {
			continue
		}
		number, err := section.Key("number").Int()
		if err != nil {
			return nil, err
		}
		cfg.Devices = append(cfg.Devices, DeviceConfig{
			Name:         name,
			Number:       number,
			Manufacturer: section.Key("manufacturer").String(),
			Type:         section.Key("type").String(),
		})
	}
	return cfg, nil
}
