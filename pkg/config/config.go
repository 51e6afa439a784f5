// Package config loads the bus and device configuration of an application.
//
// Both INI and YAML files are supported, the format is chosen from the file extension.
// Bus settings can be overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samsamfire/frccan"
	"github.com/samsamfire/frccan/pkg/ident"
)

const (
	DefaultInterface = "socketcan"
	DefaultChannel   = "can0"
	DefaultBitrate   = 1_000_000
)

var (
	ErrTooManyDevices  = errors.New("too many devices configured")
	ErrDuplicateDevice = errors.New("two devices share the same identity")
	ErrInvalidDevice   = errors.New("invalid device configuration")
)

type BusConfig struct {
	Interface    string `yaml:"interface" env:"FRCCAN_INTERFACE"`
	Channel      string `yaml:"channel" env:"FRCCAN_CHANNEL"`
	Bitrate      int    `yaml:"bitrate" env:"FRCCAN_BITRATE"`
	RxBufferSize int    `yaml:"rx_buffer" env:"FRCCAN_RX_BUFFER"`
}

type DeviceConfig struct {
	Name         string `yaml:"name"`
	Number       int    `yaml:"number"`
	Manufacturer string `yaml:"manufacturer"`
	Type         string `yaml:"type"`
}

type Config struct {
	Bus     BusConfig      `yaml:"bus"`
	Devices []DeviceConfig `yaml:"devices"`
}

// Configuration with every default value set and no device
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			Interface:    DefaultInterface,
			Channel:      DefaultChannel,
			Bitrate:      DefaultBitrate,
			RxBufferSize: frccan.DefaultRxBufferSize,
		},
		Devices: make([]DeviceConfig, 0),
	}
}

// Load a configuration file, .yaml and .yml files are parsed as YAML,
// anything else as INI. The result is validated.
func Load(path string) (*Config, error) {
	var cfg *Config
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = loadYAML(path)
	default:
		cfg, err = loadINI(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %v : %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Parsed identity of a device. Without manufacturer and type,
// the device is a team use miscellaneous device.
func (d DeviceConfig) Identity() (uint8, ident.Manufacturer, ident.DeviceType, error) {
	if d.Manufacturer == "" {
		d.Manufacturer = ident.ManufacturerTeamUse.String()
	}
	if d.Type == "" {
		d.Type = ident.DeviceTypeMiscellaneous.String()
	}
	if d.Number < 0 || d.Number > ident.MaxDeviceNumber {
		return 0, 0, 0, fmt.Errorf("%w : %v : device number %d out of range", ErrInvalidDevice, d.Name, d.Number)
	}
	manufacturer, err := ident.ParseManufacturer(d.Manufacturer)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w : %v : %v", ErrInvalidDevice, d.Name, err)
	}
	deviceType, err := ident.ParseDeviceType(d.Type)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w : %v : %v", ErrInvalidDevice, d.Name, err)
	}
	return uint8(d.Number), manufacturer, deviceType, nil
}

// Check device identities and bus settings
func (c *Config) Validate() error {
	return c.ValidateReserved()
}

// Same as [Config.Validate], keeping one registry slot for each reserved
// identity. Configured devices cannot use a reserved identity.
func (c *Config) ValidateReserved(reserved ...ident.Filter) error {
	if c.Bus.RxBufferSize < 0 || c.Bus.RxBufferSize > 0xFFFE {
		return fmt.Errorf("invalid receive buffer size %d", c.Bus.RxBufferSize)
	}
	maxDevices := frccan.MaxDevices - len(reserved)
	if len(c.Devices) > maxDevices {
		return fmt.Errorf("%w : %d, max is %d", ErrTooManyDevices, len(c.Devices), maxDevices)
	}
	seen := make(map[ident.ID]string, len(c.Devices)+len(reserved))
	for _, filter := range reserved {
		seen[filter.Mask()] = "reserved " + filter.Mask().String()
	}
	for _, d := range c.Devices {
		number, manufacturer, deviceType, err := d.Identity()
		if err != nil {
			return err
		}
		mask := ident.NewFilter(number, manufacturer, deviceType).Mask()
		if other, ok := seen[mask]; ok {
			return fmt.Errorf("%w : %v and %v", ErrDuplicateDevice, other, d.Name)
		}
		seen[mask] = d.Name
	}
	return nil
}

// Create the configured devices and add them to the read list of bm.
// Returned devices are indexed by name. On error, the devices already
// added are removed from the read list and no device is returned.
func (c *Config) CreateDevices(bm *frccan.BusManager) (map[string]*frccan.Device, error) {
	devices := make(map[string]*frccan.Device, len(c.Devices))
	added := make([]*frccan.Device, 0, len(c.Devices))
	rollback := func() {
		for _, dev := range added {
			dev.RemoveFromReadList()
		}
	}
	for _, d := range c.Devices {
		number, manufacturer, deviceType, err := d.Identity()
		if err != nil {
			rollback()
			return nil, err
		}
		dev := frccan.NewDevice(bm, number, manufacturer, deviceType)
		if err := dev.AddToReadList(); err != nil {
			rollback()
			return nil, fmt.Errorf("%v : %w", d.Name, err)
		}
		added = append(added, dev)
		devices[d.Name] = dev
	}
	return devices, nil
}
