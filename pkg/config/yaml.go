package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// YAML layout :
//
//	bus:
//	  interface: socketcan
//	  channel: can0
//	  bitrate: 1000000
//	  rx_buffer: 64
//	devices:
//	  - name: left_drive
//	    number: 5
//	    manufacturer: CTRE
//	    type: MotorController
func loadYAML(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// Missing keys keep their default value
	cfg := Default()
	err = yaml.Unmarshal(raw, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
