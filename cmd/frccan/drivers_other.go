//go:build !linux

package main

import (
	can "github.com/samsamfire/frccan/pkg/can"
	"github.com/samsamfire/frccan/pkg/ident"
)

func applyKernelFilters(bus can.Bus, filters []ident.Filter) (bool, error) {
	return false, nil
}
