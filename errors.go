package frccan

import "errors"

var (
	ErrIllegalArgument = errors.New("error in function arguments")
	ErrRegistryFull    = errors.New("device registry is full")
	ErrNoBus           = errors.New("no CAN bus configured")
	ErrFrameLength     = errors.New("frame length exceeds 8 bytes")
)
