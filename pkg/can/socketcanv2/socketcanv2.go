//go:build linux

package socketcanv2

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
	"unsafe"

	can "github.com/samsamfire/frccan/pkg/can"
	"github.com/samsamfire/frccan/pkg/ident"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	SocketCANFrameSize = 16
	DefaultRcvTimeout  = 100 * time.Millisecond
)

func init() {
	can.RegisterInterface("socketcanv2", NewSocketCanBus)
}

// Memory layout of struct can_frame
type CANframe struct {
	id   uint32
	dlc  uint8
	pad  uint8
	res0 uint8
	res1 uint8
	data [8]uint8
}

type SocketcanBus struct {
	f          *os.File
	fd         int
	channel    string
	rxCallback can.FrameListener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// Create a new SocketCAN bus. This expects the CAN channel to be up.
// e.g. running "ip a" should show can0 or something similar.
func NewSocketCanBus(channel string) (can.Bus, error) {
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to create CAN socket : %v", err)
	}
	tv := unix.NsecToTimeval(DefaultRcvTimeout.Nanoseconds())
	err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set read timeout %v", err)
	}
	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}
	socketcan := &SocketcanBus{fd: fd, channel: channel}
	socketcan.f = os.NewFile(uintptr(fd), fmt.Sprintf("fd %d", fd))
	return socketcan, nil
}

// "Connect" implementation of Bus interface
func (s *SocketcanBus) Connect(...any) error {
	if s.cancel != nil {
		return nil
	}
	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processIncoming(ctx)
	}()
	return nil
}

// "Disconnect" implementation of Bus interface
// Reception can be started again with Connect, the socket stays open
func (s *SocketcanBus) Disconnect() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	return nil
}

// Close the underlying socket
func (s *SocketcanBus) Close() error {
	err := s.Disconnect()
	if err != nil {
		return err
	}
	return s.f.Close()
}

// "Send" implementation of Bus interface
func (s *SocketcanBus) Send(frame can.Frame) error {
	canFrame := &CANframe{}
	canFrame.id = frame.ID
	canFrame.dlc = frame.DLC
	canFrame.pad = frame.Flags
	canFrame.data = frame.Data

	rawData := (*(*[SocketCANFrameSize]byte)(unsafe.Pointer(canFrame)))[:]
	n, err := s.f.Write(rawData)
	if err != nil {
		return err
	}
	if n != SocketCANFrameSize {
		return fmt.Errorf("incomplete write, %d bytes written", n)
	}
	return nil
}

// process incoming frames. This is meant to be run inside of a goroutine
func (s *SocketcanBus) processIncoming(ctx context.Context) {
	var frame *CANframe
	rxFrame := make([]byte, SocketCANFrameSize)
	for {
		select {
		case <-ctx.Done():
			log.Infof("[SOCKETCAN][%v] exiting CAN bus reception, closed", s.channel)
			return
		default:
			n, err := s.f.Read(rxFrame)
			if os.IsTimeout(err) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			if n != SocketCANFrameSize || err != nil {
				log.Warnf("[SOCKETCAN][%v] exiting CAN bus reception : %v", s.channel, err)
				return
			}
			// Direct translation in CANFrame
			frame = (*CANframe)(unsafe.Pointer(&rxFrame[0]))
			if s.rxCallback != nil {
				s.rxCallback.Handle(can.Frame{ID: frame.id, DLC: frame.dlc, Flags: frame.pad, Data: frame.data})
			}
		}
	}
}

// "Subscribe" implementation of Bus interface
func (s *SocketcanBus) Subscribe(rxCallback can.FrameListener) error {
	s.rxCallback = rxCallback
	return nil
}

// Enable own reception on the bus. CAN be useful when testing for example
func (s *SocketcanBus) SetReceiveOwn(enabled bool) error {
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}
	log.Infof("[SOCKETCAN][%v] setting option 'CAN_RAW_RECV_OWN_MSGS' to %v", s.channel, enabled)
	return unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, enabledInt)
}

// Add some filtering to CAN bus
func (s *SocketcanBus) SetFilters(filters []unix.CanFilter) error {
	log.Infof("[SOCKETCAN][%v] setting option 'CAN_RAW_FILTER' %v", s.channel, filters)
	return unix.SetsockoptCanRawFilter(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters)
}

// Kernel filter letting through every extended frame of a device
func FilterForDevice(filter ident.Filter) unix.CanFilter {
	return unix.CanFilter{
		Id:   uint32(filter.Mask()) | unix.CAN_EFF_FLAG,
		Mask: ident.MatchMask | unix.CAN_EFF_FLAG,
	}
}

// Kernel filters for several devices, a frame is received if any of them matches
func FiltersForDevices(filters ...ident.Filter) []unix.CanFilter {
	canFilters := make([]unix.CanFilter, 0, len(filters))
	for _, filter := range filters {
		canFilters = append(canFilters, FilterForDevice(filter))
	}
	return canFilters
}
