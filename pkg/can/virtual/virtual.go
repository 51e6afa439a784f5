package virtual

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	can "github.com/samsamfire/frccan/pkg/can"
	log "github.com/sirupsen/logrus"
)

// Virtual CAN bus implementation with TCP primarily used for testing
// This needs a broker server to send CAN frames to all connected clients
// More information : https://github.com/windelbouwman/virtualcan

const (
	frameSize    = 14 // Serialized can.Frame
	headerSize   = 4
	readTimeout  = 200 * time.Millisecond
	writeTimeout = 10 * time.Millisecond
)

func init() {
	can.RegisterInterface("virtual", NewVirtualCanBus)
	can.RegisterInterface("virtualcan", NewVirtualCanBus)
}

type Bus struct {
	mu           sync.Mutex
	writeMu      sync.Mutex
	channel      string
	conn         net.Conn
	receiveOwn   bool
	framehandler can.FrameListener
	stopChan     chan struct{}
	wg           sync.WaitGroup
	isRunning    bool
}

func NewVirtualCanBus(channel string) (can.Bus, error) {
	return &Bus{channel: channel}, nil
}

// Helper function for serializing a CAN frame into the expected binary format
func serializeFrame(frame can.Frame) ([]byte, error) {
	buffer := new(bytes.Buffer)
	err := binary.Write(buffer, binary.BigEndian, frame)
	if err != nil {
		return nil, err
	}
	dataBytes := buffer.Bytes()
	frameBytes := make([]byte, headerSize, headerSize+len(dataBytes))
	binary.BigEndian.PutUint32(frameBytes, uint32(len(dataBytes)))
	frameBytes = append(frameBytes, dataBytes...)
	return frameBytes, nil
}

// Helper function for deserializing a CAN frame from expected binary format
func deserializeFrame(buffer []byte) (*can.Frame, error) {
	var frame can.Frame
	buf := bytes.NewBuffer(buffer)
	err := binary.Read(buf, binary.BigEndian, &frame)
	if err != nil {
		return nil, err
	}
	return &frame, nil
}

// "Connect" to server e.g. localhost:18000
func (b *Bus) Connect(...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return nil
	}
	conn, err := net.Dial("tcp", b.channel)
	if err != nil {
		return err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		err := tcpConn.SetNoDelay(true)
		if err != nil {
			conn.Close()
			return err
		}
	}
	b.conn = conn
	if b.framehandler != nil {
		b.startReception()
	}
	return nil
}

// "Disconnect" from server
func (b *Bus) Disconnect() error {
	b.mu.Lock()
	if b.isRunning {
		close(b.stopChan)
		b.isRunning = false
	}
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()

	b.wg.Wait()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// "Send" implementation of Bus interface
func (b *Bus) Send(frame can.Frame) error {
	b.mu.Lock()
	conn := b.conn
	handler := b.framehandler
	receiveOwn := b.receiveOwn
	b.mu.Unlock()

	// Local loopback
	if receiveOwn && handler != nil {
		handler.Handle(frame)
	} else if conn == nil {
		return errors.New("error : no active connection, abort send")
	}
	if conn == nil {
		return nil
	}
	frameBytes, err := serializeFrame(frame)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = conn.Write(frameBytes)
	return err
}

// "Subscribe" implementation of Bus interface
func (b *Bus) Subscribe(framehandler can.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.framehandler = framehandler
	if b.conn != nil {
		b.startReception()
	}
	return nil
}

// Start go routine that receives incoming traffic and passes it to frameHandler
// Lock should be held
func (b *Bus) startReception() {
	if b.isRunning {
		return
	}
	b.isRunning = true
	b.stopChan = make(chan struct{})
	b.wg.Add(1)
	go b.handleReception(b.conn, b.stopChan)
}

// Receive new CAN message
func recv(conn net.Conn) (*can.Frame, error) {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	headerBytes := make([]byte, headerSize)
	_, err := io.ReadFull(conn, headerBytes)
	if err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(headerBytes)
	if length != frameSize {
		return nil, errors.New("error deserializing : unexpected frame length")
	}
	frameBytes := make([]byte, length)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, err = io.ReadFull(conn, frameBytes)
	if err != nil {
		return nil, err
	}
	return deserializeFrame(frameBytes)
}

// Handle incoming traffic
func (b *Bus) handleReception(conn net.Conn, stop chan struct{}) {
	defer b.wg.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}
		frame, err := recv(conn)
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			// No message received, this is OK
			continue
		}
		if err != nil {
			select {
			case <-stop:
			default:
				log.Errorf("[VIRTUAL][%v] listening routine has closed because : %v", b.channel, err)
			}
			b.mu.Lock()
			if b.stopChan == stop {
				b.isRunning = false
			}
			b.mu.Unlock()
			return
		}
		b.mu.Lock()
		handler := b.framehandler
		b.mu.Unlock()
		if handler != nil {
			handler.Handle(*frame)
		}
	}
}

func (b *Bus) SetReceiveOwn(receiveOwn bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiveOwn = receiveOwn
}
