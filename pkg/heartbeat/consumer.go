package heartbeat

import (
	"sync"
	"time"

	"github.com/samsamfire/frccan"
	log "github.com/sirupsen/logrus"
)

const (
	HeartbeatUnknown = 0x01 // Consumer enabled, but no heartbeat received yet
	HeartbeatActive  = 0x02 // Heartbeat received within set time
	HeartbeatTimeout = 0x03 // No heartbeat received for set time
)

const (
	EventStarted = 0x01
	EventTimeout = 0x02
	EventChanged = 0x03
)

const DefaultTimeout = 100 * time.Millisecond

type EventCallback func(event uint8, status Status)

// Heartbeat consumer, monitors the robot controller heartbeat.
// It receives the heartbeat through its own device registered on the bus manager.
type Consumer struct {
	mu            sync.Mutex
	dev           *frccan.Device
	timeout       time.Duration
	timer         *time.Timer
	hbState       uint8
	status        Status
	received      uint32
	eventCallback EventCallback
	fallback      frccan.DeviceHandler
}

// Create a new heartbeat consumer. The callback is optional and
// called for every event, from the update goroutine or from the timeout timer.
func NewConsumer(bm *frccan.BusManager, timeout time.Duration, callback EventCallback) *Consumer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	filter := Filter()
	mask := filter.Mask()
	consumer := &Consumer{
		dev:           frccan.NewDevice(bm, mask.DeviceNumber(), mask.Manufacturer(), mask.DeviceType()),
		timeout:       timeout,
		hbState:       HeartbeatUnknown,
		eventCallback: callback,
	}
	consumer.dev.SetHandler(consumer)
	return consumer
}

// Set a handler for the robot controller messages that are not heartbeats,
// i.e. other API ids, remote requests and malformed heartbeats.
// Without one, these messages are discarded.
func (consumer *Consumer) SetFallback(handler frccan.DeviceHandler) {
	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	consumer.fallback = handler
}

// Start monitoring
func (consumer *Consumer) Start() error {
	return consumer.dev.AddToReadList()
}

// Stop monitoring, state goes back to unknown
func (consumer *Consumer) Stop() {
	consumer.dev.RemoveFromReadList()
	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	if consumer.timer != nil {
		consumer.timer.Stop()
	}
	consumer.hbState = HeartbeatUnknown
}

// Handle heartbeat messages, called by the bus manager update
func (consumer *Consumer) Handle(dev *frccan.Device, apiId uint16, rtr bool, msg frccan.Message) {
	if apiId != APIID || rtr {
		consumer.forward(dev, apiId, rtr, msg)
		return
	}
	status, err := Decode(msg.Payload())
	if err != nil {
		log.Debugf("[HB] ignoring heartbeat : %v", err)
		consumer.forward(dev, apiId, rtr, msg)
		return
	}

	consumer.mu.Lock()
	var events [2]uint8
	nbEvents := 0
	if consumer.hbState != HeartbeatActive {
		events[nbEvents] = EventStarted
		nbEvents++
	} else if status != consumer.status {
		events[nbEvents] = EventChanged
		nbEvents++
	}
	consumer.hbState = HeartbeatActive
	consumer.status = status
	consumer.received++

	// Reset timer
	if consumer.timer != nil {
		consumer.timer.Reset(consumer.timeout)
	} else {
		consumer.timer = time.AfterFunc(consumer.timeout, consumer.timerHandler)
	}
	consumer.mu.Unlock()

	// Execute callbacks
	for _, event := range events[:nbEvents] {
		if event == EventStarted {
			log.Infof("[HB] robot controller heartbeat started (%v)", status)
		}
		if consumer.eventCallback != nil {
			consumer.eventCallback(event, status)
		}
	}
}

func (consumer *Consumer) forward(dev *frccan.Device, apiId uint16, rtr bool, msg frccan.Message) {
	consumer.mu.Lock()
	fallback := consumer.fallback
	consumer.mu.Unlock()
	if fallback != nil {
		fallback.Handle(dev, apiId, rtr, msg)
	}
}

func (consumer *Consumer) timerHandler() {
	consumer.mu.Lock()
	timedOut := consumer.hbState == HeartbeatActive
	if timedOut {
		consumer.hbState = HeartbeatTimeout
	}
	status := consumer.status
	consumer.mu.Unlock()

	if !timedOut {
		return
	}
	log.Warnf("[HB] no robot controller heartbeat for %v", consumer.timeout)
	if consumer.eventCallback != nil {
		consumer.eventCallback(EventTimeout, status)
	}
}

// Current heartbeat state
func (consumer *Consumer) State() uint8 {
	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	return consumer.hbState
}

// Last received status and whether the heartbeat is currently active
func (consumer *Consumer) Status() (Status, bool) {
	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	return consumer.status, consumer.hbState == HeartbeatActive
}

// True only while heartbeats are received and the robot is enabled
func (consumer *Consumer) Enabled() bool {
	status, active := consumer.Status()
	return active && status.Enabled
}

// Number of heartbeats received
func (consumer *Consumer) Received() uint32 {
	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	return consumer.received
}
