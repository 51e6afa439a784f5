package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/samsamfire/frccan"
	log "github.com/sirupsen/logrus"
)

const DefaultPeriod = 20 * time.Millisecond

// Heartbeat producer, sends the heartbeat of a simulated robot controller
type Producer struct {
	mu     sync.Mutex
	dev    *frccan.Device
	period time.Duration
	status Status
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewProducer(bm *frccan.BusManager, period time.Duration) *Producer {
	if period <= 0 {
		period = DefaultPeriod
	}
	mask := Filter().Mask()
	return &Producer{
		dev:    frccan.NewDevice(bm, mask.DeviceNumber(), mask.Manufacturer(), mask.DeviceType()),
		period: period,
	}
}

// Update the status sent with the next heartbeats
func (producer *Producer) SetStatus(status Status) {
	producer.mu.Lock()
	defer producer.mu.Unlock()
	producer.status = status
}

// Send a single heartbeat
func (producer *Producer) Send() error {
	producer.mu.Lock()
	status := producer.status
	producer.mu.Unlock()
	return producer.dev.WritePacket(status.Payload(), APIID)
}

// Start sending heartbeats periodically until ctx is done or [Producer.Stop] is called
func (producer *Producer) Start(ctx context.Context) {
	producer.mu.Lock()
	defer producer.mu.Unlock()
	if producer.cancel != nil {
		return
	}
	ctx, producer.cancel = context.WithCancel(ctx)
	producer.wg.Add(1)
	go func() {
		defer producer.wg.Done()
		ticker := time.NewTicker(producer.period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := producer.Send(); err != nil {
					log.Debugf("[HB] failed to send heartbeat : %v", err)
				}
			}
		}
	}()
}

func (producer *Producer) Stop() {
	producer.mu.Lock()
	cancel := producer.cancel
	producer.cancel = nil
	producer.mu.Unlock()
	if cancel != nil {
		cancel()
		producer.wg.Wait()
	}
}
