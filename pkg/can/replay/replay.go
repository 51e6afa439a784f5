package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	can "github.com/samsamfire/frccan/pkg/can"
	log "github.com/sirupsen/logrus"
)

func init() {
	can.RegisterInterface("replay", NewReplayBus)
}

// Bus playing back a capture file, channel is the file path.
// Frames are delivered with their original spacing, scaled by Speed.
// Sent frames go to an optional recorder.
type Bus struct {
	mu         sync.Mutex
	path       string
	speed      float64
	rxCallback can.FrameListener
	sent       *Recorder
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	done       chan struct{}
}

func NewReplayBus(channel string) (can.Bus, error) {
	if channel == "" {
		return nil, errors.New("replay needs a capture file path as channel")
	}
	return &Bus{path: channel, speed: 1}, nil
}

// Playback speed factor, 0 replays as fast as possible
func (b *Bus) SetSpeed(speed float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.speed = speed
}

// Record the frames sent on this bus
func (b *Bus) SetSendRecorder(recorder *Recorder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = recorder
}

// "Connect" implementation of Bus interface, starts the playback
func (b *Bus) Connect(...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return nil
	}
	f, err := os.Open(b.path)
	if err != nil {
		return fmt.Errorf("failed to open capture : %w", err)
	}
	var ctx context.Context
	ctx, b.cancel = context.WithCancel(context.Background())
	done := make(chan struct{})
	b.done = done
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(done)
		defer f.Close()
		b.play(ctx, f)
	}()
	return nil
}

// "Disconnect" implementation of Bus interface
func (b *Bus) Disconnect() error {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
		b.wg.Wait()
	}
	return nil
}

// Closed once the whole capture has been played
func (b *Bus) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// "Send" implementation of Bus interface
func (b *Bus) Send(frame can.Frame) error {
	b.mu.Lock()
	recorder := b.sent
	b.mu.Unlock()
	if recorder != nil {
		recorder.Handle(frame)
	}
	return nil
}

// "Subscribe" implementation of Bus interface
func (b *Bus) Subscribe(rxCallback can.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rxCallback = rxCallback
	return nil
}

func (b *Bus) play(ctx context.Context, r io.Reader) {
	dec := cbor.NewDecoder(r)
	start := time.Now()
	played := 0
	for {
		var record Record
		err := dec.Decode(&record)
		if errors.Is(err, io.EOF) {
			log.Infof("[REPLAY] %v : end of capture, %d frames played", b.path, played)
			return
		}
		if err != nil {
			log.Errorf("[REPLAY] %v : stopping playback : %v", b.path, err)
			return
		}

		b.mu.Lock()
		speed := b.speed
		callback := b.rxCallback
		b.mu.Unlock()

		if speed > 0 {
			due := time.Duration(float64(record.Offset)/speed) * time.Microsecond
			if wait := due - time.Since(start); wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		if callback != nil {
			callback.Handle(record.Frame())
		}
		played++
	}
}
