// Package replay records CAN traffic to CBOR capture files and plays them back
// as a CAN bus.
package replay

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	can "github.com/samsamfire/frccan/pkg/can"
)

// One captured frame
type Record struct {
	Offset int64  `cbor:"1,keyasint"` // Microseconds since the start of the capture
	ID     uint32 `cbor:"2,keyasint"` // Identifier including flags
	DLC    uint8  `cbor:"3,keyasint"`
	Data   []byte `cbor:"4,keyasint,omitempty"`
}

func newRecord(offset time.Duration, frame can.Frame) Record {
	dlc := frame.DLC
	if dlc > can.MaxDLC {
		dlc = can.MaxDLC
	}
	record := Record{Offset: offset.Microseconds(), ID: frame.ID, DLC: frame.DLC}
	if frame.ID&can.CanRtrFlag == 0 && dlc > 0 {
		record.Data = append([]byte(nil), frame.Data[:dlc]...)
	}
	return record
}

func (r Record) Frame() can.Frame {
	frame := can.NewFrame(r.ID, 0, r.DLC)
	copy(frame.Data[:], r.Data)
	return frame
}

// Recorder writes every handled frame to a capture stream.
// It implements can.FrameListener, it can be subscribed to a bus directly.
type Recorder struct {
	mu      sync.Mutex
	enc     *cbor.Encoder
	start   time.Time
	count   int
	lastErr error
}

func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: cbor.NewEncoder(w), start: time.Now()}
}

func (r *Recorder) Handle(frame can.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.enc.Encode(newRecord(time.Since(r.start), frame))
	if err != nil {
		r.lastErr = err
		return
	}
	r.count++
}

// Number of frames recorded
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Last write error if any
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Read all the records of a capture stream
func ReadAll(reader io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(reader)
	records := make([]Record, 0)
	for {
		var record Record
		err := dec.Decode(&record)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
}

// Tee forwards frames to several listeners, e.g. a bus manager and a recorder
type Tee []can.FrameListener

func (t Tee) Handle(frame can.Frame) {
	for _, listener := range t {
		listener.Handle(frame)
	}
}
