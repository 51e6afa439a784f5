package main

import (
	"flag"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/samsamfire/frccan"
	can "github.com/samsamfire/frccan/pkg/can"
	"github.com/samsamfire/frccan/pkg/can/replay"
	_ "github.com/samsamfire/frccan/pkg/can/socketcan"
	_ "github.com/samsamfire/frccan/pkg/can/virtual"
	"github.com/samsamfire/frccan/pkg/config"
	"github.com/samsamfire/frccan/pkg/heartbeat"
	"github.com/samsamfire/frccan/pkg/ident"
	log "github.com/sirupsen/logrus"
)

var DEFAULT_UPDATE_PERIOD = 10 * time.Millisecond

// Logs every message going through the bus manager
type logHandler struct{}

func (logHandler) HandleMessage(dev *frccan.Device, apiId uint16, rtr bool, msg frccan.Message) {
	log.WithFields(log.Fields{
		"device": dev.String(),
		"api":    apiId,
		"rtr":    rtr,
		"ts":     msg.Timestamp,
	}).Infof("[DISPATCH] % X", msg.Payload())
}

func (logHandler) HandleUnknown(id ident.ID, msg frccan.Message) {
	log.WithFields(log.Fields{
		"id": id.String(),
		"ts": msg.Timestamp,
	}).Debugf("[DISPATCH] unknown % X", msg.Payload())
}

// Identities received by the application, heartbeat consumer first
func deviceFilters(devices map[string]*frccan.Device) []ident.Filter {
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)
	filters := []ident.Filter{heartbeat.Filter()}
	for _, name := range names {
		filters = append(filters, devices[name].Filter)
	}
	return filters
}

func main() {
	// Command line arguments
	configPath := flag.String("c", "", "configuration file (.ini or .yaml)")
	canInterface := flag.String("i", "", "interface e.g. socketcan, socketcanv2, virtualcan, replay")
	channel := flag.String("ch", "", "channel e.g. can0, localhost:18888, capture.cbor")
	recordPath := flag.String("record", "", "record received frames to this CBOR capture file")
	period := flag.Duration("period", DEFAULT_UPDATE_PERIOD, "update period")
	verbose := flag.Bool("v", false, "debug logs")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg := config.Default()
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	err = config.ApplyEnv(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if *canInterface != "" {
		cfg.Bus.Interface = *canInterface
	}
	if *channel != "" {
		cfg.Bus.Channel = *channel
	}

	// One registry slot is kept for the heartbeat consumer
	err = cfg.ValidateReserved(heartbeat.Filter())
	if err != nil {
		log.Fatal(err)
	}

	bus, err := can.NewBus(cfg.Bus.Interface, cfg.Bus.Channel, cfg.Bus.Bitrate)
	if err != nil {
		log.Fatalf("available interfaces are %v : %v", can.Interfaces(), err)
	}
	bm := frccan.NewBusManager(bus, uint16(cfg.Bus.RxBufferSize))
	handler := logHandler{}
	bm.SetHandler(handler)

	consumer := heartbeat.NewConsumer(bm, heartbeat.DefaultTimeout, func(event uint8, status heartbeat.Status) {
		switch event {
		case heartbeat.EventChanged:
			log.Infof("[HB] robot state changed : %v", status)
		case heartbeat.EventTimeout:
			log.Warnf("[HB] robot controller lost, last state : %v", status)
		}
	})
	consumer.SetFallback(frccan.DeviceHandlerFunc(handler.HandleMessage))
	err = consumer.Start()
	if err != nil {
		log.Fatal(err)
	}
	defer consumer.Stop()

	devices, err := cfg.CreateDevices(bm)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("[CAN] %d configured devices", len(devices))

	applied, err := applyKernelFilters(bus, deviceFilters(devices))
	if err != nil {
		log.Fatal(err)
	}
	if applied {
		log.Infof("[CAN] kernel filters installed for %d identities", len(devices)+1)
	}

	err = bus.Connect()
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Disconnect()

	var listener can.FrameListener = bm
	if *recordPath != "" {
		f, err := os.Create(*recordPath)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		recorder := replay.NewRecorder(f)
		listener = replay.Tee{bm, recorder}
		defer func() { log.Infof("[CAN] %d frames recorded to %v", recorder.Count(), *recordPath) }()
	}
	err = bus.Subscribe(listener)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("[CAN] listening on %v (%v)", cfg.Bus.Channel, cfg.Bus.Interface)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	ticker := time.NewTicker(*period)
	defer ticker.Stop()
	for {
		select {
		case <-interrupt:
			log.Infof("[CAN] exiting, %d frames dropped", bm.Dropped())
			return
		case <-ticker.C:
			bm.Update()
		}
	}
}
