package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/robotalks/hmtl.go/pkg/env"
	"github.com/robotalks/hmtl.go/pkg/transport"
	"github.com/robotalks/hmtl.go/pkg/transport/mqtt"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

var (
	mqttURL = "mqtt://localhost:1883/hmtl/"
)

func init() {
	if val := env.Default().MQTTURL; val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func describe(f *wire.Frame) string {
	switch f.Type {
	case wire.MsgOutput:
		msg, err := f.Output()
		if err != nil {
			return err.Error()
		}
		switch m := msg.(type) {
		case *wire.ValueMsg:
			return fmt.Sprintf("output %d value=%d", m.Output, m.Value)
		case *wire.RGBMsg:
			return fmt.Sprintf("output %d rgb=#%02x%02x%02x", m.Output, m.Color[0], m.Color[1], m.Color[2])
		case *wire.ProgramMsg:
			return fmt.Sprintf("output %d program=%s % x", m.Output, m.Program, m.Values)
		}
	case wire.MsgPoll:
		if !f.Flags.Has(wire.FlagAck) {
			return "request"
		}
		resp, err := f.PollResponse()
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("device=%04x outputs=%d buffer=%d", resp.DeviceID, resp.NumOutputs, resp.BufferSize)
	case wire.MsgSetAddr:
		msg, err := f.SetAddr()
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("device=%04x address=%s", msg.DeviceID, msg.Address)
	case wire.MsgTimeSync:
		msg, err := f.TimeSync()
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%s ts=%d", msg.Phase, msg.Timestamp)
	case wire.MsgSensor:
		recs, err := f.Sensors()
		if err != nil {
			return err.Error()
		}
		s := fmt.Sprintf("%d records", len(recs))
		for _, rec := range recs {
			s += fmt.Sprintf(" %s:% x", rec.Type, rec.Data)
		}
		return s
	}
	return fmt.Sprintf("% x", f.Body)
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err := q.Connect(); err != nil {
		log.Fatalln(err)
	}

	mqtt.SubscribeBus(q, func(pkt *transport.Packet) {
		f, err := wire.Decode(pkt.Data)
		if err != nil {
			log.Printf("%s -> %s: bad frame: %v", pkt.Source, pkt.Dest, err)
			return
		}
		log.Printf("%s -> %s: [%s] %s", pkt.Source, pkt.Dest, f, describe(f))
	})
	<-(chan struct{})(nil)
}
