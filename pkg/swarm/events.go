package swarm

import (
	"time"

	"github.com/flock-protocol/flock-go/pkg/device"
	"github.com/flock-protocol/flock-go/pkg/log"
)

// event builds the common envelope for a flight log record.
func (s *Swarm) event(dev *device.Device, dir log.Direction, cat log.Category) log.Event {
	ev := log.Event{
		Timestamp: time.Now(),
		SessionID: s.session,
		Direction: dir,
		Category:  cat,
	}
	if dev != nil {
		ev.DeviceSerial = dev.Serial()
		ev.DeviceNum = dev.Num()
		ev.RemoteAddr = dev.Addr().String()
	}
	return ev
}

func (s *Swarm) logCommandSent(dev *device.Device, cmd *device.Command) {
	ev := s.event(dev, log.DirectionOut, log.CategoryCommand)
	ev.Command = &log.CommandEvent{
		ID:    cmd.ID(),
		Text:  cmd.Text(),
		Class: cmd.Class().String(),
	}
	s.flog.Log(ev)
}

func (s *Swarm) logResolution(dev *device.Device, cmd *device.Command) {
	ce := &log.CommandEvent{
		ID:      cmd.ID(),
		Text:    cmd.Text(),
		Class:   cmd.Class().String(),
		Outcome: cmd.Outcome().String(),
	}
	if r := cmd.Response(); r != "" {
		ce.Response = r
	}
	if rtt := cmd.RTT(); rtt > 0 {
		ce.RTT = &rtt
	}
	ev := s.event(dev, log.DirectionIn, log.CategoryReply)
	ev.Command = ce
	s.flog.Log(ev)
}

func (s *Swarm) logState(dev *device.Device, old, new device.State, reason string) {
	ev := s.event(dev, log.DirectionIn, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		OldState: old.String(),
		NewState: new.String(),
		Reason:   reason,
	}
	s.flog.Log(ev)
}
