package swarm

import (
	"time"

	"github.com/flock-protocol/flock-go/pkg/device"
	"github.com/flock-protocol/flock-go/pkg/wire"
)

// dispatchLoop serializes the wire traffic of one device. Exactly one
// loop runs per device for the life of the swarm.
func (s *Swarm) dispatchLoop(dev *device.Device, q chan *device.Command) {
	defer s.wg.Done()
	for {
		select {
		case <-s.closeCh:
			// Admission is mutually exclusive with Close, so anything
			// still queued was admitted before shutdown. Fail it here
			// or its submitter waits forever.
			for {
				select {
				case cmd := <-q:
					cmd.Resolve(device.OutcomeFailed, "", ErrSwarmClosed)
					s.logResolution(dev, cmd)
				default:
					return
				}
			}
		case cmd := <-q:
			s.dispatch(dev, cmd)
		}
	}
}

// dispatch carries one admitted command from gate to resolution. The
// resolution releases the slot and is logged exactly once here whether
// the ack path, the timeout, or a fault won the race.
func (s *Swarm) dispatch(dev *device.Device, cmd *device.Command) {
	defer s.logResolution(dev, cmd)

	if gate := cmd.Gate(); gate != nil {
		select {
		case <-cmd.Done():
			// Aborted or faulted before release; never reaches the wire.
			return
		case <-s.closeCh:
			cmd.Resolve(device.OutcomeFailed, "", ErrSwarmClosed)
			return
		case <-gate:
		}
	}
	select {
	case <-cmd.Done():
		return
	case <-s.closeCh:
		cmd.Resolve(device.OutcomeFailed, "", ErrSwarmClosed)
		return
	default:
	}

	cmd.MarkSent()
	if err := s.conn.Send(dev.Addr(), cmd.Text()); err != nil {
		select {
		case <-s.closeCh:
			err = ErrSwarmClosed
		default:
		}
		cmd.Resolve(device.OutcomeFailed, "", err)
		return
	}
	s.logCommandSent(dev, cmd)
	s.slog.Debug("command sent", "device", dev.Num(), "command", cmd.Text())

	timeout := s.policy.Timeout(cmd.Class(), wire.Opcode(cmd.Text()))
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-cmd.Done():
	case <-timer.C:
		if cmd.Resolve(device.OutcomeTimedOut, "", device.ErrTimeout) {
			s.slog.Warn("command timed out",
				"device", dev.Num(), "command", cmd.Text(), "timeout", timeout)
		}
	case <-s.closeCh:
		cmd.Resolve(device.OutcomeFailed, "", ErrSwarmClosed)
	}
}
