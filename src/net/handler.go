package net

import (
	cm "github.com/qubicnet/qgossip/src/common"
	"github.com/qubicnet/qgossip/src/events"
	"github.com/qubicnet/qgossip/src/wire"
)

// handle decodes and validates one frame, publishes what it carries and
// relays it when its type is flooded. Decoding failures are FormatErrors and
// end the connection; rejected content is a ValidationError.
func (p *Peer) handle(h wire.Header, frame []byte) error {
	payload := frame[wire.HeaderSize:]

	var ev events.Event
	switch h.Type {
	case wire.TypeExchangePublicPeers:
		e, err := wire.DecodeExchangePublicPeers(payload)
		if err != nil {
			return err
		}
		ips := e.IPs()
		p.env.Host.AddIPs(ips)
		ev = events.Event{Kind: events.PeerListObserved, Payload: ips}

	case wire.TypeBroadcastComputors:
		c, err := wire.DecodeComputors(payload)
		if err != nil {
			return err
		}
		if err := p.env.Committee.Apply(c); err != nil {
			return err
		}
		p.logger.WithField("epoch", c.Epoch).Info("Accepted computors")
		ev = events.Event{Kind: events.ComputorsUpdated, Payload: c}

	case wire.TypeBroadcastResourceTestingSolution:
		s, err := wire.DecodeResourceTestingSolution(payload)
		if err != nil {
			return err
		}
		ev = events.Event{Kind: events.ResourceTestingSolutionObserved, Payload: s}

	case wire.TypeBroadcastTick:
		t, err := wire.DecodeTick(payload)
		if err != nil {
			return err
		}
		if err := p.validateTick(t); err != nil {
			return err
		}
		ev = events.Event{Kind: events.TickObserved, Payload: t}

	case wire.TypeBroadcastRevenues:
		r, err := wire.DecodeRevenues(payload)
		if err != nil {
			return err
		}
		if err := p.validateRevenues(r); err != nil {
			return err
		}
		ev = events.Event{Kind: events.RevenuesObserved, Payload: r}

	case wire.TypeRequestComputors:
		if h.PayloadSize() != 0 {
			return cm.Formatf("handle", "%s with %d byte payload", h.Type, h.PayloadSize())
		}
		if f := p.env.Committee.Frame(p.env.Config.Protocol); f != nil {
			if !p.Enqueue(f) {
				p.logger.Debug("Outbound queue full, not answering REQUEST_COMPUTORS")
			}
		}
		return nil

	default:
		p.logger.WithField("type", h.Type).Debug("Ignoring unknown message type")
		return nil
	}

	ev.Source = p.ip
	p.env.Bus.Publish(ev)

	if h.Type.Relayable() {
		p.env.Host.Relay(frame, p)
	}
	return nil
}

func (p *Peer) validateTick(t *wire.Tick) error {
	if !t.InRange() {
		return cm.Validationf("tick", "fields out of range")
	}
	key, epoch, ok := p.env.Committee.KeyAt(t.ComputorIndex)
	if !ok {
		return cm.Validationf("tick", "no computors cached")
	}
	if t.Epoch < epoch {
		return cm.Validationf("tick", "epoch %d older than %d", t.Epoch, epoch)
	}
	if !t.Verify(p.env.Verifier, key) {
		return cm.Validationf("tick", "bad signature from computor %d", t.ComputorIndex)
	}
	return nil
}

func (p *Peer) validateRevenues(r *wire.Revenues) error {
	if !r.InRange() {
		return cm.Validationf("revenues", "fields out of range")
	}
	key, epoch, ok := p.env.Committee.KeyAt(r.ComputorIndex)
	if !ok {
		return cm.Validationf("revenues", "no computors cached")
	}
	if r.Epoch < epoch {
		return cm.Validationf("revenues", "epoch %d older than %d", r.Epoch, epoch)
	}
	if !r.Verify(p.env.Verifier, key) {
		return cm.Validationf("revenues", "bad signature from computor %d", r.ComputorIndex)
	}
	return nil
}
