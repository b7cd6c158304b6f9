package net

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubicnet/qgossip/src/committee"
	cm "github.com/qubicnet/qgossip/src/common"
	"github.com/qubicnet/qgossip/src/events"
	"github.com/qubicnet/qgossip/src/store"
	"github.com/qubicnet/qgossip/src/trust"
	"github.com/qubicnet/qgossip/src/wire"
)

const testProtocol = 170

var adminKey = [wire.KeySize]byte{0xad, 0x0a}

type fakeHost struct {
	mu       sync.Mutex
	added    []string
	observed []error
	relayed  chan []byte
}

func newFakeHost() *fakeHost {
	return &fakeHost{relayed: make(chan []byte, 16)}
}

func (h *fakeHost) SamplePeers(n int, exclude string) []string {
	return []string{"1.2.3.4", "5.6.7.8"}
}

func (h *fakeHost) AddIPs(ips []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.added = append(h.added, ips...)
}

func (h *fakeHost) Relay(frame []byte, from *Peer) {
	h.relayed <- frame
}

func (h *fakeHost) Observe(t wire.MessageType, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observed = append(h.observed, err)
}

func (h *fakeHost) addedIPs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.added...)
}

// fixedStream dials the same address whatever the requested one.
type fixedStream struct {
	addr string
}

func (s *fixedStream) Dial(ctx context.Context, address string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", s.addr)
}

type harness struct {
	t         *testing.T
	env       *Env
	host      *fakeHost
	events    chan events.Event
	validator *trust.MockValidator
	computors *wire.Computors
	ln        *net.TCPListener
}

func testComputors(v *trust.MockValidator, epoch uint16) *wire.Computors {
	c := &wire.Computors{Epoch: epoch}
	for i := range c.PublicKeys {
		c.PublicKeys[i][0] = byte(i)
		c.PublicKeys[i][1] = byte(i >> 8)
		c.PublicKeys[i][2] = 1
	}
	c.Signature = v.Sign(adminKey, c.Digest(v))
	return c
}

func newHarness(t *testing.T, withCommittee bool) *harness {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	logger := cm.NewTestEntry(t, cm.TestLogLevel)
	v := trust.NewMockValidator()

	st := committee.NewState(adminKey, v, store.NewInmemStore(), logger)
	c := testComputors(v, 100)
	if withCommittee {
		require.NoError(t, st.Apply(c))
	}

	bus := events.NewBus(logger)
	evs := make(chan events.Event, 16)
	bus.Subscribe(func(ev events.Event) { evs <- ev })

	host := newFakeHost()

	return &harness{
		t: t,
		env: &Env{
			Config: Config{
				Port:           21841,
				Protocol:       testProtocol,
				ConnectTimeout: time.Second,
				ReadTimeout:    5 * time.Second,
				WriteTimeout:   time.Second,
			},
			Host:      host,
			Committee: st,
			Verifier:  v,
			Bus:       bus,
			Stream:    &fixedStream{addr: ln.Addr().String()},
			Logger:    logger,
		},
		host:      host,
		events:    evs,
		validator: v,
		computors: c,
		ln:        ln.(*net.TCPListener),
	}
}

// connect runs p.Connect in the background and returns the remote end of the
// connection.
func (h *harness) connect(p *Peer) (net.Conn, chan error) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Connect(context.Background())
	}()

	h.ln.SetDeadline(time.Now().Add(5 * time.Second))
	conn, err := h.ln.Accept()
	require.NoError(h.t, err)
	h.t.Cleanup(func() { conn.Close() })
	return conn, errCh
}

func readRemoteFrame(t *testing.T, conn net.Conn) (wire.Header, []byte) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	hdr := make([]byte, wire.HeaderSize)
	_, err := io.ReadFull(conn, hdr)
	require.NoError(t, err)

	h, err := wire.DecodeHeader(hdr)
	require.NoError(t, err)

	payload := make([]byte, h.PayloadSize())
	_, err = io.ReadFull(conn, payload)
	require.NoError(t, err)
	return h, payload
}

func writeRemote(t *testing.T, conn net.Conn, frame []byte) {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := conn.Write(frame)
	require.NoError(t, err)
}

func waitErr(t *testing.T, errCh chan error) error {
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("peer did not terminate")
		return nil
	}
}

func waitEvent(t *testing.T, evs chan events.Event) events.Event {
	select {
	case ev := <-evs:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event published")
		return events.Event{}
	}
}

func (h *harness) signedTick(index uint16, hour uint8) *wire.Tick {
	tick := &wire.Tick{
		ComputorIndex: index,
		Epoch:         h.computors.Epoch,
		Tick:          4242,
		Hour:          hour,
		Minute:        59,
		Second:        1,
		Millisecond:   999,
	}
	tick.Signature = h.validator.Sign(h.computors.PublicKeys[index], tick.Digest(h.validator))
	return tick
}

func (h *harness) signedRevenues(index uint16, value uint32) *wire.Revenues {
	r := &wire.Revenues{ComputorIndex: index, Epoch: h.computors.Epoch}
	for i := range r.Values {
		r.Values[i] = value
	}
	r.Signature = h.validator.Sign(h.computors.PublicKeys[index], r.Digest(h.validator))
	return r
}

func TestPeerHandshakeRequestsComputors(t *testing.T) {
	h := newHarness(t, false)
	p := NewPeer("10.0.0.1", h.env)

	conn, errCh := h.connect(p)

	hdr, payload := readRemoteFrame(t, conn)
	assert.Equal(t, wire.TypeExchangePublicPeers, hdr.Type)
	assert.Equal(t, uint16(testProtocol), hdr.Protocol)
	e, err := wire.DecodeExchangePublicPeers(payload)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3.4", "5.6.7.8"}, e.IPs())

	hdr, payload = readRemoteFrame(t, conn)
	assert.Equal(t, wire.TypeRequestComputors, hdr.Type)
	assert.Equal(t, uint32(wire.HeaderSize), hdr.Size)
	assert.Empty(t, payload)

	assert.Equal(t, Connected, p.GetState())

	p.Stop()
	waitErr(t, errCh)
	assert.Equal(t, Closed, p.GetState())
	assert.Equal(t, 0, p.RoutineCount())
}

func TestPeerAnswersRequestComputors(t *testing.T) {
	h := newHarness(t, true)
	p := NewPeer("10.0.0.1", h.env)
	defer p.Stop()

	conn, _ := h.connect(p)

	hdr, _ := readRemoteFrame(t, conn)
	require.Equal(t, wire.TypeExchangePublicPeers, hdr.Type)

	writeRemote(t, conn, wire.NewFrame(wire.TypeRequestComputors, testProtocol, nil))

	hdr, payload := readRemoteFrame(t, conn)
	require.Equal(t, wire.TypeBroadcastComputors, hdr.Type)
	c, err := wire.DecodeComputors(payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), c.Epoch)

	assert.Len(t, h.host.relayed, 0)
}

func TestPeerTickValidation(t *testing.T) {
	h := newHarness(t, true)
	p := NewPeer("10.0.0.1", h.env)
	defer p.Stop()

	conn, _ := h.connect(p)
	readRemoteFrame(t, conn)

	bad := wire.NewFrame(wire.TypeBroadcastTick, testProtocol, h.signedTick(7, 24).Bytes())
	good := wire.NewFrame(wire.TypeBroadcastTick, testProtocol, h.signedTick(7, 23).Bytes())

	forged := h.signedTick(8, 23)
	forged.Signature[0] ^= 1
	forgedFrame := wire.NewFrame(wire.TypeBroadcastTick, testProtocol, forged.Bytes())

	writeRemote(t, conn, bad)
	writeRemote(t, conn, forgedFrame)
	writeRemote(t, conn, good)

	ev := waitEvent(t, h.events)
	require.Equal(t, events.TickObserved, ev.Kind)
	assert.Equal(t, "10.0.0.1", ev.Source)
	tick := ev.Payload.(*wire.Tick)
	assert.Equal(t, uint8(23), tick.Hour)
	assert.Equal(t, uint16(7), tick.ComputorIndex)

	select {
	case relayed := <-h.host.relayed:
		assert.Equal(t, good, relayed)
	case <-time.After(5 * time.Second):
		t.Fatal("frame not relayed")
	}
	assert.Len(t, h.host.relayed, 0)
	assert.Equal(t, Connected, p.GetState())
}

func TestPeerRevenuesOverMaximumRejected(t *testing.T) {
	h := newHarness(t, true)
	p := NewPeer("10.0.0.1", h.env)
	defer p.Stop()

	conn, _ := h.connect(p)
	readRemoteFrame(t, conn)

	over := wire.NewFrame(wire.TypeBroadcastRevenues, testProtocol,
		h.signedRevenues(3, uint32(wire.MaxRevenue)+1).Bytes())
	ok := wire.NewFrame(wire.TypeBroadcastRevenues, testProtocol,
		h.signedRevenues(3, uint32(wire.MaxRevenue)).Bytes())

	writeRemote(t, conn, over)
	writeRemote(t, conn, ok)

	ev := waitEvent(t, h.events)
	require.Equal(t, events.RevenuesObserved, ev.Kind)
	assert.Equal(t, uint32(wire.MaxRevenue), ev.Payload.(*wire.Revenues).Values[0])

	relayed := <-h.host.relayed
	assert.Equal(t, ok, relayed)
}

func TestPeerRevenuesNeedCommittee(t *testing.T) {
	h := newHarness(t, false)
	p := NewPeer("10.0.0.1", h.env)
	defer p.Stop()

	conn, _ := h.connect(p)
	readRemoteFrame(t, conn)
	readRemoteFrame(t, conn)

	writeRemote(t, conn, wire.NewFrame(wire.TypeBroadcastRevenues, testProtocol, h.signedRevenues(3, 1).Bytes()))
	// the connection survives the rejection and keeps reading
	solution := &wire.ResourceTestingSolution{}
	solution.PublicKey[0] = 1
	writeRemote(t, conn, wire.NewFrame(wire.TypeBroadcastResourceTestingSolution, testProtocol, solution.Bytes()))

	ev := waitEvent(t, h.events)
	assert.Equal(t, events.ResourceTestingSolutionObserved, ev.Kind)
}

func TestPeerComputorsBroadcast(t *testing.T) {
	h := newHarness(t, false)
	p := NewPeer("10.0.0.1", h.env)
	defer p.Stop()

	conn, _ := h.connect(p)
	readRemoteFrame(t, conn)
	readRemoteFrame(t, conn)

	frame := h.computors.Frame(testProtocol)
	writeRemote(t, conn, frame)

	ev := waitEvent(t, h.events)
	require.Equal(t, events.ComputorsUpdated, ev.Kind)
	assert.False(t, ev.Reannounce)

	epoch, ok := h.env.Committee.Epoch()
	require.True(t, ok)
	assert.Equal(t, uint16(100), epoch)
	assert.Equal(t, frame, <-h.host.relayed)

	// a replay of the same epoch is stale and not relayed again
	writeRemote(t, conn, frame)
	writeRemote(t, conn, wire.NewFrame(wire.TypeRequestComputors, testProtocol, nil))
	hdr, _ := readRemoteFrame(t, conn)
	assert.Equal(t, wire.TypeBroadcastComputors, hdr.Type)
	assert.Len(t, h.host.relayed, 0)
}

func TestPeerExchangePublicPeers(t *testing.T) {
	h := newHarness(t, true)
	p := NewPeer("10.0.0.1", h.env)
	defer p.Stop()

	conn, _ := h.connect(p)
	readRemoteFrame(t, conn)

	e := wire.NewExchangePublicPeers([]string{"9.9.9.9", "8.8.4.4"})
	writeRemote(t, conn, wire.NewFrame(wire.TypeExchangePublicPeers, testProtocol, e.Bytes()))

	ev := waitEvent(t, h.events)
	require.Equal(t, events.PeerListObserved, ev.Kind)
	assert.Equal(t, []string{"9.9.9.9", "8.8.4.4"}, ev.Payload)
	assert.Equal(t, []string{"9.9.9.9", "8.8.4.4"}, h.host.addedIPs())
	assert.Len(t, h.host.relayed, 0)
}

func TestPeerUnacceptableProtocolIsFormatError(t *testing.T) {
	h := newHarness(t, true)
	p := NewPeer("10.0.0.1", h.env)

	conn, errCh := h.connect(p)
	readRemoteFrame(t, conn)

	writeRemote(t, conn, wire.NewFrame(wire.TypeRequestComputors, testProtocol+2, nil))

	err := waitErr(t, errCh)
	assert.True(t, cm.IsNet(err, cm.FormatError), "%v", err)
	assert.Equal(t, Closed, p.GetState())
}

func TestPeerWrongPayloadSizeIsFormatError(t *testing.T) {
	h := newHarness(t, true)
	p := NewPeer("10.0.0.1", h.env)

	conn, errCh := h.connect(p)
	readRemoteFrame(t, conn)

	writeRemote(t, conn, wire.NewFrame(wire.TypeBroadcastTick, testProtocol, make([]byte, 10)))

	err := waitErr(t, errCh)
	assert.True(t, cm.IsNet(err, cm.FormatError), "%v", err)
}

func TestPeerDialFailure(t *testing.T) {
	h := newHarness(t, true)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	h.env.Stream = &fixedStream{addr: addr}

	p := NewPeer("10.0.0.1", h.env)
	err = p.Connect(context.Background())
	assert.True(t, cm.IsNet(err, cm.DialError), "%v", err)
	assert.Equal(t, Closed, p.GetState())
}

func TestPeerReadTimeout(t *testing.T) {
	h := newHarness(t, true)
	h.env.Config.ReadTimeout = 100 * time.Millisecond
	p := NewPeer("10.0.0.1", h.env)

	conn, errCh := h.connect(p)
	readRemoteFrame(t, conn)

	err := waitErr(t, errCh)
	assert.True(t, cm.IsNet(err, cm.ConnectionError), "%v", err)
}

func TestPeerStop(t *testing.T) {
	h := newHarness(t, true)

	// never connected
	idle := NewPeer("10.0.0.2", h.env)
	idle.Stop()
	idle.Stop()
	assert.Equal(t, Closed, idle.GetState())
	assert.Error(t, idle.Connect(context.Background()))

	p := NewPeer("10.0.0.1", h.env)
	conn, errCh := h.connect(p)
	readRemoteFrame(t, conn)

	p.Stop()
	p.Stop()
	waitErr(t, errCh)

	// the socket is closed on our side
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := conn.Read(make([]byte, 1))
	assert.Error(t, err)

	assert.Equal(t, ErrPeerClosed, p.Send([]byte{1}))
}

func TestPeerContextCancel(t *testing.T) {
	h := newHarness(t, true)
	p := NewPeer("10.0.0.1", h.env)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Connect(ctx) }()

	h.ln.SetDeadline(time.Now().Add(5 * time.Second))
	conn, err := h.ln.Accept()
	require.NoError(t, err)
	defer conn.Close()
	readRemoteFrame(t, conn)

	cancel()
	waitErr(t, errCh)
	assert.Equal(t, Closed, p.GetState())
}

func TestPeerSendEmptyDisconnects(t *testing.T) {
	h := newHarness(t, true)
	p := NewPeer("10.0.0.1", h.env)

	conn, errCh := h.connect(p)
	readRemoteFrame(t, conn)

	require.NoError(t, p.Send(wire.NewFrame(wire.TypeRequestComputors, testProtocol, nil)))
	hdr, _ := readRemoteFrame(t, conn)
	assert.Equal(t, wire.TypeRequestComputors, hdr.Type)

	assert.Error(t, p.Send(nil))
	waitErr(t, errCh)
	assert.Equal(t, Closed, p.GetState())
}

func TestPeerAccept(t *testing.T) {
	h := newHarness(t, true)

	client, server := net.Pipe()
	defer client.Close()

	p := NewPeer("10.0.0.9", h.env)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Accept(context.Background(), server) }()

	hdr, _ := readRemoteFrame(t, client)
	assert.Equal(t, wire.TypeExchangePublicPeers, hdr.Type)
	assert.True(t, p.Inbound())

	p.Stop()
	waitErr(t, errCh)
}

func TestPeerRequestComputorsWithPayloadIsFormatError(t *testing.T) {
	h := newHarness(t, true)
	p := NewPeer("10.0.0.1", h.env)

	conn, errCh := h.connect(p)
	readRemoteFrame(t, conn)

	writeRemote(t, conn, wire.NewFrame(wire.TypeRequestComputors, testProtocol, []byte{1, 2, 3, 4}))

	err := waitErr(t, errCh)
	assert.True(t, cm.IsNet(err, cm.FormatError), "%v", err)
	assert.Len(t, h.host.relayed, 0)
}

func TestPeerEnqueue(t *testing.T) {
	h := newHarness(t, true)

	idle := NewPeer("10.0.0.2", h.env)
	assert.False(t, idle.Enqueue([]byte{1}))

	p := NewPeer("10.0.0.1", h.env)
	conn, errCh := h.connect(p)
	readRemoteFrame(t, conn)

	a := wire.NewFrame(wire.TypeRequestComputors, testProtocol, nil)
	b := testSolutionFrame(7)
	require.True(t, p.Enqueue(a))
	require.True(t, p.Enqueue(b))

	hdr, _ := readRemoteFrame(t, conn)
	assert.Equal(t, wire.TypeRequestComputors, hdr.Type)
	hdr, payload := readRemoteFrame(t, conn)
	assert.Equal(t, wire.TypeBroadcastResourceTestingSolution, hdr.Type)
	assert.Equal(t, b[wire.HeaderSize:], payload)

	assert.False(t, p.Enqueue(nil))
	waitErr(t, errCh)
	assert.Equal(t, Closed, p.GetState())
	assert.False(t, p.Enqueue(a))
}

func TestPeerEnqueueStalledRemote(t *testing.T) {
	h := newHarness(t, true)
	h.env.Config.QueueSize = 2
	h.env.Config.WriteTimeout = 300 * time.Millisecond

	client, server := net.Pipe()
	defer client.Close()

	p := NewPeer("10.0.0.9", h.env)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Accept(context.Background(), server) }()

	hdr, _ := readRemoteFrame(t, client)
	require.Equal(t, wire.TypeExchangePublicPeers, hdr.Type)

	// the remote stops reading: one frame blocks in the writer and the
	// queue holds two more
	frame := wire.NewFrame(wire.TypeRequestComputors, testProtocol, nil)
	start := time.Now()
	accepted := 0
	for i := 0; i < 10; i++ {
		if p.Enqueue(frame) {
			accepted++
		}
	}
	assert.True(t, time.Since(start) < 100*time.Millisecond, "Enqueue blocked")
	assert.True(t, accepted >= 2 && accepted <= 3, "accepted %d", accepted)

	// the blocked write times out and closes the peer
	err := waitErr(t, errCh)
	assert.True(t, cm.IsNet(err, cm.ConnectionError), "%v", err)
	p.Stop()
	assert.Equal(t, 0, p.RoutineCount())
}

func testSolutionFrame(seed byte) []byte {
	s := &wire.ResourceTestingSolution{}
	s.PublicKey[0] = seed
	return wire.NewFrame(wire.TypeBroadcastResourceTestingSolution, testProtocol, s.Bytes())
}
