package net

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/qubicnet/qgossip/src/committee"
	cm "github.com/qubicnet/qgossip/src/common"
	"github.com/qubicnet/qgossip/src/events"
	"github.com/qubicnet/qgossip/src/wire"
)

const (
	bufSize = 64 * 1024

	// DefaultQueueSize is the outbound queue length used when Config leaves
	// it unset.
	DefaultQueueSize = 256
)

var (
	// ErrPeerClosed is returned when sending through a peer that is not
	// connected.
	ErrPeerClosed = errors.New("peer closed")
	// errEmptySend marks a Send with nothing to write, which disconnects.
	errEmptySend = errors.New("empty send")
)

// Config holds the settings shared by every peer.
type Config struct {
	Port           int
	Protocol       uint16
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// QueueSize bounds the frames waiting for the writer goroutine.
	QueueSize int
}

// Host is the owner of a set of peers.
type Host interface {
	// SamplePeers returns up to n random known addresses, never exclude.
	SamplePeers(n int, exclude string) []string
	// AddIPs hands addresses learned from a peer to the owner.
	AddIPs(ips []string)
	// Relay forwards an accepted frame to every other peer.
	Relay(frame []byte, from *Peer)
	// Observe records the outcome of handling one frame.
	Observe(t wire.MessageType, err error)
}

// Env groups the collaborators a peer works with.
type Env struct {
	Config    Config
	Host      Host
	Committee *committee.State
	Verifier  wire.Verifier
	Bus       *events.Bus
	Stream    StreamLayer
	Logger    *logrus.Entry
}

// Peer is one gossip connection. It is used once: after Closed it is
// discarded.
type Peer struct {
	StateMachine

	ip      string
	session string
	inbound bool
	env     *Env
	logger  *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	// connLock guards conn, the None to Connecting step and teardown.
	connLock  sync.Mutex
	conn      net.Conn
	r         *bufio.Reader
	w         *bufio.Writer
	running   bool
	done      chan struct{}
	closeOnce sync.Once

	writeLock sync.Mutex
	out       chan []byte
}

// NewPeer ...
func NewPeer(ip string, env *Env) *Peer {
	ctx, cancel := context.WithCancel(context.Background())
	session := uuid.New().String()
	queueSize := env.Config.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Peer{
		ip:      ip,
		session: session,
		env:     env,
		logger: env.Logger.WithFields(logrus.Fields{
			"ip":      ip,
			"session": session[:8],
		}),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		out:    make(chan []byte, queueSize),
	}
}

// IP ...
func (p *Peer) IP() string {
	return p.ip
}

// Session is a random id distinguishing successive connections to one IP.
func (p *Peer) Session() string {
	return p.session
}

// Inbound reports whether the remote side opened the connection.
func (p *Peer) Inbound() bool {
	return p.inbound
}

// String ...
func (p *Peer) String() string {
	return fmt.Sprintf("%s(%s)", p.ip, p.GetState())
}

// Connect dials the peer, sends the handshake and reads frames until the
// connection ends. It returns the error that ended it, classified as a
// common.NetErr. Cancelling ctx closes the peer.
func (p *Peer) Connect(ctx context.Context) error {
	if !p.begin() {
		return cm.NewNetErr("connect", cm.ConnectionError, ErrPeerClosed)
	}
	defer close(p.done)
	defer p.teardown()

	stop := context.AfterFunc(ctx, func() { p.teardown() })
	defer stop()

	address := net.JoinHostPort(p.ip, strconv.Itoa(p.env.Config.Port))
	conn, err := p.env.Stream.Dial(p.ctx, address, p.env.Config.ConnectTimeout)
	if err != nil {
		return cm.NewNetErr("dial", cm.DialError, err)
	}
	if !p.attach(conn) {
		return cm.NewNetErr("dial", cm.ConnectionError, ErrPeerClosed)
	}

	p.logger.Debug("Connected")

	return p.serve()
}

// Accept adopts a connection opened by the remote side and serves it like
// Connect does after dialing.
func (p *Peer) Accept(ctx context.Context, conn net.Conn) error {
	p.inbound = true
	if !p.begin() {
		conn.Close()
		return cm.NewNetErr("accept", cm.ConnectionError, ErrPeerClosed)
	}
	defer close(p.done)
	defer p.teardown()

	stop := context.AfterFunc(ctx, func() { p.teardown() })
	defer stop()

	if !p.attach(conn) {
		return cm.NewNetErr("accept", cm.ConnectionError, ErrPeerClosed)
	}

	p.logger.Debug("Accepted")

	return p.serve()
}

// Stop closes the connection and waits for the read loop and every goroutine
// the peer started. It can be called any number of times.
func (p *Peer) Stop() {
	if p.teardown() {
		<-p.done
	}
	p.WaitRoutines()
}

// Send writes a complete frame. An empty frame disconnects the peer, as does
// any write error.
func (p *Peer) Send(frame []byte) error {
	if len(frame) == 0 {
		p.teardown()
		return cm.NewNetErr("send", cm.ConnectionError, errEmptySend)
	}
	if p.GetState() != Connected {
		return ErrPeerClosed
	}
	if err := p.write(frame); err != nil {
		p.teardown()
		return cm.NewNetErr("send", cm.ConnectionError, err)
	}
	return nil
}

// Enqueue hands frame to the writer goroutine without blocking. It returns
// false, and the frame is dropped, when the peer is not connected or its
// queue is full. An empty frame disconnects the peer.
func (p *Peer) Enqueue(frame []byte) bool {
	if len(frame) == 0 {
		p.teardown()
		return false
	}
	if p.GetState() != Connected {
		return false
	}
	select {
	case p.out <- frame:
		return true
	default:
		return false
	}
}

// Queued is the number of frames waiting for the writer goroutine.
func (p *Peer) Queued() int {
	return len(p.out)
}

// writeLoop drains the outbound queue until the peer closes. A failed write
// closes the peer, which ends the read loop too.
func (p *Peer) writeLoop() {
	for {
		select {
		case frame := <-p.out:
			if err := p.write(frame); err != nil {
				p.logger.WithError(err).Debug("Write failed")
				p.teardown()
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Peer) write(frame []byte) error {
	p.writeLock.Lock()
	defer p.writeLock.Unlock()

	if p.env.Config.WriteTimeout > 0 {
		p.conn.SetWriteDeadline(time.Now().Add(p.env.Config.WriteTimeout))
	}
	if _, err := p.w.Write(frame); err != nil {
		return err
	}
	return p.w.Flush()
}

// begin moves None to Connecting. It fails if the peer was already used or
// stopped.
func (p *Peer) begin() bool {
	p.connLock.Lock()
	defer p.connLock.Unlock()

	if !p.TransitionState(None, Connecting) {
		return false
	}
	p.running = true
	return true
}

func (p *Peer) attach(conn net.Conn) bool {
	p.connLock.Lock()
	defer p.connLock.Unlock()

	if p.GetState() == Closed {
		conn.Close()
		return false
	}
	p.conn = conn
	p.r = bufio.NewReaderSize(conn, bufSize)
	p.w = bufio.NewWriterSize(conn, bufSize)
	return true
}

// teardown closes the peer and reports whether a Connect or Accept call is
// running for it. Only the first call does anything.
func (p *Peer) teardown() bool {
	p.connLock.Lock()
	defer p.connLock.Unlock()

	p.closeOnce.Do(func() {
		p.SetState(Closed)
		p.cancel()
		if p.conn != nil {
			p.conn.Close()
		}
	})
	return p.running
}

// serve runs the handshake and the read loop. A panic anywhere below is
// turned into a ConnectionError.
func (p *Peer) serve() (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("panic", r).Error("Peer panicked")
			err = cm.NewNetErr("serve", cm.ConnectionError, errors.Errorf("panic: %v", r))
		}
	}()

	if !p.TransitionState(Connecting, Connected) {
		return cm.NewNetErr("serve", cm.ConnectionError, ErrPeerClosed)
	}

	if err := p.handshake(); err != nil {
		return err
	}

	p.GoFunc(p.writeLoop)

	return p.readLoop()
}

// handshake shares a sample of known addresses and asks for the committee
// roster when none is cached.
func (p *Peer) handshake() error {
	protocol := p.env.Config.Protocol

	ips := p.env.Host.SamplePeers(wire.NumberOfExchangedPeers, p.ip)
	frame := wire.NewFrame(wire.TypeExchangePublicPeers, protocol, wire.NewExchangePublicPeers(ips).Bytes())

	if _, ok := p.env.Committee.Epoch(); !ok {
		frame = append(frame, wire.NewFrame(wire.TypeRequestComputors, protocol, nil)...)
	}

	if err := p.write(frame); err != nil {
		return cm.NewNetErr("handshake", cm.HandshakeError, err)
	}
	return nil
}

func (p *Peer) readLoop() error {
	for {
		h, frame, err := p.readFrame()
		if err != nil {
			return err
		}

		err = p.handle(h, frame)
		p.env.Host.Observe(h.Type, err)

		switch {
		case err == nil:
		case cm.IsNet(err, cm.ValidationError):
			p.logger.WithFields(logrus.Fields{
				"type":  h.Type,
				"error": err,
			}).Warn("Dropped message")
		default:
			return err
		}
	}
}

// readFrame reads one complete frame, header included.
func (p *Peer) readFrame() (wire.Header, []byte, error) {
	var hdr [wire.HeaderSize]byte
	if err := p.readFull(hdr[:]); err != nil {
		return wire.Header{}, nil, cm.NewNetErr("read header", cm.ConnectionError, err)
	}

	h, err := wire.DecodeHeader(hdr[:])
	if err != nil {
		return h, nil, err
	}
	if !wire.HeaderIsAcceptable(h, p.env.Config.Protocol) {
		return h, nil, cm.Formatf("read header", "unacceptable header %+v", h)
	}
	if h.Size < wire.HeaderSize || h.Size > wire.MaxFrameSize {
		return h, nil, cm.Formatf("read header", "frame size %d out of bounds", h.Size)
	}

	frame := make([]byte, h.Size)
	copy(frame, hdr[:])
	if err := p.readFull(frame[wire.HeaderSize:]); err != nil {
		return h, nil, cm.NewNetErr("read payload", cm.ConnectionError, err)
	}
	return h, frame, nil
}

func (p *Peer) readFull(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if p.env.Config.ReadTimeout > 0 {
		p.conn.SetReadDeadline(time.Now().Add(p.env.Config.ReadTimeout))
	}
	_, err := io.ReadFull(p.r, b)
	return err
}
