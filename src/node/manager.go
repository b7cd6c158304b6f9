package node

import (
	"context"
	"math/rand"
	gonet "net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/qubicnet/qgossip/src/committee"
	cm "github.com/qubicnet/qgossip/src/common"
	"github.com/qubicnet/qgossip/src/events"
	"github.com/qubicnet/qgossip/src/net"
	"github.com/qubicnet/qgossip/src/store"
	"github.com/qubicnet/qgossip/src/trust"
	"github.com/qubicnet/qgossip/src/wire"
)

// ErrAlreadyStarted is returned by Start on a manager that was started or
// stopped before.
var ErrAlreadyStarted = errors.New("manager already started")

// Manager owns the peer set. It bounds the number of concurrent connections,
// keeps the mesh alive by redialing known IPs when it shrinks, relays accepted
// frames between peers and periodically re-announces the cached committee.
type Manager struct {
	net.StateMachine

	conf   *Config
	logger *logrus.Entry

	registry  *Registry
	committee *committee.State
	validator trust.Validator
	store     store.Store
	bus       *events.Bus
	stream    net.StreamLayer
	env       *net.Env
	metrics   *Metrics
	seen      *seenCache

	sem     *semaphore.Weighted
	waiting int32

	ctx    context.Context
	cancel context.CancelFunc

	// spawnLock orders the Closed transition against new goroutines so none
	// is started after Stop began waiting.
	spawnLock sync.RWMutex

	statusLog rate.Sometimes
	// start is the Unix time in nanoseconds at which Start ran, 0 before.
	start int64
}

// NewManager ...
func NewManager(conf *Config,
	committeeState *committee.State,
	validator trust.Validator,
	s store.Store,
	bus *events.Bus,
	stream net.StreamLayer,
) *Manager {
	if conf.Logger == nil {
		conf.Logger = logrus.New()
	}
	maxPeers := conf.MaxPeers
	if maxPeers <= 0 {
		maxPeers = 1
	}

	logger := conf.Logger.WithField("prefix", "network")
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		conf:      conf,
		logger:    logger,
		registry:  NewRegistry(),
		committee: committeeState,
		validator: validator,
		store:     s,
		bus:       bus,
		stream:    stream,
		metrics:   NewMetrics("qgossip"),
		seen:      newSeenCache(conf.RelayCacheSize),
		sem:       semaphore.NewWeighted(int64(maxPeers)),
		ctx:       ctx,
		cancel:    cancel,
		statusLog: rate.Sometimes{Interval: 10 * time.Second},
	}

	m.env = &net.Env{
		Config: net.Config{
			Port:           conf.Port,
			Protocol:       conf.Protocol,
			ConnectTimeout: conf.ConnectTimeout,
			ReadTimeout:    conf.ReadTimeout,
			WriteTimeout:   conf.ReadTimeout,
			QueueSize:      conf.SendQueueSize,
		},
		Host:      m,
		Committee: committeeState,
		Verifier:  validator,
		Bus:       bus,
		Stream:    stream,
		Logger:    logger,
	}

	return m
}

// Registry ...
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Metrics ...
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Committee ...
func (m *Manager) Committee() *committee.State {
	return m.committee
}

// Validator ...
func (m *Manager) Validator() trust.Validator {
	return m.validator
}

// Start merges the persisted pool with the bootstrap list, dials every known
// IP, starts accepting inbound connections if the stream layer listens, and
// launches the background loops.
func (m *Manager) Start() error {
	if !m.TransitionState(net.None, net.Connecting) {
		return ErrAlreadyStarted
	}
	atomic.StoreInt64(&m.start, time.Now().UnixNano())

	m.registry.AddIPs(m.conf.Bootstrap)
	if m.store != nil {
		ips, err := m.store.LoadPeers()
		switch {
		case err == nil:
			m.registry.AddIPs(ips)
		case cm.IsStore(err, cm.KeyNotFound):
		default:
			m.logger.WithError(err).Warn("Ignoring persisted peers")
		}
	}

	known := m.registry.Known()
	m.logger.WithFields(logrus.Fields{
		"known":     len(known),
		"max_peers": m.conf.MaxPeers,
	}).Info("Connecting")

	for _, ip := range known {
		m.Dial(ip)
	}

	if l, ok := m.stream.(net.ListenerStreamLayer); ok && l.Listening() {
		m.logger.WithField("addr", l.Addr()).Info("Accepting inbound connections")
		m.spawn(func() { m.listen(l) })
	}

	if !m.TransitionState(net.Connecting, net.Connected) {
		return nil
	}

	m.spawn(func() { m.loop(m.conf.LoopInterval, m.heal) })
	m.spawn(func() { m.loop(m.conf.ReannounceInterval, m.reannounce) })

	return nil
}

// Run starts the manager and blocks until ctx is done, then stops it.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-m.ctx.Done():
	}
	return m.Stop()
}

// Stop closes every peer, waits for all goroutines and persists the known
// pool. Calling it again does nothing.
func (m *Manager) Stop() error {
	m.spawnLock.Lock()
	if m.GetState() == net.Closed {
		m.spawnLock.Unlock()
		return nil
	}
	m.SetState(net.Closed)
	m.spawnLock.Unlock()

	m.logger.Debug("Stopping")

	m.cancel()

	if l, ok := m.stream.(net.ListenerStreamLayer); ok && l.Listening() {
		l.Close()
	}

	var g errgroup.Group
	for _, p := range m.registry.Peers() {
		p := p
		g.Go(func() error {
			p.Stop()
			return nil
		})
	}
	g.Wait()

	m.WaitRoutines()

	if m.store != nil {
		if err := m.store.SavePeers(m.registry.Pool()); err != nil {
			return errors.Wrap(err, "persisting peers")
		}
	}

	m.logger.Info("Stopped")
	return nil
}

// spawn runs f in a tracked goroutine unless the manager is closed.
func (m *Manager) spawn(f func()) bool {
	m.spawnLock.RLock()
	defer m.spawnLock.RUnlock()

	if m.GetState() == net.Closed {
		return false
	}
	m.GoFunc(f)
	return true
}

// Dial schedules ConnectToPeer(ip) in the background.
func (m *Manager) Dial(ip string) {
	m.spawn(func() { m.ConnectToPeer(ip) })
}

// ConnectToPeer dials ip and serves the connection until it ends. Invalid IPs
// and IPs that are already active or forgotten are ignored. The call holds
// one of the MaxPeers slots for as long as the peer lives.
func (m *Manager) ConnectToPeer(ip string) {
	if !wire.IsValidIP(ip) {
		m.logger.WithField("ip", ip).Debug("Ignoring invalid IP")
		return
	}
	if m.GetState() == net.Closed {
		return
	}
	if !m.registry.Activate(ip) {
		return
	}

	atomic.AddInt32(&m.waiting, 1)
	err := m.sem.Acquire(m.ctx, 1)
	atomic.AddInt32(&m.waiting, -1)
	if err != nil {
		m.registry.Remove(ip, nil)
		return
	}
	defer m.sem.Release(1)

	p := net.NewPeer(ip, m.env)
	if !m.registry.Attach(ip, p) {
		return
	}

	err = p.Connect(m.ctx)
	m.settle(p, err)
}

// listen accepts inbound connections until the stream layer is closed.
func (m *Manager) listen(l net.ListenerStreamLayer) {
	for {
		conn, err := l.Accept()
		if err != nil {
			if m.GetState() == net.Closed {
				return
			}
			m.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		m.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("Accepted connection")

		if !m.spawn(func() { m.acceptPeer(conn) }) {
			conn.Close()
			return
		}
	}
}

// acceptPeer serves an inbound connection. It is refused when no slot is
// free or when the remote IP is active or forgotten.
func (m *Manager) acceptPeer(conn gonet.Conn) {
	host, _, err := gonet.SplitHostPort(conn.RemoteAddr().String())
	if err != nil || !wire.IsValidIP(host) {
		conn.Close()
		return
	}
	if !m.sem.TryAcquire(1) {
		m.logger.WithField("ip", host).Debug("Refusing inbound connection, no free slot")
		conn.Close()
		return
	}
	defer m.sem.Release(1)

	if !m.registry.Activate(host) {
		m.logger.WithField("ip", host).Debug("Refusing inbound connection")
		conn.Close()
		return
	}

	p := net.NewPeer(host, m.env)
	if !m.registry.Attach(host, p) {
		conn.Close()
		return
	}

	err = p.Accept(m.ctx, conn)
	m.settle(p, err)
}

// settle updates the registry once a peer terminated. Dial, handshake and
// format failures of outbound peers get the IP forgotten. Everything else
// returns it to the known pool.
func (m *Manager) settle(p *net.Peer, err error) {
	reason := errReason(err)
	m.metrics.PeerOutcomes.WithLabelValues(reason).Inc()

	logger := m.logger.WithFields(logrus.Fields{
		"ip":      p.IP(),
		"inbound": p.Inbound(),
		"reason":  reason,
	})

	forget := !p.Inbound() &&
		(cm.IsNet(err, cm.DialError) ||
			cm.IsNet(err, cm.HandshakeError) ||
			cm.IsNet(err, cm.FormatError))

	if m.GetState() == net.Closed || !forget {
		m.registry.Remove(p.IP(), p)
		logger.WithField("error", err).Debug("Peer disconnected")
		return
	}

	m.registry.Forget(p.IP(), p)
	logger.WithField("error", err).Warn("Forgetting peer")
}

// SamplePeers implements net.Host.
func (m *Manager) SamplePeers(n int, exclude string) []string {
	return m.registry.Sample(n, exclude)
}

// AddIPs implements net.Host. Newly learned IPs are dialed right away.
func (m *Manager) AddIPs(ips []string) {
	for _, ip := range m.registry.AddIPs(ips) {
		m.logger.WithField("ip", ip).Debug("Learned new peer")
		m.Dial(ip)
	}
}

// Relay implements net.Host. The frame is queued on every connected peer but
// from and never waits for a write. A peer whose queue is full misses the
// frame. A frame relayed before, as long as it is remembered by the seen
// cache, is not relayed again.
func (m *Manager) Relay(frame []byte, from *net.Peer) {
	if m.seen != nil && !m.seen.Add(m.validator.Hash(frame)) {
		m.metrics.RelaySuppressed.Inc()
		return
	}

	for _, p := range m.registry.Peers() {
		if p == from || p.GetState() != net.Connected {
			continue
		}
		if !p.Enqueue(frame) {
			m.metrics.RelayDropped.Inc()
			m.logger.WithField("ip", p.IP()).Debug("Outbound queue full, dropping relayed frame")
			continue
		}
		m.metrics.FramesRelayed.Inc()
	}
}

// Observe implements net.Host.
func (m *Manager) Observe(t wire.MessageType, err error) {
	m.metrics.observeFrame(t, err)
	if t == wire.TypeBroadcastComputors && err == nil {
		if epoch, ok := m.committee.Epoch(); ok {
			m.metrics.CommitteeEpoch.Set(float64(epoch))
		}
	}
}

// Counts returns the number of peers exchanging frames and the number of
// dials waiting for a slot or in progress.
func (m *Manager) Counts() (connected, pending int) {
	pending = int(atomic.LoadInt32(&m.waiting))
	for _, p := range m.registry.Peers() {
		switch p.GetState() {
		case net.Connected:
			connected++
		case net.None, net.Connecting:
			pending++
		}
	}
	return connected, pending
}

// Connected returns the IPs of the peers exchanging frames.
func (m *Manager) Connected() []string {
	res := []string{}
	for _, p := range m.registry.Peers() {
		if p.GetState() == net.Connected {
			res = append(res, p.IP())
		}
	}
	return res
}

func (m *Manager) loop(interval time.Duration, f func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f()
		case <-m.ctx.Done():
			return
		}
	}
}

// heal redials the known pool when the mesh has shrunk to two peers or fewer
// and nothing is being dialed. Forgotten IPs are folded back in when the pool
// itself is nearly empty.
func (m *Manager) heal() {
	connected, pending := m.Counts()
	active, known, forgotten := m.registry.Counts()

	m.metrics.ConnectedPeers.Set(float64(connected))
	m.metrics.PendingDials.Set(float64(pending))
	m.metrics.RegistrySize.WithLabelValues(Active.String()).Set(float64(active))
	m.metrics.RegistrySize.WithLabelValues(Known.String()).Set(float64(known))
	m.metrics.RegistrySize.WithLabelValues(Forgotten.String()).Set(float64(forgotten))

	m.statusLog.Do(func() {
		m.logger.WithFields(logrus.Fields{
			"connected": connected,
			"pending":   pending,
			"known":     active + known,
			"forgotten": forgotten,
		}).Info("Network status")
	})

	if connected > 2 || pending > 0 {
		return
	}

	if n := m.registry.Restore(); n > 0 {
		m.logger.WithField("restored", n).Info("Restoring forgotten peers")
	}

	ips := m.registry.Known()
	rand.Shuffle(len(ips), func(i, j int) { ips[i], ips[j] = ips[j], ips[i] })
	for _, ip := range ips {
		m.Dial(ip)
	}
}

// reannounce publishes the cached committee again so that subscribers which
// missed the original update eventually see it.
func (m *Manager) reannounce() {
	c := m.committee.Current()
	if c == nil {
		return
	}
	m.logger.WithField("epoch", c.Epoch).Debug("Re-announcing computors")
	m.bus.Publish(events.Event{
		Kind:       events.ComputorsUpdated,
		Payload:    c,
		Reannounce: true,
	})
}

// GetStats returns stats
func (m *Manager) GetStats() map[string]string {
	connected, pending := m.Counts()
	active, known, forgotten := m.registry.Counts()

	epoch := "none"
	if e, ok := m.committee.Epoch(); ok {
		epoch = strconv.Itoa(int(e))
	}

	uptime := time.Duration(0)
	if start := atomic.LoadInt64(&m.start); start != 0 {
		uptime = time.Since(time.Unix(0, start)).Round(time.Second)
	}

	queued := 0
	for _, p := range m.registry.Peers() {
		queued += p.Queued()
	}

	return map[string]string{
		"state":      m.GetState().String(),
		"connected":  strconv.Itoa(connected),
		"pending":    strconv.Itoa(pending),
		"active":     strconv.Itoa(active),
		"known":      strconv.Itoa(known),
		"forgotten":  strconv.Itoa(forgotten),
		"epoch":      epoch,
		"max_peers":  strconv.Itoa(m.conf.MaxPeers),
		"protocol":   strconv.Itoa(int(m.conf.Protocol)),
		"uptime":     uptime.String(),
		"queued":     strconv.Itoa(queued),
		"goroutines": strconv.Itoa(m.RoutineCount()),
	}
}
