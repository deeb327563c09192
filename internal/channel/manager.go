package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kode4food/runstream/internal/config"
	"github.com/kode4food/runstream/pkg/api"
	"github.com/kode4food/runstream/pkg/log"
)

type (
	// Manager owns the single live connection of a Session. All of its
	// state is confined to the goroutine executing Run
	Manager struct {
		cfg       config.ChannelConfig
		session   *Session
		url       string
		dialer    Dialer
		policy    ReconnectPolicy
		now       Clock
		makeTimer TimerConstructor

		reqs   chan request
		events chan loopEvent
		done   chan struct{}
		ctx    context.Context

		conn    Conn
		gen     uint64
		status  Status
		auto    bool
		timer   Timer
		timerCh <-chan time.Time

		subMu      sync.Mutex
		nextSub    int
		msgSubs    map[int]MessageFunc
		statusSubs map[int]StatusFunc
	}

	// Option configures a Manager
	Option func(*Manager)

	// MessageFunc receives every parsed inbound message
	MessageFunc func(*api.Message)

	// StatusFunc receives every connection status change
	StatusFunc func(Status)

	// State is a snapshot of the Manager's connection bookkeeping
	State struct {
		LastAttempt time.Time
		URL         string
		Status      Status
		Attempts    int
	}

	request struct {
		fn   func()
		done chan struct{}
	}

	eventKind uint8

	loopEvent struct {
		err   error
		conn  Conn
		data  []byte
		token string
		gen   uint64
		kind  eventKind
	}
)

const (
	eventDialed eventKind = iota
	eventFrame
	eventClosed
	eventCredential
)

// ErrNotRunning is returned when a Manager is used after Run has exited
var ErrNotRunning = errors.New("channel manager is not running")

// WithDialer replaces the gorilla/websocket dialer
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dialer = d
	}
}

// WithClock replaces the wall clock used for the connect guard
func WithClock(c Clock) Option {
	return func(m *Manager) {
		m.now = c
	}
}

// WithTimer replaces the reconnect timer constructor
func WithTimer(tc TimerConstructor) Option {
	return func(m *Manager) {
		m.makeTimer = tc
	}
}

// WithPolicy replaces the reconnect policy derived from the config
func WithPolicy(p ReconnectPolicy) Option {
	return func(m *Manager) {
		m.policy = p
	}
}

// NewManager creates a Manager for the channel at the given page origin.
// Run must be started before any other method is called
func NewManager(
	origin string, sess *Session, cfg config.ChannelConfig, opts ...Option,
) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	url, err := ResolveURL(origin)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = NewSession("", nil)
	}

	m := &Manager{
		cfg:        cfg,
		session:    sess,
		url:        url,
		dialer:     NewWebSocketDialer(nil),
		policy:     PolicyFromConfig(cfg),
		now:        time.Now,
		makeTimer:  WallTimer,
		reqs:       make(chan request),
		events:     make(chan loopEvent, 16),
		done:       make(chan struct{}),
		ctx:        context.Background(),
		status:     StatusIdle,
		auto:       cfg.AutoReconnect,
		msgSubs:    map[int]MessageFunc{},
		statusSubs: map[int]StatusFunc{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// URL returns the resolved channel address
func (m *Manager) URL() string {
	return m.url
}

// Run dispatches connection callbacks and caller requests until ctx is
// cancelled, then closes any live connection
func (m *Manager) Run(ctx context.Context) {
	m.ctx = ctx
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case req := <-m.reqs:
			req.fn()
			close(req.done)
		case ev := <-m.events:
			m.handleEvent(ev)
		case <-m.timerCh:
			m.timerCh = nil
			m.reconnect()
		}
	}
}

// Done is closed once Run has exited
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Connect opens a new connection, closing any existing one first. Calls
// arriving within MinConnectInterval of the previous attempt are ignored
// and return false. A successful call resets the attempt counter and
// re-enables automatic reconnection
func (m *Manager) Connect() bool {
	var res bool
	_ = m.do(func() {
		res = m.connect(true)
	})
	return res
}

// Send writes msg to the open connection. It returns false without
// queuing when the channel is not open or the write fails
func (m *Manager) Send(msg *api.Message) bool {
	var res bool
	_ = m.do(func() {
		res = m.write(msg)
	})
	return res
}

// Disconnect cancels any pending reconnect and closes the connection. No
// automatic reconnection happens until Connect is called again
func (m *Manager) Disconnect() {
	_ = m.do(func() {
		m.auto = false
		m.stopTimer()
		m.closeConn()
		m.gen++
		m.setStatus(StatusIdle)
	})
}

// State returns a snapshot of the connection bookkeeping
func (m *Manager) State() (State, error) {
	var res State
	err := m.do(func() {
		res = State{
			LastAttempt: m.session.lastAttempt,
			URL:         m.url,
			Status:      m.status,
			Attempts:    m.session.attempts,
		}
	})
	return res, err
}

// IsOpen reports whether the channel currently has an open connection
func (m *Manager) IsOpen() bool {
	st, err := m.State()
	return err == nil && st.Status == StatusOpen
}

// Subscribe registers fn for inbound messages. fn runs on the Manager's
// loop and must not call back into the Manager
func (m *Manager) Subscribe(fn MessageFunc) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.msgSubs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.msgSubs, id)
	}
}

// Watch registers fn for status changes. fn runs on the Manager's loop and
// must not call back into the Manager
func (m *Manager) Watch(fn StatusFunc) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.statusSubs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.statusSubs, id)
	}
}

func (m *Manager) do(fn func()) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case m.reqs <- req:
	case <-m.done:
		return ErrNotRunning
	}
	<-req.done
	return nil
}

func (m *Manager) post(ev loopEvent) {
	select {
	case m.events <- ev:
	case <-m.done:
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
	}
}

func (m *Manager) connect(manual bool) bool {
	now := m.now()
	last := m.session.lastAttempt
	if manual && !last.IsZero() && now.Sub(last) < m.cfg.MinConnectInterval {
		slog.Debug("Connect suppressed",
			log.URL(m.url),
			slog.Duration("since_last", now.Sub(last)))
		return false
	}

	if manual {
		m.session.attempts = 0
		m.auto = m.cfg.AutoReconnect
		m.stopTimer()
	}

	m.session.lastAttempt = now
	m.closeConn()
	m.gen++
	m.setStatus(StatusConnecting)

	gen := m.gen
	ctx := m.ctx
	go func() {
		conn, err := m.dialer.Dial(ctx, m.url)
		m.post(loopEvent{kind: eventDialed, gen: gen, conn: conn, err: err})
	}()
	return true
}

func (m *Manager) reconnect() {
	slog.Info("Reconnecting channel",
		log.URL(m.url),
		log.Attempt(m.session.attempts))
	m.connect(false)
}

func (m *Manager) handleEvent(ev loopEvent) {
	if ev.gen != m.gen {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return
	}

	switch ev.kind {
	case eventDialed:
		m.handleDialed(ev)
	case eventFrame:
		m.handleFrame(ev.data)
	case eventClosed:
		m.handleClosed(ev.err)
	case eventCredential:
		m.handleCredential(ev)
	}
}

func (m *Manager) handleDialed(ev loopEvent) {
	if ev.err != nil {
		slog.Warn("Channel connect failed",
			log.URL(m.url),
			log.Error(ev.err))
		m.handleClosed(ev.err)
		return
	}

	m.conn = ev.conn
	m.session.attempts = 0
	m.setStatus(StatusOpen)
	slog.Info("Channel open", log.URL(m.url))

	go m.readMessages(ev.gen, ev.conn)
	m.authenticate(ev.gen)
}

func (m *Manager) authenticate(gen uint64) {
	if !m.session.IsAuthenticated() {
		return
	}
	ctx := m.ctx
	tokens := m.session.tokens
	go func() {
		token, err := tokens.Token(ctx)
		m.post(loopEvent{
			kind: eventCredential, gen: gen, token: token, err: err,
		})
	}()
}

func (m *Manager) handleCredential(ev loopEvent) {
	if ev.err != nil {
		slog.Warn("Credential fetch failed",
			log.UserID(m.session.userID),
			log.Error(ev.err))
		return
	}
	if !m.write(api.NewAuthMessage(ev.token, m.session.userID)) {
		slog.Warn("Auth message not sent",
			log.UserID(m.session.userID))
	}
}

func (m *Manager) readMessages(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.post(loopEvent{kind: eventClosed, gen: gen, err: err})
			return
		}
		m.post(loopEvent{kind: eventFrame, gen: gen, data: data})
	}
}

func (m *Manager) handleFrame(data []byte) {
	msg, err := api.ParseMessage(data)
	if err != nil {
		if errors.Is(err, api.ErrUnknownType) {
			slog.Debug("Ignoring channel message", log.Error(err))
			return
		}
		slog.Warn("Dropping malformed channel message", log.Error(err))
		return
	}

	for _, fn := range m.messageSubscribers() {
		fn(msg)
	}
}

func (m *Manager) handleClosed(err error) {
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		slog.Debug("Channel closed", log.URL(m.url), log.Error(err))
	}
	m.setStatus(StatusClosed)
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	if !m.auto {
		return
	}

	if m.session.attempts >= m.cfg.MaxReconnectAttempts {
		m.auto = false
		slog.Warn("Reconnect attempts exhausted",
			log.URL(m.url),
			log.Attempt(m.session.attempts))
		m.setStatus(StatusDisconnected)
		return
	}

	m.session.attempts++
	delay := m.policy.Delay(m.session.attempts)
	m.startTimer(delay)
	slog.Info("Reconnect scheduled",
		log.URL(m.url),
		log.Attempt(m.session.attempts),
		log.Delay(delay))
	m.setStatus(StatusReconnecting)
}

func (m *Manager) write(msg *api.Message) bool {
	if m.conn == nil || m.status != StatusOpen {
		return false
	}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal channel message",
			slog.String("type", string(msg.Type)),
			log.Error(err))
		return false
	}

	_ = m.conn.SetWriteDeadline(m.now().Add(writeWait))
	if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Warn("Channel write failed",
			slog.String("type", string(msg.Type)),
			log.Error(err))
		return false
	}
	return true
}

func (m *Manager) closeConn() {
	if m.conn == nil {
		return
	}
	_ = m.conn.Close()
	m.conn = nil
}

func (m *Manager) startTimer(delay time.Duration) {
	if m.timer == nil {
		m.timer = m.makeTimer(delay)
	} else {
		m.timer.Reset(delay)
	}
	m.timerCh = m.timer.Fired()
}

func (m *Manager) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timerCh = nil
}

func (m *Manager) shutdown() {
	m.auto = false
	m.stopTimer()
	m.closeConn()
	m.gen++
	m.setStatus(StatusIdle)
}

func (m *Manager) setStatus(st Status) {
	if m.status == st {
		return
	}
	m.status = st
	for _, fn := range m.statusSubscribers() {
		fn(st)
	}
}

func (m *Manager) messageSubscribers() []MessageFunc {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	return sortedValues(m.msgSubs)
}

func (m *Manager) statusSubscribers() []StatusFunc {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	return sortedValues(m.statusSubs)
}

func sortedValues[T any](subs map[int]T) []T {
	keys := slices.Sorted(maps.Keys(subs))
	res := make([]T, len(keys))
	for i, k := range keys {
		res[i] = subs[k]
	}
	return res
}
