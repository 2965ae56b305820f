// File: connection/shell.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection orchestration: the Shell owns the middleware
// pipeline, interceptor chain, frame codec/assembler (for WebSocket
// endpoints), heartbeat manager and resilience policies, and drives
// them over an api.Transport.

package connection

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/momentics/nexuskit/api"
	"github.com/momentics/nexuskit/breaker"
	"github.com/momentics/nexuskit/classify"
	"github.com/momentics/nexuskit/errormonitor"
	"github.com/momentics/nexuskit/heartbeat"
	"github.com/momentics/nexuskit/interceptor"
	"github.com/momentics/nexuskit/middleware"
	"github.com/momentics/nexuskit/protocol"
	"github.com/momentics/nexuskit/ratelimit"
	"github.com/momentics/nexuskit/transport"
)

// Hooks exposes optional lifecycle callbacks. Implementers can log
// events or react to errors; leave fields nil when not required.
type Hooks struct {
	OnConnect    func(connectionID string)
	OnDisconnect func(connectionID, reason string)
	OnMessage    func(msg *protocol.Message)
	OnError      func(err error, classification classify.Classification)
}

// Option configures a Shell before Connect.
type Option func(*Shell)

// WithDialer substitutes the transport dialer (useful for IP aliasing
// and for in-memory transports in tests).
func WithDialer(d api.Dialer) Option {
	return func(s *Shell) { s.dialer = d }
}

// WithLogger attaches a structured logger; the default logger is
// disabled.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Shell) { s.log = log }
}

// WithMiddleware appends middlewares to the connection's pipeline.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Shell) { s.pipeline.Use(mws...) }
}

// WithRequestInterceptors appends request-side interceptors.
func WithRequestInterceptors(steps ...interceptor.Interceptor) Option {
	return func(s *Shell) { s.chain.UseRequest(steps...) }
}

// WithResponseInterceptors appends response-side interceptors.
func WithResponseInterceptors(steps ...interceptor.Interceptor) Option {
	return func(s *Shell) { s.chain.UseResponse(steps...) }
}

// WithBreaker gates every send through cb.
func WithBreaker(cb *breaker.CircuitBreaker) Option {
	return func(s *Shell) { s.breaker = cb }
}

// WithRateLimiter gates every send through l. acquireTimeout bounds
// how long a send may wait for a permit; zero fails immediately when
// no permit is available.
func WithRateLimiter(l ratelimit.Limiter, acquireTimeout time.Duration) Option {
	return func(s *Shell) {
		s.limiter = l
		s.acquireTimeout = acquireTimeout
	}
}

// WithHeartbeat enables the heartbeat loop once connected.
func WithHeartbeat(cfg heartbeat.Config) Option {
	return func(s *Shell) { s.hbCfg = cfg }
}

// WithMonitor records every send outcome into m.
func WithMonitor(m *errormonitor.Monitor) Option {
	return func(s *Shell) { s.monitor = m }
}

// WithClassifier substitutes the error classifier consulted on every
// failure. Defaults to classify.Classify.
func WithClassifier(c classify.Classifier) Option {
	return func(s *Shell) { s.classifier = c }
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h Hooks) Option {
	return func(s *Shell) { s.hooks = h }
}

// WithReconnect enables automatic reconnection after an abnormal
// transport failure: up to max attempts, sleeping attempt*backoff
// between tries.
func WithReconnect(max int, backoff time.Duration) Option {
	return func(s *Shell) {
		s.reconnectMax = max
		s.reconnectBackoff = backoff
	}
}

// WithSendTimeout bounds each transport write.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Shell) { s.sendTimeout = d }
}

// WithSubprotocols advertises Sec-WebSocket-Protocol values during the
// upgrade.
func WithSubprotocols(protocols ...string) Option {
	return func(s *Shell) { s.subprotocols = protocols }
}

// Shell is the per-connection state machine. All exported methods are
// safe for concurrent use; sends are serialized through a single
// writer.
type Shell struct {
	id       string
	endpoint api.Endpoint
	log      zerolog.Logger

	dialer     api.Dialer
	pipeline   *middleware.Pipeline
	chain      *interceptor.Chain
	classifier classify.Classifier
	breaker    *breaker.CircuitBreaker
	limiter    ratelimit.Limiter
	monitor    *errormonitor.Monitor
	runtime    *RuntimeConfig
	hooks      Hooks

	hbCfg        heartbeat.Config
	subprotocols []string

	reconnectMax     int
	reconnectBackoff time.Duration
	acquireTimeout   time.Duration
	sendTimeout      time.Duration

	mu        sync.Mutex
	state     api.ConnectionState
	transport api.Transport
	assembler *protocol.Assembler
	hb        *heartbeat.Manager
	closeChan chan struct{}
	attempts  int

	sendMu sync.Mutex
	closed atomic.Bool
}

// New builds a Shell for endpoint. The connection is not dialed until
// Connect.
func New(endpoint api.Endpoint, opts ...Option) *Shell {
	s := &Shell{
		id:         uuid.NewString(),
		endpoint:   endpoint,
		log:        zerolog.Nop(),
		pipeline:   middleware.NewPipeline(),
		chain:      interceptor.NewChain(),
		classifier: classify.Classify,
		runtime:    NewRuntimeConfig(),
		state:      api.StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dialer == nil {
		switch endpoint.Kind() {
		case api.EndpointTLS:
			s.dialer = transport.TLSDialer{}
		default:
			s.dialer = transport.TCPDialer{}
		}
	}
	return s
}

// ID returns the connection's unique identifier.
func (s *Shell) ID() string { return s.id }

// Endpoint returns the immutable endpoint this shell dials.
func (s *Shell) Endpoint() api.Endpoint { return s.endpoint }

// Runtime returns the live-updatable knob store for this connection.
func (s *Shell) Runtime() *RuntimeConfig { return s.runtime }

// Pipeline exposes the middleware pipeline for registration before
// Connect.
func (s *Shell) Pipeline() *middleware.Pipeline { return s.pipeline }

// Interceptors exposes the interceptor chain for registration before
// Connect.
func (s *Shell) Interceptors() *interceptor.Chain { return s.chain }

// State reports the current lifecycle state.
func (s *Shell) State() api.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HeartbeatStatistics returns a snapshot of the heartbeat counters, or
// a zero value when no heartbeat is running.
func (s *Shell) HeartbeatStatistics() heartbeat.Statistics {
	s.mu.Lock()
	hb := s.hb
	s.mu.Unlock()
	if hb == nil {
		return heartbeat.Statistics{}
	}
	return hb.Statistics()
}

// Connect dials the endpoint, performs the WebSocket upgrade when the
// endpoint calls for one, and starts the receive and heartbeat loops.
func (s *Shell) Connect() error {
	s.mu.Lock()
	switch s.state {
	case api.StateConnecting, api.StateConnected:
		s.mu.Unlock()
		return fmt.Errorf("connection %s: already %s", s.id, s.state)
	}
	s.state = api.StateConnecting
	s.mu.Unlock()

	t, leftover, err := s.dial()
	if err != nil {
		s.mu.Lock()
		s.state = api.StateFailed
		s.mu.Unlock()
		s.reportError(err)
		return err
	}
	s.start(t, leftover)
	return nil
}

// start installs a freshly dialed transport and spins up the
// receive and heartbeat loops.
func (s *Shell) start(t api.Transport, leftover []byte) {
	s.mu.Lock()
	s.transport = t
	s.assembler = protocol.NewAssembler()
	s.closeChan = make(chan struct{})
	s.state = api.StateConnected
	s.attempts = 0
	closeCh := s.closeChan

	if s.hbCfg.Interval > 0 {
		s.hb = heartbeat.New(s.hbCfg, s.sendProbe, s.onHeartbeatTimeout)
		s.hb.Start()
	}
	s.mu.Unlock()

	ctx := middleware.NewContext(s.id, s.endpoint.String())
	if err := s.pipeline.Connect(ctx); err != nil {
		s.log.Warn().Err(err).Str("connection_id", s.id).Msg("middleware connect hook failed")
	}
	if s.hooks.OnConnect != nil {
		s.hooks.OnConnect(s.id)
	}
	s.log.Info().Str("connection_id", s.id).Stringer("endpoint", s.endpoint).Msg("connected")

	go s.recvLoop(t, closeCh, leftover)
}

// dial establishes the transport and, for WebSocket endpoints, runs
// the HTTP Upgrade. It returns any bytes read past the handshake
// response so the receive loop can replay them.
func (s *Shell) dial() (api.Transport, []byte, error) {
	if s.endpoint.Kind() != api.EndpointWebSocket {
		t, err := s.dialer.Dial(s.endpoint, s.sendTimeout)
		return t, nil, err
	}

	u, err := url.Parse(s.endpoint.URL())
	if err != nil {
		return nil, nil, fmt.Errorf("connection %s: parse url: %w", s.id, err)
	}
	t, err := s.dialer.Dial(tcpEndpointFor(u), s.sendTimeout)
	if err != nil {
		return nil, nil, err
	}
	leftover, err := s.upgrade(t, u)
	if err != nil {
		_ = t.Disconnect("handshake failed")
		return nil, nil, err
	}
	return t, leftover, nil
}

// tcpEndpointFor maps a ws/wss URL to the underlying TCP/TLS endpoint.
func tcpEndpointFor(u *url.URL) api.Endpoint {
	host := u.Hostname()
	port := 80
	secure := u.Scheme == "wss"
	if secure {
		port = 443
	}
	if p := u.Port(); p != "" {
		fmt.Sscanf(p, "%d", &port)
	}
	if secure {
		return api.NewTLSEndpoint(host, port, &api.TLSConfig{ServerName: host})
	}
	return api.NewTCPEndpoint(host, port)
}

// upgrade performs the client side of the WebSocket handshake over t
// and returns any buffered bytes that followed the response.
func (s *Shell) upgrade(t api.Transport, u *url.URL) ([]byte, error) {
	req, err := protocol.BuildClientRequest(u.String(), s.subprotocols, nil, nil)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(req.Request.Header))
	for k, vs := range req.Request.Header {
		headers[k] = strings.Join(vs, ", ")
	}
	var buf bytes.Buffer
	if err := transport.WriteRequest(&buf, http.MethodGet, u.RequestURI(), u.Host, headers, nil); err != nil {
		return nil, err
	}
	if err := t.Send(buf.Bytes(), s.sendTimeout); err != nil {
		return nil, fmt.Errorf("connection %s: send upgrade request: %w", s.id, err)
	}

	tr := &transportReader{t: t}
	br := bufio.NewReader(tr)
	if _, err := protocol.ValidateServerResponse(br, req.Request, req.ExpectedAccept); err != nil {
		return nil, err
	}

	// Frames may already be sitting behind the 101 response.
	var leftover []byte
	if n := br.Buffered(); n > 0 {
		leftover = make([]byte, n)
		if _, err := br.Read(leftover); err != nil {
			return nil, err
		}
	}
	leftover = append(leftover, tr.rest...)
	return leftover, nil
}

// transportReader adapts an api.Transport to io.Reader for the
// handshake response parse. Bytes received past what the parser
// consumed stay in rest.
type transportReader struct {
	t    api.Transport
	rest []byte
}

func (r *transportReader) Read(p []byte) (int, error) {
	if len(r.rest) == 0 {
		chunk, err := r.t.Receive(0)
		if err != nil {
			return 0, err
		}
		r.rest = chunk
	}
	n := copy(p, r.rest)
	r.rest = r.rest[n:]
	return n, nil
}

// SendText sends a text message through the full outgoing path.
func (s *Shell) SendText(text string) error {
	return s.send([]byte(text), protocol.OpcodeText)
}

// SendBinary sends a binary message through the full outgoing path.
func (s *Shell) SendBinary(data []byte) error {
	return s.send(data, protocol.OpcodeBinary)
}

// Send is an alias for SendBinary; for non-WebSocket endpoints the
// bytes go to the transport unframed.
func (s *Shell) Send(data []byte) error {
	return s.SendBinary(data)
}

func (s *Shell) send(data []byte, opcode protocol.Opcode) error {
	s.mu.Lock()
	t := s.transport
	connected := s.state == api.StateConnected
	s.mu.Unlock()
	if !connected || t == nil {
		return api.ErrConnectionClosed
	}

	op := func() error {
		if s.limiter != nil {
			if _, err := s.limiter.Acquire(1, s.acquireTimeout); err != nil {
				return err
			}
		}
		ctx := middleware.NewContext(s.id, s.endpoint.String())
		out, err := s.chain.Request(data, ctx)
		if err != nil {
			return err
		}
		out, err = s.pipeline.Outgoing(out, ctx)
		if err != nil {
			return err
		}
		if s.endpoint.Kind() == api.EndpointWebSocket {
			wire, err := protocol.Encode(&protocol.Frame{
				Fin:     true,
				Opcode:  opcode,
				Masked:  true,
				Payload: out,
			})
			if err != nil {
				return err
			}
			out = wire
		}
		s.sendMu.Lock()
		defer s.sendMu.Unlock()
		return t.Send(out, s.sendTimeout)
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(op)
	} else {
		err = op()
	}
	s.observe(err)
	return err
}

// sendControl writes a control frame directly to the transport,
// bypassing the pipeline. Control traffic is never transformed by
// middlewares.
func (s *Shell) sendControl(opcode protocol.Opcode, payload []byte) error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return api.ErrConnectionClosed
	}
	wire, err := protocol.Encode(&protocol.Frame{
		Fin:     true,
		Opcode:  opcode,
		Masked:  true,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return t.Send(wire, s.sendTimeout)
}

// observe records a send outcome into the monitor and surfaces the
// classification; fatal classifications trigger a graceful close.
func (s *Shell) observe(err error) {
	if err == nil {
		if s.monitor != nil {
			s.monitor.RecordSuccess()
		}
		return
	}
	cls := s.classifier(err)
	if s.monitor != nil {
		_ = s.monitor.RecordFailure(err)
	}
	if s.hooks.OnError != nil {
		s.hooks.OnError(err, cls)
	}
	if cls.Recoverability == classify.Fatal {
		s.closeWithCode(closeCodeFor(err, cls), "fatal error")
	}
}

// reportError classifies err and invokes the error hook without any
// monitor side effects.
func (s *Shell) reportError(err error) classify.Classification {
	cls := s.classifier(err)
	if s.hooks.OnError != nil {
		s.hooks.OnError(err, cls)
	}
	return cls
}

// Disconnect performs a graceful shutdown: Close frame (WebSocket),
// middleware disconnect hooks, heartbeat stop, transport teardown.
func (s *Shell) Disconnect(reason string) error {
	return s.disconnect(protocol.CloseNormal, reason, true)
}

// closeWithCode tears the connection down after a protocol violation,
// sending the given close code first.
func (s *Shell) closeWithCode(code protocol.CloseCode, reason string) {
	_ = s.disconnect(code, reason, true)
}

func (s *Shell) disconnect(code protocol.CloseCode, reason string, sendClose bool) error {
	s.mu.Lock()
	if s.state != api.StateConnected {
		s.mu.Unlock()
		return nil
	}
	s.state = api.StateDisconnecting
	t := s.transport
	hb := s.hb
	closeCh := s.closeChan
	s.mu.Unlock()

	if hb != nil {
		hb.Stop()
	}
	if sendClose && s.endpoint.Kind() == api.EndpointWebSocket {
		_ = s.sendControl(protocol.OpcodeClose, protocol.EncodeClosePayload(code, reason))
	}

	ctx := middleware.NewContext(s.id, s.endpoint.String())
	for _, hookErr := range s.pipeline.Disconnect(ctx) {
		s.log.Warn().Err(hookErr).Str("connection_id", s.id).Msg("middleware disconnect hook failed")
	}

	if closeCh != nil {
		close(closeCh)
	}
	var err error
	if t != nil {
		err = t.Disconnect(reason)
	}

	s.mu.Lock()
	s.state = api.StateDisconnected
	s.transport = nil
	s.assembler = nil
	s.hb = nil
	s.mu.Unlock()

	if s.hooks.OnDisconnect != nil {
		s.hooks.OnDisconnect(s.id, reason)
	}
	s.log.Info().Str("connection_id", s.id).Str("reason", reason).Msg("disconnected")
	return err
}

// Close permanently shuts the shell down; no reconnects follow.
func (s *Shell) Close() error {
	s.closed.Store(true)
	return s.Disconnect("closed by application")
}

// sendProbe hands heartbeat probe bytes to the transport. WebSocket
// endpoints carry the probe in a Ping frame; raw endpoints send it
// as-is.
func (s *Shell) sendProbe(probe []byte) error {
	if s.endpoint.Kind() == api.EndpointWebSocket {
		return s.sendControl(protocol.OpcodePing, probe)
	}
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return api.ErrConnectionClosed
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return t.Send(probe, s.sendTimeout)
}

// onHeartbeatTimeout reacts to the heartbeat manager declaring the
// peer unresponsive.
func (s *Shell) onHeartbeatTimeout() {
	err := errors.New("heartbeat timeout: peer unresponsive")
	cls := s.reportError(err)
	s.log.Warn().Str("connection_id", s.id).Msg("heartbeat timeout")
	if cls.ShouldRetry && s.reconnectEnabled() {
		_ = s.disconnect(protocol.CloseGoingAway, "heartbeat timeout", true)
		go s.reconnect()
		return
	}
	_ = s.disconnect(protocol.CloseGoingAway, "heartbeat timeout", true)
}

func (s *Shell) reconnectEnabled() bool {
	if s.closed.Load() {
		return false
	}
	return s.runtime.ReconnectMax(s.reconnectMax) > 0
}

// reconnect re-dials with linear backoff until it succeeds or the
// attempt budget is exhausted. The budget and backoff can be adjusted
// live through the runtime config.
func (s *Shell) reconnect() {
	max := s.runtime.ReconnectMax(s.reconnectMax)
	backoff := s.runtime.ReconnectBackoff(s.reconnectBackoff)
	var lastErr error
	for {
		if s.closed.Load() {
			return
		}
		s.mu.Lock()
		if s.attempts >= max {
			s.attempts = 0
			s.state = api.StateFailed
			s.mu.Unlock()
			if lastErr != nil {
				s.reportError(fmt.Errorf("max reconnect attempts reached: %w", lastErr))
			}
			return
		}
		s.attempts++
		attempt := s.attempts
		s.state = api.StateConnecting
		s.mu.Unlock()

		time.Sleep(time.Duration(attempt) * backoff)
		t, leftover, err := s.dial()
		if err != nil {
			lastErr = err
			s.log.Warn().Err(err).Int("attempt", attempt).Str("connection_id", s.id).Msg("reconnect failed")
			continue
		}
		s.start(t, leftover)
		return
	}
}

// closeCodeFor maps a fatal error to the WebSocket close code sent
// during the resulting graceful disconnect.
func closeCodeFor(err error, cls classify.Classification) protocol.CloseCode {
	switch {
	case errors.Is(err, protocol.ErrInvalidUTF8Text):
		return protocol.CloseInvalidFramePayload
	case errors.Is(err, protocol.ErrFrameTooLarge), errors.Is(err, protocol.ErrControlFrameTooLarge):
		return protocol.CloseMessageTooBig
	case cls.Category == classify.CategoryProtocol:
		return protocol.CloseProtocolError
	default:
		return protocol.CloseInternalServerError
	}
}
