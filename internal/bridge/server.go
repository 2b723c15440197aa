package bridge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/OsbornePro/VaultLink/internal/protocol"
)

// maxLineLen caps one request line. The fixed schema never comes close; a
// client streaming more than this is broken or hostile.
const maxLineLen = 64 * 1024

// Config tunes the acceptor. Zero values take the defaults below.
type Config struct {
	ListenAddr  string        // default 127.0.0.1:19455
	IOTimeout   time.Duration // per-connection read+write deadline, default 10s
	MaxSessions int           // concurrent session cap, default 32
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = fmt.Sprintf("127.0.0.1:%d", protocol.Port)
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = 10 * time.Second
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 32
	}
}

type serverState int

const (
	stateStopped serverState = iota
	stateStarting
	stateListening
	stateStopping
)

// session is one accepted connection, alive for a single request/response
// cycle. Tracked only so Stop can force-close it.
type session struct {
	id          string
	conn        net.Conn
	connectedAt time.Time
}

// Server owns the loopback listener and the per-connection goroutines.
// Strictly one request per connection; no reuse, no pipelining.
type Server struct {
	cfg        Config
	dispatcher *Dispatcher
	log        *logrus.Entry

	mu       sync.Mutex
	state    serverState
	ln       net.Listener
	sessions map[string]*session

	wg sync.WaitGroup
}

func NewServer(cfg Config, d *Dispatcher) *Server {
	cfg.applyDefaults()
	return &Server{
		cfg:        cfg,
		dispatcher: d,
		log:        logrus.WithField("component", "bridge"),
		sessions:   make(map[string]*session),
	}
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Start binds the listener and launches the accept loop. Calling Start while
// already listening is a warned no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.state == stateListening || s.state == stateStarting {
		s.mu.Unlock()
		s.log.Warn("start ignored: already listening")
		return nil
	}
	s.state = stateStarting
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.mu.Lock()
		s.state = stateStopped
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.state = stateListening
	s.mu.Unlock()

	s.log.WithField("addr", ln.Addr().String()).Info("bridge listening")

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Stop closes the listener, force-closes every tracked session and waits for
// the handlers to drain. Idempotent.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.state != stateListening {
		s.mu.Unlock()
		return
	}
	s.state = stateStopping
	ln := s.ln
	s.ln = nil
	open := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	_ = ln.Close()
	for _, sess := range open {
		_ = sess.conn.Close()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.state = stateStopped
	s.mu.Unlock()
	s.log.Info("bridge stopped")
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopping() {
				return
			}
			s.log.WithError(err).Error("accept failed")
			continue
		}

		// Defense in depth: the listener is loopback-bound, but reject
		// anything else silently anyway. No response is owed to a
		// non-local peer.
		if !isLoopback(conn.RemoteAddr()) {
			s.log.WithField("remote", conn.RemoteAddr().String()).Warn("dropped non-loopback connection")
			_ = conn.Close()
			continue
		}

		sess, ok := s.register(conn)
		if !ok {
			s.log.Warn("dropped connection: session cap reached")
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handle(sess)
	}
}

func (s *Server) stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateStopping || s.state == stateStopped
}

func (s *Server) register(conn net.Conn) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateListening || len(s.sessions) >= s.cfg.MaxSessions {
		return nil, false
	}
	sess := &session{
		id:          uuid.NewString(),
		conn:        conn,
		connectedAt: time.Now(),
	}
	s.sessions[sess.id] = sess
	return sess, true
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// SessionCount reports the number of tracked sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// handle runs one request/response cycle and owns the connection.
func (s *Server) handle(sess *session) {
	defer s.wg.Done()
	defer s.unregister(sess.id)
	defer sess.conn.Close()

	log := s.log.WithField("session", sess.id[:8])
	log.WithField("remote", sess.conn.RemoteAddr().String()).Debug("session opened")

	_ = sess.conn.SetDeadline(time.Now().Add(s.cfg.IOTimeout))

	respond := func(resp protocol.Message) {
		b, err := protocol.Encode(resp)
		if err != nil {
			log.WithError(err).Error("encode response")
			return
		}
		if _, err := sess.conn.Write(b); err != nil {
			log.WithError(err).Debug("write response")
		}
	}

	line, err := readLine(sess.conn)
	if err != nil {
		log.WithError(err).Debug("read request line")
		respond(protocol.NewError("", protocol.ErrProtocol, "could not read request line"))
		return
	}

	req, err := protocol.Decode(line)
	if err != nil {
		reqID := ""
		if pe, ok := err.(*protocol.ParseError); ok {
			reqID = pe.RequestID
		}
		log.WithError(err).Warn("malformed request")
		respond(protocol.NewError(reqID, protocol.ErrProtocol, err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.IOTimeout)
	defer cancel()

	resp := s.dispatch(ctx, log, req)
	respond(resp)
	log.WithFields(logrus.Fields{
		"request":  req.Kind(),
		"response": resp.Kind(),
	}).Info("request served")
}

// dispatch shields the acceptor from handler panics; one broken request must
// never take down other sessions.
func (s *Server) dispatch(ctx context.Context, log *logrus.Entry, req protocol.Message) (resp protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("dispatch panicked")
			resp = protocol.NewError(req.ReqID(), protocol.ErrInternal, "internal error")
		}
	}()
	return s.dispatcher.Dispatch(ctx, req)
}

func readLine(conn net.Conn) ([]byte, error) {
	br := bufio.NewReaderSize(io.LimitReader(conn, maxLineLen), 4096)
	line, err := br.ReadBytes('\n')
	if err == io.EOF && len(line) > 0 {
		// Client sent its line and half-closed without the newline.
		return line, nil
	}
	if err != nil {
		return nil, err
	}
	return line, nil
}

func isLoopback(addr net.Addr) bool {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
