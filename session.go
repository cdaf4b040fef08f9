package steadfast

import (
	"context"

	"github.com/bradhe/stopwatch"
	"github.com/efritz/overcurrent"
)

type (
	// session owns the single physical connection to Redis. It is not
	// safe for concurrent use.
	session struct {
		dialer      DialFunc
		password    string
		database    int
		breakerFunc BreakerFunc
		logger      Logger
		conn        Conn
	}

	// BreakerFunc bridges the interface between the Call function of
	// an overcurrent breaker and an overcurrent registry.
	BreakerFunc func(overcurrent.BreakerFunc) error
)

func noopBreakerFunc(f overcurrent.BreakerFunc) error {
	return f(context.Background())
}

func newSession(dialer DialFunc, password string, database int, breakerFunc BreakerFunc, logger Logger) *session {
	return &session{
		dialer:      dialer,
		password:    password,
		database:    database,
		breakerFunc: breakerFunc,
		logger:      logger,
	}
}

// Open establishes the physical connection. It does nothing if a
// connection has already been established.
func (s *session) Open() error {
	if s.conn != nil {
		return nil
	}

	start := stopwatch.Start()
	conn, err := s.dial()
	elapsed := start.Stop().Milliseconds()

	if err != nil {
		s.logger.Printf("Could not connect to Redis after %vms (%s)", elapsed, err.Error())
		return wrapConnectionError(err)
	}

	if err := s.handshake(conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			s.logger.Printf("Could not close connection (%s)", closeErr.Error())
		}

		return err
	}

	s.conn = conn
	s.logger.Printf("Established a new connection with Redis after %vms", elapsed)
	return nil
}

// Close releases the physical connection. It is safe to call when
// there is no open connection.
func (s *session) Close() error {
	if s.conn == nil {
		return nil
	}

	conn := s.conn
	s.conn = nil
	return conn.Close()
}

// Connected returns true if a physical connection is held.
func (s *session) Connected() bool {
	return s.conn != nil
}

// Ping returns true only if the server replies to PING with PONG.
func (s *session) Ping() bool {
	if err := s.Open(); err != nil {
		return false
	}

	reply, err := s.Do("PING")
	if err != nil {
		return false
	}

	status, ok := reply.(string)
	return ok && status == "PONG"
}

// Do sends a single command over the open connection. A connection
// error drops the connection so the next Open dials again.
func (s *session) Do(command string, args ...interface{}) (interface{}, error) {
	if s.conn == nil {
		return nil, &ConnectionError{Err: errNotConnected}
	}

	result, err := s.conn.Do(command, args...)
	if err != nil && IsConnectionError(err) {
		s.discard()
	}

	return result, err
}

// Send buffers a command on the open connection. It is written to the
// server by the next Do.
func (s *session) Send(command string, args ...interface{}) error {
	if s.conn == nil {
		return &ConnectionError{Err: errNotConnected}
	}

	err := s.conn.Send(command, args...)
	if err != nil && IsConnectionError(err) {
		s.discard()
	}

	return err
}

// Dial a new Redis connection. The call to the dialer function is wrapped
// in a circuit breaker so that if the remote end is down we are not going
// to hammer it.
func (s *session) dial() (Conn, error) {
	var conn Conn
	err := s.breakerFunc(func(ctx context.Context) error {
		temp, err := s.dialer()
		conn = temp
		return err
	})

	return conn, err
}

func (s *session) handshake(conn Conn) error {
	if s.password != "" {
		if _, err := conn.Do("AUTH", s.password); err != nil {
			return err
		}
	}

	if s.database != 0 {
		if _, err := conn.Do("SELECT", s.database); err != nil {
			return err
		}
	}

	return nil
}

func (s *session) discard() {
	if err := s.Close(); err != nil {
		s.logger.Printf("Could not close broken connection (%s)", err.Error())
	}
}
