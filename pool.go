package steadfast

import (
	"time"

	"github.com/bradhe/stopwatch"
	"github.com/efritz/glock"
)

type (
	// Pool hands out Connections exclusively, one per concurrent caller.
	Pool interface {
		// Close will drain all available connections from the pool.
		// Every live connection is closed. This method blocks.
		Close()

		// Borrow will block until a connection value is available in
		// the pool. If the value is nil, then a new connection is
		// created and opened in its place.
		Borrow() (Connection, bool)

		// BorrowTimeout is like borrow, but will return the pair
		// (nil, false) if no value is returned to the pool before the
		// given timeout elapses.
		BorrowTimeout(timeout time.Duration) (Connection, bool)

		// Release returns a connection to the pool. This method must
		// be called exactly once for each successful call to a Borrow
		// method. A connection which encountered an error should be
		// returned to the pool as a nil value.
		Release(conn Connection)

		// Use borrows a connection, invokes f with it, and releases it.
		// A connection on which f observed a connection error is not
		// returned to the pool. ErrNoConnection is returned if nothing
		// could be borrowed.
		Use(f func(conn Connection) error) error
	}

	pool struct {
		factory        ConnectionFactory
		capacity       int
		logger         Logger
		clock          glock.Clock
		connections    chan Connection
		nilConnections chan Connection
	}

	// ConnectionFactory creates a new, unopened Connection.
	ConnectionFactory func() Connection
)

// NewPool creates a pool with initially nil-connections.
func NewPool(
	factory ConnectionFactory,
	capacity int,
	logger Logger,
	clock glock.Clock,
) Pool {
	if clock == nil {
		clock = glock.NewRealClock()
	}

	p := &pool{
		factory:        factory,
		capacity:       capacity,
		logger:         logger,
		clock:          clock,
		connections:    make(chan Connection, capacity),
		nilConnections: make(chan Connection, capacity),
	}

	// Set the capacity of the pool. Each time a nil value is borrowed, a new
	// connection is created and used in its place.

	for i := 0; i < p.capacity; i++ {
		p.nilConnections <- nil
	}

	return p
}

// NewConnectionPool creates a pool whose connections are built with
// NewConnection and the given configuration.
func NewConnectionPool(addr string, capacity int, configs ...ConfigFunc) Pool {
	config := &connectionConfig{logger: NewDefaultLogger()}
	for _, f := range configs {
		f(config)
	}

	return NewPool(
		func() Connection { return NewConnection(addr, configs...) },
		capacity,
		config.logger,
		config.clock,
	)
}

func (p *pool) Close() {
	for i := 0; i < p.capacity; i++ {
		if conn, _ := p.get(nil); conn != nil {
			if err := conn.Close(); err != nil {
				p.logger.Printf("Could not close connection (%s)", err.Error())
			}
		}
	}

	close(p.connections)
	close(p.nilConnections)
}

func (p *pool) Borrow() (Connection, bool) {
	return p.timedBorrow(nil)
}

func (p *pool) BorrowTimeout(timeout time.Duration) (Connection, bool) {
	return p.timedBorrow(&timeout)
}

func (p *pool) Release(conn Connection) {
	if conn != nil && conn.InTransaction() {
		// The caller abandoned a transaction. Its queued commands must not
		// leak to the next borrower.
		p.logger.Printf("Connection released during a transaction, discarding")

		if err := conn.Close(); err != nil {
			p.logger.Printf("Could not close connection (%s)", err.Error())
		}

		conn = nil
	}

	if conn == nil {
		p.nilConnections <- conn
	} else {
		p.connections <- conn
	}
}

func (p *pool) Use(f func(conn Connection) error) error {
	conn, ok := p.Borrow()
	if !ok {
		return ErrNoConnection
	}

	err := f(conn)
	if err != nil && IsConnectionError(err) {
		if closeErr := conn.Close(); closeErr != nil {
			p.logger.Printf("Could not close connection (%s)", closeErr.Error())
		}

		conn = nil
	}

	p.Release(conn)
	return err
}

//
// Pool Helper Functions

// Borrows and logs the time it took to return from blocking on the
// pool.
func (p *pool) timedBorrow(timeout *time.Duration) (Connection, bool) {
	start := stopwatch.Start()
	conn, ok := p.borrow(timeout)
	elapsed := start.Stop().Milliseconds()

	if ok {
		p.logger.Printf("Received connection after %vms", elapsed)
	} else {
		p.logger.Printf("Could not borrow connection after %vms", elapsed)
	}

	return conn, ok
}

func (p *pool) borrow(timeout *time.Duration) (Connection, bool) {
	if conn, ok := p.get(timeout); conn != nil || !ok {
		return conn, ok
	}

	return p.dial()
}

// Get a value from the pool. If timeout is nil, no timeout is applied.
// This method attempts to read from the non-nil connection channel first
// in order to minimize the number of open connections when the pool is
// not under heavy concurrent load.
func (p *pool) get(timeout *time.Duration) (Connection, bool) {
	select {
	case conn := <-p.connections:
		return conn, true
	default:
	}

	select {
	case conn := <-p.connections:
		return conn, true

	case conn := <-p.nilConnections:
		return conn, true

	case <-makeTimeoutChan(timeout, p.clock):
		return nil, false
	}
}

// Create and open a new connection in place of a nil value. Opening goes
// through the connection's circuit breaker, so a server that is down is
// not hammered by every borrower.
func (p *pool) dial() (Connection, bool) {
	conn := p.factory()

	if err := conn.Open(); err != nil {
		// We were filling a nil slot, put it back in the pool so that
		// we're not draining our pool on connection errors.
		p.nilConnections <- nil

		p.logger.Printf("Could not connect to Redis (%s)", err.Error())
		return nil, false
	}

	return conn, true
}

var blockingChan = make(chan time.Time)

// Wraps time.After around a possibly nil-timeout. When timeout is nil this
// method will return a channel which is always open but never written to.
func makeTimeoutChan(timeout *time.Duration, clock glock.Clock) <-chan time.Time {
	if timeout == nil {
		return blockingChan
	}

	return clock.After(*timeout)
}
