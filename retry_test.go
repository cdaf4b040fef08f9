package steadfast

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aphistic/sweet"
	"github.com/efritz/glock"
	"github.com/gomodule/redigo/redis"
	. "github.com/onsi/gomega"
)

type RetrySuite struct{}

func (s *RetrySuite) TestNoRetriesPropagatesFailure(t sweet.T) {
	var (
		dialer, dials = sequenceDialer(nil, NewMockConn())
		logger        = &recordingLogger{}
		c             = makeTestConnection(dialer, WithRetries(0), WithLogger(logger))
	)

	result, err := c.Execute(NewCommand("GET", "k1"))
	Expect(result).To(BeNil())
	Expect(IsConnectionError(err)).To(BeTrue())
	Expect(errors.Is(err, ErrRetriesExhausted)).To(BeFalse())
	Expect(*dials).To(Equal(1))
	Expect(logger.Errors()).To(BeEmpty())
}

func (s *RetrySuite) TestSucceedsOnLastAttempt(t sweet.T) {
	var (
		conns  = []*MockConn{NewMockConn(), NewMockConn(), NewMockConn(), NewMockConn()}
		logger = &recordingLogger{}
	)

	for _, conn := range conns[:3] {
		conn.DoFunc = func(command string, args ...interface{}) (interface{}, error) {
			return nil, connectionErr()
		}
	}

	conns[3].DoFunc = func(command string, args ...interface{}) (interface{}, error) {
		return "v1", nil
	}

	var (
		dialer, dials = sequenceDialer(conns[0], conns[1], conns[2], conns[3])
		c             = makeTestConnection(dialer, WithRetries(4), WithLogger(logger))
	)

	Expect(c.Execute(NewCommand("GET", "k1"))).To(Equal("v1"))
	Expect(*dials).To(Equal(4))
	Expect(logger.Errors()).To(HaveLen(3))

	for _, conn := range conns[:3] {
		Expect(conn.CloseFuncCallCount).To(Equal(1))
	}

	Expect(conns[3].CloseFuncCallCount).To(Equal(0))
}

func (s *RetrySuite) TestSleepsBetweenAttempts(t sweet.T) {
	var (
		conn          = NewMockConn()
		clock         = glock.NewMockClock()
		dialer, dials = sequenceDialer(nil, conn)
		c             = makeTestConnection(
			dialer,
			WithRetries(2),
			WithRetryInterval(time.Second),
			withClock(clock),
		)
	)

	conn.DoFunc = func(command string, args ...interface{}) (interface{}, error) {
		return "OK", nil
	}

	go func() {
		// Unlock the after call in the retry loop
		clock.BlockingAdvance(time.Second)
	}()

	Expect(c.Execute(NewCommand("SET", "k1", "v1"))).To(Equal("OK"))
	Expect(*dials).To(Equal(2))
}

func (s *RetrySuite) TestRetryIntervalElapses(t sweet.T) {
	var (
		conn          = NewMockConn()
		dialer, dials = sequenceDialer(nil, nil, conn)
		c             = makeTestConnection(
			dialer,
			WithRetries(3),
			WithRetryInterval(time.Millisecond*20),
		)
	)

	conn.DoFunc = func(command string, args ...interface{}) (interface{}, error) {
		return "OK", nil
	}

	start := time.Now()
	Expect(c.Execute(NewCommand("SET", "k1", "v1"))).To(Equal("OK"))
	Expect(time.Since(start)).To(BeNumerically(">=", time.Millisecond*40))
	Expect(*dials).To(Equal(3))
}

func (s *RetrySuite) TestRetriesExhausted(t sweet.T) {
	var (
		dialer, dials = sequenceDialer(nil, nil, nil, NewMockConn())
		logger        = &recordingLogger{}
		c             = makeTestConnection(dialer, WithRetries(3), WithLogger(logger))
	)

	result, err := c.Execute(NewCommand("GET", "k1"))
	Expect(result).To(BeNil())
	Expect(errors.Is(err, ErrRetriesExhausted)).To(BeTrue())
	Expect(IsConnectionError(err)).To(BeTrue())
	Expect(*dials).To(Equal(3))
	Expect(logger.Errors()).To(HaveLen(3))

	var exhausted *RetriesExhaustedError
	Expect(errors.As(err, &exhausted)).To(BeTrue())
	Expect(exhausted.Attempts).To(Equal(3))
}

func (s *RetrySuite) TestReconnectAfterTwoFailedConnects(t sweet.T) {
	var (
		conn          = NewMockConn()
		dialer, dials = sequenceDialer(nil, nil, conn)
		logger        = &recordingLogger{}
		c             = makeTestConnection(
			dialer,
			WithRetries(3),
			WithRetryInterval(0),
			WithLogger(logger),
		)
	)

	conn.DoFunc = func(command string, args ...interface{}) (interface{}, error) {
		return "OK", nil
	}

	Expect(c.Execute(NewCommand("SET", "k1", "v1"))).To(Equal("OK"))
	Expect(*dials).To(Equal(3))
	Expect(logger.Errors()).To(HaveLen(2))
	Expect(conn.DoFuncCallParams).To(Equal([]ConnDoParamSet{
		{"SET", []interface{}{"k1", "v1"}},
	}))
}

func (s *RetrySuite) TestServerErrorNotRetried(t sweet.T) {
	var (
		conn          = NewMockConn()
		dialer, dials = sequenceDialer(conn, NewMockConn())
		logger        = &recordingLogger{}
		c             = makeTestConnection(dialer, WithRetries(3), WithLogger(logger))
	)

	conn.DoFunc = func(command string, args ...interface{}) (interface{}, error) {
		return nil, redis.Error("ERR wrong number of arguments")
	}

	_, err := c.Execute(NewCommand("SET", "k1"))
	Expect(err).To(Equal(redis.Error("ERR wrong number of arguments")))
	Expect(*dials).To(Equal(1))
	Expect(conn.DoFuncCallCount).To(Equal(1))
	Expect(logger.Errors()).To(BeEmpty())
}

func (s *RetrySuite) TestProtocolErrorNotRetried(t sweet.T) {
	var (
		conn          = NewMockConn()
		dialer, dials = sequenceDialer(conn, NewMockConn())
		c             = makeTestConnection(dialer, WithRetries(3))
		protocolErr   = &ProtocolError{Command: "GET", Reason: "bad"}
	)

	conn.DoFunc = func(command string, args ...interface{}) (interface{}, error) {
		return nil, protocolErr
	}

	_, err := c.Execute(NewCommand("GET", "k1"))
	Expect(err).To(BeIdenticalTo(protocolErr))
	Expect(*dials).To(Equal(1))
}

func (s *RetrySuite) TestBatchResendsEntireBatch(t sweet.T) {
	var (
		conn1         = NewMockConn()
		conn2         = NewMockConn()
		dialer, dials = sequenceDialer(conn1, conn2)
		c             = makeTestConnection(dialer, WithRetries(2))
	)

	conn1.DoFunc = func(command string, args ...interface{}) (interface{}, error) {
		if command == "bar" {
			return nil, connectionErr()
		}

		return "OK", nil
	}

	conn2.DoFunc = func(command string, args ...interface{}) (interface{}, error) {
		return command, nil
	}

	results, err := c.retrying.executeBatch([]Command{
		NewCommand("foo"),
		NewCommand("bar"),
		NewCommand("baz"),
	})

	Expect(err).To(BeNil())
	Expect(results).To(Equal([]interface{}{"foo", "bar", "baz"}))
	Expect(*dials).To(Equal(2))
	Expect(conn1.DoFuncCallCount).To(Equal(2))
	Expect(conn2.DoFuncCallCount).To(Equal(3))
}

func (s *RetrySuite) TestBatchRetriesExhausted(t sweet.T) {
	var (
		dialer, _ = sequenceDialer(nil, nil)
		c         = makeTestConnection(dialer, WithRetries(2))
	)

	results, err := c.retrying.executeBatch([]Command{NewCommand("foo")})
	Expect(results).To(BeNil())
	Expect(errors.Is(err, ErrRetriesExhausted)).To(BeTrue())
}

//
// Helpers

type recordingLogger struct {
	mutex  sync.Mutex
	infos  []string
	errors []string
}

func (l *recordingLogger) Printf(format string, args ...interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Errors() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]string(nil), l.errors...)
}

func makeTestConnection(dialer DialFunc, configs ...ConfigFunc) *connection {
	configs = append([]ConfigFunc{WithLogger(testLogger), withDialer(dialer)}, configs...)
	return NewConnection("", configs...).(*connection)
}

func (s *RetrySuite) TestDefaultBackoffFromPolicy(t sweet.T) {
	r := newRetryingExecutor(
		nil,
		RetryPolicy{MaxRetries: 2, RetryInterval: time.Second},
		nil,
		glock.NewRealClock(),
		testLogger,
	)

	Expect(r.backoff.NextInterval()).To(Equal(time.Second))
	Expect(r.backoff.NextInterval()).To(Equal(time.Second))

	c := makeTestConnection(nil, WithRetryInterval(time.Millisecond*250))
	Expect(c.retrying.backoff.NextInterval()).To(Equal(time.Millisecond * 250))
}
