package steadfast

import (
	"github.com/gomodule/redigo/redis"

	"github.com/efritz/steadfast/iface"
)

type (
	// Conn abstracts a single, feature-minimal connection to Redis.
	Conn = iface.Conn

	redigoShim struct {
		conn redis.Conn
	}

	// DialFunc creates a connection to Redis or returns an error.
	DialFunc func() (Conn, error)
)

// makeDialer connects over the configured unix socket if one is set,
// otherwise over TCP to the configured address. AUTH and SELECT are
// not passed to redigo, they are issued by the session after dialing.
func makeDialer(config *connectionConfig) DialFunc {
	return func() (Conn, error) {
		network, address := dialTarget(config)

		conn, err := redis.Dial(
			network,
			address,
			redis.DialConnectTimeout(config.connectTimeout),
			redis.DialReadTimeout(config.readTimeout),
			redis.DialWriteTimeout(config.writeTimeout),
		)

		if err != nil {
			return nil, &ConnectionError{Err: err}
		}

		return &redigoShim{conn}, nil
	}
}

// dialTarget returns the network and address to dial. A configured unix
// socket takes precedence over the TCP address.
func dialTarget(config *connectionConfig) (string, string) {
	if config.unixSocket != "" {
		return "unix", config.unixSocket
	}

	return "tcp", config.addr
}

func (s *redigoShim) Close() error {
	return s.conn.Close()
}

func (s *redigoShim) Do(command string, args ...interface{}) (interface{}, error) {
	result, err := s.conn.Do(command, args...)
	return result, s.wrapError(err)
}

func (s *redigoShim) Send(command string, args ...interface{}) error {
	return s.wrapError(s.conn.Send(command, args...))
}

func (s *redigoShim) wrapError(err error) error {
	// redigo records fatal (I/O and framing) errors on the connection.
	// Anything else is a reply from the server and leaves the connection
	// usable.

	if s.conn.Err() != nil {
		return &ConnectionError{Err: s.conn.Err()}
	}

	return err
}
