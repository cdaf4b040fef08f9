package steadfast

import (
	"time"

	"github.com/efritz/backoff"
	"github.com/efritz/glock"
	"github.com/efritz/overcurrent"
)

type (
	// Connection is a resilient, single-connection Redis client. The
	// physical connection is opened lazily and re-established when a
	// command fails with a connection error. A Connection is NOT safe
	// for concurrent use; use one instance per goroutine (see Pool).
	Connection interface {
		// Open establishes the connection. It does nothing if the
		// connection is already open. Callers never need to call this
		// explicitly.
		Open() error

		// Close releases the connection. It is safe to call repeatedly.
		Close() error

		// Ping returns true if the server answers PING with PONG.
		Ping() bool

		// Do sends a command once and returns its raw response. It is
		// not retried.
		Do(command string, args ...interface{}) (interface{}, error)

		// Execute runs the command under the configured retry policy.
		Execute(command Command) (interface{}, error)

		// Transaction runs the commands atomically under the configured
		// retry policy. MULTI/EXEC commands are added implicitly and the
		// returned slice holds one reply per given command. A failed
		// attempt resends the whole transaction; if the connection broke
		// after the server committed but before the reply arrived, the
		// transaction is applied twice.
		Transaction(commands ...Command) ([]interface{}, error)

		// TransactionOnce is like Transaction, but is never retried. Use
		// it for transactions with side effects that must not repeat.
		TransactionOnce(commands ...Command) ([]interface{}, error)

		// Batch returns a builder to which commands can be attached and
		// then sent over the connection in order. A batch is not atomic.
		Batch() Batch

		// Call runs a command by symbolic name (e.g. "set", "multi",
		// "exec"). Names between "multi" and "exec" are queued and the
		// whole transaction is sent on "exec". Unknown names are passed
		// to Do unchanged.
		Call(name string, args ...interface{}) (interface{}, error)

		// InTransaction returns true while Call is accumulating commands.
		InTransaction() bool
	}

	connection struct {
		session     *session
		executor    *executor
		retrying    *retryingExecutor
		transaction *transaction
		logger      Logger
	}

	connectionConfig struct {
		addr           string
		unixSocket     string
		password       string
		database       int
		connectTimeout time.Duration
		readTimeout    time.Duration
		writeTimeout   time.Duration
		retries        int
		retryInterval  time.Duration
		backoff        backoff.Backoff
		breakerFunc    BreakerFunc
		clock          glock.Clock
		logger         Logger
		dialer         DialFunc
	}

	// ConfigFunc is a function used to initialize a new connection.
	ConfigFunc func(*connectionConfig)
)

// NewConnection creates a new Connection to the server at the given
// address (host:port, default localhost:6379). No I/O is performed
// until the first command.
func NewConnection(addr string, configs ...ConfigFunc) Connection {
	if addr == "" {
		addr = "localhost:6379"
	}

	config := &connectionConfig{
		addr:           addr,
		unixSocket:     "",
		password:       "",
		database:       0,
		connectTimeout: time.Second * 5,
		readTimeout:    time.Second * 5,
		writeTimeout:   time.Second * 5,
		retries:        0,
		retryInterval:  0,
		breakerFunc:    noopBreakerFunc,
		clock:          glock.NewRealClock(),
		logger:         NewDefaultLogger(),
	}

	for _, f := range configs {
		f(config)
	}

	if config.dialer == nil {
		config.dialer = makeDialer(config)
	}

	session := newSession(
		config.dialer,
		config.password,
		config.database,
		config.breakerFunc,
		config.logger,
	)

	executor := newExecutor(session)

	return &connection{
		session:  session,
		executor: executor,
		retrying: newRetryingExecutor(
			executor,
			RetryPolicy{MaxRetries: config.retries, RetryInterval: config.retryInterval},
			config.backoff,
			config.clock,
			config.logger,
		),
		transaction: &transaction{},
		logger:      config.logger,
	}
}

// WithUnixSocket connects through the unix socket at the given path.
// When set, the address passed to NewConnection is ignored.
func WithUnixSocket(path string) ConfigFunc {
	return func(c *connectionConfig) { c.unixSocket = path }
}

// WithPassword sets the password (default is "", which sends no AUTH).
func WithPassword(password string) ConfigFunc {
	return func(c *connectionConfig) { c.password = password }
}

// WithDatabase sets the database index (default is 0, which sends no
// SELECT).
func WithDatabase(database int) ConfigFunc {
	return func(c *connectionConfig) { c.database = database }
}

// WithConnectTimeout sets the connect timeout (default is 5 seconds).
func WithConnectTimeout(timeout time.Duration) ConfigFunc {
	return func(c *connectionConfig) { c.connectTimeout = timeout }
}

// WithReadTimeout sets the read timeout (default is 5 seconds).
func WithReadTimeout(timeout time.Duration) ConfigFunc {
	return func(c *connectionConfig) { c.readTimeout = timeout }
}

// WithWriteTimeout sets the write timeout (default is 5 seconds).
func WithWriteTimeout(timeout time.Duration) ConfigFunc {
	return func(c *connectionConfig) { c.writeTimeout = timeout }
}

// WithRetries sets the number of attempts made by the retrying paths
// (default is 0, which disables retrying).
func WithRetries(retries int) ConfigFunc {
	return func(c *connectionConfig) { c.retries = retries }
}

// WithRetryInterval sets the fixed delay between attempts (default is 0).
func WithRetryInterval(interval time.Duration) ConfigFunc {
	return func(c *connectionConfig) { c.retryInterval = interval }
}

// WithBackoff replaces the fixed retry interval with the given backoff.
func WithBackoff(backoff backoff.Backoff) ConfigFunc {
	return func(c *connectionConfig) { c.backoff = backoff }
}

// WithBreaker sets the circuit breaker instance to use around new
// connections. The default uses a no-op circuit breaker.
func WithBreaker(breaker overcurrent.CircuitBreaker) ConfigFunc {
	return func(c *connectionConfig) { c.breakerFunc = breaker.Call }
}

// WithBreakerRegistry sets the overcurrent registry to use and the
// name of the circuit breaker config to use around new connections.
// The default uses a no-op circuit breaker.
func WithBreakerRegistry(registry overcurrent.Registry, name string) ConfigFunc {
	return func(c *connectionConfig) {
		c.breakerFunc = func(f overcurrent.BreakerFunc) error {
			return registry.Call(name, f, nil)
		}
	}
}

// WithLogger sets the logger instance (the default is the logrus
// standard logger).
func WithLogger(logger Logger) ConfigFunc {
	return func(c *connectionConfig) { c.logger = logger }
}

func withClock(clock glock.Clock) ConfigFunc {
	return func(c *connectionConfig) { c.clock = clock }
}

func withDialer(dialer DialFunc) ConfigFunc {
	return func(c *connectionConfig) { c.dialer = dialer }
}

//
// Connection Implementation

func (c *connection) Open() error {
	return c.session.Open()
}

func (c *connection) Close() error {
	return c.session.Close()
}

func (c *connection) Ping() bool {
	return c.session.Ping()
}

func (c *connection) Do(command string, args ...interface{}) (interface{}, error) {
	return c.executor.executeOnce(NewCommand(command, args...))
}

func (c *connection) Execute(command Command) (interface{}, error) {
	return c.retrying.execute(command)
}

func (c *connection) Transaction(commands ...Command) ([]interface{}, error) {
	return c.runTransaction(wrapTransaction(commands))
}

func (c *connection) TransactionOnce(commands ...Command) ([]interface{}, error) {
	wrapped := wrapTransaction(commands)
	reply, err := c.executor.executeTransactionOnce(wrapped)
	return unwrapTransaction(reply, err, len(commands))
}

func (c *connection) Batch() Batch {
	return newBatch(c)
}

func (c *connection) InTransaction() bool {
	return c.transaction.active
}

//
// Connection Helper Functions

// Send a complete MULTI ... EXEC sequence and return the EXEC replies.
func (c *connection) runTransaction(commands []Command) ([]interface{}, error) {
	reply, err := c.retrying.executeTransaction(commands)
	return unwrapTransaction(reply, err, len(commands)-2)
}
