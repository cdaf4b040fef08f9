package steadfast

type (
	// Batch wraps an ordered sequence of commands sent over the same
	// connection. Replies are returned positionally. A batch is not
	// atomic; use Connection.Transaction for that.
	Batch interface {
		// Add will attach a command to this batch. This command is
		// not sent to the remote server until Run or RunOnce is invoked.
		Add(command string, args ...interface{}) Batch

		// Run sends every command under the connection's retry policy.
		// A failed attempt resends the entire batch, so only batches
		// that are safe to repeat should be run this way.
		Run() ([]interface{}, error)

		// RunOnce sends every command exactly once. Use this for
		// batches with side effects that must not be repeated.
		RunOnce() ([]interface{}, error)
	}

	batch struct {
		connection *connection
		commands   []Command
	}
)

func newBatch(connection *connection) Batch {
	return &batch{
		connection: connection,
		commands:   []Command{},
	}
}

func (b *batch) Add(command string, args ...interface{}) Batch {
	b.commands = append(b.commands, NewCommand(command, args...))
	return b
}

func (b *batch) Run() ([]interface{}, error) {
	return b.connection.retrying.executeBatch(b.commands)
}

func (b *batch) RunOnce() ([]interface{}, error) {
	return b.connection.executor.executeBatchOnce(b.commands)
}
