package steadfast

type (
	// transaction accumulates the commands issued between a begin and
	// a commit marker. It holds no lock; a connection with an active
	// transaction must not be shared between goroutines.
	transaction struct {
		active  bool
		pending []Command
	}

	// Pending is returned in place of a reply for a command that has been
	// queued into an active transaction. Its value is the position of the
	// command's reply in the slice returned on commit.
	Pending int
)

// begin moves the transaction from idle to accumulating. The begin
// marker becomes the first pending command.
func (t *transaction) begin(marker Command) error {
	if t.active {
		return ErrNestedTransaction
	}

	t.active = true
	t.pending = []Command{marker}
	return nil
}

// accumulate queues a command. No I/O is performed.
func (t *transaction) accumulate(command Command) Pending {
	t.pending = append(t.pending, command)
	return Pending(len(t.pending) - 2)
}

// commit appends the commit marker and returns the complete batch. The
// transaction is idle again afterwards, regardless of how the batch is
// executed.
func (t *transaction) commit(marker Command) ([]Command, error) {
	if !t.active {
		return nil, ErrNoTransaction
	}

	commands := append(t.pending, marker)
	t.reset()
	return commands, nil
}

func (t *transaction) discard() error {
	if !t.active {
		return ErrNoTransaction
	}

	t.reset()
	return nil
}

func (t *transaction) reset() {
	t.active = false
	t.pending = nil
}

// wrapTransaction brackets the given commands with MULTI and EXEC.
func wrapTransaction(commands []Command) []Command {
	wrapped := make([]Command, 0, len(commands)+2)
	wrapped = append(wrapped, NewCommand("MULTI"))
	wrapped = append(wrapped, commands...)
	wrapped = append(wrapped, NewCommand("EXEC"))
	return wrapped
}

// unwrapTransaction interprets the outcome of a pipelined MULTI ... EXEC
// sequence. The EXEC reply carries one entry for each queued command.
// When the server refused the transaction (e.g. EXECABORT), the EXEC
// error reply is preferred over an earlier error from a queued command.
func unwrapTransaction(reply interface{}, err error, queued int) ([]interface{}, error) {
	if err != nil {
		if execErr, ok := reply.(error); ok && !IsConnectionError(err) {
			return nil, execErr
		}

		return nil, err
	}

	switch v := reply.(type) {
	case nil:
		return nil, ErrTransactionAborted

	case error:
		return nil, v

	case []interface{}:
		if len(v) != queued {
			return nil, &ProtocolError{Command: "EXEC", Reply: v, Reason: "reply count does not match queued commands"}
		}

		return v, nil

	default:
		return nil, &ProtocolError{Command: "EXEC", Reply: v, Reason: "expected an array"}
	}
}
