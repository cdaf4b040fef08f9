package steadfast

// executor runs commands against a session exactly once. Every error
// is returned to the caller unmodified.
type executor struct {
	session *session
}

func newExecutor(session *session) *executor {
	return &executor{session: session}
}

// executeOnce opens the connection if necessary and sends the command.
func (e *executor) executeOnce(command Command) (interface{}, error) {
	if err := e.session.Open(); err != nil {
		return nil, err
	}

	return e.session.Do(command.name, command.args...)
}

// executeBatchOnce sends each command in order over the same connection
// and collects the replies positionally. An error reply from the server
// is stored in place of the reply and the batch continues. A connection
// error aborts the batch and discards the replies collected so far.
func (e *executor) executeBatchOnce(commands []Command) ([]interface{}, error) {
	if err := e.session.Open(); err != nil {
		return nil, err
	}

	results := make([]interface{}, 0, len(commands))
	for _, command := range commands {
		result, err := e.session.Do(command.name, command.args...)
		if err != nil {
			if IsConnectionError(err) {
				return nil, err
			}

			result = err
		}

		results = append(results, result)
	}

	return results, nil
}

// executeTransactionOnce pipelines a MULTI ... EXEC sequence: every
// command but the last is buffered and the final Do writes the whole
// sequence in one request. Only the reply to the last command (EXEC)
// is returned, along with the first error reply of the sequence.
func (e *executor) executeTransactionOnce(commands []Command) (interface{}, error) {
	if len(commands) == 0 {
		return nil, nil
	}

	if err := e.session.Open(); err != nil {
		return nil, err
	}

	last := len(commands) - 1
	for _, command := range commands[:last] {
		if err := e.session.Send(command.name, command.args...); err != nil {
			// Anything already buffered belongs to a broken or unusable
			// connection; don't let it leak into the next request.
			e.session.discard()
			return nil, err
		}
	}

	return e.session.Do(commands[last].name, commands[last].args...)
}
