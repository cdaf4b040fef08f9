package steadfast

import "strings"

type (
	commandKind int

	commandSpec struct {
		verb string
		kind commandKind
	}
)

const (
	singleCommand commandKind = iota
	beginTransaction
	commitTransaction
	discardTransaction
)

// retryCommands maps the symbolic names accepted by Call to the
// commands they issue. Names not in this table bypass the retry
// and transaction machinery entirely.
var retryCommands = map[string]commandSpec{
	"set":      {"SET", singleCommand},
	"get":      {"GET", singleCommand},
	"keys":     {"KEYS", singleCommand},
	"del":      {"DEL", singleCommand},
	"ttl":      {"TTL", singleCommand},
	"sadd":     {"SADD", singleCommand},
	"expire":   {"EXPIRE", singleCommand},
	"smembers": {"SMEMBERS", singleCommand},
	"unlink":   {"UNLINK", singleCommand},
	"publish":  {"PUBLISH", singleCommand},
	"exists":   {"EXISTS", singleCommand},
	"mget":     {"MGET", singleCommand},
	"mset":     {"MSET", singleCommand},
	"setnx":    {"SETNX", singleCommand},
	"setex":    {"SETEX", singleCommand},
	"multi":    {"MULTI", beginTransaction},
	"exec":     {"EXEC", commitTransaction},
	"discard":  {"DISCARD", discardTransaction},
}

func lookupCommand(name string) (commandSpec, bool) {
	spec, ok := retryCommands[strings.ToLower(name)]
	return spec, ok
}

// Call resolves a symbolic command name and routes it. While a transaction
// is accumulating, table commands are queued and a Pending value is
// returned in place of the reply.
func (c *connection) Call(name string, args ...interface{}) (interface{}, error) {
	spec, ok := lookupCommand(name)
	if !ok {
		return c.Do(name, args...)
	}

	command := NewCommand(spec.verb, args...)

	switch spec.kind {
	case beginTransaction:
		return nil, c.transaction.begin(command)

	case commitTransaction:
		commands, err := c.transaction.commit(command)
		if err != nil {
			return nil, err
		}

		return c.runTransaction(commands)

	case discardTransaction:
		return nil, c.transaction.discard()
	}

	if c.transaction.active {
		return c.transaction.accumulate(command), nil
	}

	return c.retrying.execute(command)
}
