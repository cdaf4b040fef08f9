package steadfast

import (
	"fmt"
	"strings"
)

// Command bundles a command verb and its arguments. A Command is
// immutable once constructed.
type Command struct {
	name string
	args []interface{}
}

// NewCommand creates a Command instance. The argument slice is copied.
func NewCommand(name string, args ...interface{}) Command {
	return Command{
		name: name,
		args: copyArgs(args),
	}
}

// Name returns the command verb.
func (c Command) Name() string {
	return c.name
}

// Args returns a copy of the command arguments.
func (c Command) Args() []interface{} {
	return copyArgs(c.args)
}

// Tokens returns the verb followed by the string form of each argument.
func (c Command) Tokens() []string {
	tokens := make([]string, 0, len(c.args)+1)
	tokens = append(tokens, c.name)

	for _, arg := range c.args {
		tokens = append(tokens, formatArg(arg))
	}

	return tokens
}

func (c Command) String() string {
	return strings.Join(c.Tokens(), " ")
}

func copyArgs(args []interface{}) []interface{} {
	if len(args) == 0 {
		return nil
	}

	copied := make([]interface{}, len(args))
	copy(copied, args)
	return copied
}

func formatArg(arg interface{}) string {
	switch v := arg.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
