package iface

// Logger is an interface to the logger the connection writes to.
// Any logrus.FieldLogger satisfies it.
type Logger interface {
	// Printf logs an informational message. Arguments should be handled
	// in the manner of fmt.Printf.
	Printf(format string, args ...interface{})

	// Errorf logs an error-level message.
	Errorf(format string, args ...interface{})
}
