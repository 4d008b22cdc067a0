package errors

import "fmt"

// fatalError is an error that should be printed to the user, then the program
// should exit with an error code.
type fatalError string

func (e fatalError) Error() string {
	return string(e)
}

func (e fatalError) Fatal() bool {
	return true
}

// IsFatal returns true if err is a fatal message that should be printed to the
// user. Then, the program should exit.
func IsFatal(err error) bool {
	var fatal interface{ Fatal() bool }
	return As(err, &fatal) && fatal.Fatal()
}

// Fatal returns an error that is marked fatal.
func Fatal(s string) error {
	return WithStack(fatalError(s))
}

// Fatalf returns an error that is marked fatal.
func Fatalf(s string, data ...interface{}) error {
	return WithStack(fatalError(fmt.Sprintf(s, data...)))
}
