package scrape

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigError reports a run that must not start: a malformed proxy
// url, an unknown target name, a sink that cannot be opened. It is
// surfaced before the first request goes out.
type ConfigError struct {
	Reason string
}

func (e ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

func Configf(format string, args ...any) error {
	return ConfigError{Reason: fmt.Sprintf(format, args...)}
}

func IsConfig(err error) bool {
	var ce ConfigError
	return errors.As(err, &ce)
}

// TerminalError wraps a fetch failure that retrying cannot fix, like a
// 404 or a response the parser does not recognize. Everything else
// coming out of a fetch is treated as transient.
type TerminalError struct {
	Err error
}

func (e TerminalError) Error() string {
	return e.Err.Error()
}

func (e TerminalError) Unwrap() error {
	return e.Err
}

func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return TerminalError{Err: err}
}

func IsTerminal(err error) bool {
	var te TerminalError
	return errors.As(err, &te)
}

// SinkError marks a failure of the output itself rather than of a
// target. It fails the whole run even when every fetch succeeded.
type SinkError struct {
	Op  string
	Err error
}

func (e SinkError) Error() string {
	return fmt.Sprintf("sink %s: %s", e.Op, e.Err.Error())
}

func (e SinkError) Unwrap() error {
	return e.Err
}

func IsSink(err error) bool {
	var se SinkError
	return errors.As(err, &se)
}

// HttpError classifies a non-2xx response. Client errors are terminal,
// except 408 and 429 which the banks hand out under load and which go
// away on their own.
func HttpError(status int, url string) error {
	err := fmt.Errorf("request to %s returned status %d", url, status)
	if status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
		return Terminal(err)
	}
	return err
}
