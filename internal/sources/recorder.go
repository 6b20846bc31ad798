package sources

import (
	"sync"

	"github.com/charmbracelet/log"
)

// ErrorRecorder keeps the most recent failure of a service whose operations swallow errors.
type ErrorRecorder struct {
	mu  sync.Mutex
	err error
}

// Record stores err. A nil err clears the previous failure.
func (r *ErrorRecorder) Record(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *ErrorRecorder) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Unsupported logs that a backend cannot perform op.
func Unsupported(logger *log.Logger, op string) {
	logger.Warn("operation not supported", "op", op)
}
