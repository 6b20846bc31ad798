package sources

import "fmt"

// State is the lifecycle state of a provider. The set of implementations is closed.
type State interface {
	fmt.Stringer
	state()
}

// Uninitialized is the state before setup has run or after a cancelled setup.
type Uninitialized struct{}

// Initializing is the state while setup runs.
type Initializing struct{}

// Ready carries the services built by setup.
type Ready struct {
	Services Services
}

// Degraded records why setup failed. Services are unavailable.
type Degraded struct {
	Reason error
}

// Disposed is terminal.
type Disposed struct{}

func (Uninitialized) state() {}
func (Initializing) state()  {}
func (Ready) state()         {}
func (Degraded) state()      {}
func (Disposed) state()      {}

func (Uninitialized) String() string { return "uninitialized" }
func (Initializing) String() string  { return "initializing" }
func (Ready) String() string         { return "ready" }
func (Disposed) String() string      { return "disposed" }

func (d Degraded) String() string {
	if d.Reason == nil {
		return "degraded"
	}
	return "degraded: " + d.Reason.Error()
}
