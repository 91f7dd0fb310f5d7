package logging

// noop discards every event. Embedding processes that have not yet wired a
// real Service (and tests that don't care about log output) can use Noop()
// to satisfy the Service contract without a nil check at every call site.
type noop struct{}

// Noop returns a Service that discards everything it is given.
func Noop() Service { return noop{} }

func (noop) Debug(Event) {}
func (noop) Info(Event)  {}
func (noop) Warn(Event)  {}
func (noop) Error(Event) {}

func (n noop) With(component string) Service { return n }

var _ Service = Noop()
