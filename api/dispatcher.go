package api

// Dispatcher consumes inbound payloads. Notify runs synchronously on the
// transport's delivery context; data is only valid for the duration of the
// call and must be copied if retained.
type Dispatcher interface {
	Notify(data []byte)
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(data []byte)

// Notify implements Dispatcher
func (f DispatcherFunc) Notify(data []byte) {
	f(data)
}
