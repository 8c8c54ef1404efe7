// Package backend implements the asynchronous IPC backend between application
// producers and the system controller.
//
// An Endpoint is created with New and started with Initialize, which opens the
// transport and registers the endpoint callbacks. The transport reports the
// remote side as bound; from then on Send and SendEx copy messages into a
// bounded FIFO queue that a single transmitter goroutine drains through
// Transport.Send, in the order the sends were accepted.
//
// Inbound messages are validated and handed synchronously to the configured
// api.Dispatcher. Failures go to an ErrorHandler; the default one logs every
// report and restarts the process when a report is fatal.
package backend
