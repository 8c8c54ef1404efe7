// Package adapter connects the IPC backend to external observability systems.
package adapter

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans produced by the IPC backend.
const InstrumentationName = "github.com/srediag/sysctrl-ipc"

// Tracer returns the backend tracer from tp, or from the global OpenTelemetry
// provider when tp is nil. Until a provider is installed with
// otel.SetTracerProvider the global one records nothing.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName)
}
