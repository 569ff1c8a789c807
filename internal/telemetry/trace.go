// Package telemetry holds the tracing helpers shared by the authentication
// components. Spans go to the globally registered OpenTelemetry tracer
// provider; without one they are no-ops.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer names.
const (
	TracerIAM    = "fitapi/services/iam"
	TracerIssuer = "fitapi/oidcissuer"
	TracerPolicy = "fitapi/policy"
)

// StartSpan creates a new span for a service operation.
//
//	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Authenticate",
//	    attribute.String(telemetry.AttrAuthScheme, "legacy_bearer"),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on the span and marks the span as failed.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Attribute keys.
const (
	AttrAuthScheme  = "auth.scheme"
	AttrAuthOutcome = "auth.outcome"
	AttrAccountID   = "account.id"
	AttrAccountRole = "account.role"

	AttrChainName      = "policy.chain"
	AttrPolicyDecision = "policy.decision"
)
