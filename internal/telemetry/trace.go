package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by the IAM service and the role resolver.
const (
	AttrPrincipalSubject = "principal.subject"
	AttrPrincipalTokenID = "principal.token_id"
	AttrPrincipalRoles   = "principal.role_count"

	AttrRoleSource  = "roles.source"
	AttrRoleName    = "roles.name"
	AttrCacheResult = "roles.cache"

	AttrGroupGUID     = "group.guid"
	AttrGroupName     = "group.name"
	AttrTargetSubject = "membership.target_subject"
)

// StartSpan opens a span on the named tracer of the global provider.
//
//	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.AssignRoleToGroup",
//	    attribute.String(telemetry.AttrGroupGUID, guid),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError marks span as failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddEvent records a named point-in-time event such as "roles.privileged".
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
