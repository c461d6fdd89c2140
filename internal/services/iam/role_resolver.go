package iam

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/telemetry"
)

// RoleSource is the authoritative, uncached role lookup.
type RoleSource interface {
	RolesForSubject(ctx context.Context, subjectID string) ([]auth.Role, error)
}

// Resolution is the outcome of resolving one token.
type Resolution struct {
	Roles  auth.RoleSet
	Source string
}

// RoleResolverDependencies contains the collaborators of a RoleResolver.
type RoleResolverDependencies struct {
	Cache   RoleCache
	Source  RoleSource
	Metrics *telemetry.Metrics
	Logger  logrus.FieldLogger
}

// RoleResolver turns a verified token into an effective role set.
//
// Order of evaluation:
//  1. Cache lookup by (subject, token id)
//  2. Privileged realm role in the token: full catalog, no database query
//  3. RoleSource query, honouring ctx cancellation
//
// Steps 2 and 3 write the cache. A failed RoleSource query is returned to the
// caller and never cached. Cache backend errors are logged and treated as a
// miss (on read) or ignored (on write).
type RoleResolver struct {
	cache      RoleCache
	source     RoleSource
	privileged map[string]struct{}
	metrics    *telemetry.Metrics
	logger     logrus.FieldLogger
}

// NewRoleResolver creates a resolver. privilegedRealmRoles are realm role
// names that grant the full catalog.
func NewRoleResolver(deps RoleResolverDependencies, privilegedRealmRoles []string) *RoleResolver {
	privileged := make(map[string]struct{}, len(privilegedRealmRoles))
	for _, name := range privilegedRealmRoles {
		privileged[name] = struct{}{}
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &RoleResolver{
		cache:      deps.Cache,
		source:     deps.Source,
		privileged: privileged,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// IsPrivileged reports whether any of the realm roles is in the privileged set.
func (r *RoleResolver) IsPrivileged(realmRoles []string) bool {
	for _, role := range realmRoles {
		if _, ok := r.privileged[role]; ok {
			return true
		}
	}
	return false
}

// Resolve returns the effective roles for the token identified by subject and tokenID.
func (r *RoleResolver) Resolve(ctx context.Context, subject, tokenID string, realmRoles []string) (Resolution, error) {
	ctx, span := telemetry.StartSpan(ctx, "lumenapi/services/iam", "iam.ResolveRoles",
		attribute.String(telemetry.AttrPrincipalSubject, subject),
		attribute.String(telemetry.AttrPrincipalTokenID, tokenID),
	)
	defer span.End()

	key := CacheKey{Subject: subject, TokenID: tokenID}
	log := r.logger.WithField("subject", subject)

	// Step 1: cache
	if r.cache != nil {
		roles, ok, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			r.metrics.ObserveCacheLookup("error")
			span.SetAttributes(attribute.String(telemetry.AttrCacheResult, "error"))
			log.WithError(err).Warn("role cache read failed, resolving without cache")
		case ok:
			r.metrics.ObserveCacheLookup("hit")
			span.SetAttributes(attribute.String(telemetry.AttrCacheResult, "hit"))
			r.metrics.ObserveResolution(telemetry.SourceCache, nil, 0)
			span.SetAttributes(attribute.String(telemetry.AttrRoleSource, telemetry.SourceCache))
			return Resolution{Roles: roles, Source: telemetry.SourceCache}, nil
		default:
			r.metrics.ObserveCacheLookup("miss")
			span.SetAttributes(attribute.String(telemetry.AttrCacheResult, "miss"))
		}
	}

	start := time.Now()

	// Step 2: privileged short-circuit
	if r.IsPrivileged(realmRoles) {
		roles := auth.FullRoleSet()
		r.store(ctx, log, key, roles)
		r.metrics.ObserveResolution(telemetry.SourcePrivileged, nil, time.Since(start))
		telemetry.AddEvent(span, "roles.privileged")
		span.SetAttributes(attribute.String(telemetry.AttrRoleSource, telemetry.SourcePrivileged))
		return Resolution{Roles: roles, Source: telemetry.SourcePrivileged}, nil
	}

	// Step 3: database
	values, err := r.source.RolesForSubject(ctx, subject)
	r.metrics.ObserveResolution(telemetry.SourceDatabase, err, time.Since(start))
	if err != nil {
		telemetry.RecordError(span, err)
		return Resolution{}, fmt.Errorf("resolve roles for %s: %w", subject, err)
	}

	roles := auth.NewRoleSet(values...)
	r.store(ctx, log, key, roles)
	span.SetAttributes(
		attribute.String(telemetry.AttrRoleSource, telemetry.SourceDatabase),
		attribute.Int(telemetry.AttrPrincipalRoles, roles.Len()),
	)
	return Resolution{Roles: roles, Source: telemetry.SourceDatabase}, nil
}

func (r *RoleResolver) store(ctx context.Context, log logrus.FieldLogger, key CacheKey, roles auth.RoleSet) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, roles); err != nil {
		log.WithError(err).Warn("role cache write failed")
	}
}
