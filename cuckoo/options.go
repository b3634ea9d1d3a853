package cuckoo

import "go.uber.org/zap"

// Option configures a Map at construction time.
//
// HashFunc, EqualFunc, EmptyFunc and Option are exported at package
// scope (rather than buried inside Map's type parameters) so that a
// future sharded wrapper fanning out across many independent Map[K, V]
// cores — acknowledged as out of scope for this package — can build and
// configure each shard's core the same way callers of this package do,
// without this package having to implement the sharding itself.
type Option[K any, V any] func(*Map[K, V])

// WithKickBudget overrides the per-layer kick budget M (default 512).
func WithKickBudget[K any, V any](m int) Option[K, V] {
	return func(cm *Map[K, V]) { cm.kickBudget = m }
}

// WithMaxLayers caps the total number of layers in the cascade, layer 0
// included, before Insert starts returning ErrLayerGrowth instead of appending
// another 4x-sized layer. The default (32) is large enough that, short
// of a pathological key distribution, it is never reached in practice.
func WithMaxLayers[K any, V any](n int) Option[K, V] {
	return func(cm *Map[K, V]) { cm.maxLayers = n }
}

// WithLogger attaches a *zap.Logger used to report layer growth and
// allocation faults. The default is zap.NewNop(), i.e. silent.
func WithLogger[K any, V any](l *zap.Logger) Option[K, V] {
	return func(cm *Map[K, V]) { cm.log = l }
}

// WithName labels this map instance's metrics series (see metrics.go).
// Maps constructed without WithName share the label "default", so
// distinguish concurrently-live maps in the same process if you care
// about per-instance metrics.
func WithName[K any, V any](name string) Option[K, V] {
	return func(cm *Map[K, V]) { cm.name = name }
}
