// Package snapshot implements the three strategies a module can use to
// observe a live world.Repository: a persistent double buffer (GDB), an
// on-demand pooled replica (SoD), and a refcounted shared replica built
// once per tick (Shared). All three ultimately call Repository.SyncFrom;
// they differ only in when a replica is built and how long it is held.
package snapshot

import "github.com/simkernel/kernel/world"

// Kind identifies which of the three snapshot strategies a Provider
// implements.
type Kind uint8

const (
	// KindGDB is the persistent double buffer: a replica is synced once
	// per tick and the previous replica stays valid to read until the
	// next sync, so acquiring a view never blocks and never allocates.
	KindGDB Kind = iota
	// KindSoD builds (or reuses from a pool) a fresh replica on every
	// acquire, synced at acquire time; suited to infrequent, bursty
	// readers that would otherwise waste a dedicated persistent replica.
	KindSoD
	// KindShared builds at most one replica per tick and shares it across
	// every acquirer that tick, refcounted so the replica is released for
	// reuse once every holder has released its view.
	KindShared
)

// Provider is the common contract every snapshot strategy satisfies.
type Provider interface {
	Kind() Kind
	// ReleaseView returns a view acquired from this provider. Callers
	// must release every view they acquire exactly once.
	ReleaseView(v *world.View)
}
