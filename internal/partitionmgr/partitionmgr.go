// Package partitionmgr implements the partition manager (C5): the
// in-memory index of existing partitions, create-on-demand partition
// provisioning, and template-index replication.
package partitionmgr

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/bucket"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/catalog"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/logging"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/schema"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/vterrors"
)

var log = logging.GetLogger("partitionmgr")

// PartitionRef names one existing partition.
type PartitionRef struct {
	Bucket int64
	Name   string
}

// Manager owns the in-memory bucket -> partition-name index for one
// virtual table, plus a single entry point (EnsurePartition) that keeps
// the index and the lookup shadow table in lockstep (spec.md §4.5).
type Manager struct {
	mu           sync.RWMutex
	catalog      *catalog.Catalog
	schema       schema.Schema
	interval     bucket.Interval
	templateName string
	partitions   map[int64]string
	sf           singleflight.Group
}

// New builds a Manager seeded with the partition index read at CONNECT/CREATE time.
func New(cat *catalog.Catalog, s schema.Schema, iv bucket.Interval, templateName string, existing map[int64]string) *Manager {
	partitions := make(map[int64]string, len(existing))
	for k, v := range existing {
		partitions[k] = v
	}
	return &Manager{
		catalog:      cat,
		schema:       s,
		interval:     iv,
		templateName: templateName,
		partitions:   partitions,
	}
}

// Interval returns the bucketing interval this manager was built with.
func (m *Manager) Interval() bucket.Interval {
	return m.interval
}

// Lookup returns the partition name for bucket, if already known in memory.
func (m *Manager) Lookup(bucketStart int64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.partitions[bucketStart]
	return name, ok
}

// PartitionsInRange returns the partitions whose bucket falls in [lo, hi]
// (inclusive), in ascending bucket order — the canonical scan order for
// the cursor (spec.md §4.5).
func (m *Manager) PartitionsInRange(lo, hi int64) []PartitionRef {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var refs []PartitionRef
	for b, name := range m.partitions {
		if b >= lo && b <= hi {
			refs = append(refs, PartitionRef{Bucket: b, Name: name})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Bucket < refs[j].Bucket })
	return refs
}

// All returns a snapshot of the full bucket -> name index.
func (m *Manager) All() map[int64]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]string, len(m.partitions))
	for k, v := range m.partitions {
		out[k] = v
	}
	return out
}

// Rehydrate re-reads the lookup table and replaces the in-memory index,
// per spec.md §5/§9: the lookup table is the source of truth, and any
// operation that fails to find an expected partition must re-scan once
// before concluding PartitionMissing.
func (m *Manager) Rehydrate(ctx context.Context, q catalog.Querier) error {
	fresh, err := m.catalog.ReadLookup(ctx, q)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.partitions = fresh
	m.mu.Unlock()
	return nil
}

// EnsurePartition returns the partition name for bucket, creating the
// partition table, replicating template indexes, and inserting the lookup
// row if it doesn't exist yet. Concurrent calls for the same bucket are
// collapsed by singleflight — spec.md §5 requires serialized access to the
// map on platforms that permit multi-threaded use of one connection; this
// is that serialization.
func (m *Manager) EnsurePartition(ctx context.Context, q catalog.Querier, bucketStart int64) (string, error) {
	if name, ok := m.Lookup(bucketStart); ok {
		return name, nil
	}

	result, err, _ := m.sf.Do(fmt.Sprintf("%d", bucketStart), func() (interface{}, error) {
		if name, ok := m.Lookup(bucketStart); ok {
			return name, nil
		}

		name := catalog.PartitionTableName(m.catalog.BaseName, bucketStart)
		log.Info("creating partition", "base", m.catalog.BaseName, "bucket", bucketStart, "partition", name)

		if err := m.catalog.CreatePartitionTable(ctx, q, name, m.schema); err != nil {
			return nil, vterrors.NewPartitionCreateError(bucketStart, err)
		}

		indexes, err := m.catalog.TemplateIndexes(ctx, q, m.templateName)
		if err != nil {
			return nil, vterrors.NewPartitionCreateError(bucketStart, err)
		}
		for _, def := range indexes {
			if err := m.catalog.CreatePartitionIndex(ctx, q, name, bucketStart, def); err != nil {
				return nil, vterrors.NewPartitionCreateError(bucketStart, err)
			}
		}

		if err := m.catalog.InsertLookup(ctx, q, bucketStart, name); err != nil {
			return nil, vterrors.NewPartitionCreateError(bucketStart, err)
		}

		m.mu.Lock()
		m.partitions[bucketStart] = name
		m.mu.Unlock()

		return name, nil
	})

	if err != nil {
		return "", err
	}
	return result.(string), nil
}
