// Package kvshard implements the static shard/replica map (component D) and
// the replicated shard server (component E): ownership checks, request
// deduplication, and primary-driven replicate-before-apply writes.
package kvshard

import (
	"fmt"
	"strconv"
)

// FailValue is the reserved in-band sentinel for a failed Get/Put/Append/
// Replicate reply. It occupies the same string space as legitimate stored
// values by design (see SPEC_FULL.md §12) -- callers must check for it
// explicitly rather than relying on a distinct error channel.
const FailValue = "__FAIL__"

// ShardOf computes the shard a key belongs to. Keys that parse as
// non-negative integers hash by value; everything else hashes by the sum of
// its code points. nshards must be positive.
func ShardOf(key string, nshards int) int {
	if v, err := strconv.Atoi(key); err == nil && v >= 0 {
		return v % nshards
	}
	sum := 0
	for _, r := range key {
		sum += int(r)
	}
	return sum % nshards
}

// ShardTable is the static, once-built mapping from shard id to its ordered
// replica server ids. The first id in a shard's list is the primary.
type ShardTable struct {
	replicas [][]int // index by shard id
}

// BuildShardTable assigns replicasPerShard distinct server ids to each of
// nshards shards over a flat id space of nshards*replicasPerShard servers --
// one contiguous block of server ids per shard, mirroring how the
// original test harness laid out "shard_id, replica index" pairs.
func BuildShardTable(nshards, replicasPerShard int) (*ShardTable, error) {
	if nshards <= 0 {
		return nil, fmt.Errorf("kvshard: nshards must be positive, got %d", nshards)
	}
	if replicasPerShard <= 0 {
		return nil, fmt.Errorf("kvshard: replicasPerShard must be positive, got %d", replicasPerShard)
	}

	t := &ShardTable{replicas: make([][]int, nshards)}
	nextID := 0
	for shard := 0; shard < nshards; shard++ {
		ids := make([]int, replicasPerShard)
		for i := range ids {
			ids[i] = nextID
			nextID++
		}
		t.replicas[shard] = ids
	}
	return t, nil
}

// NShards returns the number of shards in the table.
func (t *ShardTable) NShards() int { return len(t.replicas) }

// TotalServers returns the number of distinct server ids the table spans.
func (t *ShardTable) TotalServers() int {
	total := 0
	for _, ids := range t.replicas {
		total += len(ids)
	}
	return total
}

// ReplicasFor returns the ordered replica list for shard, or nil if shard is
// out of range.
func (t *ShardTable) ReplicasFor(shard int) []int {
	if shard < 0 || shard >= len(t.replicas) {
		return nil
	}
	out := make([]int, len(t.replicas[shard]))
	copy(out, t.replicas[shard])
	return out
}

// ShardOfServer returns the shard id serverID belongs to and true, or
// (0, false) if no shard claims it.
func (t *ShardTable) ShardOfServer(serverID int) (int, bool) {
	for shard, ids := range t.replicas {
		for _, id := range ids {
			if id == serverID {
				return shard, true
			}
		}
	}
	return 0, false
}

// IsPrimary reports whether serverID is the first (primary) replica listed
// for shard.
func (t *ShardTable) IsPrimary(serverID, shard int) bool {
	ids := t.ReplicasFor(shard)
	return len(ids) > 0 && ids[0] == serverID
}
