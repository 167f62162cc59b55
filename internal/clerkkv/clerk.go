// Package clerkkv implements the Clerk (component F): the retrying client
// that maps a key to its shard's replica list, sends the operation, and
// retries with exponential backoff until it succeeds or exhausts its retry
// budget.
package clerkkv

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/kvshard"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/rpcnet"
)

// DefaultRetryLimit matches the original test harness' convention of
// retrying across every replica in the list a small, bounded number of
// times before giving up.
const DefaultRetryLimit = 10

// Clerk is a single client's view of the cluster: one outbound endpoint per
// server id, the shard table, and a private counter for request ids.
type Clerk struct {
	net        *rpcnet.Network
	ends       map[int]*rpcnet.ClientEnd
	table      *kvshard.ShardTable
	nshards    int
	retryLimit int

	mu       sync.Mutex
	randSeed int64
	counter  uint64
}

// New constructs a Clerk. ends must contain one ClientEnd per server id the
// shard table can name; net is used to check whether a replica's endpoint is
// currently enabled before attempting it.
func New(net *rpcnet.Network, ends map[int]*rpcnet.ClientEnd, table *kvshard.ShardTable, nshards int) *Clerk {
	return &Clerk{
		net:        net,
		ends:       ends,
		table:      table,
		nshards:    nshards,
		retryLimit: DefaultRetryLimit,
		randSeed:   randSeed(),
	}
}

// randSeed draws a fresh random token the way kvraft's nrand() does: a
// uniform value up to 2^62, read from crypto/rand rather than a seeded PRNG
// so concurrently-created Clerks never collide.
func randSeed() int64 {
	max := big.NewInt(int64(1) << 62)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand failing is a fatal environment error, not a retryable
		// condition -- there is no safe fallback for request-id uniqueness.
		logrus.WithError(err).Fatal("clerkkv: failed to read randomness for request id")
	}
	return n.Int64()
}

// nextRequestID returns a token unique for the lifetime of this Clerk: the
// fresh random seed combined with a monotonically increasing counter.
func (ck *Clerk) nextRequestID() string {
	ck.mu.Lock()
	defer ck.mu.Unlock()
	id := fmt.Sprintf("%d-%d", ck.randSeed, ck.counter)
	ck.counter++
	return id
}

// Get fetches key's current value. It carries no request id: reads are
// idempotent and the Clerk tolerates observing a stale value from whichever
// replica answers first.
func (ck *Clerk) Get(key string) string {
	replicas := ck.replicasFor(key)
	if len(replicas) == 0 {
		return kvshard.FailValue
	}

	for attempt := 0; attempt < ck.retryLimit; attempt++ {
		for _, serverID := range replicas {
			if !ck.net.IsServerEnabled(serverID) {
				continue
			}
			var reply kvshard.GetReply
			ok := ck.ends[serverID].Call("KVServer.Get", &kvshard.GetArgs{Key: key}, &reply)
			if ok && reply.Value != kvshard.FailValue {
				return reply.Value
			}
		}
		time.Sleep(kvshard.Backoff(attempt))
	}
	return kvshard.FailValue
}

// Put sets key to value and returns the value key held immediately before
// this call's mutation, or FailValue if every attempt was exhausted.
func (ck *Clerk) Put(key, value string) string {
	return ck.putAppend(key, value, kvshard.OpPut)
}

// Append appends value to key's current contents and returns the value key
// held immediately before this call's mutation.
func (ck *Clerk) Append(key, value string) string {
	return ck.putAppend(key, value, kvshard.OpAppend)
}

// putAppend allocates a request id once, before the retry loop, so retries
// of the same logical call share one id -- that is what lets server-side
// dedup make retries safe.
func (ck *Clerk) putAppend(key, value string, op kvshard.Op) string {
	replicas := ck.replicasFor(key)
	if len(replicas) == 0 {
		return kvshard.FailValue
	}

	requestID := ck.nextRequestID()
	args := &kvshard.PutAppendArgs{Key: key, Value: value, Op: op, RequestID: requestID}

	for attempt := 0; attempt < ck.retryLimit; attempt++ {
		for _, serverID := range replicas {
			if !ck.net.IsServerEnabled(serverID) {
				continue
			}
			var reply kvshard.PutAppendReply
			method := "KVServer." + string(op)
			ok := ck.ends[serverID].Call(method, args, &reply)
			if ok && reply.Value != kvshard.FailValue {
				return reply.Value
			}
		}
		time.Sleep(kvshard.Backoff(attempt))
	}
	return kvshard.FailValue
}

func (ck *Clerk) replicasFor(key string) []int {
	shard := kvshard.ShardOf(key, ck.nshards)
	return ck.table.ReplicasFor(shard)
}
