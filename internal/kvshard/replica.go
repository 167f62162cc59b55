package kvshard

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/codec"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/rpcnet"
)

const maxReplicateAttempts = 5

// EndpointLookup resolves a peer server id to the ClientEnd this replica
// should use to reach it. Replicas never construct or own their peers'
// endpoints directly -- they ask for one lazily, which is what breaks the
// replica/endpoint/network/host/replica reference cycle (SPEC_FULL.md §9).
type EndpointLookup func(serverID int) *rpcnet.ClientEnd

// KVServer owns exactly one shard: it holds that shard's store and dedup
// table, and replicates Put/Append calls to its sibling replicas before
// committing them locally.
type KVServer struct {
	myID       int
	shardID    int
	nshards    int
	replicaIDs []int // full ordered list for this shard, including self
	getEnd     EndpointLookup
	net        *rpcnet.Network

	mu    sync.Mutex // guards store and dedup together, never held across RPCs
	store *store
	dedup map[string]PutAppendReply
}

// NewKVServer constructs a replica for shardID, identified as myID, whose
// shard-mates (in primary-first order) are replicaIDs. nshards is the total
// shard count, needed to recompute shard_of(key) on every call. net is
// consulted for its reliability flag and, on Get, for whether this replica
// is enabled; getEnd supplies outbound connections to peers on demand.
func NewKVServer(myID, shardID, nshards int, replicaIDs []int, net *rpcnet.Network, getEnd EndpointLookup) *KVServer {
	return &KVServer{
		myID:       myID,
		shardID:    shardID,
		nshards:    nshards,
		replicaIDs: append([]int(nil), replicaIDs...),
		getEnd:     getEnd,
		net:        net,
		store:      newStore(),
		dedup:      make(map[string]PutAppendReply),
	}
}

// ShardID returns the shard this replica owns.
func (kv *KVServer) ShardID() int { return kv.shardID }

// IsPrimary reports whether this replica is the first entry in its own
// replica list.
func (kv *KVServer) IsPrimary() bool {
	return len(kv.replicaIDs) > 0 && kv.replicaIDs[0] == kv.myID
}

// StoreSize and DedupSize back the admin introspection surface (SPEC_FULL.md
// §11); the dedup table is unbounded by design (§12), so exposing its size
// is the only mitigation the core design allows.
func (kv *KVServer) StoreSize() int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.store.size()
}

func (kv *KVServer) DedupSize() int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return len(kv.dedup)
}

// owns reports whether this replica is listed as one of key's shard's
// replicas -- the shard-ownership admission check shared by every RPC
// handler.
func (kv *KVServer) owns(key string) bool {
	if ShardOf(key, kv.nshards) != kv.shardID {
		return false
	}
	for _, id := range kv.replicaIDs {
		if id == kv.myID {
			return true
		}
	}
	return false
}

// Get serves a pure read: no dedup, no replication, and no mutation of any
// kind. It fails if this replica does not own the key or is network-disabled.
func (kv *KVServer) Get(args *GetArgs, reply *GetReply) {
	if !kv.owns(args.Key) || !kv.net.IsServerEnabled(kv.myID) {
		reply.Value = FailValue
		return
	}
	kv.mu.Lock()
	v, ok := kv.store.get(args.Key)
	kv.mu.Unlock()
	if !ok {
		reply.Value = ""
		return
	}
	reply.Value = v
}

// Put applies store[key] = value and returns the key's prior value.
func (kv *KVServer) Put(args *PutAppendArgs, reply *PutAppendReply) {
	kv.handlePutAppend(args, reply)
}

// Append applies store[key] = store[key] + value and returns the key's
// prior value.
func (kv *KVServer) Append(args *PutAppendArgs, reply *PutAppendReply) {
	kv.handlePutAppend(args, reply)
}

// handlePutAppend is the dedup+replicate+apply protocol shared by Put and
// Append (§4.E): admission, early dedup, replicate-before-apply, the
// replication gate, then late dedup and apply.
func (kv *KVServer) handlePutAppend(args *PutAppendArgs, reply *PutAppendReply) {
	if !kv.owns(args.Key) {
		reply.Value = FailValue
		return
	}

	kv.mu.Lock()
	if cached, ok := kv.dedup[args.RequestID]; ok {
		kv.mu.Unlock()
		*reply = cached
		return
	}
	kv.mu.Unlock()

	peerCount, succeeded := kv.replicateToPeers(args)
	if peerCount > 0 && succeeded == 0 {
		reply.Value = FailValue
		return
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	if cached, ok := kv.dedup[args.RequestID]; ok {
		*reply = cached
		return
	}
	*reply = kv.applyLocked(args)
	kv.dedup[args.RequestID] = *reply
}

// Replicate is the terminal applier a peer runs when the primary forwards a
// mutation to it. It never re-replicates: only the primary that receives
// the original client call fans writes out.
func (kv *KVServer) Replicate(args *PutAppendArgs, reply *PutAppendReply) {
	if !kv.owns(args.Key) {
		reply.Value = FailValue
		return
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	if cached, ok := kv.dedup[args.RequestID]; ok {
		*reply = cached
		return
	}
	*reply = kv.applyLocked(args)
	kv.dedup[args.RequestID] = *reply
}

// applyLocked performs the actual store mutation. Caller must hold kv.mu.
func (kv *KVServer) applyLocked(args *PutAppendArgs) PutAppendReply {
	var old string
	switch args.Op {
	case OpAppend:
		old = kv.store.appendTo(args.Key, args.Value)
	default:
		old = kv.store.put(args.Key, args.Value)
	}
	return PutAppendReply{Value: old}
}

// replicateToPeers sends a Replicate RPC to every other replica in this
// shard, one peer at a time (replication is sequential within a request --
// SPEC_FULL.md §5), with up to maxReplicateAttempts attempts per peer and
// exponential backoff when the fabric is not in reliable mode. It returns
// the number of peers contacted and how many of them succeeded.
func (kv *KVServer) replicateToPeers(args *PutAppendArgs) (peerCount, succeeded int) {
	for _, peerID := range kv.replicaIDs {
		if peerID == kv.myID {
			continue
		}
		peerCount++
		if kv.replicateToOne(peerID, args) {
			succeeded++
		}
	}
	return peerCount, succeeded
}

func (kv *KVServer) replicateToOne(peerID int, args *PutAppendArgs) bool {
	end := kv.getEnd(peerID)
	reliable := kv.net.IsReliable()

	for attempt := 0; attempt < maxReplicateAttempts; attempt++ {
		var reply PutAppendReply
		ok := end.Call("KVServer.Replicate", args, &reply)
		if ok && reply.Value != FailValue {
			return true
		}
		logrus.WithFields(logrus.Fields{
			"primary": kv.myID,
			"peer":    peerID,
			"attempt": attempt,
		}).Debug("kvshard: replicate attempt failed")

		if attempt < maxReplicateAttempts-1 && !reliable {
			time.Sleep(Backoff(attempt))
		}
	}
	return false
}

// Service builds the explicit "KVServer" dispatch table a Host registers
// this replica under. This replaces reflection-based method lookup with a
// per-method handler that decodes its own argument type, calls the
// strongly-typed receiver method, and encodes the reply -- the rearchitecture
// pattern called for in SPEC_FULL.md §9.
func (kv *KVServer) Service() *rpcnet.Service {
	svc := rpcnet.NewService("KVServer")

	svc.Register("Get", func(b []byte) ([]byte, bool) {
		var args GetArgs
		if err := codec.Decode(b, &args); err != nil {
			return nil, false
		}
		var reply GetReply
		kv.Get(&args, &reply)
		out, err := codec.Encode(&reply)
		return out, err == nil
	})

	svc.Register("Put", func(b []byte) ([]byte, bool) {
		var args PutAppendArgs
		if err := codec.Decode(b, &args); err != nil {
			return nil, false
		}
		var reply PutAppendReply
		kv.Put(&args, &reply)
		out, err := codec.Encode(&reply)
		return out, err == nil
	})

	svc.Register("Append", func(b []byte) ([]byte, bool) {
		var args PutAppendArgs
		if err := codec.Decode(b, &args); err != nil {
			return nil, false
		}
		var reply PutAppendReply
		kv.Append(&args, &reply)
		out, err := codec.Encode(&reply)
		return out, err == nil
	})

	svc.Register("Replicate", func(b []byte) ([]byte, bool) {
		var args PutAppendArgs
		if err := codec.Decode(b, &args); err != nil {
			return nil, false
		}
		var reply PutAppendReply
		kv.Replicate(&args, &reply)
		out, err := codec.Encode(&reply)
		return out, err == nil
	})

	return svc
}

// Backoff is the shared exponential-backoff schedule used by replication
// retries and by the Clerk's own retry loop: min(0.05*2^attempt, 1.0)s.
func Backoff(attempt int) time.Duration {
	secs := math.Min(0.05*math.Pow(2, float64(attempt)), 1.0)
	return time.Duration(secs * float64(time.Second))
}
