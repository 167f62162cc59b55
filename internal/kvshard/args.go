package kvshard

// Op names the mutation carried by a Put/Append/Replicate request -- this
// is the wire-level string, not a Go type, so it round-trips through the
// codec unchanged.
type Op string

const (
	OpPut    Op = "Put"
	OpAppend Op = "Append"
)

// GetArgs is the argument record for KVServer.Get.
type GetArgs struct {
	Key string
}

// GetReply is the reply record for KVServer.Get. Value is FailValue on any
// rejection (wrong shard, disabled, not in this replica's own list).
type GetReply struct {
	Value string
}

// PutAppendArgs is the argument record shared by KVServer.Put,
// KVServer.Append, and KVServer.Replicate. Replicate calls issued as part
// of another request's fan-out carry that original mutating request's
// RequestID, so peers dedup on the same key as the primary.
type PutAppendArgs struct {
	Key       string
	Value     string
	Op        Op
	RequestID string
}

// PutAppendReply is the reply record shared by Put, Append, and Replicate.
// Value is the key's prior value on success, or FailValue on rejection.
type PutAppendReply struct {
	Value string
}
