package clerkkv

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/kvshard"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/rpcnet"
)

// buildCluster wires a full nshards x replicasPerShard cluster over one
// Network and returns a ready-to-use Clerk, mirroring how a test harness
// would set up a config before driving Clerk calls against it.
func buildCluster(t *testing.T, nshards, replicasPerShard int) (*Clerk, *rpcnet.Network, *kvshard.ShardTable) {
	t.Helper()
	table, err := kvshard.BuildShardTable(nshards, replicasPerShard)
	require.NoError(t, err)

	net := rpcnet.NewNetwork()
	t.Cleanup(net.Cleanup)

	ends := make(map[int]*rpcnet.ClientEnd)
	total := table.TotalServers()
	for id := 0; id < total; id++ {
		name := fmt.Sprintf("end-%d", id)
		end := net.MakeEnd(name)
		net.Connect(name, id)
		net.Enable(name, true)
		ends[id] = end
	}

	getEnd := func(serverID int) *rpcnet.ClientEnd { return ends[serverID] }

	for shard := 0; shard < nshards; shard++ {
		replicaIDs := table.ReplicasFor(shard)
		for _, id := range replicaIDs {
			kv := kvshard.NewKVServer(id, shard, nshards, replicaIDs, net, getEnd)
			host := rpcnet.NewHost()
			host.AddService(kv.Service())
			net.AddServer(id, host)
		}
	}

	ck := New(net, ends, table, nshards)
	return ck, net, table
}

func TestClerkPutGetRoundTrip(t *testing.T) {
	ck, _, _ := buildCluster(t, 3, 3)

	old := ck.Put("0", "A")
	require.Equal(t, "", old)
	require.Equal(t, "A", ck.Get("0"))
}

func TestClerkPutThenAppend(t *testing.T) {
	ck, _, _ := buildCluster(t, 3, 3)

	ck.Put("4", "X")
	old := ck.Append("4", "Y")
	require.Equal(t, "X", old)
	require.Equal(t, "XY", ck.Get("4"))
}

func TestClerkNonIntegerKeyRoutesConsistently(t *testing.T) {
	ck, _, _ := buildCluster(t, 3, 2)

	ck.Put("abc", "val")
	require.Equal(t, "val", ck.Get("abc"))
}

func TestClerkFailsWhenAllNonPrimaryReplicasAreDown(t *testing.T) {
	ck, net, table := buildCluster(t, 1, 3)

	replicas := table.ReplicasFor(0)
	for _, id := range replicas[1:] {
		net.Enable(fmt.Sprintf("end-%d", id), false)
	}

	old := ck.Put("0", "Z")
	require.Equal(t, kvshard.FailValue, old)
	require.Equal(t, "", ck.Get("0"), "store must be unchanged after a failed write")
}

func TestClerkGetOnAbsentKeyIsEmpty(t *testing.T) {
	ck, _, _ := buildCluster(t, 1, 1)
	require.Equal(t, "", ck.Get("nope"))
}
