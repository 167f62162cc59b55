// Package cluster wires the Network fabric, the static shard table, a
// KVServer per replica, and Clerks into one runnable cluster. It plays the
// role the original test harness' Config object played: build the topology
// once, then let callers start/stop individual servers and mint clients
// against it.
package cluster

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/clerkkv"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/kvshard"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/rpcnet"
)

// ServerInfo is a read-only snapshot of one replica's identity, used by the
// admin introspection surface and by demo tooling.
type ServerInfo struct {
	ID        int  `json:"id"`
	ShardID   int  `json:"shard_id"`
	IsPrimary bool `json:"is_primary"`
	Running   bool `json:"running"`
}

// Cluster owns one Network and every replica and shared endpoint built on
// top of it. Every server id in the shard table gets exactly one shared
// ClientEnd: replicas and every Clerk reach a given server through the same
// named endpoint, so disabling that one endpoint is enough to model that
// server being down for the whole cluster, not just for one caller.
type Cluster struct {
	Net     *rpcnet.Network
	Table   *kvshard.ShardTable
	Nshards int

	mu      sync.Mutex
	ends    map[int]*rpcnet.ClientEnd
	servers map[int]*kvshard.KVServer
	running map[int]bool
}

// New builds a cluster of nshards shards with replicasPerShard replicas
// each, starting every server enabled and reachable.
func New(nshards, replicasPerShard int) (*Cluster, error) {
	table, err := kvshard.BuildShardTable(nshards, replicasPerShard)
	if err != nil {
		return nil, err
	}

	c := &Cluster{
		Net:     rpcnet.NewNetwork(),
		Table:   table,
		Nshards: nshards,
		ends:    make(map[int]*rpcnet.ClientEnd),
		servers: make(map[int]*kvshard.KVServer),
		running: make(map[int]bool),
	}

	total := table.TotalServers()
	for id := 0; id < total; id++ {
		name := endName(id)
		end := c.Net.MakeEnd(name)
		c.Net.Connect(name, id)
		c.Net.Enable(name, true)
		c.ends[id] = end
		c.running[id] = true
	}

	getEnd := func(serverID int) *rpcnet.ClientEnd { return c.ends[serverID] }

	for shard := 0; shard < nshards; shard++ {
		replicaIDs := table.ReplicasFor(shard)
		for _, id := range replicaIDs {
			kv := kvshard.NewKVServer(id, shard, nshards, replicaIDs, c.Net, getEnd)
			host := rpcnet.NewHost()
			host.AddService(kv.Service())
			c.Net.AddServer(id, host)
			c.servers[id] = kv
		}
	}

	logrus.WithFields(logrus.Fields{
		"nshards":          nshards,
		"replicasPerShard": replicasPerShard,
		"totalServers":     total,
	}).Info("cluster: started")

	return c, nil
}

func endName(serverID int) string { return fmt.Sprintf("server-%d", serverID) }

// NewClerk mints a Clerk against this cluster's endpoints and shard table.
func (c *Cluster) NewClerk() *clerkkv.Clerk {
	return clerkkv.New(c.Net, c.ends, c.Table, c.Nshards)
}

// StopServer disables the one shared endpoint for serverID, modeling a
// crash: every Clerk and every peer replica loses the ability to reach it
// until StartServer is called.
func (c *Cluster) StopServer(serverID int) {
	c.mu.Lock()
	c.running[serverID] = false
	c.mu.Unlock()
	c.Net.Enable(endName(serverID), false)
	logrus.WithField("server", serverID).Info("cluster: stopped server")
}

// StartServer re-enables serverID's shared endpoint.
func (c *Cluster) StartServer(serverID int) {
	c.mu.Lock()
	c.running[serverID] = true
	c.mu.Unlock()
	c.Net.Enable(endName(serverID), true)
	logrus.WithField("server", serverID).Info("cluster: started server")
}

// Server returns the KVServer registered for serverID, or nil.
func (c *Cluster) Server(serverID int) *kvshard.KVServer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.servers[serverID]
}

// Servers returns a stable-ordered snapshot of every replica's identity.
func (c *Cluster) Servers() []ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ServerInfo, 0, len(c.servers))
	for id := 0; id < len(c.servers); id++ {
		kv, ok := c.servers[id]
		if !ok {
			continue
		}
		out = append(out, ServerInfo{
			ID:        id,
			ShardID:   kv.ShardID(),
			IsPrimary: kv.IsPrimary(),
			Running:   c.running[id],
		})
	}
	return out
}

// Shutdown stops the underlying Network's dispatcher.
func (c *Cluster) Shutdown() {
	c.Net.Cleanup()
	logrus.Info("cluster: shut down")
}
