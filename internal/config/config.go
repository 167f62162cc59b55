// Package config loads the cluster's configuration knobs (§6: shard count,
// replicas per shard, reliability, long-reordering, long-delays) from
// flags, in the same flag-based, single-binary style the teacher lineage's
// cmd/server uses.
package config

import (
	"flag"

	"github.com/sirupsen/logrus"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/kvshard"
)

// Config is the fully-resolved, validated set of knobs a demo process needs
// to boot a cluster.
type Config struct {
	NShards          int
	ReplicasPerShard int
	Reliable         bool
	LongReordering   bool
	LongDelays       bool
	AdminAddr        string
}

// RegisterFlags binds Config's fields to flags on fs, returning the Config
// to populate once fs.Parse has run.
func RegisterFlags(fs *flag.FlagSet) *Config {
	cfg := &Config{}
	fs.IntVar(&cfg.NShards, "shards", 3, "number of shards")
	fs.IntVar(&cfg.ReplicasPerShard, "replicas", 3, "replicas per shard")
	fs.BoolVar(&cfg.Reliable, "reliable", true, "disable to inject drops and jitter")
	fs.BoolVar(&cfg.LongReordering, "long-reordering", false, "delay and reorder a majority of replies")
	fs.BoolVar(&cfg.LongDelays, "long-delays", false, "use long failure-injection delays")
	fs.StringVar(&cfg.AdminAddr, "admin-addr", ":8080", "listen address for the admin introspection HTTP surface")
	return cfg
}

// Validate checks the configuration is internally consistent, matching the
// teacher lineage's pattern of a fatal startup check on a bad quorum
// configuration -- here, a shard table that cannot be built at all.
func (cfg *Config) Validate() error {
	if _, err := kvshard.BuildShardTable(cfg.NShards, cfg.ReplicasPerShard); err != nil {
		logrus.WithError(err).Error("config: invalid shard table configuration")
		return err
	}
	return nil
}
