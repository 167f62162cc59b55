// Command simkv is a demo binary over the sharded, primary-replicated store:
// it boots a cluster in one process (the simulated Network never crosses a
// real socket) and either serves the admin introspection HTTP surface or
// runs a small scripted workload against a freshly minted Clerk. It replaces
// the teacher lineage's separate cmd/server and cmd/client binaries, since
// here there is nothing listening on a real port for a client to dial.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/admin"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/cluster"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	fs := flag.NewFlagSet("simkv", flag.ContinueOnError)
	cfg := config.RegisterFlags(fs)

	root := &cobra.Command{
		Use:           "simkv",
		Short:         "sharded, primary-replicated in-memory key-value store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().AddGoFlagSet(fs)

	root.AddCommand(newServeCmd(cfg))
	root.AddCommand(newDemoCmd(cfg))
	root.AddCommand(newGetCmd(cfg))
	root.AddCommand(newPutCmd(cfg))
	root.AddCommand(newAppendCmd(cfg))
	root.AddCommand(newFaultsCmd(cfg))
	return root
}

// newServeCmd builds a cluster and blocks serving the admin introspection
// HTTP surface until interrupted, in the teacher lineage's graceful-shutdown
// style (signal.Notify + http.Server.Shutdown).
func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "boot a cluster and serve its admin introspection surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			c, err := buildCluster(cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			gin.SetMode(gin.ReleaseMode)
			router := gin.New()
			router.Use(admin.Logger(), admin.Recovery())
			admin.NewHandler(c).Register(router)

			srv := &http.Server{Addr: cfg.AdminAddr, Handler: router}

			errCh := make(chan error, 1)
			go func() {
				logrus.WithField("addr", cfg.AdminAddr).Info("simkv: admin surface listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-sigCh:
				logrus.Info("simkv: shutting down")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}

// newDemoCmd runs a short scripted Put/Append/Get workload and a server
// restart, printing results the way a lab harness' test output would, then
// exits. It exercises at-most-once semantics and primary-driven replication
// without requiring a second process.
func newDemoCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "run a scripted workload against an in-process cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			c, err := buildCluster(cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			ck := c.NewClerk()
			fmt.Println("put(0, hello)  ->", ck.Put("0", "hello"))
			fmt.Println("append(0, world) ->", ck.Append("0", " world"))
			fmt.Println("get(0)         ->", ck.Get("0"))

			replicas := c.Table.ReplicasFor(0)
			if len(replicas) > 1 {
				backup := replicas[1]
				c.StopServer(backup)
				fmt.Printf("stopped replica %d\n", backup)
				c.StartServer(backup)
				fmt.Printf("restarted replica %d\n", backup)
			}
			fmt.Println("get(0) after restart ->", ck.Get("0"))
			return nil
		},
	}
}

// newGetCmd boots a fresh cluster and issues a single Clerk.Get, since the
// store's lifetime equals the process (§3 lifecycle) -- there is no second
// process for one-shot subcommands to share state with, so each call is its
// own ephemeral cluster.
func newGetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "issue a single Clerk.Get against a freshly booted cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			c, err := buildCluster(cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			fmt.Println(c.NewClerk().Get(args[0]))
			return nil
		},
	}
}

// newPutCmd boots a fresh cluster and issues a single Clerk.Put.
func newPutCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "issue a single Clerk.Put against a freshly booted cluster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			c, err := buildCluster(cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			fmt.Println(c.NewClerk().Put(args[0], args[1]))
			return nil
		},
	}
}

// newAppendCmd boots a fresh cluster and issues a single Clerk.Append.
func newAppendCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "append <key> <value>",
		Short: "issue a single Clerk.Append against a freshly booted cluster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			c, err := buildCluster(cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			fmt.Println(c.NewClerk().Append(args[0], args[1]))
			return nil
		},
	}
}

// newFaultsCmd overrides the configured fault mode, then runs the
// Put/Append/Get part of newDemoCmd's scripted workload (without the replica
// restart), so the effect of the chosen mode on a
// mixed Put/Append/Get sequence is directly observable. It does not
// constitute the fault-injection test harness §1 excludes from the core --
// it is a fixed, ten-line demonstration, not a configurable workload driver.
func newFaultsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "faults <reliable|unreliable|long-reordering>",
		Short: "toggle a fault mode and run a scripted workload under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "reliable":
				cfg.Reliable = true
				cfg.LongReordering = false
			case "unreliable":
				cfg.Reliable = false
				cfg.LongReordering = false
			case "long-reordering":
				cfg.Reliable = true
				cfg.LongReordering = true
			default:
				return fmt.Errorf("simkv: unknown fault mode %q (want reliable|unreliable|long-reordering)", args[0])
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			c, err := buildCluster(cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			ck := c.NewClerk()
			fmt.Println("put(0, hello)    ->", ck.Put("0", "hello"))
			fmt.Println("append(0, world) ->", ck.Append("0", " world"))
			fmt.Println("get(0)           ->", ck.Get("0"))
			return nil
		},
	}
}

func buildCluster(cfg *config.Config) (*cluster.Cluster, error) {
	c, err := cluster.New(cfg.NShards, cfg.ReplicasPerShard)
	if err != nil {
		return nil, err
	}
	c.Net.Reliable(cfg.Reliable)
	c.Net.LongReordering(cfg.LongReordering)
	c.Net.LongDelays(cfg.LongDelays)
	return c, nil
}
