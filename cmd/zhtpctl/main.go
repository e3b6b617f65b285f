// zhtpctl is an operator CLI that inspects and manipulates a node's
// local state directly: its badger store and its CAS bucket. It has
// no network client mode — the daemon no longer
// exposes a REST/gRPC surface (see DESIGN.md), so an operator runs
// zhtpctl against the same data directory the daemon is (or was)
// using, the way an offline admin tool inspects a database file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhtp/zhtp/internal/cas"
	"github.com/zhtp/zhtp/internal/storage"
	"github.com/zhtp/zhtp/pkg/config"
)

var (
	configFile string
	dataPath   string
)

func main() {
	root := &cobra.Command{
		Use:   "zhtpctl",
		Short: "Operator CLI for inspecting a zhtp node's local state",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "./config/config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&dataPath, "data", "", "override the storage path from config")

	root.AddCommand(storageCmd(), casCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dataPath != "" {
		cfg.Storage.Path = dataPath
	}
	return cfg, nil
}

func openStore() (*storage.BadgerStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return storage.NewBadgerStore(cfg.Storage.Path, cfg.Storage.CacheSize, cfg.Storage.Sync)
}

func storageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect the local key-value store",
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Fetch a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			val, err := store.Get(context.Background(), []byte(args[0]))
			if err != nil {
				return fmt.Errorf("get failed: %w", err)
			}
			if val == nil {
				return fmt.Errorf("key not found: %s", args[0])
			}
			fmt.Println(string(val))
			return nil
		},
	}

	putCmd := &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Set a value by key",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Set(context.Background(), []byte(args[0]), []byte(args[1])); err != nil {
				return fmt.Errorf("put failed: %w", err)
			}
			return nil
		},
	}

	hasCmd := &cobra.Command{
		Use:   "has <key>",
		Short: "Check whether a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ok, err := store.Has(context.Background(), []byte(args[0]))
			if err != nil {
				return fmt.Errorf("has failed: %w", err)
			}
			fmt.Println(ok)
			return nil
		},
	}

	cmd.AddCommand(getCmd, putCmd, hasCmd)
	return cmd
}

func casCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cas",
		Short: "Inspect the content-addressed object store",
	}

	openCAS := func() (*cas.CAS, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		return cas.NewCAS(cfg.CAS.Endpoint, cfg.CAS.AccessKey, cfg.CAS.SecretKey, cfg.CAS.Bucket, cfg.CAS.UseSSL)
	}

	infoCmd := &cobra.Command{
		Use:   "info <cid>",
		Short: "Show metadata for an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := openCAS()
			if err != nil {
				return err
			}
			info, err := store.GetInfo(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("get info failed: %w", err)
			}
			return printJSON(info)
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <cid>",
		Short: "Retrieve an object's bytes to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := openCAS()
			if err != nil {
				return err
			}
			r, err := store.Retrieve(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("retrieve failed: %w", err)
			}
			defer r.Close()
			_, err = io.Copy(os.Stdout, r)
			return err
		},
	}

	putCmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Store a file's bytes, printing the resulting object info",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := openCAS()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			info, err := store.Store(context.Background(), f, nil)
			if err != nil {
				return fmt.Errorf("store failed: %w", err)
			}
			return printJSON(info)
		},
	}

	cmd.AddCommand(infoCmd, getCmd, putCmd)
	return cmd
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
