// Command assetcachedemo exercises an AssetCache[string] against a
// filesystem-backed Vfs, for manual poking at the library from a
// terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/arjuna-sys/assetcache"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "assetcachedemo",
		Short:         "Exercise an AssetCache against a directory of files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("root", ".", "vfs root directory")
	root.PersistentFlags().Uint64("max-bytes-cost", 1<<20, "byte-LRU budget")
	root.PersistentFlags().Uint64("max-decoded-cost", 1<<20, "decoded-LRU budget")
	root.PersistentFlags().Uint64("max-object-bytes-cost", 1<<16, "single-object byte-LRU admission threshold")
	root.PersistentFlags().Uint64("max-object-decoded-cost", 1<<16, "single-object decoded-LRU admission threshold")
	root.PersistentFlags().Bool("verbose", false, "enable debug logging")

	_ = v.BindPFlags(root.PersistentFlags())
	v.SetEnvPrefix("ASSETCACHE")
	v.AutomaticEnv()

	root.AddCommand(newGetCommand(v))
	return root
}

func buildCache(v *viper.Viper) (*assetcache.AssetCache[string], error) {
	vfs, err := assetcache.NewFilesystemVfs(v.GetString("root"))
	if err != nil {
		return nil, err
	}

	config, err := assetcache.NewConfigBuilder().
		WithMaxBytesCost(v.GetUint64("max-bytes-cost")).
		WithMaxDecodedCost(v.GetUint64("max-decoded-cost")).
		WithMaxSingleObjectBytesCost(v.GetUint64("max-object-bytes-cost")).
		WithMaxSingleObjectDecodedCost(v.GetUint64("max-object-decoded-cost")).
		Build()
	if err != nil {
		return nil, err
	}

	var opts []assetcache.Option[string]
	if v.GetBool("verbose") {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		opts = append(opts, assetcache.WithLogger[string](logger))
	}

	return assetcache.New[string](vfs, textDecoder{}, config, opts...), nil
}

func newGetCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key> [key...]",
		Short: "Fetch one or more keys, then print cache statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := buildCache(v)
			if err != nil {
				return err
			}

			ctx := context.Background()
			for _, key := range args {
				handle, err := cache.Get(ctx, key)
				if err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), color.RedString("%s: %v", key, err))
					continue
				}
				value := handle.Value()
				handle.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n",
					color.GreenString(key), humanize.Bytes(uint64(len(value))), truncate(value, 80))
			}

			printStats(cmd, cache.Stats())
			return nil
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func printStats(cmd *cobra.Command, stats assetcache.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"hits", "misses", "decodes", "vfs errors", "decode errors"})
	t.AppendRow(table.Row{stats.Hits, stats.Misses, stats.Decodes, stats.VfsErrors, stats.DecodeErrors})
	t.Render()
}
