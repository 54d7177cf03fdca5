// Command gambit-bitbase generates endgame bitbase files via retrograde
// analysis and writes them to disk in the clustered, compressed format
// internal/bitbase/file.go reads back. Built as a standalone generator
// binary with cobra/pflag for its flag set.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/finnhauge/gambit/internal/bitbase"
	"github.com/finnhauge/gambit/internal/material"
	"github.com/finnhauge/gambit/internal/storage"
)

// wildcardLetters is the piece alphabet a '*' in a --signature pattern
// expands over, e.g. "K*K" becomes KPK, KNK, KBK, KRK, KQK.
const wildcardLetters = "PNBRQ"

func main() {
	var (
		out          string
		workers      int
		clusterBytes int
		verbose      bool
		noManifest   bool
	)

	root := &cobra.Command{
		Use:   "gambit-bitbase <signature...>",
		Short: "Generate endgame bitbase files via retrograde analysis",
		Long: "Generate one or more endgame bitbase files, e.g.\n" +
			"  gambit-bitbase KPK KRK\n" +
			"  gambit-bitbase 'K*K'      # expands to KPK, KNK, KBK, KRK, KQK\n" +
			"Signatures are generated smallest-material first so each one's\n" +
			"captures can resolve against an already-generated prerequisite.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelInfo
			}
			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			sigs, err := expandAndParse(args)
			if err != nil {
				return err
			}
			sort.Slice(sigs, func(i, j int) bool { return sigs[i].TotalPieces() < sigs[j].TotalPieces() })

			if err := os.MkdirAll(out, 0o755); err != nil {
				return fmt.Errorf("gambit-bitbase: create %s: %w", out, err)
			}

			var store *storage.Storage
			if !noManifest {
				st, err := storage.NewStorage()
				if err != nil {
					log.Warn("manifest disabled", "err", err)
				} else {
					store = st
					defer store.Close()
				}
			}

			prereqs := bitbase.NewRegistry(256, 0)
			for _, sig := range sigs {
				log.Info("generating", "signature", sig.String(), "workers", workers)
				start := time.Now()
				layout := bitbase.LayoutFor(sig)
				gen := bitbase.NewGenerator(layout, bitbase.DefaultPositionBuilder(layout), workers)
				gen.SetPrerequisites(prereqs)

				bb, err := gen.Generate(context.Background())
				if err != nil {
					return fmt.Errorf("gambit-bitbase: generate %s: %w", sig, err)
				}

				path := filepath.Join(out, sig.String()+".gbb")
				if err := bb.StoreTo(path, clusterBytes); err != nil {
					return fmt.Errorf("gambit-bitbase: write %s: %w", path, err)
				}
				prereqs.Register(sig, bb)

				if store != nil {
					err := store.RecordGenerated(storage.BitbaseManifestEntry{
						Signature:    sig.String(),
						Path:         path,
						ClusterBytes: clusterBytes,
						Workers:      workers,
					})
					if err != nil {
						log.Warn("manifest update failed", "signature", sig.String(), "err", err)
					}
				}

				log.Info("wrote", "path", path, "positions", bb.Size(), "elapsed", time.Since(start).Round(time.Millisecond))
			}
			return nil
		},
	}

	root.Flags().StringVar(&out, "out", "./bitbases", "output directory for generated .gbb files")
	root.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "parallel goroutines per retrograde sweep")
	root.Flags().IntVar(&clusterBytes, "cluster-bytes", 4096, "uncompressed cluster size for the on-disk format")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "print generation progress to stderr")
	root.Flags().BoolVar(&noManifest, "no-manifest", false, "skip recording generated files in the BadgerDB manifest")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// expandAndParse expands every '*' wildcard pattern in args over
// wildcardLetters and parses the results into material signatures,
// deduplicating by the signature's canonical string.
func expandAndParse(args []string) ([]material.Signature, error) {
	seen := make(map[string]bool)
	var sigs []material.Signature
	for _, pattern := range args {
		for _, candidate := range expandWildcard(pattern) {
			sig, ok := material.ParseSignature(candidate)
			if !ok {
				return nil, fmt.Errorf("gambit-bitbase: invalid signature %q", candidate)
			}
			key := sig.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			sigs = append(sigs, sig)
		}
	}
	return sigs, nil
}

// expandWildcard replaces a single '*' in pattern with each letter in
// wildcardLetters, or returns pattern unchanged if it has none.
func expandWildcard(pattern string) []string {
	idx := strings.IndexByte(pattern, '*')
	if idx < 0 {
		return []string{pattern}
	}
	out := make([]string, 0, len(wildcardLetters))
	for _, letter := range wildcardLetters {
		out = append(out, pattern[:idx]+string(letter)+pattern[idx+1:])
	}
	return out
}
