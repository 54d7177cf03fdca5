// Command gambit-uci runs the engine as a UCI protocol handler over
// stdin/stdout, wiring internal/engine, internal/uci, and
// internal/storage together. Uses cobra for its flag set, which earns its
// keep once a BitbasePath default and persisted-option loading are both
// in play and the binary wants grouped help output.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finnhauge/gambit/internal/engine"
	"github.com/finnhauge/gambit/internal/storage"
	"github.com/finnhauge/gambit/internal/uci"
)

func main() {
	var hashMB int
	var bitbasePath string
	var noPersist bool

	root := &cobra.Command{
		Use:   "gambit-uci",
		Short: "Run the engine as a UCI protocol handler over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := engine.NewEngine(hashMB)

			var store *storage.Storage
			if !noPersist {
				s, err := storage.NewStorage()
				if err != nil {
					fmt.Fprintf(os.Stderr, "info string persistence disabled: %v\n", err)
				} else {
					store = s
					if opts, err := store.LoadEngineOptions(); err == nil {
						hashMB = opts.HashMB
						eng = engine.NewEngine(hashMB)
						if opts.BitbasePath != "" && bitbasePath == "" {
							bitbasePath = opts.BitbasePath
						}
					}
				}
			}

			if bitbasePath != "" {
				if err := eng.SetBitbasePath(bitbasePath); err != nil {
					fmt.Fprintf(os.Stderr, "info string failed to load bitbases from %s: %v\n", bitbasePath, err)
				}
			}

			protocol := uci.New(eng, store)
			protocol.Run()
			return nil
		},
	}

	root.Flags().IntVar(&hashMB, "hash", 64, "initial transposition table size in MB")
	root.Flags().StringVar(&bitbasePath, "bitbase-path", "", "directory of *.gbb endgame bitbase files to load at startup")
	root.Flags().BoolVar(&noPersist, "no-persist", false, "disable loading/saving engine options via BadgerDB")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
