// Command weft-inspect loads a document snapshot and prints its structure:
// how many runs it stores, how much of the content is visible,
// and which actors contributed.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/burdiyan/go/mainutil"
	"github.com/peterbourgon/ff/v4"
	"github.com/sanity-io/litter"
	"go.uber.org/zap"

	"weft/backend/config"
	"weft/backend/crdt/snapshot"
	"weft/backend/crdt/span"
	"weft/backend/logging"
)

func main() {
	const envVarPrefix = "WEFT"

	mainutil.Run(func() error {
		fs := flag.NewFlagSet("weft-inspect", flag.ExitOnError)

		cfg := config.Default()
		cfg.BindFlags(fs)
		dumpRuns := fs.Bool("dump-runs", false, "Print every stored run")

		err := ff.Parse(fs, slices.Clone(os.Args[1:]), ff.WithEnvVarPrefix(envVarPrefix))
		if err != nil {
			if errors.Is(err, ff.ErrHelp) {
				fs.Usage()
				return nil
			}

			return err
		}

		if fs.NArg() != 1 {
			return fmt.Errorf("usage: weft-inspect [flags] <snapshot-file>")
		}

		log := logging.New("weft-inspect", cfg.LogLevel)

		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			return err
		}

		doc, err := snapshot.Decode(data)
		if err != nil {
			return fmt.Errorf("decoding snapshot %s: %w", fs.Arg(0), err)
		}

		var tombstoned int
		actors := make(map[span.Actor]struct{})
		for s := range doc.Runs() {
			actors[s.ID.Actor] = struct{}{}
			if !s.Status.IsActive() {
				tombstoned++
			}
		}

		log.Info("SnapshotLoaded",
			zap.String("file", fs.Arg(0)),
			zap.Int("size", len(data)),
			zap.Int("runs", doc.RunCount()),
			zap.Int("tombstonedRuns", tombstoned),
			zap.Int("visibleLen", doc.VisibleLen()),
			zap.Int("contentLen", doc.ContentLen()),
			zap.Int("actors", len(actors)),
		)

		if *dumpRuns {
			for s := range doc.Runs() {
				fmt.Println(litter.Sdump(s))
			}
		}

		return nil
	})
}
