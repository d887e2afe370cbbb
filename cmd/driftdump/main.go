// driftdump is a small debugging companion: it walks a driftwatch revision
// database and prints every stored revision to stdout.
package main

import (
	"flag"
	"fmt"
	"log"
	"slices"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"

	"github.com/driftwatch-project/driftwatch/internal/store"
	badgerStore "github.com/driftwatch-project/driftwatch/internal/store/badger"
	bboltStore "github.com/driftwatch-project/driftwatch/internal/store/bbolt"
	"github.com/driftwatch-project/driftwatch/internal/util"
)

func main() {
	var (
		flagBackend string
		flagVerbose bool
		flagRecords bool

		flagTargets util.StringSliceFlag
	)
	flag.StringVar(&flagBackend, "backend", "bbolt", "Storage backend the database was written with (bbolt or badger)")
	flag.BoolVar(&flagVerbose, "verbose", false, "Dump the full decoded snapshot value of every revision")
	flag.BoolVar(&flagRecords, "records", true, "Print the change records of every revision")

	flag.Var(&flagTargets, "target", "Target to dump (can be specified multiple times, default: all)")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: driftdump [FLAGS] <database-path>")
	}
	dbPath := flag.Arg(0)

	var (
		st  store.SnapshotStore
		err error
	)
	switch flagBackend {
	case "badger":
		st, err = badgerStore.New(dbPath, nil, false)
	case "bbolt":
		st, err = bboltStore.New(dbPath, nil, false)
	default:
		log.Fatalf("unknown backend %q, expected bbolt or badger", flagBackend)
	}
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer func(st store.SnapshotStore) {
		_ = st.Close()
	}(st)

	var revisions, printed int
	err = st.WalkRevisions(func(target string, rev store.RevisionID, snap *store.Snapshot, cs *store.ChangeSet) bool {
		revisions++
		if len(flagTargets) > 0 && !slices.Contains(flagTargets, target) {
			return true
		}
		printed++

		fmt.Printf("%s r%s  %s (%s)\n",
			target, rev, snap.Taken.Format("2006-01-02 15:04:05"), humanize.Time(snap.Taken))

		if cs == nil {
			fmt.Println("  baseline")
		} else if flagRecords {
			for _, rec := range cs.Records {
				fmt.Printf("  %s\n", rec.Summary)
			}
		}

		if flagVerbose {
			value, valueErr := snap.Value()
			if valueErr != nil {
				log.Printf("[WARN] Cannot decode snapshot %s/r%s: %v", target, rev, valueErr)
				return true
			}
			spew.Dump(value)
		}
		return true
	})
	if err != nil {
		log.Fatalf("Error walking revisions: %v", err)
	}

	fmt.Printf("%d revisions stored, %d printed\n", revisions, printed)
}
