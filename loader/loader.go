// Package loader bulk-loads a local directory's files into a dataset
// as blocks, one block per file, in directory order. Adapted from
// the teacher's XactDirPromote (mirror/dpromote.go): a directory walk
// whose callback promotes each file into cluster storage, repurposed
// here to append into the block store instead of a bucket.
/*
 * Copyright (c) 2024, BDAE Storage Project. All rights reserved.
 */
package loader

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/golang/glog"

	"github.com/steffenkarlsson/bdae-storage/cmn"
	"github.com/steffenkarlsson/bdae-storage/store"
)

// Appender is the subset of the job coordinator's surface the loader
// needs. job.Coordinator.Append takes a context and returns a status
// too; cmd/storagenode's wiring supplies a small adapter closure
// binding a context.Background() and dropping the status.
type Appender interface {
	Append(did cmn.DIdentifier, block store.Block) error
}

// RecordFunc turns one file's raw bytes into the ordered records a
// block holds. The engine never interprets record contents itself
// (SPEC_FULL §3), so the caller supplies this.
type RecordFunc func(path string, data []byte) (store.Block, error)

// LoadDir walks dir (one level, matching the teacher's non-recursive
// default when Recurs is unset) in lexical file-name order and
// appends one block per regular file to did. A file that fails to
// read or decode is logged and skipped rather than aborting the
// whole load, matching the teacher's walk callback's per-file error
// handling.
func LoadDir(appender Appender, did cmn.DIdentifier, dir string, toBlock RecordFunc) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	loaded := 0
	for _, name := range names {
		fqn := filepath.Join(dir, name)
		data, err := os.ReadFile(fqn)
		if err != nil {
			glog.Errorf("loader: read %s: %v", fqn, err)
			continue
		}
		block, err := toBlock(fqn, data)
		if err != nil {
			glog.Errorf("loader: decode %s: %v", fqn, err)
			continue
		}
		if err := appender.Append(did, block); err != nil {
			return loaded, err
		}
		loaded++
		glog.V(3).Infof("loader: appended %s as block %d of dataset %d", fqn, loaded-1, did)
	}
	return loaded, nil
}
