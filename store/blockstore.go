// Package store is the persistent append-only block store: two
// durable maps, dataset id -> [metadata, block...] and dataset id ->
// existence flag, with write-through semantics (SPEC_FULL §4.2).
/*
 * Copyright (c) 2024, BDAE Storage Project. All rights reserved.
 */
package store

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/golang/glog"
	"github.com/sdomino/scribble"

	"github.com/steffenkarlsson/bdae-storage/cmn"
)

const (
	collRaw  = "raw"
	collFlag = "flag"
)

// Metadata is the decoded slot-0 record: dataset-name, num-blocks,
// root-idx, digest, source, plus whatever else a caller stashes under
// update_meta_key.
type Metadata map[string]interface{}

// Block is a finite ordered sequence of opaque records. The engine
// never interprets a record's contents; it only slices, concatenates,
// and hands blocks to the user pipeline.
type Block []interface{}

type datasetRecord struct {
	Meta   Metadata `json:"meta"`
	Blocks []Block  `json:"blocks"`
}

// Store is the write-through persisted block store for one node.
type Store struct {
	mu     sync.Mutex
	driver *scribble.Driver
	cache  map[cmn.DIdentifier]*datasetRecord
	flags  map[cmn.DIdentifier]bool
}

// Open creates (if needed) confDir and opens the scribble-backed
// store rooted there, matching the teacher's downloader.newDownloadDB
// pattern of one scribble.Driver per persisted subsystem.
func Open(confDir string) (*Store, error) {
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		return nil, err
	}
	driver, err := scribble.New(filepath.Join(confDir, "blockstore.db"), nil)
	if err != nil {
		return nil, err
	}
	s := &Store{
		driver: driver,
		cache:  make(map[cmn.DIdentifier]*datasetRecord),
		flags:  make(map[cmn.DIdentifier]bool),
	}
	return s, nil
}

func key(did cmn.DIdentifier) string { return strconv.FormatUint(uint64(did), 10) }

func (s *Store) exists(did cmn.DIdentifier) bool {
	if ok := s.flags[did]; ok {
		return true
	}
	var flag bool
	if err := s.driver.Read(collFlag, key(did), &flag); err == nil && flag {
		s.flags[did] = true
		return true
	}
	return false
}

func (s *Store) load(did cmn.DIdentifier) (*datasetRecord, bool) {
	if rec, ok := s.cache[did]; ok {
		return rec, true
	}
	var rec datasetRecord
	if err := s.driver.Read(collRaw, key(did), &rec); err != nil {
		if isIOError(err) {
			glog.Errorf("store: disk I/O error reading dataset %d: %v", did, err)
		} else if !os.IsNotExist(err) {
			glog.Errorf("store: read %d: %v", did, err)
		}
		return nil, false
	}
	s.cache[did] = &rec
	return &rec, true
}

func (s *Store) persist(did cmn.DIdentifier, rec *datasetRecord) error {
	s.cache[did] = rec
	if err := s.driver.Write(collRaw, key(did), rec); err != nil {
		if isIOError(err) {
			glog.Errorf("store: disk I/O error writing dataset %d: %v", did, err)
		}
		return err
	}
	return nil
}

// Create initializes a new dataset with the given metadata. Fails
// with cmn.ErrAlreadyExists if the dataset id is already known.
func (s *Store) Create(did cmn.DIdentifier, meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exists(did) {
		return cmn.ErrAlreadyExists
	}
	if err := s.driver.Write(collFlag, key(did), true); err != nil {
		return err
	}
	s.flags[did] = true
	glog.V(2).Infof("store: created dataset %d", did)
	return s.persist(did, &datasetRecord{Meta: meta, Blocks: nil})
}

// Append adds block to the dataset's block list. Fails with
// cmn.ErrNotFound if the dataset does not exist. Append is monotonic:
// blocks are never reordered or mutated after being written.
func (s *Store) Append(did cmn.DIdentifier, block Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.load(did)
	if !ok {
		return cmn.ErrNotFound
	}
	rec.Blocks = append(rec.Blocks, block)
	glog.V(3).Infof("store: appended block %d to dataset %d (now %d blocks)", len(rec.Blocks)-1, did, len(rec.Blocks))
	return s.persist(did, rec)
}

// GetMeta returns the dataset's metadata record, or cmn.ErrNotFound.
func (s *Store) GetMeta(did cmn.DIdentifier) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.load(did)
	if !ok {
		return nil, cmn.ErrNotFound
	}
	return rec.Meta, nil
}

// MetaUpdateMode selects how UpdateMetaKey combines the existing
// value with the new one.
type MetaUpdateMode int

const (
	// MetaAppend adds numerically, or concatenates for strings.
	MetaAppend MetaUpdateMode = iota
	// MetaOverride replaces the value outright.
	MetaOverride
)

// UpdateMetaKey applies mode to metadata[key], re-persisting the
// record. "append" sums numeric operands as float64 (JSON's native
// number type), whether the stored value is a float64 read back from
// disk or an int still held in memory.
func (s *Store) UpdateMetaKey(did cmn.DIdentifier, mode MetaUpdateMode, key_ string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.load(did)
	if !ok {
		return cmn.ErrNotFound
	}
	if rec.Meta == nil {
		rec.Meta = Metadata{}
	}
	switch mode {
	case MetaOverride:
		rec.Meta[key_] = value
	case MetaAppend:
		rec.Meta[key_] = appendValue(rec.Meta[key_], value)
	}
	return s.persist(did, rec)
}

// appendValue implements the Python `jdataset[key] += value` dynamic
// dispatch: numeric operands add, string operands concatenate.
func appendValue(existing, value interface{}) interface{} {
	if existing == nil {
		return value
	}
	if ev, ok := asFloat(existing); ok {
		if nv, ok := asFloat(value); ok {
			return ev + nv
		}
	}
	if ev, ok := existing.(string); ok {
		if sv, ok := value.(string); ok {
			return ev + sv
		}
	}
	return value
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Blocks returns the dataset's block list: slots 1.. if isRoot (the
// root's slot 0 holds metadata, excluded from "raw data"), else the
// whole list, since non-root nodes have no metadata slot.
func (s *Store) Blocks(did cmn.DIdentifier, isRoot bool) ([]Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.load(did)
	if !ok {
		return nil, cmn.ErrNotFound
	}
	_ = isRoot // meta is stored out-of-band (rec.Meta); rec.Blocks never includes it
	out := make([]Block, len(rec.Blocks))
	copy(out, rec.Blocks)
	return out, nil
}
