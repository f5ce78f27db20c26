/*
 * Copyright (c) 2024, BDAE Storage Project. All rights reserved.
 */
package store

import (
	"testing"

	"github.com/steffenkarlsson/bdae-storage/cmn"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestCreateThenAlreadyExists(t *testing.T) {
	s := openTestStore(t)
	const did = cmn.DIdentifier(42)

	if err := s.Create(did, Metadata{"dataset-name": "weather"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create(did, Metadata{"dataset-name": "weather2"})
	if err != cmn.ErrAlreadyExists {
		t.Fatalf("Create on existing id: got %v, want ErrAlreadyExists", err)
	}

	meta, err := s.GetMeta(did)
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if meta["dataset-name"] != "weather" {
		t.Fatalf("store was mutated by failed second create: %v", meta)
	}
}

func TestAppendMonotonicity(t *testing.T) {
	s := openTestStore(t)
	const did = cmn.DIdentifier(7)
	if err := s.Create(did, Metadata{"dataset-name": "x"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	blocks := []Block{{1, 2, 3}, {4, 5}, {6}}
	for _, b := range blocks {
		if err := s.Append(did, b); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := s.Blocks(did, true)
	if err != nil {
		t.Fatalf("Blocks: %v", err)
	}
	if len(got) != len(blocks) {
		t.Fatalf("expected %d blocks, got %d", len(blocks), len(got))
	}
	for i := range blocks {
		if len(got[i]) != len(blocks[i]) {
			t.Fatalf("block %d length mismatch: got %v want %v", i, got[i], blocks[i])
		}
	}
}

func TestAppendOnUnknownDataset(t *testing.T) {
	s := openTestStore(t)
	err := s.Append(cmn.DIdentifier(99), Block{1})
	if err != cmn.ErrNotFound {
		t.Fatalf("Append on unknown dataset: got %v, want ErrNotFound", err)
	}
}

func TestUpdateMetaKeyAppendNumeric(t *testing.T) {
	s := openTestStore(t)
	const did = cmn.DIdentifier(1)
	if err := s.Create(did, Metadata{"num-blocks": float64(0)}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.UpdateMetaKey(did, MetaAppend, "num-blocks", float64(3)); err != nil {
		t.Fatalf("UpdateMetaKey: %v", err)
	}
	meta, _ := s.GetMeta(did)
	if meta["num-blocks"] != float64(3) {
		t.Fatalf("expected num-blocks=3, got %v", meta["num-blocks"])
	}
	if err := s.UpdateMetaKey(did, MetaOverride, "num-blocks", float64(10)); err != nil {
		t.Fatalf("UpdateMetaKey override: %v", err)
	}
	meta, _ = s.GetMeta(did)
	if meta["num-blocks"] != float64(10) {
		t.Fatalf("expected num-blocks=10 after override, got %v", meta["num-blocks"])
	}
}

func TestUpdateMetaKeyAppendString(t *testing.T) {
	s := openTestStore(t)
	const did = cmn.DIdentifier(2)
	if err := s.Create(did, Metadata{"source": "part1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.UpdateMetaKey(did, MetaAppend, "source", "part2"); err != nil {
		t.Fatalf("UpdateMetaKey: %v", err)
	}
	meta, _ := s.GetMeta(did)
	if meta["source"] != "part1part2" {
		t.Fatalf("expected concatenated string, got %v", meta["source"])
	}
}

func TestGetMetaNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetMeta(cmn.DIdentifier(123)); err != cmn.ErrNotFound {
		t.Fatalf("GetMeta on unknown dataset: got %v, want ErrNotFound", err)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	const did = cmn.DIdentifier(55)
	if err := s.Create(did, Metadata{"dataset-name": "persisted"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Append(did, Block{1, 2}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	meta, err := s2.GetMeta(did)
	if err != nil {
		t.Fatalf("GetMeta after reopen: %v", err)
	}
	if meta["dataset-name"] != "persisted" {
		t.Fatalf("metadata lost across reopen: %v", meta)
	}
	blocks, err := s2.Blocks(did, true)
	if err != nil || len(blocks) != 1 {
		t.Fatalf("blocks lost across reopen: %v, err=%v", blocks, err)
	}
}
