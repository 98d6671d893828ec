package storage

import (
	"fmt"
	"sort"
	"testing"
)

func TestPrefixDB_GetPutDelete(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("blk/"))

	if err := db.Put([]byte("h100"), []byte("block-100")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get([]byte("h100"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "block-100" {
		t.Fatalf("Get = %q, want %q", got, "block-100")
	}

	ok, err := db.Has([]byte("h100"))
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !ok {
		t.Fatal("Has = false, want true")
	}

	if err := db.Delete([]byte("h100")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, err = db.Has([]byte("h100"))
	if err != nil {
		t.Fatalf("Has after delete: %v", err)
	}
	if ok {
		t.Fatal("Has after delete = true, want false")
	}
}

func TestPrefixDB_Isolation(t *testing.T) {
	inner := NewMemory()
	blocks := NewPrefixDB(inner, []byte("blk/"))
	mempool := NewPrefixDB(inner, []byte("mp/"))

	if err := blocks.Put([]byte("key"), []byte("a block")); err != nil {
		t.Fatal(err)
	}
	if err := mempool.Put([]byte("key"), []byte("a mempool tx")); err != nil {
		t.Fatal(err)
	}

	got, err := blocks.Get([]byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "a block" {
		t.Fatalf("blocks.Get = %q, want %q", got, "a block")
	}

	got, err = mempool.Get([]byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "a mempool tx" {
		t.Fatalf("mempool.Get = %q, want %q", got, "a mempool tx")
	}

	// One namespace cannot reach into the other via a raw key.
	ok, err := blocks.Has([]byte("mp/key"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("blocks namespace should not see mempool keys")
	}
}

func TestPrefixDB_ForEach(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("mp/"))

	db.Put([]byte("addr1/tx1"), []byte("v1"))
	db.Put([]byte("addr1/tx2"), []byte("v2"))
	db.Put([]byte("addr2/tx3"), []byte("v3"))

	var keys []string
	err := db.ForEach([]byte("addr1/"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}

	sort.Strings(keys)
	if len(keys) != 2 {
		t.Fatalf("ForEach returned %d keys, want 2", len(keys))
	}
	if keys[0] != "addr1/tx1" || keys[1] != "addr1/tx2" {
		t.Fatalf("ForEach keys = %v, want [addr1/tx1 addr1/tx2]", keys)
	}
}

func TestPrefixDB_ForEachStripsPrefix(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("blk/"))

	db.Put([]byte("hello"), []byte("world"))

	var sawKey string
	db.ForEach(nil, func(key, value []byte) error {
		sawKey = string(key)
		return nil
	})

	if sawKey != "hello" {
		t.Fatalf("ForEach callback key = %q, want %q (prefix should be stripped)", sawKey, "hello")
	}
}

func TestPrefixDB_ForEachStopEarly(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("blk/"))

	for i := 0; i < 10; i++ {
		db.Put([]byte(fmt.Sprintf("h%d", i)), []byte("v"))
	}

	count := 0
	stopErr := fmt.Errorf("stop")
	err := db.ForEach(nil, func(key, value []byte) error {
		count++
		if count >= 3 {
			return stopErr
		}
		return nil
	})
	if err != stopErr {
		t.Fatalf("ForEach err = %v, want stopErr", err)
	}
	if count != 3 {
		t.Fatalf("ForEach called %d times, want 3", count)
	}
}

func TestPrefixDB_DeleteAll(t *testing.T) {
	inner := NewMemory()
	blocks := NewPrefixDB(inner, []byte("blk/"))
	mempool := NewPrefixDB(inner, []byte("mp/"))

	blocks.Put([]byte("h1"), []byte("v1"))
	blocks.Put([]byte("h2"), []byte("v2"))
	blocks.Put([]byte("h3"), []byte("v3"))
	mempool.Put([]byte("h1"), []byte("other"))

	if err := blocks.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}

	for _, k := range []string{"h1", "h2", "h3"} {
		ok, _ := blocks.Has([]byte(k))
		if ok {
			t.Fatalf("blocks still has %q after DeleteAll", k)
		}
	}

	// The sibling namespace is untouched.
	got, err := mempool.Get([]byte("h1"))
	if err != nil {
		t.Fatalf("mempool.Get after blocks.DeleteAll: %v", err)
	}
	if string(got) != "other" {
		t.Fatalf("mempool.Get = %q, want %q", got, "other")
	}
}

func TestPrefixDB_DeleteAll_Empty(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("empty/"))

	if err := db.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll on empty: %v", err)
	}
}

func TestPrefixDB_CloseIsNoop(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("blk/"))

	db.Put([]byte("key"), []byte("val"))

	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The inner DB owns the lifecycle and keeps the data.
	got, err := inner.Get([]byte("blk/key"))
	if err != nil {
		t.Fatalf("inner.Get after Close: %v", err)
	}
	if string(got) != "val" {
		t.Fatalf("inner.Get = %q, want %q", got, "val")
	}
}
