package pgcatalog

import (
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/weberc2/vsfs/pkg/types"
)

// These tests need a live postgres server; they run only when `PG_HOST` is
// set.
var catalog *PGCatalog

func TestMain(m *testing.M) {
	if os.Getenv("PG_HOST") == "" {
		log.Println("PG_HOST unset; skipping postgres catalog tests")
		os.Exit(0)
	}
	c, err := OpenEnv()
	if err != nil {
		log.Fatalf("unexpected error opening snapshot catalog: %v", err)
	}
	if err := c.ResetTable(); err != nil {
		log.Fatalf("unexpected error resetting snapshots table: %v", err)
	}
	catalog = c
	code := m.Run()
	c.Close()
	os.Exit(code)
}

var (
	earlier = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	later   = time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC)
)

func snapshot(id string, created time.Time) types.Snapshot {
	return types.Snapshot{
		ID:             id,
		Name:           "name-" + id,
		Key:            "snapshots/" + id + ".vsfs.gz",
		InodeCount:     64,
		DataBlockCount: 128,
		Size:           4096,
		Created:        created,
	}
}

func TestPGCatalog_Put(t *testing.T) {
	for _, testCase := range []struct {
		name        string
		state       []types.Snapshot
		snapshot    types.Snapshot
		wantedState []types.Snapshot
		wantedErr   error
	}{
		{
			name:        "simple",
			snapshot:    snapshot("a", earlier),
			wantedState: []types.Snapshot{snapshot("a", earlier)},
		},
		{
			name:        "ordered by creation",
			state:       []types.Snapshot{snapshot("b", later)},
			snapshot:    snapshot("c", earlier),
			wantedState: []types.Snapshot{snapshot("c", earlier), snapshot("b", later)},
		},
		{
			name:        "exists",
			state:       []types.Snapshot{snapshot("a", earlier)},
			snapshot:    snapshot("a", later),
			wantedState: []types.Snapshot{snapshot("a", earlier)},
			wantedErr:   types.ErrSnapshotExists,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			if err := prepare(testCase.state); err != nil {
				t.Fatal(err)
			}

			err := catalog.Put(&testCase.snapshot)
			if !errors.Is(err, testCase.wantedErr) {
				t.Fatalf("PGCatalog.Put(): wanted `%v`; found `%v`", testCase.wantedErr, err)
			}

			found, err := catalog.List()
			if err != nil {
				t.Fatalf("PGCatalog.List(): unexpected err: %v", err)
			}
			if err := types.CompareSnapshots(testCase.wantedState, found); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestPGCatalog_Get(t *testing.T) {
	if err := prepare([]types.Snapshot{snapshot("a", earlier)}); err != nil {
		t.Fatal(err)
	}

	found, err := catalog.Get("a")
	if err != nil {
		t.Fatalf("PGCatalog.Get(): unexpected err: %v", err)
	}
	wanted := snapshot("a", earlier)
	if err := wanted.Compare(found); err != nil {
		t.Fatal(err)
	}

	if _, err := catalog.Get("missing"); !errors.Is(err, types.ErrSnapshotNotFound) {
		t.Fatalf("PGCatalog.Get(): wanted `ErrSnapshotNotFound`; found `%v`", err)
	}
}

func TestPGCatalog_Delete(t *testing.T) {
	for _, testCase := range []struct {
		name      string
		state     []types.Snapshot
		id        string
		wantedErr error
	}{
		{
			name:  "simple",
			state: []types.Snapshot{snapshot("a", earlier)},
			id:    "a",
		},
		{
			name:      "not found",
			id:        "a",
			wantedErr: types.ErrSnapshotNotFound,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			if err := prepare(testCase.state); err != nil {
				t.Fatal(err)
			}
			if err := catalog.Delete(testCase.id); !errors.Is(err, testCase.wantedErr) {
				t.Fatalf("PGCatalog.Delete(): wanted `%v`; found `%v`", testCase.wantedErr, err)
			}
			found, err := catalog.List()
			if err != nil {
				t.Fatalf("PGCatalog.List(): unexpected err: %v", err)
			}
			if len(found) != 0 {
				t.Fatalf("len(PGCatalog.List()): wanted `0`; found `%d`", len(found))
			}
		})
	}
}

func prepare(state []types.Snapshot) error {
	if err := catalog.ClearTable(); err != nil {
		return fmt.Errorf("preparing postgres table: %w", err)
	}

	for i := range state {
		if err := catalog.Put(&state[i]); err != nil {
			return fmt.Errorf(
				"preparing postgres table: "+
					"unexpected error inserting state item at index `%d`: %w",
				i,
				err,
			)
		}
	}

	return nil
}
