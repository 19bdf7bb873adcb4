package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSnapshotExists   = errors.New("snapshot already exists")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Snapshot records an uploaded vsfs image.
type Snapshot struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Key            string    `json:"key"`
	InodeCount     uint32    `json:"inodeCount"`
	DataBlockCount uint32    `json:"dataBlockCount"`
	Size           int64     `json:"size"`
	Created        time.Time `json:"created"`
}

func (wanted *Snapshot) Compare(found *Snapshot) error {
	if wanted == nil && found == nil {
		return nil
	}
	if wanted == nil || found == nil {
		return fmt.Errorf("Snapshot: wanted `%v`; found `%v`", wanted, found)
	}
	if wanted.ID != found.ID {
		return fmt.Errorf("Snapshot.ID: wanted `%s`; found `%s`", wanted.ID, found.ID)
	}
	if wanted.Name != found.Name {
		return fmt.Errorf("Snapshot.Name: wanted `%s`; found `%s`", wanted.Name, found.Name)
	}
	if wanted.Key != found.Key {
		return fmt.Errorf("Snapshot.Key: wanted `%s`; found `%s`", wanted.Key, found.Key)
	}
	if wanted.InodeCount != found.InodeCount {
		return fmt.Errorf(
			"Snapshot.InodeCount: wanted `%d`; found `%d`",
			wanted.InodeCount,
			found.InodeCount,
		)
	}
	if wanted.DataBlockCount != found.DataBlockCount {
		return fmt.Errorf(
			"Snapshot.DataBlockCount: wanted `%d`; found `%d`",
			wanted.DataBlockCount,
			found.DataBlockCount,
		)
	}
	if wanted.Size != found.Size {
		return fmt.Errorf("Snapshot.Size: wanted `%d`; found `%d`", wanted.Size, found.Size)
	}
	if !wanted.Created.Equal(found.Created) {
		return fmt.Errorf(
			"Snapshot.Created: wanted `%s`; found `%s`",
			wanted.Created,
			found.Created,
		)
	}
	return nil
}

func CompareSnapshots(wanted, found []Snapshot) error {
	if len(wanted) != len(found) {
		return fmt.Errorf(
			"len([]Snapshot): wanted `%d`; found `%d`",
			len(wanted),
			len(found),
		)
	}
	for i := range wanted {
		if err := wanted[i].Compare(&found[i]); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}
	return nil
}

// Catalog indexes snapshots by ID. `List` orders by creation time, oldest
// first.
type Catalog interface {
	Put(*Snapshot) error
	Get(id string) (*Snapshot, error)
	List() ([]Snapshot, error)
	Delete(id string) error
}
