package testsupport

import (
	"fmt"
	"sort"

	"github.com/weberc2/vsfs/pkg/types"
)

type CatalogFake map[string]types.Snapshot

func (cf CatalogFake) Put(snapshot *types.Snapshot) error {
	if _, found := cf[snapshot.ID]; found {
		return fmt.Errorf("putting snapshot `%s`: %w", snapshot.ID, types.ErrSnapshotExists)
	}
	cf[snapshot.ID] = *snapshot
	return nil
}

func (cf CatalogFake) Get(id string) (*types.Snapshot, error) {
	snapshot, found := cf[id]
	if !found {
		return nil, fmt.Errorf("getting snapshot `%s`: %w", id, types.ErrSnapshotNotFound)
	}
	return &snapshot, nil
}

func (cf CatalogFake) List() ([]types.Snapshot, error) {
	snapshots := []types.Snapshot{}
	for _, snapshot := range cf {
		snapshots = append(snapshots, snapshot)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].Created.Equal(snapshots[j].Created) {
			return snapshots[i].ID < snapshots[j].ID
		}
		return snapshots[i].Created.Before(snapshots[j].Created)
	})
	return snapshots, nil
}

func (cf CatalogFake) Delete(id string) error {
	if _, found := cf[id]; !found {
		return fmt.Errorf("deleting snapshot `%s`: %w", id, types.ErrSnapshotNotFound)
	}
	delete(cf, id)
	return nil
}

var _ types.Catalog = CatalogFake{}
