package pgcatalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/weberc2/vsfs/pkg/pgutil"
	"github.com/weberc2/vsfs/pkg/types"
)

// PGCatalog stores snapshot records in the `snapshots` postgres table.
type PGCatalog sql.DB

func Open(params pgutil.Params) (*PGCatalog, error) {
	db, err := pgutil.Open(params)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot catalog: %w", err)
	}
	return (*PGCatalog)(db), nil
}

func OpenEnv() (*PGCatalog, error) { return Open(pgutil.ParamsFromEnv()) }

func (pgc *PGCatalog) Close() error { return (*sql.DB)(pgc).Close() }

func (pgc *PGCatalog) EnsureTable() error {
	if _, err := (*sql.DB)(pgc).Exec(
		"CREATE TABLE IF NOT EXISTS snapshots (" +
			"id VARCHAR(36) NOT NULL PRIMARY KEY, " +
			"name VARCHAR(255) NOT NULL, " +
			"key VARCHAR(1024) NOT NULL, " +
			"inode_count BIGINT NOT NULL, " +
			"data_block_count BIGINT NOT NULL, " +
			"size BIGINT NOT NULL, " +
			"created TIMESTAMPTZ NOT NULL)",
	); err != nil {
		return fmt.Errorf("creating `snapshots` postgres table: %w", err)
	}
	return nil
}

func (pgc *PGCatalog) DropTable() error {
	if _, err := (*sql.DB)(pgc).Exec(
		"DROP TABLE IF EXISTS snapshots",
	); err != nil {
		return fmt.Errorf("dropping table `snapshots`: %w", err)
	}
	return nil
}

func (pgc *PGCatalog) ClearTable() error {
	if _, err := (*sql.DB)(pgc).Exec("DELETE FROM snapshots"); err != nil {
		return fmt.Errorf("clearing `snapshots` postgres table: %w", err)
	}
	return nil
}

func (pgc *PGCatalog) ResetTable() error {
	if err := pgc.DropTable(); err != nil {
		return err
	}
	return pgc.EnsureTable()
}

func (pgc *PGCatalog) Put(snapshot *types.Snapshot) error {
	if _, err := (*sql.DB)(pgc).Exec(
		"INSERT INTO snapshots "+
			"(id, name, key, inode_count, data_block_count, size, created) "+
			"VALUES($1, $2, $3, $4, $5, $6, $7)",
		snapshot.ID,
		snapshot.Name,
		snapshot.Key,
		int64(snapshot.InodeCount),
		int64(snapshot.DataBlockCount),
		snapshot.Size,
		snapshot.Created.UTC(),
	); err != nil {
		const errUniqueViolation = "23505"
		if err, ok := err.(*pq.Error); ok && err.Code == errUniqueViolation {
			return fmt.Errorf(
				"inserting snapshot `%s`: %w",
				snapshot.ID,
				types.ErrSnapshotExists,
			)
		}
		return fmt.Errorf("inserting snapshot into postgres: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(...interface{}) error
}

func scanSnapshot(row scanner) (types.Snapshot, error) {
	var snapshot types.Snapshot
	var inodeCount, dataBlockCount int64
	var created time.Time
	if err := row.Scan(
		&snapshot.ID,
		&snapshot.Name,
		&snapshot.Key,
		&inodeCount,
		&dataBlockCount,
		&snapshot.Size,
		&created,
	); err != nil {
		return snapshot, err
	}
	snapshot.InodeCount = uint32(inodeCount)
	snapshot.DataBlockCount = uint32(dataBlockCount)
	snapshot.Created = created.UTC()
	return snapshot, nil
}

const selectColumns = "SELECT id, name, key, inode_count, data_block_count, " +
	"size, created FROM snapshots"

func (pgc *PGCatalog) Get(id string) (*types.Snapshot, error) {
	snapshot, err := scanSnapshot((*sql.DB)(pgc).QueryRow(
		selectColumns+" WHERE id = $1",
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = types.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("getting snapshot `%s` from postgres: %w", id, err)
	}
	return &snapshot, nil
}

func (pgc *PGCatalog) Delete(id string) error {
	if err := (*sql.DB)(pgc).QueryRow(
		"DELETE FROM snapshots WHERE id = $1 RETURNING id",
		id,
	).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = types.ErrSnapshotNotFound
		}
		return fmt.Errorf("deleting snapshot `%s` from postgres: %w", id, err)
	}
	return nil
}

func (pgc *PGCatalog) List() ([]types.Snapshot, error) {
	// we don't want to return a `nil` slice because that gets JSON-marshaled
	// to `null` instead of `[]`.
	snapshots := []types.Snapshot{}

	rows, err := (*sql.DB)(pgc).Query(selectColumns + " ORDER BY created, id")
	if err != nil {
		return nil, fmt.Errorf("querying snapshots from postgres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("querying snapshots from postgres: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying snapshots from postgres: %w", err)
	}
	return snapshots, nil
}

var _ types.Catalog = &PGCatalog{}
