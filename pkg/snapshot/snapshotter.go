package snapshot

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/weberc2/vsfs/pkg/types"
	"github.com/weberc2/vsfs/pkg/vsfs"
)

const KeySuffix = ".vsfs.gz"

var ErrInvalidName = errors.New("snapshot name must contain letters or digits")

// Snapshotter copies vsfs images to and from an object store and records
// each copy in a catalog.
type Snapshotter struct {
	Objects  types.ObjectStore
	Catalog  types.Catalog
	Bucket   string
	Prefix   string
	IDFunc   func() string
	TimeFunc func() time.Time
	Logger   *slog.Logger
}

func (s *Snapshotter) newID() string {
	if s.IDFunc != nil {
		return s.IDFunc()
	}
	return uuid.NewString()
}

func (s *Snapshotter) now() time.Time {
	if s.TimeFunc != nil {
		return s.TimeFunc()
	}
	return time.Now()
}

func (s *Snapshotter) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Key is the object key for snapshot `id` of an image called `name`.
func (s *Snapshotter) Key(name, id string) string {
	return path.Join(s.Prefix, slug.Make(name), id+KeySuffix)
}

// Push uploads `image` as a new snapshot called `name`. The image is
// mounted first, so only well-formed vsfs volumes are accepted.
func (s *Snapshotter) Push(name string, image io.ReadWriteSeeker) (*types.Snapshot, error) {
	if slug.Make(name) == "" {
		return nil, fmt.Errorf("pushing snapshot `%s`: %w", name, ErrInvalidName)
	}
	fs, err := vsfs.Mount(image, &vsfs.MountOptions{ReadRootInode: true})
	if err != nil {
		return nil, fmt.Errorf("pushing snapshot `%s`: %w", name, err)
	}
	size, err := image.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("pushing snapshot `%s`: sizing image: %w", name, err)
	}
	if _, err := image.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("pushing snapshot `%s`: rewinding image: %w", name, err)
	}

	id := s.newID()
	if _, err := s.Catalog.Get(id); err == nil {
		return nil, fmt.Errorf(
			"pushing snapshot `%s` as `%s`: %w",
			name,
			id,
			types.ErrSnapshotExists,
		)
	} else if !errors.Is(err, types.ErrSnapshotNotFound) {
		return nil, fmt.Errorf("pushing snapshot `%s`: %w", name, err)
	}
	snapshot := types.Snapshot{
		ID:             id,
		Name:           name,
		Key:            s.Key(name, id),
		InodeCount:     uint32(fs.Superblock.InodeCount),
		DataBlockCount: uint32(fs.Superblock.DataBlockCount),
		Size:           size,
		Created:        s.now().UTC(),
	}
	if err := s.Objects.PutObject(s.Bucket, snapshot.Key, image); err != nil {
		return nil, fmt.Errorf("pushing snapshot `%s`: %w", name, err)
	}
	if err := s.Catalog.Put(&snapshot); err != nil {
		if deleteErr := s.Objects.DeleteObject(s.Bucket, snapshot.Key); deleteErr != nil {
			s.logger().Error(
				"orphaned snapshot object",
				"bucket", s.Bucket,
				"key", snapshot.Key,
				"err", deleteErr.Error(),
			)
		}
		return nil, fmt.Errorf("pushing snapshot `%s`: %w", name, err)
	}
	s.logger().Info(
		"pushed snapshot",
		"id", snapshot.ID,
		"name", snapshot.Name,
		"key", snapshot.Key,
		"size", snapshot.Size,
	)
	return &snapshot, nil
}

// Pull writes the image of snapshot `id` to `w`.
func (s *Snapshotter) Pull(id string, w io.Writer) (*types.Snapshot, error) {
	snapshot, err := s.Catalog.Get(id)
	if err != nil {
		return nil, fmt.Errorf("pulling snapshot `%s`: %w", id, err)
	}
	body, err := s.Objects.GetObject(s.Bucket, snapshot.Key)
	if err != nil {
		return nil, fmt.Errorf("pulling snapshot `%s`: %w", id, err)
	}
	defer body.Close()

	n, err := io.Copy(w, body)
	if err != nil {
		return nil, fmt.Errorf("pulling snapshot `%s`: %w", id, err)
	}
	if n != snapshot.Size {
		return nil, fmt.Errorf(
			"pulling snapshot `%s`: wanted `%d` bytes; found `%d`",
			id,
			snapshot.Size,
			n,
		)
	}
	return snapshot, nil
}

func (s *Snapshotter) List() ([]types.Snapshot, error) {
	snapshots, err := s.Catalog.List()
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return snapshots, nil
}

// Delete removes snapshot `id` from the object store and the catalog. A
// missing object does not stop the catalog entry from being removed.
func (s *Snapshotter) Delete(id string) error {
	snapshot, err := s.Catalog.Get(id)
	if err != nil {
		return fmt.Errorf("deleting snapshot `%s`: %w", id, err)
	}
	if err := s.Objects.DeleteObject(s.Bucket, snapshot.Key); err != nil {
		var notFound *types.ObjectNotFoundErr
		if !errors.As(err, &notFound) {
			return fmt.Errorf("deleting snapshot `%s`: %w", id, err)
		}
		s.logger().Warn("snapshot object already gone", "id", id, "key", snapshot.Key)
	}
	if err := s.Catalog.Delete(id); err != nil {
		return fmt.Errorf("deleting snapshot `%s`: %w", id, err)
	}
	s.logger().Info("deleted snapshot", "id", id)
	return nil
}
