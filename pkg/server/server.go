package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	pz "github.com/weberc2/httpeasy"
	"github.com/weberc2/vsfs/pkg/vsfs"
)

// Server exposes a mounted volume over HTTP. The filesystem driver is not
// safe for concurrent use, so every handler holds the server's lock.
type Server struct {
	FS            *vsfs.FileSystem
	Authenticator *Authenticator
	FileMode      vsfs.Mode
	DirMode       vsfs.Mode
	Logger        *slog.Logger

	lock sync.Mutex
}

type logging struct {
	Message string `json:"message,omitempty"`
	Path    string `json:"path,omitempty"`
	User    string `json:"user,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default().With("component", "server")
}

func (s *Server) Routes() []pz.Route {
	return []pz.Route{{
		Method:  "GET",
		Path:    "/api/info",
		Handler: s.Info,
	}, {
		Method:  "GET",
		Path:    "/api/dirs/{path:.*}",
		Handler: s.ListDir,
	}, {
		Method:  "POST",
		Path:    "/api/dirs/{path:.*}",
		Handler: s.Authenticator.AuthZ(s.MakeDir),
	}, {
		Method:  "GET",
		Path:    "/api/files/{path:.*}",
		Handler: s.ReadFile,
	}, {
		Method:  "PUT",
		Path:    "/api/files/{path:.*}",
		Handler: s.Authenticator.AuthZ(s.WriteFile),
	}, {
		Method:  "DELETE",
		Path:    "/api/files/{path:.*}",
		Handler: s.Authenticator.AuthZ(s.Remove),
	}}
}

// Info reports the volume's geometry and free space.
func (s *Server) Info(r pz.Request) pz.Response {
	s.lock.Lock()
	defer s.lock.Unlock()

	stats, err := vsfs.Stat(s.FS)
	if err != nil {
		return s.handleError("statting filesystem", err, &logging{})
	}
	return pz.Ok(pz.JSON(&stats))
}

type Entry struct {
	Name string    `json:"name"`
	Ino  vsfs.Ino  `json:"ino"`
	Mode string    `json:"mode"`
	Size uint64    `json:"size"`
	Dir  bool      `json:"dir"`
	UID  uint32    `json:"uid"`
	GID  uint32    `json:"gid"`
	Perm vsfs.Mode `json:"perm"`
}

func (s *Server) ListDir(r pz.Request) pz.Response {
	s.lock.Lock()
	defer s.lock.Unlock()

	ctx := logging{Path: "/" + r.Vars["path"]}
	dir, err := vsfs.OpenDirPath(s.FS, ctx.Path)
	if err != nil {
		return s.handleError("opening directory", err, &ctx)
	}
	entries, err := dir.Entries(s.FS)
	if err != nil {
		return s.handleError("listing directory", err, &ctx)
	}

	// we don't want to return a `nil` slice because that gets JSON-marshaled
	// to `null` instead of `[]`.
	out := []Entry{}
	for i := range entries {
		inode := &entries[i].Inode
		out = append(out, Entry{
			Name: entries[i].Name,
			Ino:  entries[i].Header.Ino,
			Mode: inode.Mode.String(),
			Size: inode.Size,
			Dir:  inode.IsDir(),
			UID:  inode.UID,
			GID:  inode.GID,
			Perm: inode.Mode.Perm(),
		})
	}
	return pz.Ok(pz.JSON(out), &ctx)
}

func (s *Server) ReadFile(r pz.Request) pz.Response {
	s.lock.Lock()
	defer s.lock.Unlock()

	ctx := logging{Path: "/" + r.Vars["path"]}
	file, err := vsfs.OpenFilePath(s.FS, ctx.Path)
	if err != nil {
		return s.handleError("opening file", err, &ctx)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return s.handleError("reading file", err, &ctx)
	}
	return pz.Ok(pz.String(string(data)), &ctx)
}

func (s *Server) WriteFile(r pz.Request) pz.Response {
	s.lock.Lock()
	defer s.lock.Unlock()

	ctx := logging{Path: "/" + r.Vars["path"], User: r.Headers.Get("User")}
	body := r.Body
	if body == nil {
		body = http.NoBody
	}
	file, err := vsfs.WriteFilePath(s.FS, ctx.Path, s.fileMode(), body)
	if err != nil {
		return s.handleError("writing file", err, &ctx)
	}
	ctx.Message = "wrote file"
	return pz.Ok(pz.JSON(struct {
		Path string   `json:"path"`
		Ino  vsfs.Ino `json:"ino"`
		Size uint64   `json:"size"`
	}{
		Path: ctx.Path,
		Ino:  file.Ino,
		Size: file.Size(),
	}), &ctx)
}

func (s *Server) MakeDir(r pz.Request) pz.Response {
	s.lock.Lock()
	defer s.lock.Unlock()

	ctx := logging{Path: "/" + r.Vars["path"], User: r.Headers.Get("User")}
	dir, err := vsfs.MkdirPath(s.FS, ctx.Path, s.dirMode())
	if err != nil {
		return s.handleError("making directory", err, &ctx)
	}
	ctx.Message = "made directory"
	return pz.Created(pz.JSON(struct {
		Path string   `json:"path"`
		Ino  vsfs.Ino `json:"ino"`
	}{
		Path: ctx.Path,
		Ino:  dir.Ino,
	}), &ctx)
}

func (s *Server) Remove(r pz.Request) pz.Response {
	s.lock.Lock()
	defer s.lock.Unlock()

	ctx := logging{Path: "/" + r.Vars["path"], User: r.Headers.Get("User")}
	if err := vsfs.RemovePath(s.FS, ctx.Path); err != nil {
		return s.handleError("removing entry", err, &ctx)
	}
	ctx.Message = "removed entry"
	return pz.Ok(pz.JSON(&ctx), &ctx)
}

func (s *Server) fileMode() vsfs.Mode {
	if s.FileMode == 0 {
		return 0o644
	}
	return s.FileMode
}

func (s *Server) dirMode() vsfs.Mode {
	if s.DirMode == 0 {
		return 0o755
	}
	return s.DirMode
}

// HTTPError maps a filesystem error onto a response status. Errors without
// a specific mapping are internal server errors.
func HTTPError(err error) *pz.HTTPError {
	for _, mapping := range []struct {
		err    error
		status int
	}{
		{vsfs.NotFoundErr, http.StatusNotFound},
		{vsfs.FileAlreadyExistsErr, http.StatusConflict},
		{vsfs.DirNotEmptyErr, http.StatusConflict},
		{vsfs.InvalidNameErr, http.StatusBadRequest},
		{vsfs.FileNameTooLongErr, http.StatusBadRequest},
		{vsfs.NotDirErr, http.StatusBadRequest},
		{vsfs.IsDirErr, http.StatusBadRequest},
		{vsfs.OutOfInodesErr, http.StatusInsufficientStorage},
		{vsfs.OutOfDiskSpaceErr, http.StatusInsufficientStorage},
		{vsfs.FileTooLargeErr, http.StatusInsufficientStorage},
	} {
		if errors.Is(err, mapping.err) {
			return &pz.HTTPError{Status: mapping.status, Message: mapping.err.Error()}
		}
	}
	return &pz.HTTPError{
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
	}
}

func (s *Server) handleError(message string, err error, ctx *logging) pz.Response {
	httpErr := HTTPError(err)
	ctx.Message = message
	ctx.Error = err.Error()
	if httpErr.Status == http.StatusInternalServerError {
		s.logger().Error(message, "path", ctx.Path, "err", err.Error())
	}
	return pz.Response{
		Status: httpErr.Status,
		Data:   pz.JSON(httpErr),
	}.WithLogging(ctx)
}
