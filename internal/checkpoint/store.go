package checkpoint

import (
	"context"
	"fmt"

	"github.com/dohr-michael/chatguide/internal/storage/dirstore"
)

// Store persists checkpoints keyed by session ID. Save overwrites any
// previous checkpoint for the same session.
type Store interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, sessionID string) (*Checkpoint, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, sessionID string) error
}

// FileStore keeps one directory per session with the checkpoint document in
// meta.json.
type FileStore struct {
	ds *dirstore.DirStore
}

// NewFileStore creates a FileStore rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{ds: dirstore.New(baseDir, "session")}
}

func (s *FileStore) Save(_ context.Context, cp *Checkpoint) error {
	if cp.SessionID == "" {
		return fmt.Errorf("checkpoint missing session_id")
	}
	s.ds.Lock()
	defer s.ds.Unlock()

	if err := s.ds.EnsureDir(cp.SessionID); err != nil {
		return err
	}
	return s.ds.WriteMeta(cp.SessionID, cp)
}

func (s *FileStore) Load(_ context.Context, sessionID string) (*Checkpoint, error) {
	s.ds.RLock()
	defer s.ds.RUnlock()

	var cp Checkpoint
	if err := s.ds.ReadMeta(sessionID, &cp); err != nil {
		return nil, err
	}
	if cp.Version > Version {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", cp.Version, Version)
	}
	return &cp, nil
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	s.ds.RLock()
	defer s.ds.RUnlock()
	return s.ds.ListDirs()
}

func (s *FileStore) Delete(_ context.Context, sessionID string) error {
	s.ds.Lock()
	defer s.ds.Unlock()
	return s.ds.RemoveDir(sessionID)
}
