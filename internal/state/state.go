package state

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory
	// (~/.drive-sync/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	// It holds the OAuth refresh token, so no group/other access.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	settingsBucket = []byte("settings")
	fileIDsBucket  = []byte("file_ids")
	retryBucket    = []byte("retry")

	lastSyncKey     = []byte("last_sync")
	refreshTokenKey = []byte("refresh_token")
)

// State wraps a bbolt database for all persistent sync state: the
// last-sync watermark, the durable file-id cache, the pending-retry set,
// and the (possibly rotated) OAuth refresh token.
//
// The folder-id cache is deliberately not stored here: it is volatile and
// rebuilt from scratch at the start of every sync pass.
type State struct {
	db *bolt.DB
}

// Load opens the state database at the default location, creating it if
// it does not exist.
func Load() (*State, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}

	return LoadAt(filepath.Join(home, ".drive-sync", "state.db"))
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(settingsBucket); err != nil {
			return err
		}

		if _, err := tx.CreateBucketIfNotExists(fileIDsBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(retryBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// LastSync returns the last successful sync watermark in epoch millis,
// or 0 if no pass has ever completed.
func (s *State) LastSync() (int64, error) {
	var ts int64

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(settingsBucket).Get(lastSyncKey)
		if len(v) == 8 {
			ts = int64(binary.BigEndian.Uint64(v)) //nolint:gosec // round-trips the value written by SetLastSync
		}

		return nil
	})

	return ts, err
}

// SetLastSync persists the sync watermark. Called only after a pass
// completes without a fatal error.
func (s *State) SetLastSync(ts int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], uint64(ts)) //nolint:gosec // watermark is a non-negative epoch timestamp

		return tx.Bucket(settingsBucket).Put(lastSyncKey, v[:])
	})
}

// RefreshToken returns the stored OAuth refresh token, or empty string.
// A stored token supersedes the configured one: the provider may rotate
// refresh tokens, invalidating the original.
func (s *State) RefreshToken() string {
	var token string

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(settingsBucket).Get(refreshTokenKey)
		if v != nil {
			token = string(v)
		}

		return nil
	})

	return token
}

// SetRefreshToken persists a rotated OAuth refresh token.
func (s *State) SetRefreshToken(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).Put(refreshTokenKey, []byte(token))
	})
}

// FileIDs returns the full durable file-id cache, keyed by vault-relative
// path. Loaded once at the start of every sync pass.
func (s *State) FileIDs() (map[string]string, error) {
	result := make(map[string]string)

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(fileIDsBucket).ForEach(func(k, v []byte) error {
			result[string(k)] = string(v)

			return nil
		})
	})

	return result, err
}

// SetFileID records the remote id for an uploaded file. Written as each
// upload succeeds so a crashed pass loses at most the in-flight file.
func (s *State) SetFileID(path, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fileIDsBucket).Put([]byte(path), []byte(id))
	})
}

// DeleteFileID removes the recorded remote id for a path.
func (s *State) DeleteFileID(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fileIDsBucket).Delete([]byte(path))
	})
}

// PendingRetries returns the set of paths whose last upload attempt
// failed. These are considered dirty on the next pass regardless of the
// watermark, closing the gap where a per-file failure would otherwise be
// masked by the global watermark advancing past the file's mtime.
func (s *State) PendingRetries() (map[string]struct{}, error) {
	result := make(map[string]struct{})

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(retryBucket).ForEach(func(k, _ []byte) error {
			result[string(k)] = struct{}{}

			return nil
		})
	})

	return result, err
}

// AddPendingRetry marks a path as needing re-upload on the next pass.
func (s *State) AddPendingRetry(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(retryBucket).Put([]byte(path), nil)
	})
}

// ClearPendingRetry removes a path from the retry set after a successful
// upload.
func (s *State) ClearPendingRetry(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(retryBucket).Delete([]byte(path))
	})
}
