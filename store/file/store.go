// Package file persists one credential set as a JSON document on disk. The
// document carries the credential field names verbatim (clientId,
// accessToken, refreshToken, ...) so it stays interchangeable with other
// tooling that reads the same file.
//
// The store is single-writer by contract. A best-effort advisory flock guards
// against two cooperating processes clobbering each other's writes; a lock
// that cannot be acquired within the timeout is skipped rather than blocking
// the Provider.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/goliatone/go-twitch-auth/core"
)

const defaultLockTimeout = 100 * time.Millisecond

type Store struct {
	path        string
	codec       core.CredentialCodec
	lockTimeout time.Duration
}

type Option func(*Store)

// WithCodec overrides the payload codec.
func WithCodec(codec core.CredentialCodec) Option {
	return func(s *Store) {
		s.codec = codec
	}
}

// WithLockTimeout bounds how long Load and Save wait for the advisory lock.
func WithLockTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = timeout
	}
}

func New(path string, options ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("file: store path is required")
	}
	s := &Store{
		path:        path,
		codec:       core.JSONCredentialCodec{},
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s, nil
}

// Path returns the credential file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) Load(ctx context.Context) (core.Credentials, error) {
	if s == nil {
		return core.Credentials{}, fmt.Errorf("file: store is not configured")
	}
	release, err := s.acquireLock(ctx)
	if err != nil {
		return core.Credentials{}, err
	}
	defer release()

	contents, err := os.ReadFile(s.path)
	if err != nil {
		return core.Credentials{}, fmt.Errorf("file: read credentials: %w", err)
	}
	credentials, err := s.codec.Decode(contents)
	if err != nil {
		return core.Credentials{}, err
	}
	return credentials, nil
}

func (s *Store) Save(ctx context.Context, credentials core.Credentials) error {
	if s == nil {
		return fmt.Errorf("file: store is not configured")
	}
	encoded, err := s.codec.Encode(credentials)
	if err != nil {
		return err
	}

	release, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	// Write-then-rename so a crash mid-save never leaves a torn document.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("file: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("file: write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file: replace credentials: %w", err)
	}
	return nil
}

// acquireLock takes the advisory lock, failing open on timeout: a stuck or
// crashed lock holder should not wedge credential fetches.
func (s *Store) acquireLock(ctx context.Context) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	fl := flock.New(s.lockPath())

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, 10*time.Millisecond)
	if err != nil {
		if lockCtx.Err() == context.DeadlineExceeded {
			return func() {}, nil
		}
		return nil, fmt.Errorf("file: acquire lock: %w", err)
	}
	if !locked {
		return func() {}, nil
	}
	return func() {
		_ = fl.Unlock()
	}, nil
}

func (s *Store) lockPath() string {
	return s.path + ".lock"
}

var _ core.CredentialStore = (*Store)(nil)
