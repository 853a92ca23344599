package core

import (
	"context"
	"fmt"
	"sync"
)

// StaticCredentialStore serves a fixed credential set. It has no backing
// store: saves fail. A Provider built on it cannot survive token expiry when
// the record lacks a client secret or refresh token; a record that carries
// both is refreshed like any other, but the refreshed record is never saved.
type StaticCredentialStore struct {
	credentials Credentials
}

func NewStaticCredentialStore(credentials Credentials) (*StaticCredentialStore, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}
	return &StaticCredentialStore{credentials: credentials.clone()}, nil
}

func (s *StaticCredentialStore) Load(context.Context) (Credentials, error) {
	if s == nil {
		return Credentials{}, fmt.Errorf("core: static credential store is not configured")
	}
	return s.credentials.clone(), nil
}

func (s *StaticCredentialStore) Save(context.Context, Credentials) error {
	return newFatalError("core: static credential store cannot save credentials", AuthErrorSaveUnsupported)
}

// MemoryCredentialStore holds one credential set in memory. Saves replace the
// held record; nothing is persisted beyond the process.
type MemoryCredentialStore struct {
	mu          sync.Mutex
	credentials Credentials
}

func NewMemoryCredentialStore(credentials Credentials) (*MemoryCredentialStore, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}
	return &MemoryCredentialStore{credentials: credentials.clone()}, nil
}

func (s *MemoryCredentialStore) Load(context.Context) (Credentials, error) {
	if s == nil {
		return Credentials{}, fmt.Errorf("core: memory credential store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credentials.clone(), nil
}

func (s *MemoryCredentialStore) Save(_ context.Context, credentials Credentials) error {
	if s == nil {
		return fmt.Errorf("core: memory credential store is not configured")
	}
	s.mu.Lock()
	s.credentials = credentials.clone()
	s.mu.Unlock()
	return nil
}

// Current returns the most recently saved record.
func (s *MemoryCredentialStore) Current() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credentials.clone()
}

var (
	_ CredentialStore = (*StaticCredentialStore)(nil)
	_ CredentialStore = (*MemoryCredentialStore)(nil)
)
