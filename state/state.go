// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Package state holds the kernel's in-memory registry: tenants,
// per-tenant session IDs, identity aliases, and the message-ingestion
// cursor. The registry is
// periodically snapshotted to a CBOR file and reloaded on startup, so
// a daemon restart preserves tenant registrations and conversational
// continuity without a database round-trip on the hot path.
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/burrow-systems/burrow/lib/schema"
)

// ErrDuplicateTenant is returned when registering a tenant whose
// folder is already taken.
var ErrDuplicateTenant = errors.New("tenant folder already registered")

// Cursor marks how far inbound message ingestion has progressed:
// the newest message already handled, so a restart resumes after it
// rather than replaying history.
type Cursor struct {
	LastTimestamp time.Time `cbor:"1,keyasint,omitempty"`
	LastMessageID string    `cbor:"2,keyasint,omitempty"`
}

// snapshot is the on-disk form. Integer keys keep the file compact
// and renameable-field-safe.
type snapshot struct {
	Tenants   []schema.Tenant      `cbor:"1,keyasint"`
	Sessions  map[string]string    `cbor:"2,keyasint"`
	Aliases   map[string]string    `cbor:"3,keyasint"`
	Cursor    Cursor               `cbor:"4,keyasint,omitempty"`
	Responses map[string]time.Time `cbor:"5,keyasint,omitempty"`
}

// Store is the mutex-guarded kernel state. Safe for concurrent use.
type Store struct {
	path   string
	logger *slog.Logger

	mu        sync.Mutex
	tenants   []schema.Tenant
	sessions  map[string]string // tenant folder -> session ID
	aliases   map[string]string // external identity -> destination ID
	cursor    Cursor
	responses map[string]time.Time // tenant folder -> last response
	dirty     bool
}

// Open loads the snapshot at path, or starts empty when the file does
// not exist yet. A corrupt snapshot is an error; the operator decides
// whether to delete it.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	store := &Store{
		path:      path,
		logger:    logger,
		sessions:  make(map[string]string),
		aliases:   make(map[string]string),
		responses: make(map[string]time.Time),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no state snapshot, starting empty", "path", path)
			return store, nil
		}
		return nil, fmt.Errorf("state: reading snapshot %s: %w", path, err)
	}

	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("state: decoding snapshot %s: %w", path, err)
	}
	store.tenants = snap.Tenants
	if snap.Sessions != nil {
		store.sessions = snap.Sessions
	}
	if snap.Aliases != nil {
		store.aliases = snap.Aliases
	}
	store.cursor = snap.Cursor
	if snap.Responses != nil {
		store.responses = snap.Responses
	}
	logger.Info("state snapshot loaded",
		"path", path, "tenants", len(store.tenants), "sessions", len(store.sessions))
	return store, nil
}

// RegisterTenant adds a tenant and flushes immediately: a registration
// must survive a crash that follows it. Folder collisions are
// rejected.
func (s *Store) RegisterTenant(tenant schema.Tenant) error {
	if err := tenant.Validate(); err != nil {
		return fmt.Errorf("state: %w", err)
	}

	s.mu.Lock()
	for _, existing := range s.tenants {
		if existing.Folder == tenant.Folder {
			s.mu.Unlock()
			return fmt.Errorf("state: %q: %w", tenant.Folder, ErrDuplicateTenant)
		}
		if tenant.IsMain && existing.IsMain {
			s.mu.Unlock()
			return fmt.Errorf("state: %q: a main tenant already exists (%q)", tenant.Folder, existing.Folder)
		}
	}
	s.tenants = append(s.tenants, tenant)
	s.dirty = true
	s.mu.Unlock()

	s.logger.Info("tenant registered", "tenant", tenant.Folder, "is_main", tenant.IsMain)
	return s.Flush()
}

// Tenants returns a copy of the registry.
func (s *Store) Tenants() []schema.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenants := make([]schema.Tenant, len(s.tenants))
	copy(tenants, s.tenants)
	return tenants
}

// TenantByFolder looks a tenant up by its folder name.
func (s *Store) TenantByFolder(folder string) (schema.Tenant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tenant := range s.tenants {
		if tenant.Folder == folder {
			return tenant, true
		}
	}
	return schema.Tenant{}, false
}

// TenantByDestination looks a tenant up by its bound destination ID,
// after alias translation.
func (s *Store) TenantByDestination(destinationID string) (schema.Tenant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if canonical, ok := s.aliases[destinationID]; ok {
		destinationID = canonical
	}
	for _, tenant := range s.tenants {
		if tenant.DestinationID == destinationID {
			return tenant, true
		}
	}
	return schema.Tenant{}, false
}

// MainTenant returns the elevated tenant, if one is registered.
func (s *Store) MainTenant() (schema.Tenant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tenant := range s.tenants {
		if tenant.IsMain {
			return tenant, true
		}
	}
	return schema.Tenant{}, false
}

// SessionID returns the tenant's current session, or "" for none.
func (s *Store) SessionID(folder string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[folder]
}

// SetSessionID records the tenant's current session for later
// resumption.
func (s *Store) SetSessionID(folder, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[folder] == sessionID {
		return
	}
	s.sessions[folder] = sessionID
	s.dirty = true
}

// Cursor returns the message-ingestion cursor.
func (s *Store) Cursor() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// SetCursor advances the message-ingestion cursor. Moving backwards
// is allowed; callers own the ordering.
func (s *Store) SetCursor(cursor Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == cursor {
		return
	}
	s.cursor = cursor
	s.dirty = true
}

// LastResponse returns when the tenant last had a message delivered,
// or the zero time for never.
func (s *Store) LastResponse(folder string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responses[folder]
}

// SetLastResponse records a delivery timestamp for the tenant.
func (s *Store) SetLastResponse(folder string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.responses[folder].Equal(at) {
		return
	}
	s.responses[folder] = at
	s.dirty = true
}

// Translate maps an external identity to its canonical destination ID.
// Unaliased identities pass through unchanged.
func (s *Store) Translate(identity string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if canonical, ok := s.aliases[identity]; ok {
		return canonical
	}
	return identity
}

// SetAlias records an identity alias.
func (s *Store) SetAlias(identity, canonical string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aliases[identity] == canonical {
		return
	}
	s.aliases[identity] = canonical
	s.dirty = true
}

// Flush writes the snapshot if anything changed since the last write.
// The write is atomic: temp file, fsync, rename.
func (s *Store) Flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	snap := snapshot{
		Tenants:   make([]schema.Tenant, len(s.tenants)),
		Sessions:  make(map[string]string, len(s.sessions)),
		Aliases:   make(map[string]string, len(s.aliases)),
		Cursor:    s.cursor,
		Responses: make(map[string]time.Time, len(s.responses)),
	}
	copy(snap.Tenants, s.tenants)
	for folder, session := range s.sessions {
		snap.Sessions[folder] = session
	}
	for identity, canonical := range s.aliases {
		snap.Aliases[identity] = canonical
	}
	for folder, at := range s.responses {
		snap.Responses[folder] = at
	}
	s.dirty = false
	s.mu.Unlock()

	if err := s.writeSnapshot(&snap); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) writeSnapshot(snap *snapshot) error {
	data, err := cbor.Marshal(snap)
	if err != nil {
		return fmt.Errorf("state: encoding snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("state: creating snapshot directory: %w", err)
	}
	temp, err := os.CreateTemp(dir, ".state-*.cbor")
	if err != nil {
		return fmt.Errorf("state: creating temp snapshot: %w", err)
	}
	tempName := temp.Name()
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempName)
		return fmt.Errorf("state: writing snapshot: %w", err)
	}
	if err := temp.Sync(); err != nil {
		temp.Close()
		os.Remove(tempName)
		return fmt.Errorf("state: syncing snapshot: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("state: closing snapshot: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("state: replacing snapshot: %w", err)
	}
	if parent, err := os.Open(dir); err == nil {
		parent.Sync()
		parent.Close()
	}
	s.logger.Debug("state snapshot written", "path", s.path, "bytes", len(data))
	return nil
}
