// Package session persists the signed-in identity and its credential so they
// can be read synchronously and survive restarts.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sas-finance/service_layer/internal/domain"
	"github.com/sas-finance/service_layer/pkg/logger"
)

const (
	KeyIdentity     = "sas_user"
	KeyCredential   = "sb_access_token"
	KeyRefreshToken = "sb_refresh_token"
)

// Credentials are the tokens of a signed-in session. RefreshToken may be empty.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Cache mirrors the persisted session in memory. Reads never touch the store;
// writes go to the store first and are published to readers as one unit.
type Cache struct {
	// writeMu serializes writers around store I/O; mu only guards the
	// published values, so readers never wait on the store.
	writeMu sync.Mutex
	mu      sync.RWMutex

	store    Store
	identity *domain.Member
	creds    Credentials
	log      *logger.Logger
}

// NewCache creates an empty cache over store. Call Load to pick up a
// previously persisted session.
func NewCache(store Store, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.NewDefault("session")
	}
	return &Cache{store: store, log: log}
}

// Load reads the persisted session into memory. An unreadable identity entry
// is treated as signed out.
func (c *Cache) Load(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	raw, ok, err := c.store.Get(ctx, KeyIdentity)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	access, _, err := c.store.Get(ctx, KeyCredential)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	refresh, _, err := c.store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("load refresh token: %w", err)
	}

	var identity *domain.Member
	if ok {
		var m domain.Member
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			c.log.WithError(err).Warn("discarding unreadable cached identity")
		} else {
			identity = &m
		}
	}

	c.publish(identity, Credentials{AccessToken: access, RefreshToken: refresh})
	return nil
}

// Write persists identity and credentials and then publishes them. When the
// store fails part way, the previously persisted entries are restored.
func (c *Cache) Write(ctx context.Context, identity domain.Member, creds Credentials) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.persist(ctx, []entry{
		{KeyIdentity, string(data)},
		{KeyCredential, creds.AccessToken},
		{KeyRefreshToken, creds.RefreshToken},
	}); err != nil {
		return err
	}

	c.publish(&identity, creds)
	return nil
}

// UpdateIdentity replaces the cached identity and keeps the credentials.
func (c *Cache) UpdateIdentity(ctx context.Context, identity domain.Member) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.persist(ctx, []entry{{KeyIdentity, string(data)}}); err != nil {
		return err
	}

	c.mu.Lock()
	c.identity = &identity
	c.mu.Unlock()
	return nil
}

type entry struct {
	key, value string
}

type previous struct {
	value   string
	present bool
}

// persist writes entries in order. On failure the entries already written
// are put back to what the store held before. Empty values are deleted.
func (c *Cache) persist(ctx context.Context, entries []entry) error {
	before := make([]previous, len(entries))
	for i, e := range entries {
		value, ok, err := c.store.Get(ctx, e.key)
		if err != nil {
			return fmt.Errorf("read %s: %w", e.key, err)
		}
		before[i] = previous{value: value, present: ok}
	}

	for i, e := range entries {
		var err error
		if e.value == "" {
			err = c.store.Delete(ctx, e.key)
		} else {
			err = c.store.Set(ctx, e.key, e.value)
		}
		if err != nil {
			c.restore(ctx, entries[:i], before[:i])
			return fmt.Errorf("persist %s: %w", e.key, err)
		}
	}
	return nil
}

func (c *Cache) restore(ctx context.Context, entries []entry, before []previous) {
	for i, e := range entries {
		var err error
		if before[i].present {
			err = c.store.Set(ctx, e.key, before[i].value)
		} else {
			err = c.store.Delete(ctx, e.key)
		}
		if err != nil {
			c.log.WithError(err).WithField("key", e.key).Warn("rollback of cached session failed")
		}
	}
}

func (c *Cache) publish(identity *domain.Member, creds Credentials) {
	c.mu.Lock()
	c.identity = identity
	c.creds = creds
	c.mu.Unlock()
}

// Read returns a copy of the cached identity.
func (c *Cache) Read() (*domain.Member, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return nil, false
	}
	m := *c.identity
	return &m, true
}

// IsPresent reports whether an identity is cached.
func (c *Cache) IsPresent() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity != nil
}

// Credential returns the cached access token, or "" when signed out.
func (c *Cache) Credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.AccessToken
}

// RefreshToken returns the cached refresh token, or "" when there is none.
func (c *Cache) RefreshToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.RefreshToken
}

// Clear forgets the session in memory and in the store. The in-memory state
// is cleared even when the store fails.
func (c *Cache) Clear(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.publish(nil, Credentials{})
	if err := c.store.Delete(ctx, KeyIdentity, KeyCredential, KeyRefreshToken); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
