// Package credential discovers the bearer token a session was issued. It never
// mints or refreshes tokens; it only looks in an ordered set of storage tiers
// and checks that what it finds has the expected shape.
package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
)

// ErrNotFound means no tier held a non-empty value under any known key. The
// caller has to re-authenticate.
var ErrNotFound = errors.New("credential: no token found")

// Store is one persistence tier.
type Store interface {
	// Lookup returns the value under key. A missing key is ("", false, nil).
	Lookup(ctx context.Context, key string) (string, bool, error)
}

// Tier names a store in the search order.
type Tier struct {
	Name  string
	Store Store
}

// Credential is a discovered token and where it came from.
type Credential struct {
	Token string
	Tier  string
	Key   string
	// LowConfidence is set when the token is not header.payload.signature
	// shaped. Some backends issued opaque tokens, so it is still usable.
	LowConfidence bool
}

// String hides the token so credentials can be logged safely.
func (c Credential) String() string {
	shape := "jwt"
	if c.LowConfidence {
		shape = "opaque"
	}
	return fmt.Sprintf("%s token from %s/%s", shape, c.Tier, c.Key)
}

// Resolver searches tiers in order and, within each tier, keys in order.
type Resolver struct {
	tiers  []Tier
	keys   []string
	logger *log.Logger
}

// NewResolver builds a resolver. A nil logger discards output.
func NewResolver(tiers []Tier, keys []string, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Resolver{
		tiers:  append([]Tier(nil), tiers...),
		keys:   append([]string(nil), keys...),
		logger: logger,
	}
}

// Resolve returns the first non-empty value found. A tier that fails to read
// is logged and skipped rather than aborting the search.
func (r *Resolver) Resolve(ctx context.Context) (Credential, error) {
	for _, tier := range r.tiers {
		if tier.Store == nil {
			continue
		}
		for _, key := range r.keys {
			if err := ctx.Err(); err != nil {
				return Credential{}, err
			}
			value, ok, err := tier.Store.Lookup(ctx, key)
			if err != nil {
				r.logger.Printf("credential tier %s unreadable: %v", tier.Name, err)
				break
			}
			token := strings.Trim(strings.TrimSpace(value), `"`)
			token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
			if !ok || token == "" {
				continue
			}
			return Credential{
				Token:         token,
				Tier:          tier.Name,
				Key:           key,
				LowConfidence: !WellFormed(token),
			}, nil
		}
	}
	return Credential{}, ErrNotFound
}

// WellFormed reports whether token has exactly three dot-separated segments.
func WellFormed(token string) bool {
	return len(strings.Split(token, ".")) == 3
}
