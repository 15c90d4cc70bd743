// Package cache stores fetched page bodies so repeated searches skip the
// network and spend no API credits.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
}

func SearchPageKey(queryKey string, page int) string {
	return fmt.Sprintf("search:%s:page:%d", queryKey, page)
}

func DetailKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return "detail:" + hex.EncodeToString(hash[:16])
}

// Nop never hits.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (Nop) Set(context.Context, string, []byte)        {}

type clock func() time.Time
