package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/johnquangdev/meeting-intelligence/errors"
)

// ResponseStore is the key/value store backing CachingCompleter
type ResponseStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CachingCompleter memoizes successful completions. Errors are never cached.
type CachingCompleter struct {
	next   Completer
	store  ResponseStore
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

var _ Completer = (*CachingCompleter)(nil)

// NewCachingCompleter wraps next with a response cache
func NewCachingCompleter(next Completer, store ResponseStore, model string, ttl time.Duration, logger *zap.Logger) *CachingCompleter {
	return &CachingCompleter{
		next:   next,
		store:  store,
		model:  model,
		ttl:    ttl,
		logger: logger,
	}
}

// Complete serves from cache when possible, otherwise delegates and stores the result
func (c *CachingCompleter) Complete(ctx context.Context, prompt Prompt, schema Schema, out any) error {
	key, err := c.key(prompt, schema)
	if err != nil {
		return err
	}

	if cached, ok, err := c.store.Get(ctx, key); err != nil {
		c.cacheFailed("⚠️ Completion cache read failed", schema, apperrors.ErrCacheFailed("read", err))
	} else if ok {
		if err := json.Unmarshal([]byte(cached), out); err == nil {
			if c.logger != nil {
				c.logger.Debug("Completion cache hit", zap.String("schema", schema.Name))
			}
			return nil
		}
	}

	if err := c.next.Complete(ctx, prompt, schema, out); err != nil {
		return err
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return nil
	}
	if err := c.store.Set(ctx, key, string(payload), c.ttl); err != nil {
		c.cacheFailed("⚠️ Completion cache write failed", schema, apperrors.ErrCacheFailed("write", err))
	}
	return nil
}

// cacheFailed logs a store failure; the completion itself still succeeds
func (c *CachingCompleter) cacheFailed(msg string, schema Schema, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, zap.String("schema", schema.Name), zap.Error(err))
	}
}

func (c *CachingCompleter) key(prompt Prompt, schema Schema) (string, error) {
	def, err := json.Marshal(schema.Definition)
	if err != nil {
		return "", fmt.Errorf("failed to encode schema %s: %w", schema.Name, err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%g\x00%s\x00", c.model, prompt.System, prompt.User, prompt.Temperature, schema.Name)
	h.Write(def)
	return "completion:" + hex.EncodeToString(h.Sum(nil)), nil
}
