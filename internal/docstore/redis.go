package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "ludiko:doc:"

// Redis is a Store backed by a Redis instance: one JSON value per
// document key, pub/sub fan-out per document for subscriptions. Update
// runs an optimistic WATCH transaction, which makes the merge atomic per
// call while keeping last-write-wins semantics for full writes.
//
// On-disconnect cleanups are tracked in-process: they fire when the
// owning connection's transport drops, not via Redis liveness, which
// matches the advisory contract.
type Redis struct {
	client *redis.Client
	logger *slog.Logger

	cleanupMu sync.Mutex
	cleanups  map[string][]string
}

// NewRedis wraps an already-connected client.
func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{
		client:   client,
		logger:   logger,
		cleanups: make(map[string][]string),
	}
}

var _ Store = (*Redis)(nil)

func (r *Redis) Write(ctx context.Context, path string, value any) error {
	docKey, inner, err := splitPath(path)
	if err != nil {
		return err
	}
	jv, err := toJSONValue(value)
	if err != nil {
		return err
	}

	if len(inner) == 0 {
		raw, err := json.Marshal(jv)
		if err != nil {
			return err
		}
		if err := r.client.Set(ctx, docKey, raw, 0).Err(); err != nil {
			return err
		}
		return r.publish(ctx, docKey)
	}

	return r.modify(ctx, docKey, func(tree any) any {
		return setAt(tree, inner, jv)
	})
}

func (r *Redis) Update(ctx context.Context, path string, fields map[string]any) error {
	docKey, inner, err := splitPath(path)
	if err != nil {
		return err
	}
	jf, err := jsonFieldsValue(fields)
	if err != nil {
		return err
	}
	return r.modify(ctx, docKey, func(tree any) any {
		return mergeAt(tree, inner, jf)
	})
}

// modify runs a WATCH-guarded read-modify-write of one document and
// publishes the change. Retries on write conflicts.
func (r *Redis) modify(ctx context.Context, docKey string, fn func(tree any) any) error {
	txn := func(tx *redis.Tx) error {
		var tree any
		raw, err := tx.Get(ctx, docKey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			tree = nil
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, &tree); err != nil {
				return err
			}
		}

		out, err := json.Marshal(fn(tree))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, docKey, out, 0)
			return nil
		})
		return err
	}

	for {
		err := r.client.Watch(ctx, txn, docKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		return r.publish(ctx, docKey)
	}
}

func (r *Redis) publish(ctx context.Context, docKey string) error {
	return r.client.Publish(ctx, channelPrefix+docKey, docKey).Err()
}

func (r *Redis) ReadOnce(ctx context.Context, path string, dest any) error {
	docKey, inner, err := splitPath(path)
	if err != nil {
		return err
	}
	raw, err := r.client.Get(ctx, docKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrAbsent
	}
	if err != nil {
		return err
	}

	if len(inner) == 0 {
		return json.Unmarshal(raw, dest)
	}

	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return err
	}
	v, ok := valueAt(tree, inner)
	if !ok || v == nil {
		return ErrAbsent
	}
	sub, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(sub, dest)
}

func (r *Redis) Subscribe(path string, fn func(data []byte)) func() {
	docKey, inner, err := splitPath(path)
	if err != nil {
		fn(nil)
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channelPrefix+docKey)

	deliver := func() {
		raw, err := r.client.Get(ctx, docKey).Bytes()
		if errors.Is(err, redis.Nil) {
			fn(nil)
			return
		}
		if err != nil {
			r.logger.Warn("docstore subscribe read failed", "doc", docKey, "error", err)
			return
		}
		if len(inner) == 0 {
			fn(raw)
			return
		}
		var tree any
		if err := json.Unmarshal(raw, &tree); err != nil {
			return
		}
		v, ok := valueAt(tree, inner)
		if !ok || v == nil {
			fn(nil)
			return
		}
		sub, _ := json.Marshal(v)
		fn(sub)
	}

	go func() {
		deliver()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	return func() {
		cancel()
		_ = pubsub.Close()
	}
}

func (r *Redis) QueryByField(ctx context.Context, collection, field string, value any) ([][]byte, error) {
	want, err := toJSONValue(value)
	if err != nil {
		return nil, err
	}

	var out [][]byte
	iter := r.client.Scan(ctx, 0, collection+"/*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue
		}
		if obj[field] == want {
			out = append(out, raw)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Redis) Delete(ctx context.Context, path string) error {
	docKey, inner, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(inner) == 0 {
		if err := r.client.Del(ctx, docKey).Err(); err != nil {
			return err
		}
		return r.publish(ctx, docKey)
	}
	return r.modify(ctx, docKey, func(tree any) any {
		return deleteAt(tree, inner)
	})
}

func (r *Redis) ArmOnDisconnect(connID, path string) {
	r.cleanupMu.Lock()
	r.cleanups[connID] = append(r.cleanups[connID], path)
	r.cleanupMu.Unlock()
}

func (r *Redis) DisarmOnDisconnect(connID string) {
	r.cleanupMu.Lock()
	delete(r.cleanups, connID)
	r.cleanupMu.Unlock()
}

func (r *Redis) FireDisconnect(connID string) {
	r.cleanupMu.Lock()
	paths := r.cleanups[connID]
	delete(r.cleanups, connID)
	r.cleanupMu.Unlock()

	for _, p := range paths {
		if err := r.Delete(context.Background(), p); err != nil {
			r.logger.Warn("disconnect cleanup failed", "path", p, "error", err)
		}
	}
}
