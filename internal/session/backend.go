package session

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// PostgresBackend stores sessions in the sessions table.
type PostgresBackend struct {
	db *sql.DB
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) Load(ctx context.Context, id string) (string, bool, error) {
	var data string
	err := b.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE id = $1 AND expires_at > now()`, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "select session")
	}
	return data, true, nil
}

func (b *PostgresBackend) Save(ctx context.Context, id, data string, ttl time.Duration) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO sessions (id, data, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`,
		id, data, time.Now().Add(ttl),
	)
	return errors.Wrap(err, "upsert session")
}

func (b *PostgresBackend) Delete(ctx context.Context, id string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return errors.Wrap(err, "delete session")
}

// DeleteExpired removes expired rows and reports how many were removed.
func (b *PostgresBackend) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, errors.Wrap(err, "delete expired sessions")
	}
	return res.RowsAffected()
}

// Sweep calls DeleteExpired every interval until ctx is done.
func (b *PostgresBackend) Sweep(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := b.DeleteExpired(ctx)
			if err != nil {
				logger.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

// RedisBackend stores sessions as keys with a TTL.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) Load(ctx context.Context, id string) (string, bool, error) {
	data, err := b.client.Get(ctx, b.prefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis get session")
	}
	return data, true, nil
}

func (b *RedisBackend) Save(ctx context.Context, id, data string, ttl time.Duration) error {
	return errors.Wrap(b.client.Set(ctx, b.prefix+id, data, ttl).Err(), "redis set session")
}

func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	return errors.Wrap(b.client.Del(ctx, b.prefix+id).Err(), "redis del session")
}

type memoryEntry struct {
	data    string
	expires time.Time
}

// MemoryBackend keeps sessions in process.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry), now: time.Now}
}

func (b *MemoryBackend) Load(_ context.Context, id string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return "", false, nil
	}
	if !b.now().Before(e.expires) {
		delete(b.entries, id)
		return "", false, nil
	}
	return e.data, true, nil
}

func (b *MemoryBackend) Save(_ context.Context, id, data string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[id] = memoryEntry{data: data, expires: b.now().Add(ttl)}
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, id)
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
