package session

import (
	"context"
	"database/sql"
	"encoding/base32"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Niranjjith/Department-portal/internal/config"
)

// Backend persists encoded session payloads by id.
type Backend interface {
	// Load returns the payload stored under id, or ok=false when it is
	// missing or expired.
	Load(ctx context.Context, id string) (data string, ok bool, err error)
	Save(ctx context.Context, id, data string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// ServerStore is a sessions.Store that keeps session values in a Backend
// and only a signed session id in the cookie.
type ServerStore struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options

	backend Backend
}

var _ sessions.Store = (*ServerStore)(nil)

func NewServerStore(backend Backend, keyPairs ...[]byte) *ServerStore {
	s := &ServerStore{
		Codecs: securecookie.CodecsFromPairs(keyPairs...),
		Options: &sessions.Options{
			Path:     "/",
			MaxAge:   86400 * 30,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
		backend: backend,
	}
	s.MaxAge(s.Options.MaxAge)
	return s
}

// MaxAge sets the lifetime of new sessions and of the id signatures.
func (s *ServerStore) MaxAge(age int) {
	s.Options.MaxAge = age
	for _, c := range s.Codecs {
		if codec, ok := c.(*securecookie.SecureCookie); ok {
			codec.MaxAge(age)
		}
	}
}

func (s *ServerStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

func (s *ServerStore) New(r *http.Request, name string) (*sessions.Session, error) {
	sess := sessions.NewSession(s, name)
	opts := *s.Options
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}
	if err := securecookie.DecodeMulti(name, c.Value, &sess.ID, s.Codecs...); err != nil {
		sess.ID = ""
		return sess, err
	}

	data, ok, err := s.backend.Load(r.Context(), sess.ID)
	if err != nil {
		return sess, errors.Wrap(err, "load session")
	}
	if !ok {
		return sess, nil
	}
	if err := securecookie.DecodeMulti(name, data, &sess.Values, s.Codecs...); err != nil {
		return sess, err
	}
	sess.IsNew = false
	return sess, nil
}

func (s *ServerStore) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	ctx := r.Context()

	if sess.Options.MaxAge < 0 {
		if sess.ID != "" {
			if err := s.backend.Delete(ctx, sess.ID); err != nil {
				return errors.Wrap(err, "delete session")
			}
		}
		http.SetCookie(w, sessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if sess.ID == "" {
		sess.ID = strings.TrimRight(
			base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
	}
	data, err := securecookie.EncodeMulti(sess.Name(), sess.Values, s.Codecs...)
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, sess.ID, data, s.ttl(sess)); err != nil {
		return errors.Wrap(err, "save session")
	}
	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.Codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

// ttl is the backend lifetime. Browser-session cookies (MaxAge 0) fall back
// to the store default.
func (s *ServerStore) ttl(sess *sessions.Session) time.Duration {
	age := sess.Options.MaxAge
	if age == 0 {
		age = s.Options.MaxAge
	}
	return time.Duration(age) * time.Second
}

// NewStore builds the sessions.Store selected by cfg.Backend. db is only
// used by the postgres backend and rdb only by the redis backend.
func NewStore(cfg config.SessionConfig, secure bool, db *sql.DB, rdb *redis.Client, logger *slog.Logger) (sessions.Store, error) {
	keys := keyPairs(cfg, logger)

	var store sessions.Store
	switch cfg.Backend {
	case config.BackendCookie:
		cs := sessions.NewCookieStore(keys...)
		cs.MaxAge(cfg.MaxAge)
		cs.Options.HttpOnly = true
		cs.Options.Secure = secure
		cs.Options.SameSite = http.SameSiteLaxMode
		store = cs
	case config.BackendPostgres:
		if db == nil {
			return nil, errors.New("postgres session backend needs a database")
		}
		store = serverStore(NewPostgresBackend(db), cfg, secure, keys)
	case config.BackendRedis:
		if rdb == nil {
			return nil, errors.New("redis session backend needs a redis client")
		}
		store = serverStore(NewRedisBackend(rdb, cfg.Name+":"), cfg, secure, keys)
	case config.BackendMemory:
		store = serverStore(NewMemoryBackend(), cfg, secure, keys)
	default:
		return nil, errors.Errorf("unknown session backend %q", cfg.Backend)
	}
	logger.Info("session store ready", "backend", cfg.Backend, "max_age", cfg.MaxAge)
	return store, nil
}

func serverStore(b Backend, cfg config.SessionConfig, secure bool, keys [][]byte) *ServerStore {
	s := NewServerStore(b, keys...)
	s.MaxAge(cfg.MaxAge)
	s.Options.Secure = secure
	return s
}

// keyPairs returns the configured hash/block keys, generating a random hash
// key when none is set. Generated keys invalidate sessions on restart.
func keyPairs(cfg config.SessionConfig, logger *slog.Logger) [][]byte {
	hashKey := []byte(cfg.HashKey)
	if len(hashKey) == 0 {
		logger.Warn("SESSION_HASH_KEY not set, using a random key; sessions will not survive a restart")
		hashKey = securecookie.GenerateRandomKey(64)
	}
	if cfg.BlockKey == "" {
		return [][]byte{hashKey}
	}
	return [][]byte{hashKey, []byte(cfg.BlockKey)}
}
