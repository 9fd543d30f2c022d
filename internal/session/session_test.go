package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Niranjjith/Department-portal/internal/config"
	"github.com/Niranjjith/Department-portal/internal/entity"
)

const testName = "portal-session"

var testKey = []byte("0123456789abcdef0123456789abcdef")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// roundTrip runs fn against a request carrying cookies and returns the
// cookies set on the response.
func roundTrip(t *testing.T, cookies []*http.Cookie, fn func(w http.ResponseWriter, r *http.Request)) []*http.Cookie {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	fn(w, r)
	return w.Result().Cookies()
}

func TestManagerLifecycle(t *testing.T) {
	backend := NewMemoryBackend()
	stores := map[string]sessions.Store{
		"cookie": sessions.NewCookieStore(testKey),
		"server": NewServerStore(backend, testKey),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, testName)
			user := entity.User{ID: "u-1", Role: entity.RoleTeacher}

			cookies := roundTrip(t, nil, func(w http.ResponseWriter, r *http.Request) {
				_, ok := m.Principal(r)
				assert.False(t, ok)
				require.NoError(t, m.Establish(w, r, user))
			})
			require.Len(t, cookies, 1)
			assert.Equal(t, testName, cookies[0].Name)

			roundTrip(t, cookies, func(w http.ResponseWriter, r *http.Request) {
				p, ok := m.Principal(r)
				require.True(t, ok)
				assert.Equal(t, Principal{UserID: "u-1", Role: entity.RoleTeacher}, p)
			})

			expired := roundTrip(t, cookies, func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, m.Destroy(w, r))
			})
			require.Len(t, expired, 1)
			assert.Less(t, expired[0].MaxAge, 0)
		})
	}
	assert.Equal(t, 0, backend.Len())
}

func TestServerStoreRejectsTamperedCookie(t *testing.T) {
	m := NewManager(NewServerStore(NewMemoryBackend(), testKey), testName)

	roundTrip(t, []*http.Cookie{{Name: testName, Value: "forged"}}, func(w http.ResponseWriter, r *http.Request) {
		_, ok := m.Principal(r)
		assert.False(t, ok)
	})
}

func TestServerStoreCookieFromOtherKeyIsIgnored(t *testing.T) {
	backend := NewMemoryBackend()
	issuer := NewManager(NewServerStore(backend, testKey), testName)
	cookies := roundTrip(t, nil, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, issuer.Establish(w, r, entity.User{ID: "u-1", Role: entity.RoleAdmin}))
	})

	other := NewManager(NewServerStore(backend, []byte("another-key-another-key-another!")), testName)
	roundTrip(t, cookies, func(w http.ResponseWriter, r *http.Request) {
		_, ok := other.Principal(r)
		assert.False(t, ok)
	})
}

func TestServerStoreKeepsOnlyIDInCookie(t *testing.T) {
	backend := NewMemoryBackend()
	m := NewManager(NewServerStore(backend, testKey), testName)

	roundTrip(t, nil, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, m.Establish(w, r, entity.User{ID: "u-1", Role: entity.RoleStudent}))
	})
	assert.Equal(t, 1, backend.Len())
}

func TestEstablishRotatesServerSessionID(t *testing.T) {
	store := NewServerStore(NewMemoryBackend(), testKey)
	m := NewManager(store, testName)

	first := roundTrip(t, nil, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, m.Establish(w, r, entity.User{ID: "u-1", Role: entity.RoleStudent}))
	})
	second := roundTrip(t, first, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, m.Establish(w, r, entity.User{ID: "u-2", Role: entity.RoleAdmin}))
	})
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].Value, second[0].Value)

	roundTrip(t, second, func(w http.ResponseWriter, r *http.Request) {
		p, ok := m.Principal(r)
		require.True(t, ok)
		assert.Equal(t, "u-2", p.UserID)
	})
}

func TestMemoryBackendExpiry(t *testing.T) {
	b := NewMemoryBackend()
	now := time.Now()
	b.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, "id", "data", time.Minute))
	data, ok, err := b.Load(ctx, "id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "data", data)

	now = now.Add(2 * time.Minute)
	_, ok, err = b.Load(ctx, "id")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())
}

func TestNewStore(t *testing.T) {
	cfg := config.SessionConfig{Name: testName, Backend: config.BackendCookie, MaxAge: 3600}

	store, err := NewStore(cfg, true, nil, nil, discardLogger())
	require.NoError(t, err)
	cs, ok := store.(*sessions.CookieStore)
	require.True(t, ok)
	assert.True(t, cs.Options.Secure)
	assert.Equal(t, 3600, cs.Options.MaxAge)

	cfg.Backend = config.BackendMemory
	store, err = NewStore(cfg, false, nil, nil, discardLogger())
	require.NoError(t, err)
	ss, ok := store.(*ServerStore)
	require.True(t, ok)
	assert.Equal(t, 3600, ss.Options.MaxAge)

	cfg.Backend = config.BackendPostgres
	_, err = NewStore(cfg, false, nil, nil, discardLogger())
	assert.Error(t, err)

	cfg.Backend = config.BackendRedis
	_, err = NewStore(cfg, false, nil, nil, discardLogger())
	assert.Error(t, err)

	cfg.Backend = "files"
	_, err = NewStore(cfg, false, nil, nil, discardLogger())
	assert.Error(t, err)
}
