package session

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/pkg/errors"

	"github.com/Niranjjith/Department-portal/internal/entity"
)

const (
	keyUserID = "user_id"
	keyRole   = "role"
)

// Principal is everything a session remembers about its owner. The user
// record itself is looked up again on every protected request.
type Principal struct {
	UserID string
	Role   entity.Role
}

// Manager reads and writes the portal session through any gorilla store.
type Manager struct {
	store sessions.Store
	name  string
}

func NewManager(store sessions.Store, name string) *Manager {
	return &Manager{store: store, name: name}
}

// Principal returns the signed-in principal, if any. Sessions that fail to
// decode are treated as anonymous.
func (m *Manager) Principal(r *http.Request) (Principal, bool) {
	sess, err := m.store.Get(r, m.name)
	if err != nil || sess.IsNew {
		return Principal{}, false
	}
	id, ok := sess.Values[keyUserID].(string)
	if !ok || id == "" {
		return Principal{}, false
	}
	role, _ := sess.Values[keyRole].(string)
	return Principal{UserID: id, Role: entity.Role(role)}, true
}

// Establish binds user to the session, replacing any previous principal.
func (m *Manager) Establish(w http.ResponseWriter, r *http.Request, user entity.User) error {
	sess, _ := m.store.Get(r, m.name)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	// A fresh identifier on every sign-in; server-side stores mint a new one
	// when ID is empty.
	sess.ID = ""
	sess.Values[keyUserID] = user.ID
	sess.Values[keyRole] = string(user.Role)
	return errors.Wrap(sess.Save(r, w), "save session")
}

// Destroy removes the session from its store and expires the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Options.MaxAge = -1
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	return errors.Wrap(sess.Save(r, w), "destroy session")
}
