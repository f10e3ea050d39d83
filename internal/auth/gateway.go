// Package auth wraps the external identity provider: interactive sign-in
// with a redirect fallback, best-effort sign-out, and the middleware that
// guards signed-in-only routes.
package auth

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"gorm.io/gorm"

	"github.com/mounthank/go-imagegen/models"
)

const sessionName = "_imagegen_session"

// Failure reasons of the foreground sign-in flow that mean "the user needs
// the redirect flow instead", not "sign-in failed".
var (
	ErrPopupBlocked = errors.New("sign-in popup was blocked")
	ErrPopupClosed  = errors.New("sign-in popup was closed before completing")
)

// SignInError is any sign-in failure other than the two fallback reasons.
type SignInError struct {
	Err error
}

func (e *SignInError) Error() string {
	return "sign-in failed: " + e.Err.Error()
}

func (e *SignInError) Unwrap() error { return e.Err }

// Principal is the authenticated user as reported by the identity provider.
// It lives in the session cookie, never in our database tables.
type Principal struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

// Gateway owns every interaction with the identity provider. Constructed
// once at startup and injected wherever sign-in state is needed.
type Gateway struct {
	db    *gorm.DB
	store sessions.Store

	// Flow functions, swappable in tests.
	foregroundAuth func(http.ResponseWriter, *http.Request) (goth.User, error)
	redirectAuth   func(http.ResponseWriter, *http.Request)
	completeAuth   func(http.ResponseWriter, *http.Request) (goth.User, error)
	remoteLogout   func(http.ResponseWriter, *http.Request) error
}

func NewGateway(db *gorm.DB, store sessions.Store) *Gateway {
	return &Gateway{
		db:             db,
		store:          store,
		foregroundAuth: resumeAuth,
		redirectAuth:   gothic.BeginAuthHandler,
		completeAuth:   gothic.CompleteUserAuth,
		remoteLogout:   gothic.Logout,
	}
}

// resumeAuth is the default foreground flow: complete an authentication the
// provider already holds for this browser. When there is nothing to resume
// the failure is reported as a dismissed popup so SignIn falls through to
// the redirect flow.
func resumeAuth(w http.ResponseWriter, r *http.Request) (goth.User, error) {
	user, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		return goth.User{}, fmt.Errorf("%w: %v", ErrPopupClosed, err)
	}
	return user, nil
}

// SignIn starts interactive authentication. The foreground flow runs first;
// if it fails because it was blocked or dismissed, the redirect flow takes
// over silently. Any other failure comes back as a *SignInError.
func (g *Gateway) SignIn(w http.ResponseWriter, r *http.Request) error {
	user, err := g.foregroundAuth(w, r)
	if err == nil {
		return g.establishSession(w, r, user)
	}
	if errors.Is(err, ErrPopupBlocked) || errors.Is(err, ErrPopupClosed) {
		g.redirectAuth(w, r)
		return nil
	}
	return &SignInError{Err: err}
}

// HandleCallback reconciles the pending redirect result: it completes the
// provider handshake, records the user, and stores the principal in the
// session before sending the browser back to the app.
func (g *Gateway) HandleCallback(w http.ResponseWriter, r *http.Request) {
	user, err := g.completeAuth(w, r)
	if err != nil {
		log.Println("failed to complete authentication:", err)
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	if err := g.establishSession(w, r, user); err != nil {
		log.Println("failed to establish session:", err)
		http.Error(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// SignOut is best-effort: a failed remote logout is logged and the local
// session is cleared regardless, so the UI never wedges on it.
func (g *Gateway) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := g.remoteLogout(w, r); err != nil {
		log.Println("remote sign-out failed:", err)
	}

	session, err := g.store.Get(r, sessionName)
	if err == nil {
		session.Options.MaxAge = -1
		if err := session.Save(r, w); err != nil {
			log.Println("failed to clear session:", err)
		}
	}

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// CurrentPrincipal reads the signed-in user from the session, if any.
func (g *Gateway) CurrentPrincipal(r *http.Request) (*Principal, bool) {
	session, err := g.store.Get(r, sessionName)
	if err != nil {
		return nil, false
	}
	return principalFromSession(session)
}

func principalFromSession(session *sessions.Session) (*Principal, bool) {
	id, ok := session.Values["user_id"].(string)
	if !ok || id == "" {
		return nil, false
	}
	name, _ := session.Values["user_name"].(string)
	email, _ := session.Values["user_email"].(string)
	avatar, _ := session.Values["avatar_url"].(string)
	return &Principal{ID: id, Name: name, Email: email, AvatarURL: avatar}, true
}

// establishSession upserts the user row and writes the principal into the
// session cookie.
func (g *Gateway) establishSession(w http.ResponseWriter, r *http.Request, user goth.User) error {
	var dbUser models.User
	if err := g.db.Where("email = ?", user.Email).First(&dbUser).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			dbUser = models.User{
				Subject:   user.UserID,
				Name:      user.Name,
				Email:     user.Email,
				AvatarURL: user.AvatarURL,
			}
			if err := g.db.Create(&dbUser).Error; err != nil {
				return fmt.Errorf("create user: %w", err)
			}
		} else {
			return fmt.Errorf("look up user: %w", err)
		}
	}

	session, err := g.store.Get(r, sessionName)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	session.Values["user_id"] = user.UserID
	session.Values["user_name"] = user.Name
	session.Values["user_email"] = user.Email
	session.Values["avatar_url"] = user.AvatarURL

	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
