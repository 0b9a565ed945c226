package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/ludikoapp/ludiko/internal/docstore"
)

// playerSession maps a bearer token to a player in a room. Stored in the
// document store so every instance behind a balancer can resolve it.
type playerSession struct {
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId"`
	IsHost   bool   `json:"isHost"`
}

var errNoSession = errors.New("no valid session")

func sessionPath(token string) string {
	return "playerSessions/" + token
}

func newToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func createPlayerSession(ctx context.Context, store docstore.Store, sess playerSession) (string, error) {
	token := newToken()
	if err := store.Write(ctx, sessionPath(token), sess); err != nil {
		return "", err
	}
	return token, nil
}

func dropPlayerSession(ctx context.Context, store docstore.Store, token string) error {
	return store.Delete(ctx, sessionPath(token))
}

// requestToken pulls the session token from the Authorization header,
// falling back to the token query parameter for EventSource clients,
// which cannot set headers.
func requestToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, found := strings.CutPrefix(auth, "Bearer "); found && token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

func playerFromRequest(r *http.Request, store docstore.Store) (string, playerSession, error) {
	token := requestToken(r)
	if token == "" {
		return "", playerSession{}, errNoSession
	}
	var sess playerSession
	err := store.ReadOnce(r.Context(), sessionPath(token), &sess)
	if errors.Is(err, docstore.ErrAbsent) {
		return "", playerSession{}, errNoSession
	}
	if err != nil {
		return "", playerSession{}, err
	}
	return token, sess, nil
}
