package services

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/authorizerdev/authorizer-go"
	"github.com/localnerve/permit-review/internal/config"
	"github.com/localnerve/permit-review/internal/utils"
	"go.uber.org/zap"
)

// Roles granted by the Authorizer service
const (
	RoleCustomer   = "customer"
	RoleSpecialist = "specialist"
	RoleAdmin      = "admin"
)

// Actor is the authenticated user performing an operation
type Actor struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the actor holds role
func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// IsSpecialist reports whether the actor may review documents and see every project
func (a Actor) IsSpecialist() bool {
	return a.HasRole(RoleSpecialist) || a.HasRole(RoleAdmin)
}

var (
	authClient *authorizer.AuthorizerClient
	authMu     sync.Mutex
)

// IsAuthorizerInitialized returns true if the Authorizer client is initialized
func IsAuthorizerInitialized() bool {
	authMu.Lock()
	defer authMu.Unlock()
	return authClient != nil
}

// InitAuthorizer creates the Authorizer client once. A failed attempt is
// retried on the next call, so an Authorizer that starts late is picked up.
func InitAuthorizer(cfg *config.Config, requestProtocol, requestHost string, log *zap.Logger) error {
	authMu.Lock()
	defer authMu.Unlock()

	if authClient != nil {
		return nil
	}

	if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
		return fmt.Errorf("authorizer ping failed: %w", err)
	}

	redirectURL := fmt.Sprintf("%s://%s", requestProtocol, requestHost)
	if log != nil {
		log.Info("initializing authorizer",
			zap.String("authorizerURL", cfg.AuthzURL),
			zap.String("clientID", cfg.AuthzClientID),
			zap.String("redirectURL", redirectURL))
	}

	client, err := authorizer.NewAuthorizerClient(cfg.AuthzClientID, cfg.AuthzURL, redirectURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create authorizer client: %w", err)
	}
	authClient = client
	return nil
}

// ValidateSession validates a session cookie and returns the session's user
func ValidateSession(cookie string) (Actor, error) {
	authMu.Lock()
	client := authClient
	authMu.Unlock()

	if client == nil {
		return Actor{}, fmt.Errorf("authorizer client not initialized")
	}

	res, err := client.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
	})
	if err != nil {
		return Actor{}, fmt.Errorf("session validation failed: %w", err)
	}
	if res == nil || !res.IsValid {
		return Actor{}, fmt.Errorf("session is not valid")
	}

	return actorFromUser(res.User)
}

// sessionUser is the subset of the Authorizer user the service relies on.
// Decoding through JSON keeps it independent of the SDK's pointer layout.
type sessionUser struct {
	ID    string   `json:"id"`
	Email *string  `json:"email"`
	Roles []string `json:"roles"`
}

func actorFromUser(user any) (Actor, error) {
	raw, err := json.Marshal(user)
	if err != nil {
		return Actor{}, fmt.Errorf("decode session user: %w", err)
	}

	var u sessionUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return Actor{}, fmt.Errorf("decode session user: %w", err)
	}
	if u.ID == "" {
		return Actor{}, fmt.Errorf("session user has no id")
	}

	actor := Actor{ID: u.ID, Roles: u.Roles}
	if u.Email != nil {
		actor.Email = *u.Email
	}
	return actor, nil
}
