package session

import (
	"fmt"
	"time"

	"github.com/matheus3301/socialsync/internal/config"
	"github.com/matheus3301/socialsync/internal/model"
)

// Session is the resolved runtime context of one daemon instance. It is built
// once at startup and handed to every component that needs the backend
// location or the signed-in identity.
type Session struct {
	Name     string
	BaseURL  string
	Timeout  time.Duration
	Chat     config.Chat
	Identity *model.Identity
}

// New validates name and derives the session from cfg. lookup resolves
// environment overrides (os.LookupEnv in production).
func New(name string, cfg *config.Config, lookup func(string) (string, bool)) (*Session, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", name, err)
	}
	s := &Session{
		Name:    name,
		BaseURL: cfg.ResolveBaseURL(lookup),
		Timeout: timeout,
		Chat:    cfg.Chat,
	}
	if cfg.Identity.HasIdentity() {
		s.Identity = &model.Identity{
			ID:        cfg.Identity.UID,
			Name:      cfg.Identity.Name,
			Email:     cfg.Identity.Email,
			AvatarURL: cfg.Identity.AvatarURL,
		}
	}
	return s, nil
}
