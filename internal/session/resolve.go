package session

import (
	"os"

	"github.com/matheus3301/socialsync/internal/config"
)

const (
	DefaultSessionName = "main"

	// SessionEnv selects the session when no --session flag is given.
	SessionEnv = "SOCIALSYNC_SESSION"
)

// Resolve determines the active session name using precedence
// --session flag, $SOCIALSYNC_SESSION, config default_session, "main".
func Resolve(flagOverride string) string {
	cfg, err := config.Load(ConfigPath())
	if err != nil {
		cfg = nil
	}
	return ResolveFrom(flagOverride, os.LookupEnv, cfg)
}

// ResolveFrom applies the Resolve precedence to explicit inputs. cfg may be nil.
func ResolveFrom(flagOverride string, lookup func(string) (string, bool), cfg *config.Config) string {
	if flagOverride != "" {
		return flagOverride
	}
	if lookup != nil {
		if name, ok := lookup(SessionEnv); ok && name != "" {
			return name
		}
	}
	if cfg != nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
