package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ErrEmptyUserID is returned for a blank user identifier.
var ErrEmptyUserID = errors.New("user id is empty")

// ValidateName checks that name conforms to session naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// ValidateUserID checks an identity-provider user id before it is placed in
// a request path or connection metadata. IDs are opaque, so only blank
// values, whitespace and control characters are rejected.
func ValidateUserID(id string) error {
	if id == "" {
		return ErrEmptyUserID
	}
	if len(id) > 256 {
		return fmt.Errorf("user id too long (%d bytes)", len(id))
	}
	if strings.IndexFunc(id, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return fmt.Errorf("invalid user id %q: contains whitespace or control characters", id)
	}
	return nil
}
