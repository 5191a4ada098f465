package manifest

import "fmt"

// Names a build profile.
type ProfileName string

const (

	// Primary profile: full base variant with the OS dependency stage.
	ProfileFull ProfileName = "full"

	// Fallback profile: slim base variant, no OS packages.
	ProfileSlim ProfileName = "slim"
)

// Parses a profile name, rejecting anything outside the known set.
func ParseProfile(s string) (ProfileName, error) {
	switch ProfileName(s) {
	case ProfileFull:
		return ProfileFull, nil
	case ProfileSlim:
		return ProfileSlim, nil
	default:
		return "", fmt.Errorf("%w: unknown profile %q", ErrManifest, s)
	}
}

// Tracks which profile a deployment attempt is allowed to use.
//
// The initial selection is the full profile. Falling back to slim is an
// explicit operator action, and slim is terminal: once selected there is
// no further fallback. Re-selecting the current profile is a no-op.
type Selection struct {
	current ProfileName
}

// Creates a selection starting at the full profile.
func NewSelection() *Selection {
	return &Selection{current: ProfileFull}
}

// Returns the currently selected profile.
func (s *Selection) Current() ProfileName {
	return s.current
}

// Moves the selection to the given profile.
//
// The only permitted transition is full to slim. Selecting the current
// profile again succeeds without effect.
func (s *Selection) Select(p ProfileName) error {
	if p == s.current {
		return nil
	}
	if s.current == ProfileSlim {
		return fmt.Errorf("%w: slim is terminal, cannot select %q", ErrSelection, p)
	}
	if p != ProfileSlim {
		return fmt.Errorf("%w: cannot select %q from %q", ErrSelection, p, s.current)
	}
	s.current = ProfileSlim
	return nil
}
