package patronlink

import (
	"errors"
	"regexp"
	"strings"
)

var (
	profileRegexp       = regexp.MustCompile(`usr_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	legacyProfileRegexp = regexp.MustCompile(`vrchat\.com/home/user/([0-9a-zA-Z]{10})`)
)

var errBadProfile = errors.New("patronlink: no profile id found")

// ParseProfileID extracts a profile ID from s, which may be the ID itself or
// a profile URL. Legacy 10 character IDs are only recognised within a URL.
func ParseProfileID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if id := profileRegexp.FindString(s); id != "" {
		return id, nil
	}
	if m := legacyProfileRegexp.FindStringSubmatch(s); m != nil {
		return m[1], nil
	}
	return "", errBadProfile
}
