package sources

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

var (
	// videoRefRE covers youtu.be/, /v/, /u/x/, /embed/ and watch? forms; group 7 is the ID.
	videoRefRE = regexp.MustCompile(`^.*((youtu.be\/)|(v\/)|(\/u\/\w\/)|(embed\/)|(watch\?))\??v?=?([^#&?]*).*`)
	// videoParamRE finds v= anywhere in a watch query and the shorts/live paths.
	videoParamRE = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/|live/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	videoIDRE    = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

// ParseVideoID extracts the 11-character video ID from a URL or bare ID.
// It performs no network calls; failures wrap engine.ErrInvalidReference.
func ParseVideoID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", engine.ErrInvalidReference)
	}
	if videoIDRE.MatchString(ref) {
		return ref, nil
	}
	if m := videoRefRE.FindStringSubmatch(ref); m != nil && videoIDRE.MatchString(m[7]) {
		return m[7], nil
	}
	if m := videoParamRE.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: %q", engine.ErrInvalidReference, engine.TruncateRunes(ref, 80, "..."))
}
