// Package panel renders embedded Grafana panels and keeps each view's style
// state in sync with the configured presets.
package panel

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/kubeview/panelview/internal/config"
)

// ErrInvalidIdentifier is returned for identifiers that would not produce a
// well-formed d-solo URL.
var ErrInvalidIdentifier = errors.New("invalid panel identifier")

// Grafana dashboard UIDs are limited to this alphabet.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateIdentifier rejects empty identifiers and those containing
// characters that need escaping in a URL path or query.
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if len(id) > 128 {
		return fmt.Errorf("%w: longer than 128 characters", ErrInvalidIdentifier)
	}
	if strings.Trim(id, ".") == "" {
		return fmt.Errorf("%w: %q is a path segment", ErrInvalidIdentifier, id)
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: %q contains unsupported characters", ErrInvalidIdentifier, id)
	}
	return nil
}

// BuildURL returns the d-solo URL embedding the identifier's panel, with the
// identifier used as both dashboard UID and slug.
func BuildURL(g config.GrafanaConfig, id string) (string, error) {
	if err := ValidateIdentifier(id); err != nil {
		return "", err
	}

	// Query order is fixed; url.Values.Encode would sort the keys.
	query := "orgId=" + strconv.Itoa(g.OrgID) +
		"&refresh=" + url.QueryEscape(g.Refresh) +
		"&from=" + strconv.FormatInt(g.From, 10) +
		"&to=" + strconv.FormatInt(g.To, 10) +
		"&panelId=" + strconv.Itoa(g.PanelID)

	u := url.URL{
		Scheme:   "http",
		Host:     g.Host,
		Path:     "/d-solo/" + id + "/" + id,
		RawQuery: query,
	}
	return u.String(), nil
}
