package figma

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/raphaelgruber/designscan/internal/models"
)

// ErrInvalidSourceURL indicates a URL that does not point at a Figma file.
var ErrInvalidSourceURL = errors.New("invalid figma url")

// ParseSourceURL extracts the file key and optional node id from a Figma URL.
// Accepted shapes: figma.com/{file,design,proto}/<key>[/<title>][?node-id=1-2].
func ParseSourceURL(raw string) (models.SourceRef, error) {
	ref := models.SourceRef{URL: raw}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ref, fmt.Errorf("%w: %v", ErrInvalidSourceURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host != "figma.com" && !strings.HasSuffix(host, ".figma.com") {
		return ref, fmt.Errorf("%w: unexpected host %q", ErrInvalidSourceURL, u.Host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[1] == "" {
		return ref, fmt.Errorf("%w: missing file key in %q", ErrInvalidSourceURL, u.Path)
	}
	switch parts[0] {
	case "file", "design", "proto":
	default:
		return ref, fmt.Errorf("%w: unsupported path %q", ErrInvalidSourceURL, u.Path)
	}

	ref.FileKey = parts[1]
	ref.NodeID = NormalizeNodeID(u.Query().Get("node-id"))
	return ref, nil
}

// NormalizeNodeID converts the URL form "1-2" into the API form "1:2".
func NormalizeNodeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, ":") {
		return id
	}
	return strings.Replace(id, "-", ":", 1)
}
