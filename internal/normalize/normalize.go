package normalize

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"media-resolver/pkg/models"
)

// ErrMalformed is returned when no probe recognizes the payload shape.
// Callers treat it as a transient provider failure and try the next one.
var ErrMalformed = errors.New("no recognizable download URL in provider response")

// Size labels for responses that carry no byte count
const (
	SizeUnknown    = "Unknown"
	SizeDirectLink = "Direct Link"
	SizeVariable   = "Variable"
)

var filenameInvalid = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

const maxFilenameLen = 100

// candidate is what a probe pulls out of a raw payload
type candidate struct {
	url      string
	title    string
	size     any
	variable bool // provider only communicates relative/variable sizing
}

// probe is one named response shape. Providers disagree on schema, so the
// shapes are tried in a fixed priority order and the first match wins.
type probe struct {
	name    string
	extract func(payload any) (candidate, bool)
}

var probes = []probe{
	{"direct_url", extractDirectURL},
	{"tunnel", extractTunnel},
	{"picker", extractPicker},
	{"array", extractArray},
	{"video_items", extractVideoItems},
	{"formats", extractFormats},
}

// Normalize extracts a download URL, filename, and size from a raw
// provider payload, independent of which provider produced it.
func Normalize(payload any, req *models.ResolutionRequest) (*models.ResolutionResult, error) {
	for _, p := range probes {
		cand, ok := p.extract(payload)
		if !ok {
			continue
		}
		return &models.ResolutionResult{
			DownloadURL: cand.url,
			Filename:    BuildFilename(cand.title, cand.url, req.Format),
			FileSize:    sizeLabel(cand.size, cand.variable),
		}, nil
	}
	return nil, ErrMalformed
}

// DirectLinkResult builds the result for a URL that already points at a raw
// media file, bypassing all providers.
func DirectLinkResult(rawURL string, format models.FileFormat) *models.ResolutionResult {
	return &models.ResolutionResult{
		DownloadURL: rawURL,
		Filename:    BuildFilename("", rawURL, format),
		FileSize:    SizeDirectLink,
	}
}

// extractDirectURL matches a top-level string URL field, checked under
// several possible field names in priority order. Payloads announcing a
// tunnel/redirect/picker status also carry a top-level url; those are left
// for the dedicated probes so their variable sizing survives.
func extractDirectURL(payload any) (candidate, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return candidate{}, false
	}
	switch status, _ := stringField(m, "status"); status {
	case "tunnel", "redirect", "picker":
		return candidate{}, false
	}
	if u, ok := stringField(m, "url"); ok {
		return candidate{url: u, title: firstString(m, "filename", "title"), size: m["size"]}, true
	}
	if u, ok := stringField(m, "link"); ok {
		return candidate{url: u, title: firstString(m, "title", "filename"), size: m["size"]}, true
	}
	if data, ok := m["data"].(map[string]any); ok {
		if u, ok := stringField(data, "url"); ok {
			return candidate{url: u, title: firstString(data, "title", "filename"), size: data["size"]}, true
		}
		if u, ok := stringField(data, "link"); ok {
			return candidate{url: u, title: firstString(data, "title", "filename"), size: data["size"]}, true
		}
	}
	return candidate{}, false
}

// extractTunnel matches a streaming/tunnel indicator with an embedded URL
func extractTunnel(payload any) (candidate, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return candidate{}, false
	}
	status, _ := stringField(m, "status")
	if status != "tunnel" && status != "redirect" {
		return candidate{}, false
	}
	u, ok := stringField(m, "url")
	if !ok {
		return candidate{}, false
	}
	return candidate{url: u, title: firstString(m, "filename"), variable: true}, true
}

// extractPicker matches a picker-style list of candidate URLs; the first
// entry is selected
func extractPicker(payload any) (candidate, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return candidate{}, false
	}
	picker, ok := m["picker"].([]any)
	if !ok || len(picker) == 0 {
		return candidate{}, false
	}
	entry, ok := picker[0].(map[string]any)
	if !ok {
		return candidate{}, false
	}
	u, ok := stringField(entry, "url")
	if !ok {
		return candidate{}, false
	}
	return candidate{url: u, variable: true}, true
}

// extractArray matches an array-shaped payload whose first element carries
// a URL
func extractArray(payload any) (candidate, bool) {
	arr, ok := payload.([]any)
	if !ok || len(arr) == 0 {
		return candidate{}, false
	}
	first, ok := arr[0].(map[string]any)
	if !ok {
		return candidate{}, false
	}
	u, ok := stringField(first, "url")
	if !ok {
		return candidate{}, false
	}
	return candidate{url: u, title: firstString(first, "title"), size: first["size"]}, true
}

// extractVideoItems matches a nested videos.items list
func extractVideoItems(payload any) (candidate, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return candidate{}, false
	}
	videos, ok := m["videos"].(map[string]any)
	if !ok {
		return candidate{}, false
	}
	items, ok := videos["items"].([]any)
	if !ok || len(items) == 0 {
		return candidate{}, false
	}
	item, ok := items[0].(map[string]any)
	if !ok {
		return candidate{}, false
	}
	u, ok := stringField(item, "url")
	if !ok {
		return candidate{}, false
	}
	return candidate{url: u, size: item["size"]}, true
}

// extractFormats matches a nested formats list: the first entry exposing a
// URL wins, else a designated "best" field
func extractFormats(payload any) (candidate, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return candidate{}, false
	}
	formats, ok := m["formats"].([]any)
	if !ok || len(formats) == 0 {
		return candidate{}, false
	}
	title := firstString(m, "title")
	for _, f := range formats {
		entry, ok := f.(map[string]any)
		if !ok {
			continue
		}
		if u, ok := stringField(entry, "url"); ok {
			return candidate{url: u, title: title, size: entry["filesize"]}, true
		}
	}
	if best, ok := m["best"].(map[string]any); ok {
		if u, ok := stringField(best, "url"); ok {
			return candidate{url: u, title: title, size: best["filesize"]}, true
		}
	}
	return candidate{}, false
}

// stringField returns the non-empty string value under key
func stringField(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// firstString returns the first non-empty string value among keys
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := stringField(m, key); ok {
			return s
		}
	}
	return ""
}

// BuildFilename derives the final filename: a provider-given title when
// present, else the URL path's last segment, else a collision-free
// placeholder. The result uses only [A-Za-z0-9_.-], stays under the length
// cap, and always carries the format's extension.
func BuildFilename(title, rawURL string, format models.FileFormat) string {
	name := title
	if name == "" {
		name = lastPathSegment(rawURL)
	}
	if name == "" {
		name = fmt.Sprintf("media_%s", uuid.NewString()[:8])
	}
	return ensureExtension(SanitizeFilename(name), format.Extension())
}

// SanitizeFilename replaces disallowed characters with underscores and caps
// the length
func SanitizeFilename(name string) string {
	sanitized := filenameInvalid.ReplaceAllString(name, "_")
	if len(sanitized) > maxFilenameLen {
		sanitized = sanitized[:maxFilenameLen]
	}
	return sanitized
}

// ensureExtension appends the extension if absent, trimming the base so the
// length cap holds
func ensureExtension(name, ext string) string {
	suffix := "." + ext
	if strings.HasSuffix(strings.ToLower(name), suffix) {
		return name
	}
	if len(name)+len(suffix) > maxFilenameLen {
		name = name[:maxFilenameLen-len(suffix)]
	}
	return name + suffix
}

// lastPathSegment returns the decoded final path segment of a URL
func lastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segment := path.Base(u.Path)
	if segment == "." || segment == "/" {
		return ""
	}
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	return segment
}

// sizeLabel turns an opportunistic provider size field into a display label
func sizeLabel(size any, variable bool) string {
	switch v := size.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		if v > 0 {
			return FormatSize(int64(v))
		}
	case int64:
		if v > 0 {
			return FormatSize(v)
		}
	case int:
		if v > 0 {
			return FormatSize(int64(v))
		}
	}
	if variable {
		return SizeVariable
	}
	return SizeUnknown
}

// FormatSize formats a byte count as a human readable label
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := strconv.FormatFloat(float64(bytes)/float64(div), 'f', 1, 64)
	value = strings.TrimSuffix(value, ".0")
	return fmt.Sprintf("%s %cB", value, "KMGTPE"[exp])
}
