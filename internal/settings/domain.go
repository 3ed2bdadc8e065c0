// Package settings keeps the key/value application options and publishes
// them as an immutable snapshot.
package settings

import (
	"maps"
	"regexp"
	"slices"
	"strconv"
)

// Known option names.
const (
	KeyAppName           = "app_name"
	KeyDefaultPagination = "default_pagination"
	KeySiteLogoLite      = "site_logo_lite"
	KeySiteLogoDark      = "site_logo_dark"
	KeySiteIcon          = "site_icon"
	KeySiteFavicon       = "site_favicon"
)

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// maxValueLength bounds plain text option values.
const maxValueLength = 10000

// FileKeys lists options whose value is the URL of an uploaded image.
func FileKeys() []string {
	return []string{KeySiteLogoLite, KeySiteLogoDark, KeySiteIcon, KeySiteFavicon}
}

// IsFileKey reports whether key holds an uploaded file URL.
func IsFileKey(key string) bool {
	return slices.Contains(FileKeys(), key)
}

// Defaults returns the values used when an option is not stored.
func Defaults() map[string]string {
	return map[string]string{
		KeyAppName:           "Odyssey Admin",
		KeyDefaultPagination: "10",
		KeySiteLogoLite:      "/images/logo/logo-lite.png",
		KeySiteLogoDark:      "/images/logo/logo-dark.png",
		KeySiteIcon:          "/images/icons/site_icon.png",
		KeySiteFavicon:       "/images/icons/site_favicon.png",
	}
}

// Snapshot is an immutable view of every option at load time.
type Snapshot struct {
	values map[string]string
}

// NewSnapshot overlays stored values on the defaults.
func NewSnapshot(stored map[string]string) Snapshot {
	values := Defaults()
	maps.Copy(values, stored)
	return Snapshot{values: values}
}

// Get returns the value of key and whether it is set.
func (s Snapshot) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Values returns a copy of every option.
func (s Snapshot) Values() map[string]string {
	return maps.Clone(s.values)
}

// AppName returns the configured application name.
func (s Snapshot) AppName() string {
	if v := s.values[KeyAppName]; v != "" {
		return v
	}
	return Defaults()[KeyAppName]
}

// DefaultPagination returns the page size of listings, falling back to 10
// when the stored value is not a usable number.
func (s Snapshot) DefaultPagination() int {
	n, err := strconv.Atoi(s.values[KeyDefaultPagination])
	if err != nil || n < 1 || n > 100 {
		return 10
	}
	return n
}
