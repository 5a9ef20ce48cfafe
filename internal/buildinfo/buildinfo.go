// Package buildinfo holds build-time metadata injected through ldflags.
package buildinfo

// UnknownValue is reported for metadata that was not set at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string
	// BuildDate is the time when the binary was built
	BuildDate string
}

// NewContext returns build metadata.
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// String renders "version (built date)".
func (c *Context) String() string {
	return c.GetVersion() + " (built " + c.GetBuildDate() + ")"
}
