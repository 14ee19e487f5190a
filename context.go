package rtmp

import (
	"strings"

	"github.com/Zereker/rtmp/native"
)

// sessionContext bundles a native protocol handle with the state the caller
// configured on it. It is owned by exactly one registry entry.
type sessionContext struct {
	native native.Session

	url          *string
	link         native.Link
	videoCodecs  int
	exVideoCodec *string
}

func newSessionContext(ns native.Session) *sessionContext {
	ctx := &sessionContext{native: ns}
	if cs, ok := ns.(native.CodecSession); ok {
		ctx.videoCodecs = cs.VideoCodecs()
	}
	return ctx
}

// setURL replaces the owned URL copy. The engine may keep references into
// the string, so the copy lives until the context is closed.
func (c *sessionContext) setURL(url string) string {
	owned := strings.Clone(url)
	c.url = &owned
	return owned
}

// setLink stores the link parsed by the engine, fixing the application name
// boundary when the engine left it spanning the instance or stream path.
func (c *sessionContext) setLink(url string, link native.Link) {
	if app, ok := appBoundary(url); ok {
		if link.App == "" || (len(link.App) != len(app) && strings.HasPrefix(link.App, app)) {
			link.App = app
		}
	}
	c.link = link
}

func (c *sessionContext) setVideoCodecs(mask int) {
	c.videoCodecs = mask
	if cs, ok := c.native.(native.CodecSession); ok {
		cs.SetVideoCodecs(mask)
	}
}

func (c *sessionContext) setExVideoCodec(codec *string) {
	c.exVideoCodec = nil
	list := ""
	if codec != nil {
		owned := strings.Clone(*codec)
		c.exVideoCodec = &owned
		list = owned
	}
	if fs, ok := c.native.(native.FourCCSession); ok {
		fs.SetFourCCList(list)
	}
}

// teardown closes and frees the native handle once and drops owned strings.
func (c *sessionContext) teardown() {
	if c.native != nil {
		c.native.Close()
		c.native.Free()
		c.native = nil
	}
	c.url = nil
	c.exVideoCodec = nil
}

// appBoundary extracts the application name from an rtmp URL:
//
//	rtmp://host[:port]/app[/appinstance][/...]
//
// The application is app[/appinstance]; "ondemand/..." keeps only "ondemand",
// and a query carrying slist= makes everything before '?' the application.
func appBoundary(url string) (string, bool) {
	if i := strings.IndexByte(url, ' '); i >= 0 {
		url = url[:i]
	}
	i := strings.Index(url, "://")
	if i < 0 {
		return "", false
	}
	rest := url[i+3:]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "", false
	}
	path := rest[slash+1:]
	if path == "" {
		return "", false
	}

	if q := strings.IndexByte(path, '?'); q >= 0 && strings.Contains(path, "slist=") {
		return path[:q], true
	}
	if strings.HasPrefix(path, "ondemand/") {
		return "ondemand", true
	}

	slashes := make([]int, 0, 3)
	for j := 0; j < len(path) && len(slashes) < 3; j++ {
		if path[j] == '/' {
			slashes = append(slashes, j)
		}
	}
	switch len(slashes) {
	case 0:
		return path, true
	case 1:
		return path[:slashes[0]], true
	default:
		return path[:slashes[len(slashes)-1]], true
	}
}
