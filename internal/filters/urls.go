package filters

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"pubsub2inbox/internal/common/errors"
)

// parseURL splits a URL into its components. params is the ";"-separated
// suffix of the last path segment; name and prefix are the final path segment
// and its parent.
func (l *Library) parseURL(raw string) (map[string]interface{}, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, l.fail("parse_url", errors.ValidationError(fmt.Sprintf("invalid URL %q: %v", raw, err)))
	}

	p := u.Path
	if u.Opaque != "" {
		p = u.Opaque
	}
	params := ""
	if slash := strings.LastIndexByte(p, '/'); strings.IndexByte(p[slash+1:], ';') >= 0 {
		semi := slash + 1 + strings.IndexByte(p[slash+1:], ';')
		params = p[semi+1:]
		p = p[:semi]
	}

	result := map[string]interface{}{
		"scheme":   strings.ToLower(u.Scheme),
		"netloc":   netloc(u),
		"path":     p,
		"params":   params,
		"query":    u.RawQuery,
		"fragment": u.Fragment,
		"username": nil,
		"password": nil,
		"hostname": nil,
		"port":     nil,
		"name":     baseName(p),
		"prefix":   dirName(p),
	}

	if u.User != nil {
		result["username"] = u.User.Username()
		if password, ok := u.User.Password(); ok {
			result["password"] = password
		}
	}
	if host := u.Hostname(); host != "" {
		result["hostname"] = strings.ToLower(host)
	}
	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, l.fail("parse_url", errors.ValidationError(fmt.Sprintf("invalid port %q in %q", port, raw)))
		}
		result["port"] = n
	}
	return result, nil
}

func netloc(u *url.URL) string {
	if u.User == nil {
		return u.Host
	}
	return u.User.String() + "@" + u.Host
}

// baseName mirrors a POSIX basename without stripping trailing slashes:
// "/a/b/" has an empty name
func baseName(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}

func dirName(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	dir := p[:i+1]
	if trimmed := strings.TrimRight(dir, "/"); trimmed != "" {
		return trimmed
	}
	return dir
}

func newUUID() string {
	return uuid.NewString()
}
