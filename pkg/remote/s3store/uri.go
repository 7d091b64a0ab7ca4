package s3store

import (
	"fmt"
	"net/url"
	"path"
)

// ParseDestination splits an s3://bucket/prefix destination into the bucket
// and the slash rooted remote path that objects are written under.
func ParseDestination(uri string) (bucket, remotePath string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse destination %q: %w", uri, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("destination %q is not an s3:// URI", uri)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("destination %q has no bucket", uri)
	}
	return u.Host, path.Clean("/" + u.Path), nil
}
