package probe

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/tern-dl/tern/internal/utils"
)

// Result carries everything learned from a metadata-only request. Size is 0
// when the server did not report a usable Content-Length (chunked responses).
type Result struct {
	Size         int64
	ContentType  string
	LastModified string
	Server       string
	AcceptRanges bool
	Filename     string
}

// Probe issues a HEAD request and derives size, range support and a
// suggested filename. Transport failures come back as NetworkError, non-2xx
// statuses as ProtocolError; neither is retried here.
func Probe(link string, client utils.HTTPDoer) (*Result, error) {
	req, err := http.NewRequest("HEAD", link, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, utils.NetworkError("probe", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, utils.ProtocolError("probe", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	result := &Result{
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
		Server:       resp.Header.Get("Server"),
		AcceptRanges: resp.Header.Get("Accept-Ranges") == "bytes",
		Filename:     ExtractFilename(link, resp.Header),
	}
	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		size, err := strconv.ParseInt(contentLength, 10, 64)
		if err == nil && size > 0 {
			result.Size = size
		}
	}
	return result, nil
}

// ExtractFilename picks a filename in order of precedence: the
// Content-Disposition header, the last URL path segment, a timestamped
// fallback. Decoded values are returned as-is; path separators never survive
// because both sources go through path.Base.
func ExtractFilename(link string, headers http.Header) string {
	if contentDisposition := headers.Get("Content-Disposition"); contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if fn, ok := params["filename"]; ok && fn != "" {
				if unescaped, err := url.PathUnescape(fn); err == nil {
					fn = unescaped
				}
				return path.Base(fn)
			}
		}
	}
	if parsed, err := url.Parse(link); err == nil {
		// parsed.Path is already percent-decoded
		segment := path.Base(parsed.Path)
		if segment != "" && segment != "." && segment != "/" {
			return segment
		}
	}
	return fmt.Sprintf("download_%s", time.Now().Format("20060102_150405"))
}
