package api

import (
	"mime"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// defaultFilename is used when the response names no file.
const defaultFilename = "downloaded_file"

var reDispositionName = regexp.MustCompile(`filename[^;=\n]*=((['"]).*?['"]|[^;\n]*)`)

// filenameFromDisposition extracts the file name from a Content-Disposition header.
// RFC 5987 filename* values are decoded by mime; plain values are unquoted and
// percent-decoded. The result is NFC-normalized and stripped of any directory part.
func filenameFromDisposition(header string) string {
	if header == "" {
		return defaultFilename
	}
	name := ""
	if _, params, err := mime.ParseMediaType(header); err == nil && params["filename"] != "" {
		name = params["filename"]
	} else if m := reDispositionName.FindStringSubmatch(header); m != nil && m[1] != "" {
		name = strings.NewReplacer(`"`, "", `'`, "").Replace(strings.TrimSpace(m[1]))
	}
	if name == "" {
		return defaultFilename
	}
	if dec, err := url.PathUnescape(name); err == nil {
		name = dec
	}
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return defaultFilename
	}
	return norm.NFC.String(name)
}
