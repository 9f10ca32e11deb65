package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilenameFromDisposition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, header, want string
	}{
		{"empty", "", defaultFilename},
		{"no filename", "attachment", defaultFilename},
		{"quoted", `attachment; filename="report.pdf"`, "report.pdf"},
		{"bare", `attachment; filename=report.pdf`, "report.pdf"},
		{"percent encoded", `attachment; filename="%EC%A4%91%EA%B0%84.pdf"`, "중간.pdf"},
		{"rfc5987", `attachment; filename*=UTF-8''%EA%B8%B0%EB%A7%90.pdf`, "기말.pdf"},
		{"both", `attachment; filename="a%20b.pdf"; filename*=UTF-8''a%20b.pdf`, "a b.pdf"},
		{"path stripped", `attachment; filename="../../etc/passwd"`, "passwd"},
		{"windows path", `attachment; filename="C:\\tmp\\x.pdf"`, "x.pdf"},
		// NFD hangul (ᄒ + ᅡ + ᆫ) composes to 한.
		{"nfc", "attachment; filename=\"\u1112\u1161\u11ab.pdf\"", "한.pdf"},
		{"malformed falls back to regex", `attachment; filename=x.pdf; =bad`, "x.pdf"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, filenameFromDisposition(tc.header), tc.name)
	}
}
