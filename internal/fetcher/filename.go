package fetcher

import "strings"

// unsafeFilenameChars are removed from names sent in Content-Disposition.
const unsafeFilenameChars = `<>:"/\|?*`

// SanitizeFilename removes the characters < > : " / \ | ? * from name.
// Nothing else is changed; bytes that are not valid UTF-8 pass through as is.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		if strings.IndexByte(unsafeFilenameChars, name[i]) < 0 {
			b.WriteByte(name[i])
		}
	}
	return b.String()
}
