package backend

import (
	"fmt"
	"net/textproto"
	"regexp"
	"strings"
)

// driveIDRegex matches a Drive file ID inside a share link or on its own.
var driveIDRegex = regexp.MustCompile(`[-\w]{25,}`)

// ExtractDriveFileID pulls the file ID out of a Google Drive share link.
// Input without a recognizable ID is returned trimmed.
func ExtractDriveFileID(link string) string {
	link = strings.TrimSpace(link)
	if m := driveIDRegex.FindString(link); m != "" {
		return m
	}
	return link
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// fileHeader builds the multipart header for the "file" field, keeping the
// uploader's content type.
func fileHeader(f Upload) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(f.Name)))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	return h
}
