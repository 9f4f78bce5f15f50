package parser

import "bytes"

// FileType is the result of content sniffing.
type FileType string

const (
	FileTypeFIT     FileType = "fit"
	FileTypeGPX     FileType = "gpx"
	FileTypeSuunto  FileType = "suunto"
	FileTypeUnknown FileType = "unknown"
)

// sniffWindow is how many leading bytes are inspected during detection.
const sniffWindow = 512

// DetectFileType sniffs the file type from the leading bytes of the
// content. It only looks at signatures, never at the full document.
func DetectFileType(data []byte) FileType {
	if len(data) > sniffWindow {
		data = data[:sniffWindow]
	}

	// FIT signature: ".FIT" at offset 8 of the header
	if len(data) >= 12 && bytes.Equal(data[8:12], []byte(".FIT")) {
		return FileTypeFIT
	}

	if isXMLProlog(data) {
		if bytes.Contains(data, []byte("<gpx")) ||
			bytes.Contains(data, []byte("topografix.com/GPX")) {
			return FileTypeGPX
		}
		if bytes.Contains(data, []byte("<sml")) ||
			bytes.Contains(data, []byte("<DeviceLog")) {
			return FileTypeSuunto
		}
	}

	return FileTypeUnknown
}

func isXMLProlog(data []byte) bool {
	// Tolerate a UTF-8 BOM and leading whitespace before the prolog.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	data = bytes.TrimLeft(data, " \t\r\n")
	return bytes.HasPrefix(data, []byte("<?xml")) || bytes.HasPrefix(data, []byte("<"))
}
