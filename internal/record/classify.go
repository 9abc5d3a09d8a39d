// Package record turns parsed sync runs into the flat rows written to sinks.
package record

import "strings"

// FileType is the coarse media category of a file.
type FileType string

const (
	Image   FileType = "Image"
	Video   FileType = "Video"
	Audio   FileType = "Audio"
	Model3D FileType = "3D"
	Unknown FileType = "Unknown"
)

var extensionTypes = map[string]FileType{
	".png":  Image,
	".jpeg": Image,
	".jpg":  Image,
	".bmp":  Image,
	".tiff": Image,
	".tif":  Image,
	".exr":  Image,
	".tga":  Image,
	".dpx":  Image,
	".mov":  Video,
	".mp3":  Audio,
	".wav":  Audio,
	".aiff": Audio,
	".abc":  Model3D,
	".fbx":  Model3D,
	".obj":  Model3D,
}

// Classify maps a file extension, including its leading dot, to a FileType.
// Matching is case-insensitive. Unlisted extensions and "" are Unknown.
func Classify(ext string) FileType {
	if t, ok := extensionTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return Unknown
}
