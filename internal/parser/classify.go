package parser

import (
	"strings"

	"omnichat-platform/internal/channel"
)

// DocumentPolicy decides how media that arrives as a generic "document" or
// "file" is bucketed into an attachment kind. Precedence is explicit media
// field first (handled by each decoder), MIME second, filename extension
// last. The policy is configuration, not contract: platforms disagree on
// what counts as an image.
type DocumentPolicy struct {
	ImageMIMEPrefixes []string
	VideoMIMEPrefixes []string
	AudioMIMEPrefixes []string
	ImageExtensions   []string
}

func DefaultDocumentPolicy() DocumentPolicy {
	return DocumentPolicy{
		ImageMIMEPrefixes: []string{"image/"},
		VideoMIMEPrefixes: []string{"video/"},
		AudioMIMEPrefixes: []string{"audio/"},
		ImageExtensions:   []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
	}
}

func (p DocumentPolicy) isZero() bool {
	return len(p.ImageMIMEPrefixes) == 0 && len(p.VideoMIMEPrefixes) == 0 &&
		len(p.AudioMIMEPrefixes) == 0 && len(p.ImageExtensions) == 0
}

// Classify buckets a generic document by MIME type, then by extension.
func (p DocumentPolicy) Classify(mimeType, filename string) channel.AttachmentKind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	for _, pre := range p.ImageMIMEPrefixes {
		if mt != "" && strings.HasPrefix(mt, pre) {
			return channel.AttachmentImage
		}
	}
	for _, pre := range p.VideoMIMEPrefixes {
		if mt != "" && strings.HasPrefix(mt, pre) {
			return channel.AttachmentVideo
		}
	}
	for _, pre := range p.AudioMIMEPrefixes {
		if mt != "" && strings.HasPrefix(mt, pre) {
			return channel.AttachmentAudio
		}
	}
	name := strings.ToLower(filename)
	for _, ext := range p.ImageExtensions {
		if strings.HasSuffix(name, ext) {
			return channel.AttachmentImage
		}
	}
	return channel.AttachmentDocument
}
