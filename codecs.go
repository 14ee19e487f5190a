package rtmp

import (
	"fmt"
	"strings"
)

// Video mime types understood by the codec tables.
const (
	MimeVideoH263 = "video/3gpp"
	MimeVideoAVC  = "video/avc"
	MimeVideoHEVC = "video/hevc"
	MimeVideoVP9  = "video/x-vnd.on2.vp9"
	MimeVideoAV1  = "video/av01"
)

// VideoCodecs is the videoCodecs bitmask of the connect command.
type VideoCodecs int

// videoCodecs bits.
const (
	SupportVidUnused    VideoCodecs = 0x0001
	SupportVidJPEG      VideoCodecs = 0x0002
	SupportVidSorenson  VideoCodecs = 0x0004
	SupportVidHomebrew  VideoCodecs = 0x0008
	SupportVidVP6       VideoCodecs = 0x0010
	SupportVidVP6Alpha  VideoCodecs = 0x0020
	SupportVidHomebrewV VideoCodecs = 0x0040
	SupportVidH264      VideoCodecs = 0x0080
)

// standardCodecs is ordered so MimeTypes is deterministic.
var standardCodecs = []struct {
	mime string
	bit  VideoCodecs
}{
	{MimeVideoH263, SupportVidSorenson},
	{MimeVideoAVC, SupportVidH264},
}

// IsSupportedVideoCodec reports whether mimeType has a videoCodecs bit.
func IsSupportedVideoCodec(mimeType string) bool {
	for _, c := range standardCodecs {
		if c.mime == mimeType {
			return true
		}
	}
	return false
}

// VideoCodecsFromMimeTypes builds a bitmask from mime types.
func VideoCodecsFromMimeTypes(mimeTypes []string) (VideoCodecs, error) {
	var v VideoCodecs
	for _, mimeType := range mimeTypes {
		found := false
		for _, c := range standardCodecs {
			if c.mime == mimeType {
				v |= c.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("mimetype %s is not supported by rtmp", mimeType)
		}
	}
	return v, nil
}

// MimeTypes lists the mime types whose bit is set in v.
func (v VideoCodecs) MimeTypes() []string {
	var list []string
	for _, c := range standardCodecs {
		if v&c.bit != 0 {
			list = append(list, c.mime)
		}
	}
	return list
}

// HasCodec reports whether mimeType is set in v.
func (v VideoCodecs) HasCodec(mimeType string) bool {
	for _, m := range v.MimeTypes() {
		if m == mimeType {
			return true
		}
	}
	return false
}

// fourCC tags of enhanced RTMP.
const (
	FourCCAV1  = "av01"
	FourCCVP9  = "vp09"
	FourCCHEVC = "hvc1"
)

var extendedCodecs = []struct {
	mime   string
	fourCC string
}{
	{MimeVideoHEVC, FourCCHEVC},
	{MimeVideoVP9, FourCCVP9},
	{MimeVideoAV1, FourCCAV1},
}

// IsSupportedExVideoCodec reports whether mimeType has an enhanced RTMP fourCC.
func IsSupportedExVideoCodec(mimeType string) bool {
	_, ok := fourCCOf(mimeType)
	return ok
}

func fourCCOf(mimeType string) (string, bool) {
	for _, c := range extendedCodecs {
		if c.mime == mimeType {
			return c.fourCC, true
		}
	}
	return "", false
}

// ExVideoCodecs is the fourCcList of enhanced RTMP, e.g. "hvc1,av01".
type ExVideoCodecs struct {
	tags []string
}

// ParseExVideoCodecs parses a comma separated fourCC list. Unknown tags are
// rejected.
func ParseExVideoCodecs(list string) (ExVideoCodecs, error) {
	if list == "" {
		return ExVideoCodecs{}, nil
	}
	tags := strings.Split(list, ",")
	for _, tag := range tags {
		known := false
		for _, c := range extendedCodecs {
			if c.fourCC == tag {
				known = true
				break
			}
		}
		if !known {
			return ExVideoCodecs{}, fmt.Errorf("fourCC %q is not supported by enhanced rtmp", tag)
		}
	}
	return ExVideoCodecs{tags: tags}, nil
}

// ExVideoCodecsFromMimeTypes builds a fourCC list from mime types.
func ExVideoCodecsFromMimeTypes(mimeTypes []string) (ExVideoCodecs, error) {
	var tags []string
	for _, mimeType := range mimeTypes {
		tag, ok := fourCCOf(mimeType)
		if !ok {
			return ExVideoCodecs{}, fmt.Errorf("mimetype %s is not supported by enhanced rtmp", mimeType)
		}
		tags = append(tags, tag)
	}
	return ExVideoCodecs{tags: tags}, nil
}

// Empty reports whether no codec is listed.
func (e ExVideoCodecs) Empty() bool { return len(e.tags) == 0 }

func (e ExVideoCodecs) String() string { return strings.Join(e.tags, ",") }

// Value returns the list as the engine expects it, nil when empty.
func (e ExVideoCodecs) Value() *string {
	if e.Empty() {
		return nil
	}
	s := e.String()
	return &s
}

// MimeTypes lists the mime types of the listed codecs.
func (e ExVideoCodecs) MimeTypes() []string {
	var list []string
	for _, c := range extendedCodecs {
		for _, tag := range e.tags {
			if tag == c.fourCC {
				list = append(list, c.mime)
				break
			}
		}
	}
	return list
}

// HasCodec reports whether mimeType is listed.
func (e ExVideoCodecs) HasCodec(mimeType string) bool {
	for _, m := range e.MimeTypes() {
		if m == mimeType {
			return true
		}
	}
	return false
}
