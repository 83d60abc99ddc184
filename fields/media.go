package fields

import (
	"fmt"
	"strconv"
	"strings"

	"xdao.co/wxmsg/xmlmap"
)

// Video is the value of a VideoField. Title and Description are optional and
// omitted from the XML when empty.
type Video struct {
	MediaID     string
	Title       string
	Description string
}

// Music is the value of a MusicField. Everything but ThumbMediaID is optional.
type Music struct {
	ThumbMediaID string
	Title        string
	Description  string
	MusicURL     string
	HQMusicURL   string
}

// Article is one entry of an ArticlesField.
type Article struct {
	Title       string
	Description string
	Image       string
	URL         string
}

// Hardware is the value of a HardwareField.
type Hardware struct {
	View   string
	Action string
}

// DefaultHardware is rendered when a HardwareField has no value.
var DefaultHardware = Hardware{View: "myrank", Action: "ranklist"}

// mediaField renders <Tag><MediaId>…</MediaId></Tag>; the field name is only
// the schema-facing tag, the wrapper tag is fixed per type.
type mediaField struct {
	StringField
	wrapper string
}

func (f *mediaField) Convert(value any) (any, error) { return toText(value), nil }

func (f *mediaField) ToXML(value any) (string, error) {
	return xmlmap.Element(f.wrapper, xmlmap.CDATA("MediaId", toText(value))), nil
}

func (f *mediaField) FromXML(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	m, ok := asMap(value)
	if !ok {
		return nil, missingKey("FIELD-XML-101", f.wrapper, "MediaId")
	}
	id, ok := m["MediaId"]
	if !ok {
		return nil, missingKey("FIELD-XML-101", f.wrapper, "MediaId")
	}
	return toText(id), nil
}

// ImageField renders <Image><MediaId>…</MediaId></Image> from a media id string.
type ImageField struct{ mediaField }

func Image(name string, opts ...Option) *ImageField {
	return &ImageField{mediaField{StringField{newBase(name, opts)}, "Image"}}
}

// VoiceField renders <Voice><MediaId>…</MediaId></Voice> from a media id string.
type VoiceField struct{ mediaField }

func Voice(name string, opts ...Option) *VoiceField {
	return &VoiceField{mediaField{StringField{newBase(name, opts)}, "Voice"}}
}

// VideoField renders a <Video> block from a Video value.
type VideoField struct{ StringField }

func VideoOf(name string, opts ...Option) *VideoField {
	return &VideoField{StringField{newBase(name, opts)}}
}

func (f *VideoField) Convert(value any) (any, error) { return value, nil }

func (f *VideoField) ToXML(value any) (string, error) {
	v, err := asVideo(value)
	if err != nil {
		return "", err
	}
	parts := []string{xmlmap.CDATA("MediaId", v.MediaID)}
	if v.Title != "" {
		parts = append(parts, xmlmap.CDATA("Title", v.Title))
	}
	if v.Description != "" {
		parts = append(parts, xmlmap.CDATA("Description", v.Description))
	}
	return xmlmap.Element("Video", parts...), nil
}

func (f *VideoField) FromXML(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	m, ok := asMap(value)
	if !ok {
		return nil, missingKey("FIELD-XML-111", "Video", "MediaId")
	}
	id, ok := m["MediaId"]
	if !ok {
		return nil, missingKey("FIELD-XML-111", "Video", "MediaId")
	}
	return Video{
		MediaID:     toText(id),
		Title:       toText(m["Title"]),
		Description: toText(m["Description"]),
	}, nil
}

func asVideo(value any) (Video, error) {
	switch v := value.(type) {
	case Video:
		return v, nil
	case *Video:
		if v != nil {
			return *v, nil
		}
	case nil:
	default:
		m, ok := asMap(value)
		if !ok {
			return Video{}, convertError("FIELD-CONV-501", "Video", fmt.Sprintf("fields: cannot render %T as Video", value), nil)
		}
		id, ok := m["media_id"]
		if !ok {
			return Video{}, missingKey("FIELD-XML-112", "Video", "media_id")
		}
		return Video{MediaID: toText(id), Title: toText(m["title"]), Description: toText(m["description"])}, nil
	}
	return Video{}, missingKey("FIELD-XML-112", "Video", "media_id")
}

// MusicField renders a <Music> block from a Music value.
type MusicField struct{ StringField }

func MusicOf(name string, opts ...Option) *MusicField {
	return &MusicField{StringField{newBase(name, opts)}}
}

func (f *MusicField) Convert(value any) (any, error) { return value, nil }

func (f *MusicField) ToXML(value any) (string, error) {
	v, err := asMusic(value)
	if err != nil {
		return "", err
	}
	parts := []string{xmlmap.CDATA("ThumbMediaId", v.ThumbMediaID)}
	optional := []struct{ tag, val string }{
		{"Title", v.Title},
		{"Description", v.Description},
		{"MusicUrl", v.MusicURL},
		{"HQMusicUrl", v.HQMusicURL},
	}
	for _, o := range optional {
		if o.val != "" {
			parts = append(parts, xmlmap.CDATA(o.tag, o.val))
		}
	}
	return xmlmap.Element("Music", parts...), nil
}

func (f *MusicField) FromXML(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	m, ok := asMap(value)
	if !ok {
		return nil, missingKey("FIELD-XML-121", "Music", "ThumbMediaId")
	}
	thumb, ok := m["ThumbMediaId"]
	if !ok {
		return nil, missingKey("FIELD-XML-121", "Music", "ThumbMediaId")
	}
	return Music{
		ThumbMediaID: toText(thumb),
		Title:        toText(m["Title"]),
		Description:  toText(m["Description"]),
		MusicURL:     toText(m["MusicUrl"]),
		HQMusicURL:   toText(m["HQMusicUrl"]),
	}, nil
}

func asMusic(value any) (Music, error) {
	switch v := value.(type) {
	case Music:
		return v, nil
	case *Music:
		if v != nil {
			return *v, nil
		}
	case nil:
	default:
		m, ok := asMap(value)
		if !ok {
			return Music{}, convertError("FIELD-CONV-502", "Music", fmt.Sprintf("fields: cannot render %T as Music", value), nil)
		}
		thumb, ok := m["thumb_media_id"]
		if !ok {
			return Music{}, missingKey("FIELD-XML-122", "Music", "thumb_media_id")
		}
		return Music{
			ThumbMediaID: toText(thumb),
			Title:        toText(m["title"]),
			Description:  toText(m["description"]),
			MusicURL:     toText(m["music_url"]),
			HQMusicURL:   toText(m["hq_music_url"]),
		}, nil
	}
	return Music{}, missingKey("FIELD-XML-122", "Music", "thumb_media_id")
}

// ArticlesField renders <ArticleCount> followed by an <Articles> block of
// <item> entries.
type ArticlesField struct{ StringField }

func Articles(name string, opts ...Option) *ArticlesField {
	return &ArticlesField{StringField{newBase(name, opts)}}
}

func (f *ArticlesField) Convert(value any) (any, error) { return value, nil }

func (f *ArticlesField) ToXML(value any) (string, error) {
	articles, err := asArticles(value)
	if err != nil {
		return "", err
	}
	var items strings.Builder
	for _, a := range articles {
		items.WriteString(xmlmap.Element("item",
			xmlmap.CDATA("Title", a.Title),
			xmlmap.CDATA("Description", a.Description),
			xmlmap.CDATA("PicUrl", a.Image),
			xmlmap.CDATA("Url", a.URL),
		))
	}
	return xmlmap.Leaf("ArticleCount", strconv.Itoa(len(articles))) +
		xmlmap.Element("Articles", items.String()), nil
}

// FromXML reads the decoded <Articles> block. An absent or empty block yields
// an empty slice.
func (f *ArticlesField) FromXML(value any) (any, error) {
	out := []Article{}
	if value == nil {
		return out, nil
	}
	m, ok := asMap(value)
	if !ok {
		if s, isStr := value.(string); isStr && strings.TrimSpace(s) == "" {
			return out, nil
		}
		return nil, missingKey("FIELD-XML-131", "Articles", "item")
	}
	for _, raw := range xmlmap.AsList(m["item"]) {
		item, ok := asMap(raw)
		if !ok {
			return nil, missingKey("FIELD-XML-132", "item", "Title")
		}
		a := Article{}
		for _, k := range []struct {
			tag string
			dst *string
		}{
			{"Title", &a.Title},
			{"Description", &a.Description},
			{"PicUrl", &a.Image},
			{"Url", &a.URL},
		} {
			v, ok := item[k.tag]
			if !ok {
				return nil, missingKey("FIELD-XML-132", "item", k.tag)
			}
			*k.dst = toText(v)
		}
		out = append(out, a)
	}
	return out, nil
}

func asArticles(value any) ([]Article, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []Article:
		return v, nil
	case []any:
		out := make([]Article, 0, len(v))
		for _, raw := range v {
			switch a := raw.(type) {
			case Article:
				out = append(out, a)
			case *Article:
				out = append(out, *a)
			default:
				m, ok := asMap(raw)
				if !ok {
					return nil, convertError("FIELD-CONV-503", "Articles", fmt.Sprintf("fields: cannot render %T as Article", raw), nil)
				}
				out = append(out, Article{
					Title:       toText(m["title"]),
					Description: toText(m["description"]),
					Image:       toText(m["image"]),
					URL:         toText(m["url"]),
				})
			}
		}
		return out, nil
	default:
		return nil, convertError("FIELD-CONV-503", "Articles", fmt.Sprintf("fields: cannot render %T as Articles", value), nil)
	}
}

// HardwareField renders <Name><MessageView/><MessageAction/></Name>.
type HardwareField struct{ StringField }

func HardwareOf(name string, opts ...Option) *HardwareField {
	return &HardwareField{StringField{newBase(name, opts)}}
}

func (f *HardwareField) Convert(value any) (any, error) { return value, nil }

func (f *HardwareField) ToXML(value any) (string, error) {
	h, err := asHardware(value)
	if err != nil {
		return "", err
	}
	return xmlmap.Element(f.name,
		xmlmap.CDATA("MessageView", h.View),
		xmlmap.CDATA("MessageAction", h.Action),
	), nil
}

func (f *HardwareField) FromXML(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	m, ok := asMap(value)
	if !ok {
		return nil, missingKey("FIELD-XML-141", f.name, "MessageView")
	}
	view, ok := m["MessageView"]
	if !ok {
		return nil, missingKey("FIELD-XML-141", f.name, "MessageView")
	}
	action, ok := m["MessageAction"]
	if !ok {
		return nil, missingKey("FIELD-XML-142", f.name, "MessageAction")
	}
	return Hardware{View: toText(view), Action: toText(action)}, nil
}

func asHardware(value any) (Hardware, error) {
	switch v := value.(type) {
	case nil:
		return DefaultHardware, nil
	case Hardware:
		if v == (Hardware{}) {
			return DefaultHardware, nil
		}
		return v, nil
	case *Hardware:
		if v == nil || *v == (Hardware{}) {
			return DefaultHardware, nil
		}
		return *v, nil
	default:
		m, ok := asMap(value)
		if !ok {
			return Hardware{}, convertError("FIELD-CONV-504", "Hardware", fmt.Sprintf("fields: cannot render %T as Hardware", value), nil)
		}
		if len(m) == 0 {
			return DefaultHardware, nil
		}
		return Hardware{View: toText(m["view"]), Action: toText(m["action"])}, nil
	}
}

func asMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case xmlmap.Map:
		return m, true
	case Dict:
		return m, true
	default:
		return nil, false
	}
}
