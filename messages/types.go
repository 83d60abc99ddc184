package messages

import (
	"xdao.co/wxmsg/fields"
	"xdao.co/wxmsg/xmlmap"
)

var messageTypes = map[string]constructor{
	"text":       func(d xmlmap.Map) Message { return &TextMessage{newBase("text", textSchema, d)} },
	"image":      func(d xmlmap.Map) Message { return &ImageMessage{newBase("image", imageSchema, d)} },
	"voice":      func(d xmlmap.Map) Message { return &VoiceMessage{newBase("voice", voiceSchema, d)} },
	"video":      func(d xmlmap.Map) Message { return &VideoMessage{newBase("video", videoSchema, d)} },
	"shortvideo": func(d xmlmap.Map) Message { return &ShortVideoMessage{newBase("shortvideo", videoSchema, d)} },
	"location":   func(d xmlmap.Map) Message { return &LocationMessage{newBase("location", locationSchema, d)} },
	"link":       func(d xmlmap.Map) Message { return &LinkMessage{newBase("link", linkSchema, d)} },
}

var (
	textSchema = Schema.Extend(
		fields.Entry{Key: "content", Field: fields.String("Content")},
	)
	imageSchema = Schema.Extend(
		fields.Entry{Key: "media_id", Field: fields.String("MediaId")},
		fields.Entry{Key: "image", Field: fields.String("PicUrl")},
	)
	voiceSchema = Schema.Extend(
		fields.Entry{Key: "media_id", Field: fields.String("MediaId")},
		fields.Entry{Key: "format", Field: fields.String("Format")},
		fields.Entry{Key: "recognition", Field: fields.String("Recognition")},
	)
	videoSchema = Schema.Extend(
		fields.Entry{Key: "media_id", Field: fields.String("MediaId")},
		fields.Entry{Key: "thumb_media_id", Field: fields.String("ThumbMediaId")},
	)
	locationSchema = Schema.Extend(
		fields.Entry{Key: "location_x", Field: fields.Float("Location_X")},
		fields.Entry{Key: "location_y", Field: fields.Float("Location_Y")},
		fields.Entry{Key: "scale", Field: fields.Integer("Scale")},
		fields.Entry{Key: "label", Field: fields.String("Label")},
	)
	linkSchema = Schema.Extend(
		fields.Entry{Key: "title", Field: fields.String("Title")},
		fields.Entry{Key: "description", Field: fields.String("Description")},
		fields.Entry{Key: "url", Field: fields.String("Url")},
	)
)

type TextMessage struct{ Base }

func (m *TextMessage) Content() string { return m.str("content") }

type ImageMessage struct{ Base }

func (m *ImageMessage) MediaID() string { return m.str("media_id") }

// Image is the picture URL.
func (m *ImageMessage) Image() string { return m.str("image") }

type VoiceMessage struct{ Base }

func (m *VoiceMessage) MediaID() string { return m.str("media_id") }
func (m *VoiceMessage) Format() string  { return m.str("format") }

// Recognition is the speech-to-text result, when enabled for the account.
func (m *VoiceMessage) Recognition() string { return m.str("recognition") }

type VideoMessage struct{ Base }

func (m *VideoMessage) MediaID() string      { return m.str("media_id") }
func (m *VideoMessage) ThumbMediaID() string { return m.str("thumb_media_id") }

type ShortVideoMessage struct{ Base }

func (m *ShortVideoMessage) MediaID() string      { return m.str("media_id") }
func (m *ShortVideoMessage) ThumbMediaID() string { return m.str("thumb_media_id") }

type LocationMessage struct{ Base }

func (m *LocationMessage) LocationX() float64 { return m.float("location_x") }
func (m *LocationMessage) LocationY() float64 { return m.float("location_y") }
func (m *LocationMessage) Scale() int64       { return m.integer("scale") }
func (m *LocationMessage) Label() string      { return m.str("label") }

// Location returns the (x, y) coordinate pair.
func (m *LocationMessage) Location() (float64, float64) {
	return m.LocationX(), m.LocationY()
}

type LinkMessage struct{ Base }

func (m *LinkMessage) Title() string       { return m.str("title") }
func (m *LinkMessage) Description() string { return m.str("description") }
func (m *LinkMessage) URL() string         { return m.str("url") }
