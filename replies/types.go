package replies

import (
	"sort"
	"strconv"

	"xdao.co/wxmsg/fields"
)

var replyTypes = map[string]func() Reply{
	"text":                      func() Reply { return &TextReply{newBase("text", textSchema)} },
	"image":                     func() Reply { return &ImageReply{newBase("image", imageSchema)} },
	"voice":                     func() Reply { return &VoiceReply{newBase("voice", voiceSchema)} },
	"video":                     func() Reply { return &VideoReply{newBase("video", videoSchema)} },
	"music":                     func() Reply { return &MusicReply{newBase("music", musicSchema)} },
	"news":                      func() Reply { return &ArticlesReply{newBase("news", articlesSchema)} },
	"transfer_customer_service": func() Reply { return &TransferCustomerServiceReply{newBase("transfer_customer_service", Schema)} },
	"hardware":                  func() Reply { return &HardwareReply{newBase("hardware", hardwareSchema)} },
}

var (
	textSchema = Schema.Extend(
		fields.Entry{Key: "content", Field: fields.String("Content")},
	)
	imageSchema = Schema.Extend(
		fields.Entry{Key: "image", Field: fields.Image("Image")},
	)
	voiceSchema = Schema.Extend(
		fields.Entry{Key: "voice", Field: fields.Voice("Voice")},
	)
	videoSchema = Schema.Extend(
		fields.Entry{Key: "video", Field: fields.VideoOf("Video")},
	)
	musicSchema = Schema.Extend(
		fields.Entry{Key: "music", Field: fields.MusicOf("Music")},
	)
	articlesSchema = Schema.Extend(
		fields.Entry{Key: "articles", Field: fields.Articles("Articles", fields.Default([]fields.Article{}))},
	)
	hardwareSchema = Schema.Extend(
		fields.Entry{Key: "func_flag", Field: fields.Integer("FuncFlag", fields.Default(0))},
		fields.Entry{Key: "hardware", Field: fields.HardwareOf("HardWare")},
		fields.Entry{Key: "content", Field: fields.String("Content")},
	)
)

// Types returns the registered reply types.
func Types() []string {
	out := make([]string, 0, len(replyTypes))
	for k := range replyTypes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type TextReply struct{ Base }

func NewText(content string) *TextReply {
	r := &TextReply{newBase("text", textSchema)}
	_ = r.obj.Set("content", content)
	return r
}

func (r *TextReply) Content() string { return r.obj.String("content") }

type ImageReply struct{ Base }

func NewImage(mediaID string) *ImageReply {
	r := &ImageReply{newBase("image", imageSchema)}
	_ = r.obj.Set("image", mediaID)
	return r
}

func (r *ImageReply) MediaID() string { return r.obj.String("image") }

type VoiceReply struct{ Base }

func NewVoice(mediaID string) *VoiceReply {
	r := &VoiceReply{newBase("voice", voiceSchema)}
	_ = r.obj.Set("voice", mediaID)
	return r
}

func (r *VoiceReply) MediaID() string { return r.obj.String("voice") }

type VideoReply struct{ Base }

func NewVideo(v fields.Video) *VideoReply {
	r := &VideoReply{newBase("video", videoSchema)}
	_ = r.obj.Set("video", v)
	return r
}

func (r *VideoReply) Video() fields.Video {
	v, _ := r.obj.Get("video")
	out, _ := v.(fields.Video)
	return out
}

type MusicReply struct{ Base }

func NewMusic(m fields.Music) *MusicReply {
	r := &MusicReply{newBase("music", musicSchema)}
	_ = r.obj.Set("music", m)
	return r
}

func (r *MusicReply) Music() fields.Music {
	v, _ := r.obj.Get("music")
	out, _ := v.(fields.Music)
	return out
}

// ArticlesReply is the "news" reply.
type ArticlesReply struct{ Base }

// NewArticles builds a news reply; more than MaxArticles fails with
// ErrTooManyArticles.
func NewArticles(articles ...fields.Article) (*ArticlesReply, error) {
	r := &ArticlesReply{newBase("news", articlesSchema)}
	for _, a := range articles {
		if err := r.AddArticle(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *ArticlesReply) Articles() []fields.Article {
	v, _ := r.obj.Raw("articles")
	out, _ := v.([]fields.Article)
	return out
}

// AddArticle appends a to the reply.
func (r *ArticlesReply) AddArticle(a fields.Article) error {
	cur := r.Articles()
	if len(cur) >= MaxArticles {
		return wrapError(KindRender, "REPLY-NEWS-001",
			"replies: a news reply carries at most "+strconv.Itoa(MaxArticles)+" articles", ErrTooManyArticles)
	}
	return r.obj.Set("articles", append(cur, a))
}

// TransferCustomerServiceReply hands the conversation to customer service.
type TransferCustomerServiceReply struct{ Base }

func NewTransferCustomerService() *TransferCustomerServiceReply {
	return &TransferCustomerServiceReply{newBase("transfer_customer_service", Schema)}
}

type HardwareReply struct{ Base }

// NewHardware builds a device reply; a zero h renders DefaultHardware.
func NewHardware(content string, h fields.Hardware) *HardwareReply {
	r := &HardwareReply{newBase("hardware", hardwareSchema)}
	_ = r.obj.Set("content", content)
	if h != (fields.Hardware{}) {
		_ = r.obj.Set("hardware", h)
	}
	return r
}

func (r *HardwareReply) Content() string { return r.obj.String("content") }
func (r *HardwareReply) FuncFlag() int64 { return r.obj.Int("func_flag") }

func (r *HardwareReply) Hardware() fields.Hardware {
	v, _ := r.obj.Get("hardware")
	if h, ok := v.(fields.Hardware); ok {
		return h
	}
	return fields.DefaultHardware
}

// EmptyReply renders as an empty body, which WeChat treats as "no reply".
type EmptyReply struct{}

func (EmptyReply) Type() string            { return "" }
func (EmptyReply) Fields() *fields.Object  { return nil }
func (EmptyReply) Render() (string, error) { return "", nil }
