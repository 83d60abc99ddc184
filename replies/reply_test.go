package replies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"xdao.co/wxmsg/fields"
	"xdao.co/wxmsg/messages"
)

func fixedNow(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Unix(1700000000, 0) }
	t.Cleanup(func() { now = prev })
}

func inbound(t *testing.T) messages.Message {
	t.Helper()
	msg, err := messages.Parse([]byte(`<xml><ToUserName>corp</ToUserName><FromUserName>user</FromUserName>
<CreateTime>1348831860</CreateTime><MsgType>text</MsgType><Content>hi</Content></xml>`))
	require.NoError(t, err)
	return msg
}

func TestTextReply_Render(t *testing.T) {
	fixedNow(t)
	r := ReplyTo(inbound(t), NewText("hello"))

	out, err := r.Render()
	require.NoError(t, err)
	require.Equal(t, "<xml>\n"+
		"<MsgType><![CDATA[text]]></MsgType>\n"+
		"<FromUserName><![CDATA[corp]]></FromUserName>\n"+
		"<ToUserName><![CDATA[user]]></ToUserName>\n"+
		"<CreateTime>1700000000</CreateTime>\n"+
		"<Content><![CDATA[hello]]></Content>\n"+
		"</xml>", out)
}

func TestReplies_RoundTrip(t *testing.T) {
	fixedNow(t)
	news, err := NewArticles(
		fields.Article{Title: "a", Description: "b", Image: "c", URL: "d"},
		fields.Article{Title: "e", Description: "f", Image: "g", URL: "h"},
	)
	require.NoError(t, err)

	cases := []Reply{
		NewText("hello"),
		NewImage("img"),
		NewVoice("voc"),
		NewVideo(fields.Video{MediaID: "vid", Title: "t"}),
		NewMusic(fields.Music{ThumbMediaID: "th", MusicURL: "u"}),
		news,
		NewTransferCustomerService(),
		NewHardware("on", fields.Hardware{}),
	}
	for _, r := range cases {
		r = ReplyTo(inbound(t), r)
		out, err := r.Render()
		require.NoError(t, err)

		back, err := Deserialize([]byte(out))
		require.NoError(t, err, r.Type())
		require.Equal(t, r.Type(), back.Type())

		again, err := back.Render()
		require.NoError(t, err)
		require.Equal(t, out, again, r.Type())
	}
}

func TestTypedAccessors(t *testing.T) {
	r, err := Deserialize([]byte(`<xml><MsgType><![CDATA[video]]></MsgType>
<FromUserName><![CDATA[a]]></FromUserName><ToUserName><![CDATA[b]]></ToUserName>
<CreateTime>12345</CreateTime>
<Video><MediaId><![CDATA[m]]></MediaId><Title><![CDATA[t]]></Title></Video></xml>`))
	require.NoError(t, err)
	v := r.(*VideoReply)
	require.Equal(t, fields.Video{MediaID: "m", Title: "t"}, v.Video())
	require.Equal(t, "a", v.Source())
	require.Equal(t, "b", v.Target())
	require.Equal(t, int64(12345), v.Time())

	img := NewImage("x")
	require.Equal(t, "x", img.MediaID())
	require.Equal(t, "y", NewVoice("y").MediaID())
	require.Equal(t, "th", NewMusic(fields.Music{ThumbMediaID: "th"}).Music().ThumbMediaID)

	hw := NewHardware("c", fields.Hardware{})
	require.Equal(t, fields.DefaultHardware, hw.Hardware())
	require.Equal(t, int64(0), hw.FuncFlag())
	require.Equal(t, "c", hw.Content())
}

func TestArticlesReply_Limit(t *testing.T) {
	r, err := NewArticles()
	require.NoError(t, err)
	for i := 0; i < MaxArticles; i++ {
		require.NoError(t, r.AddArticle(fields.Article{Title: "t"}))
	}
	err = r.AddArticle(fields.Article{Title: "one too many"})
	require.ErrorIs(t, err, ErrTooManyArticles)
	require.Len(t, r.Articles(), MaxArticles)

	_, err = NewArticles(make([]fields.Article, MaxArticles+1)...)
	require.ErrorIs(t, err, ErrTooManyArticles)
}

func TestArticlesReply_Empty(t *testing.T) {
	fixedNow(t)
	r, err := NewArticles()
	require.NoError(t, err)
	out, err := r.Render()
	require.NoError(t, err)
	require.Contains(t, out, "\n<ArticleCount>0</ArticleCount><Articles></Articles>\n")

	back, err := Deserialize([]byte(out))
	require.NoError(t, err)
	require.Equal(t, []fields.Article{}, back.(*ArticlesReply).Articles())
}

func TestEmptyReply(t *testing.T) {
	r, err := Deserialize(nil)
	require.NoError(t, err)
	out, err := r.Render()
	require.NoError(t, err)
	require.Equal(t, "", out)
	require.Nil(t, r.Fields())
	require.Same(t, r, ReplyTo(inbound(t), r))
}

func TestDeserialize_Errors(t *testing.T) {
	_, err := Deserialize([]byte(`<xml><MsgType>hologram</MsgType></xml>`))
	require.ErrorIs(t, err, ErrUnknownType)
	require.True(t, IsKind(err, KindParse))

	_, err = Deserialize([]byte(`<xml><MsgType>text`))
	require.Equal(t, "REPLY-PARSE-001", RuleID(err))

	_, err = Deserialize([]byte(`<xml><MsgType>image</MsgType><Image><Other>x</Other></Image></xml>`))
	require.ErrorIs(t, err, fields.ErrMissingKey)
	require.Equal(t, "REPLY-PARSE-003", RuleID(err))
}

func TestCreate(t *testing.T) {
	msg := inbound(t)

	r, err := Create("pong", msg)
	require.NoError(t, err)
	text := r.(*TextReply)
	require.Equal(t, "pong", text.Content())
	require.Equal(t, "user", text.Target())

	r, err = Create([]fields.Article{{Title: "t"}}, msg)
	require.NoError(t, err)
	require.Equal(t, "news", r.Type())

	r, err = Create(nil, msg)
	require.NoError(t, err)
	require.IsType(t, &EmptyReply{}, r)

	_, err = Create(42, msg)
	require.True(t, IsKind(err, KindRender))
}
