package messages

import (
	"strconv"
	"strings"

	"xdao.co/wxmsg/fields"
	"xdao.co/wxmsg/xmlmap"
)

var eventTypes = map[string]constructor{
	"subscribe":          func(d xmlmap.Map) Message { return &SubscribeEvent{newEvent("subscribe", eventSchema, d)} },
	"unsubscribe":        func(d xmlmap.Map) Message { return &UnsubscribeEvent{newEvent("unsubscribe", eventSchema, d)} },
	"click":              func(d xmlmap.Map) Message { return &ClickEvent{newEvent("click", keySchema, d)} },
	"view":               func(d xmlmap.Map) Message { return &ViewEvent{newEvent("view", viewSchema, d)} },
	"location":           func(d xmlmap.Map) Message { return &LocationEvent{newEvent("location", locationEventSchema, d)} },
	"scancode_push":      func(d xmlmap.Map) Message { return &ScanCodePushEvent{scanCode(newEvent("scancode_push", scanCodeSchema, d))} },
	"scancode_waitmsg":   func(d xmlmap.Map) Message { return &ScanCodeWaitMsgEvent{scanCode(newEvent("scancode_waitmsg", scanCodeSchema, d))} },
	"pic_sysphoto":       func(d xmlmap.Map) Message { return &PicSysPhotoEvent{pictures(newEvent("pic_sysphoto", picturesSchema, d))} },
	"pic_photo_or_album": func(d xmlmap.Map) Message { return &PicPhotoOrAlbumEvent{pictures(newEvent("pic_photo_or_album", picturesSchema, d))} },
	"pic_weixin":         func(d xmlmap.Map) Message { return &PicWeChatEvent{pictures(newEvent("pic_weixin", picturesSchema, d))} },
	"location_select":    func(d xmlmap.Map) Message { return &LocationSelectEvent{newEvent("location_select", locationSelectSchema, d)} },
	"enter_agent":        func(d xmlmap.Map) Message { return &EnterAgentEvent{newEvent("enter_agent", keySchema, d)} },
	"batch_job_result":   func(d xmlmap.Map) Message { return &BatchJobResultEvent{newEvent("batch_job_result", batchJobSchema, d)} },
}

var (
	eventSchema = Schema.Extend(
		fields.Entry{Key: "event", Field: fields.String("Event")},
	)
	keySchema = eventSchema.Extend(
		fields.Entry{Key: "key", Field: fields.String("EventKey")},
	)
	viewSchema = eventSchema.Extend(
		fields.Entry{Key: "url", Field: fields.String("EventKey")},
	)
	locationEventSchema = eventSchema.Extend(
		fields.Entry{Key: "latitude", Field: fields.Float("Latitude", fields.Default(0.0))},
		fields.Entry{Key: "longitude", Field: fields.Float("Longitude", fields.Default(0.0))},
		fields.Entry{Key: "precision", Field: fields.Float("Precision", fields.Default(0.0))},
	)
	scanCodeSchema = keySchema.Extend(
		fields.Entry{Key: "scan_code_info", Field: fields.Map("ScanCodeInfo", fields.Default(map[string]any{}))},
	)
	picturesSchema = keySchema.Extend(
		fields.Entry{Key: "pictures_info", Field: fields.Map("SendPicsInfo", fields.Default(map[string]any{}))},
	)
	locationSelectSchema = keySchema.Extend(
		fields.Entry{Key: "location_info", Field: fields.Map("SendLocationInfo", fields.Default(map[string]any{}))},
	)
	batchJobSchema = eventSchema.Extend(
		fields.Entry{Key: "batch_job", Field: fields.Map("BatchJob", fields.Default(map[string]any{}))},
	)
)

// EventBase is embedded by every event type.
type EventBase struct{ Base }

func newEvent(typ string, schema *fields.Schema, data xmlmap.Map) EventBase {
	return EventBase{newBase(typ, schema, data)}
}

// Event returns the Event tag as sent.
func (e *EventBase) Event() string { return e.str("event") }

type SubscribeEvent struct{ EventBase }

type UnsubscribeEvent struct{ EventBase }

type ClickEvent struct{ EventBase }

func (e *ClickEvent) Key() string { return e.str("key") }

type ViewEvent struct{ EventBase }

// URL is the target of the clicked menu link.
func (e *ViewEvent) URL() string { return e.str("url") }

type LocationEvent struct{ EventBase }

func (e *LocationEvent) Latitude() float64  { return e.float("latitude") }
func (e *LocationEvent) Longitude() float64 { return e.float("longitude") }
func (e *LocationEvent) Precision() float64 { return e.float("precision") }

// ScanCodeEvent holds what scancode_push and scancode_waitmsg share.
type ScanCodeEvent struct{ EventBase }

func scanCode(e EventBase) ScanCodeEvent { return ScanCodeEvent{e} }

func (e *ScanCodeEvent) Key() string        { return e.str("key") }
func (e *ScanCodeEvent) ScanType() string   { return e.dict("scan_code_info").String("ScanType") }
func (e *ScanCodeEvent) ScanResult() string { return e.dict("scan_code_info").String("ScanResult") }

type ScanCodePushEvent struct{ ScanCodeEvent }

type ScanCodeWaitMsgEvent struct{ ScanCodeEvent }

// PicturesEvent holds what the pic_* events share.
type PicturesEvent struct{ EventBase }

func pictures(e EventBase) PicturesEvent { return PicturesEvent{e} }

func (e *PicturesEvent) Key() string { return e.str("key") }

// Count is the number of pictures sent.
func (e *PicturesEvent) Count() int64 { return e.dict("pictures_info").Int("Count") }

// Pictures returns the PicList items, each holding PicMd5Sum.
func (e *PicturesEvent) Pictures() []fields.Dict {
	list := e.dict("pictures_info").Dict("PicList").List("item")
	out := make([]fields.Dict, 0, len(list))
	for _, item := range list {
		switch m := item.(type) {
		case xmlmap.Map:
			out = append(out, fields.Dict(m))
		case map[string]any:
			out = append(out, fields.Dict(m))
		case fields.Dict:
			out = append(out, m)
		}
	}
	return out
}

type PicSysPhotoEvent struct{ PicturesEvent }

type PicPhotoOrAlbumEvent struct{ PicturesEvent }

type PicWeChatEvent struct{ PicturesEvent }

type LocationSelectEvent struct{ EventBase }

func (e *LocationSelectEvent) Key() string { return e.str("key") }

func (e *LocationSelectEvent) LocationX() float64 {
	return parseFloat(e.dict("location_info").String("Location_X"))
}

func (e *LocationSelectEvent) LocationY() float64 {
	return parseFloat(e.dict("location_info").String("Location_Y"))
}

func (e *LocationSelectEvent) Scale() int64  { return e.dict("location_info").Int("Scale") }
func (e *LocationSelectEvent) Label() string { return e.dict("location_info").String("Label") }

// POIName is the name of the selected point of interest, when any.
func (e *LocationSelectEvent) POIName() string { return e.dict("location_info").String("Poiname") }

type EnterAgentEvent struct{ EventBase }

func (e *EnterAgentEvent) Key() string { return e.str("key") }

type BatchJobResultEvent struct{ EventBase }

func (e *BatchJobResultEvent) JobID() string   { return e.dict("batch_job").String("JobId") }
func (e *BatchJobResultEvent) JobType() string { return e.dict("batch_job").String("JobType") }
func (e *BatchJobResultEvent) ErrCode() int64  { return e.dict("batch_job").Int("ErrCode") }
func (e *BatchJobResultEvent) ErrMsg() string  { return e.dict("batch_job").String("ErrMsg") }

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
