// Package notify serves the HTTP callbacks WeChat sends to an application:
// message and event pushes on /wechat and payment results on /pay/notify.
package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/messages"
	"xdao.co/wxmsg/pay"
	"xdao.co/wxmsg/replies"
	"xdao.co/wxmsg/signer"
	"xdao.co/wxmsg/xmlmap"
)

// MaxBodyBytes caps callback request bodies.
const MaxBodyBytes = 1 << 20

const (
	endpointVerify  = "verify"
	endpointMessage = "message"
	endpointPayment = "payment"
)

// MessageHandler answers an inbound message. The result is turned into a
// reply with replies.Create: nil, a string, a []fields.Article or a
// replies.Reply.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg messages.Message) (any, error)
}

type MessageHandlerFunc func(ctx context.Context, msg messages.Message) (any, error)

func (f MessageHandlerFunc) HandleMessage(ctx context.Context, msg messages.Message) (any, error) {
	return f(ctx, msg)
}

// PaymentHandler receives verified payment notifications. Returning an error
// answers FAIL, and WeChat redelivers later.
type PaymentHandler interface {
	HandlePayment(ctx context.Context, n Notification) error
}

type PaymentHandlerFunc func(ctx context.Context, n Notification) error

func (f PaymentHandlerFunc) HandlePayment(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Options configures a Handler. An endpoint is only served when its secret
// is set: /wechat needs Token and /pay/notify needs APIKey.
type Options struct {
	// Token is the server URL verification token.
	Token string
	// APIKey is the merchant key used to verify payment notifications.
	APIKey string

	Messages MessageHandler
	Payments PaymentHandler
	// Recorder archives handled bodies and detects redelivery. Optional.
	Recorder *archive.Recorder
	Logger   *zap.Logger
}

// Handler routes and serves the callback endpoints.
type Handler struct {
	opts     Options
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics
	router   chi.Router
}

func New(opts Options) *Handler {
	h := &Handler{opts: opts, log: opts.Logger, registry: prometheus.NewRegistry()}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	h.metrics = newMetrics(h.registry)

	r := chi.NewRouter()
	r.Get("/-/live", h.live)
	r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	if opts.Token != "" {
		r.Route("/wechat", func(r chi.Router) {
			r.Get("/", h.verify)
			r.Post("/", h.message)
		})
	}
	if opts.APIKey != "" {
		r.Post("/pay/notify", h.payment)
	}
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Registry exposes the handler's metrics registry.
func (h *Handler) Registry() *prometheus.Registry { return h.registry }

func (h *Handler) live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (h *Handler) checkQuery(r *http.Request) bool {
	q := r.URL.Query()
	return signer.CheckSignature(h.opts.Token, q.Get("signature"), q.Get("timestamp"), q.Get("nonce")) == nil
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	if !h.checkQuery(r) {
		h.metrics.observe(endpointVerify, outcomeBadSignature)
		h.log.Warn("url verification rejected", zap.String("remote", r.RemoteAddr))
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}
	h.metrics.observe(endpointVerify, outcomeOK)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, r.URL.Query().Get("echostr"))
}

func (h *Handler) message(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.checkQuery(r) {
		h.metrics.observe(endpointMessage, outcomeBadSignature)
		h.log.Warn("message rejected", zap.String("remote", r.RemoteAddr))
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}
	body, ok := h.readBody(w, r, endpointMessage)
	if !ok {
		return
	}

	id, seen, err := h.opts.Recorder.Seen(ctx, body)
	if err != nil {
		h.metrics.observe(endpointMessage, outcomeError)
		http.Error(w, "archive unavailable", http.StatusInternalServerError)
		return
	}
	log := h.log.With(zap.Stringer("cid", id))
	if seen {
		h.metrics.observe(endpointMessage, outcomeDuplicate)
		writeText(w, "success")
		return
	}

	msg, err := messages.Parse(body)
	if err != nil {
		h.metrics.observe(endpointMessage, outcomeBadRequest)
		log.Warn("unparseable message", zap.String("rule", messages.RuleID(err)), zap.Error(err))
		http.Error(w, "bad message", http.StatusBadRequest)
		return
	}
	log = log.With(zap.String("type", msg.Type()), zap.String("from", msg.Source()))

	var result any
	if h.opts.Messages != nil {
		result, err = h.opts.Messages.HandleMessage(ctx, msg)
		if err != nil {
			h.metrics.observe(endpointMessage, outcomeError)
			log.Error("message handler failed", zap.Error(err))
			http.Error(w, "handler failed", http.StatusInternalServerError)
			return
		}
	}
	reply, err := replies.Create(result, msg)
	if err != nil {
		h.metrics.observe(endpointMessage, outcomeError)
		log.Error("cannot build reply", zap.Error(err))
		http.Error(w, "bad reply", http.StatusInternalServerError)
		return
	}
	out, err := reply.Render()
	if err != nil {
		h.metrics.observe(endpointMessage, outcomeError)
		log.Error("cannot render reply", zap.String("rule", replies.RuleID(err)), zap.Error(err))
		http.Error(w, "bad reply", http.StatusInternalServerError)
		return
	}
	h.commit(ctx, log, body)
	h.metrics.observe(endpointMessage, outcomeOK)
	log.Debug("message handled", zap.String("reply", reply.Type()))
	if out == "" {
		writeText(w, "success")
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = io.WriteString(w, out)
}

func (h *Handler) payment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.readBody(w, r, endpointPayment)
	if !ok {
		return
	}

	// Nothing is archived before the signature checks out.
	params, err := pay.ParsePaymentResult(body, h.opts.APIKey)
	if err != nil {
		outcome := outcomeBadRequest
		if errors.Is(err, pay.ErrInvalidSignature) && pay.IsKind(err, pay.KindSignature) {
			outcome = outcomeBadSignature
		}
		h.metrics.observe(endpointPayment, outcome)
		h.log.Warn("payment notification rejected", zap.String("rule", pay.RuleID(err)), zap.Error(err))
		writeAck(w, false, "invalid notification")
		return
	}
	n, err := newNotification(params)
	if err != nil {
		h.metrics.observe(endpointPayment, outcomeBadRequest)
		h.log.Warn("payment notification rejected", zap.Error(err))
		writeAck(w, false, "invalid notification")
		return
	}

	id, seen, err := h.opts.Recorder.Seen(ctx, body)
	if err != nil {
		h.metrics.observe(endpointPayment, outcomeError)
		writeAck(w, false, "archive unavailable")
		return
	}
	n.ArchiveID = id
	n.Duplicate = seen
	log := h.log.With(zap.Stringer("cid", id), zap.String("out_trade_no", n.OutTradeNo), zap.Stringer("amount", n.Amount))

	if h.opts.Payments != nil {
		if err := h.opts.Payments.HandlePayment(ctx, n); err != nil {
			h.metrics.observe(endpointPayment, outcomeError)
			log.Error("payment handler failed", zap.Error(err))
			writeAck(w, false, "handler failed")
			return
		}
	}
	if seen {
		h.metrics.observe(endpointPayment, outcomeDuplicate)
	} else {
		h.commit(ctx, log, body)
		h.metrics.observe(endpointPayment, outcomeOK)
	}
	log.Info("payment notification handled", zap.Bool("paid", n.Paid()), zap.Bool("duplicate", seen))
	writeAck(w, true, "OK")
}

// commit marks a handled body as seen. A failure only costs deduplication of
// a later redelivery, so the callback is still answered normally.
func (h *Handler) commit(ctx context.Context, log *zap.Logger, body []byte) {
	if _, err := h.opts.Recorder.Commit(ctx, body); err != nil {
		log.Error("archive commit failed", zap.Error(err))
	}
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, endpoint string) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil || len(strings.TrimSpace(string(body))) == 0 {
		h.metrics.observe(endpoint, outcomeBadRequest)
		http.Error(w, "bad request body", http.StatusBadRequest)
		return nil, false
	}
	h.metrics.bytes.WithLabelValues(endpoint).Observe(float64(len(body)))
	return body, true
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, s)
}

// writeAck answers a payment notification in the format WeChat expects.
func writeAck(w http.ResponseWriter, ok bool, msg string) {
	code := "FAIL"
	if ok {
		code = "SUCCESS"
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = io.WriteString(w, "<xml>"+xmlmap.CDATA("return_code", code)+xmlmap.CDATA("return_msg", msg)+"</xml>")
}
