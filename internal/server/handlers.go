package server

import (
	"auxchat/internal/chat"
	"auxchat/internal/media"
	"auxchat/internal/storage"
	"auxchat/internal/storage/zapadapter"
	"context"
	"encoding/json"
	"errors"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
	"io/ioutil"
	"net/http"
	"strconv"
)

var okPayload = []byte(`{"ok":true}`)

// presigner issues upload targets for message media
type presigner interface {
	PresignUpload(ctx context.Context, caller int64, kind, contentType string) (media.Upload, error)
}

type parsers struct {
	messagesGetPool    fastjson.ParserPool
	messagesAddPool    fastjson.ParserPool
	messagesDeletePool fastjson.ParserPool
	typingSetPool      fastjson.ParserPool
	typingGetPool      fastjson.ParserPool
	usersGetPool       fastjson.ParserPool
	usersUpdatePool    fastjson.ParserPool
	pushTokenPool      fastjson.ParserPool
	blacklistPool      fastjson.ParserPool
	mediaPool          fastjson.ParserPool
}

type handler struct {
	logger  *zap.SugaredLogger
	svc     *chat.Service
	media   presigner
	parsers parsers
}

// caller returns user id placed in context by authenticate middleware
func caller(r *http.Request) int64 {
	id, _ := zapadapter.UserIDFromContext(r.Context())
	return id
}

// idField retrieves required positive 64-bit integer field, on failure it writes 400 response
func idField(w http.ResponseWriter, v *fastjson.Value, name string) (int64, bool) {
	if !v.Exists(name) {
		http.Error(w, "Missing Field \""+name+"\"", http.StatusBadRequest)
		return 0, false
	}

	id, err := v.Get(name).Int64()
	if err != nil {
		http.Error(w, "Field \""+name+"\" must be a 64-bit integer value", http.StatusBadRequest)
		return 0, false
	}

	if id < 1 {
		http.Error(w, "Field \""+name+"\" must be a valid id grater than zero", http.StatusBadRequest)
		return 0, false
	}

	return id, true
}

// stringField retrieves optional string field, null counts as absent, on failure it writes 400 response
func stringField(w http.ResponseWriter, v *fastjson.Value, name string) (s string, present bool, ok bool) {
	value := v.Get(name)
	if value == nil || value.Type() == fastjson.TypeNull {
		return "", false, true
	}

	b, err := value.StringBytes()
	if err != nil {
		http.Error(w, "Field \""+name+"\" must be a string", http.StatusBadRequest)
		return "", false, false
	}

	return string(b), true, true
}

// writeJSON writes payload with provided status code
func (h *handler) writeJSON(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(payload)
	if err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}

// marshalJSON writes v encoded as JSON with 200 status code
func (h *handler) marshalJSON(w http.ResponseWriter, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, payload)
}

// writeError maps error kind to HTTP status
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, chat.ErrValidation), errors.Is(err, media.ErrInvalidUpload):
		status = http.StatusBadRequest
	case errors.Is(err, chat.ErrAuth):
		status = http.StatusUnauthorized
	case errors.Is(err, chat.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, chat.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrDependency):
		h.logger.Desugar().Error("dependency failure", append(zapadapter.Fields(r.Context()), zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	default:
		h.logger.Desugar().Error("unexpected error", append(zapadapter.Fields(r.Context()), zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Error(w, err.Error(), status)
}

// messagesGet handles HTTP requests on "/messages/get" endpoint
func (h *handler) messagesGet(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesGetPool.Get()
	defer h.parsers.messagesGetPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	other, ok := idField(w, v, "user")
	if !ok {
		return
	}

	limit := 0
	if lv := v.Get("limit"); lv != nil && lv.Type() != fastjson.TypeNull {
		l, err := lv.Int()
		if err != nil || l < 1 {
			http.Error(w, "Field \"limit\" must be a positive integer value", http.StatusBadRequest)
			return
		}
		limit = l
	}

	messages, err := h.svc.Conversation(r.Context(), caller(r), other, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if messages == nil {
		messages = []storage.Message{}
	}

	h.marshalJSON(w, messages)
}

// messagesAdd handles HTTP requests on "/messages/add" endpoint
func (h *handler) messagesAdd(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesAddPool.Get()
	defer h.parsers.messagesAddPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	receiver, ok := idField(w, v, "receiver")
	if !ok {
		return
	}

	req := chat.SendRequest{Receiver: receiver}
	if req.Text, _, ok = stringField(w, v, "text"); !ok {
		return
	}
	if req.VoiceURL, _, ok = stringField(w, v, "voice_url"); !ok {
		return
	}
	if req.ImageURL, _, ok = stringField(w, v, "image_url"); !ok {
		return
	}

	if dv := v.Get("voice_duration"); dv != nil && dv.Type() != fastjson.TypeNull {
		d, err := dv.Int()
		if err != nil || d < 0 || d > 1<<31-1 {
			http.Error(w, "Field \"voice_duration\" must be a non-negative integer value", http.StatusBadRequest)
			return
		}
		duration := int32(d)
		req.VoiceDuration = &duration
	}

	m, err := h.svc.SendMessage(r.Context(), caller(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, []byte(`{"id":`+strconv.FormatInt(m.ID, 10)+`}`))
}

// messagesDelete handles HTTP requests on "/messages/delete" endpoint
func (h *handler) messagesDelete(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesDeletePool.Get()
	defer h.parsers.messagesDeletePool.Put(parser)
	v, _ := parser.ParseBytes(body)

	id, ok := idField(w, v, "message")
	if !ok {
		return
	}

	if err := h.svc.DeleteMessage(r.Context(), caller(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, okPayload)
}

// typingSet handles HTTP requests on "/typing/set" endpoint
func (h *handler) typingSet(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.typingSetPool.Get()
	defer h.parsers.typingSetPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	target, ok := idField(w, v, "typing_to")
	if !ok {
		return
	}

	if err := h.svc.SetTyping(r.Context(), caller(r), target); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, okPayload)
}

// typingGet handles HTTP requests on "/typing/get" endpoint
func (h *handler) typingGet(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.typingGetPool.Get()
	defer h.parsers.typingGetPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	subject, ok := idField(w, v, "user")
	if !ok {
		return
	}

	status, err := h.svc.Typing(r.Context(), caller(r), subject)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.marshalJSON(w, status)
}

// activityTouch handles HTTP requests on "/activity/touch" endpoint
func (h *handler) activityTouch(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.TouchActivity(r.Context(), caller(r)); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, okPayload)
}

// usersGet handles HTTP requests on "/users/get" endpoint
func (h *handler) usersGet(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.usersGetPool.Get()
	defer h.parsers.usersGetPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	user, ok := idField(w, v, "user")
	if !ok {
		return
	}

	profile, err := h.svc.Profile(r.Context(), caller(r), user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.marshalJSON(w, profile)
}

// usersUpdate handles HTTP requests on "/users/update" endpoint
func (h *handler) usersUpdate(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.usersUpdatePool.Get()
	defer h.parsers.usersUpdatePool.Put(parser)
	v, _ := parser.ParseBytes(body)

	var upd chat.ProfileUpdate

	username, present, ok := stringField(w, v, "username")
	if !ok {
		return
	}
	if present {
		upd.Username = &username
	}

	status, present, ok := stringField(w, v, "custom_status")
	if !ok {
		return
	}
	if present {
		upd.CustomStatus = &status
	}

	profile, err := h.svc.UpdateProfile(r.Context(), caller(r), upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.marshalJSON(w, profile)
}

// pushToken handles HTTP requests on "/users/push-token" endpoint
func (h *handler) pushToken(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.pushTokenPool.Get()
	defer h.parsers.pushTokenPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	if !v.Exists("token") {
		http.Error(w, "Missing Field \"token\"", http.StatusBadRequest)
		return
	}

	token, present, ok := stringField(w, v, "token")
	if !ok {
		return
	}

	var tokenPtr *string
	if present {
		tokenPtr = &token
	}

	if err := h.svc.SetPushToken(r.Context(), caller(r), tokenPtr); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, okPayload)
}

// blacklist returns handler for "/blacklist/add" and "/blacklist/remove" endpoints
func (h *handler) blacklist(block bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)

		parser := h.parsers.blacklistPool.Get()
		defer h.parsers.blacklistPool.Put(parser)
		v, _ := parser.ParseBytes(body)

		target, ok := idField(w, v, "user")
		if !ok {
			return
		}

		var err error
		if block {
			err = h.svc.Block(r.Context(), caller(r), target)
		} else {
			err = h.svc.Unblock(r.Context(), caller(r), target)
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		h.writeJSON(w, http.StatusOK, okPayload)
	}
}

// mediaPresign handles HTTP requests on "/media/presign" endpoint
func (h *handler) mediaPresign(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		http.Error(w, "Media storage is not configured", http.StatusServiceUnavailable)
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.mediaPool.Get()
	defer h.parsers.mediaPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	kind, present, ok := stringField(w, v, "kind")
	if !ok {
		return
	}
	if !present {
		http.Error(w, "Missing Field \"kind\"", http.StatusBadRequest)
		return
	}

	contentType, _, ok := stringField(w, v, "content_type")
	if !ok {
		return
	}

	upload, err := h.media.PresignUpload(r.Context(), caller(r), kind, contentType)
	if err != nil {
		if errors.Is(err, media.ErrInvalidUpload) {
			h.writeError(w, r, err)
			return
		}
		h.writeError(w, r, errors.Join(chat.ErrDependency, err))
		return
	}

	h.marshalJSON(w, upload)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
