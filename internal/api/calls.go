package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"companion-call-demo/backend/internal/call"
	"companion-call-demo/backend/internal/models"
	apperrors "companion-call-demo/backend/pkg/errors"
	"companion-call-demo/backend/pkg/logger"
)

// Calls is the set of live sessions the handlers operate on
type Calls interface {
	NewRoomID() string
	Get(roomID string) (*call.Session, error)
	List() []call.Snapshot
	End(roomID string) error
}

// framer is implemented by remote feeds that can render a still
type framer interface {
	Frame() *image.RGBA
}

type CallHandler struct {
	calls      Calls
	companions Companions
	baseURL    string
}

// NewCallHandler creates the handler. baseURL is the public http(s) address
// of this service and is turned into the websocket join URL.
func NewCallHandler(calls Calls, companions Companions, baseURL string) *CallHandler {
	return &CallHandler{
		calls:      calls,
		companions: companions,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// RegisterRoutes mounts the call routes under rg
func (h *CallHandler) RegisterRoutes(rg *gin.RouterGroup) {
	calls := rg.Group("/calls")
	{
		calls.GET("", h.ListCalls)
		calls.POST("", h.StartCall)
		calls.GET("/:roomId", h.GetCall)
		calls.DELETE("/:roomId", h.EndCall)
		calls.GET("/:roomId/transcript", h.GetTranscript)
		calls.GET("/:roomId/frame.png", h.GetFrame)
	}
}

// StartCall mints a room for the chosen companion and returns the websocket
// URL that opens the session.
func (h *CallHandler) StartCall(c *gin.Context) {
	var req models.StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeBadRequest, "Invalid request body").WithDetails(err.Error()))
		return
	}

	companion, err := lookupCompanion(c.Request.Context(), h.companions, req.CompanionID)
	if err != nil {
		c.Error(err)
		return
	}

	roomID := h.calls.NewRoomID()
	joinURL, err := h.joinURL(roomID, companion, req)
	if err != nil {
		c.Error(err)
		return
	}

	logger.FromContext(c).WithCompanion(companion.ID, companion.Name).Info("room minted", "room_id", roomID)
	c.JSON(http.StatusCreated, models.StartCallResponse{
		RoomID:    roomID,
		JoinURL:   joinURL,
		Companion: companion,
	})
}

func (h *CallHandler) ListCalls(c *gin.Context) {
	c.JSON(http.StatusOK, h.calls.List())
}

func (h *CallHandler) GetCall(c *gin.Context) {
	sess, err := h.calls.Get(c.Param("roomId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (h *CallHandler) EndCall(c *gin.Context) {
	if err := h.calls.End(c.Param("roomId")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CallHandler) GetTranscript(c *gin.Context) {
	sess, err := h.calls.Get(c.Param("roomId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sess.Transcript().Entries())
}

// GetFrame renders the latest frame of the companion feed as PNG
func (h *CallHandler) GetFrame(c *gin.Context) {
	sess, err := h.calls.Get(c.Param("roomId"))
	if err != nil {
		c.Error(err)
		return
	}

	feed, ok := sess.RemoteFeed().(framer)
	if !ok {
		c.Error(apperrors.NewNotFoundError(apperrors.CodeFeedUnavailable, "The companion video feed is not available"))
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, feed.Frame()); err != nil {
		c.Error(err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *CallHandler) joinURL(roomID string, companion models.CompanionProfile, req models.StartCallRequest) (string, error) {
	profile, err := json.Marshal(companion)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("companion", string(profile))
	if req.ParticipantID != "" {
		q.Set("participantId", req.ParticipantID)
	}
	if req.Captions != nil {
		q.Set("captions", strconv.FormatBool(*req.Captions))
	}

	base := h.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/call/" + url.PathEscape(roomID) + "?" + q.Encode(), nil
}
