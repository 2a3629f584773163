package http

import (
	"html/template"
	"net/http"

	"huddle/pkg/config"
	apperrors "huddle/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// roomPage is the minimal shell handed to browsers; presence, chat and media
// all happen over the signaling websocket and the peer transport, so the
// server only parameterizes the page with the room id and transport
// coordinates.
const roomPage = `<!DOCTYPE html>
<html>
<head><title>huddle</title></head>
<body data-room-id="{{.RoomID}}" data-peer-host="{{.PeerHost}}" data-peer-port="{{.PeerPort}}" data-peer-secure="{{.PeerSecure}}">
<div id="video-grid"></div>
<ul id="participants-list"></ul>
<div id="chat-messages"></div>
<script src="/static/app.js"></script>
</body>
</html>`

type RoomHandler struct {
	cfg  *config.Config
	tmpl *template.Template
}

func NewRoomHandler(cfg *config.Config) *RoomHandler {
	return &RoomHandler{
		cfg:  cfg,
		tmpl: template.Must(template.New("room").Parse(roomPage)),
	}
}

func (h *RoomHandler) SetupRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(h.tmpl)
	router.GET("/", h.NewRoom)
	router.GET("/room/:room", h.RoomPage)
}

// NewRoom redirects to a freshly minted room. Rooms are created lazily on
// first join, so this is just an id allocation.
func (h *RoomHandler) NewRoom(c *gin.Context) {
	c.Redirect(http.StatusFound, "/room/"+uuid.NewString())
}

func (h *RoomHandler) RoomPage(c *gin.Context) {
	roomID := c.Param("room")
	if roomID == "" || len(roomID) > 100 {
		appErr := apperrors.NewInvalidInputError("invalid room id")
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}

	c.HTML(http.StatusOK, "room", gin.H{
		"RoomID":     roomID,
		"PeerHost":   h.cfg.Peer.Host,
		"PeerPort":   h.cfg.Peer.Port,
		"PeerSecure": h.cfg.Peer.Secure,
	})
}
