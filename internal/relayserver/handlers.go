package relayserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ciphersync/internal/auth"
	"ciphersync/internal/domain"
	"ciphersync/internal/relay"
)

func (s *Server) wellKnown(c *gin.Context) {
	doc := s.cfg.WellKnown
	if doc.WSURL == "" {
		scheme := "ws"
		if c.Request.TLS != nil {
			scheme = "wss"
		}
		doc.WSURL = scheme + "://" + c.Request.Host + "/v1/ws"
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) challenge(c *gin.Context) {
	var body relay.ChallengeRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Owned == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	nonce, err := s.challenges.Issue(body.Owned)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Challenge creation failed"})
		return
	}
	c.JSON(http.StatusOK, relay.ChallengeResponse{Nonce: nonce})
}

func (s *Server) session(c *gin.Context) {
	var body relay.SessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	var xpub domain.X25519Public
	var edpub domain.Ed25519Public
	if len(body.XPub) != len(xpub) || len(body.EdPub) != len(edpub) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid public key"})
		return
	}
	copy(xpub[:], body.XPub)
	copy(edpub[:], body.EdPub)

	if err := s.challenges.Verify(body.Owned, xpub, edpub, body.Nonce, body.Signature); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	token, exp, err := auth.CreateToken(body.Owned, s.cfg.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token creation failed"})
		return
	}
	s.logger.Info("session opened", zap.String("owned", body.Owned.String()))
	c.JSON(http.StatusOK, relay.SessionResponse{Token: token, ExpiresAt: exp})
}

func (s *Server) listMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	c.JSON(http.StatusOK, s.queue.list(ownedFromContext(c), limit))
}

func (s *Server) lookup(c *gin.Context) (*queued, bool) {
	m, ok := s.queue.get(ownedFromContext(c), domain.MessageUID(c.Param("uid")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
	}
	return m, ok
}

func (s *Server) extendedPayload(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	if len(m.extended) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No extended payload"})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", m.extended)
}

func (s *Server) attachmentRange(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 || index >= len(m.attachments) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Attachment not found"})
		return
	}
	data := m.attachments[index]
	offset, err1 := strconv.ParseInt(c.Query("offset"), 10, 64)
	length, err2 := strconv.ParseInt(c.Query("length"), 10, 64)
	if err1 != nil || err2 != nil || offset < 0 || length <= 0 || offset+length > int64(len(data)) {
		c.JSON(http.StatusRequestedRangeNotSatisfiable, gin.H{"error": "Invalid range"})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data[offset:offset+length])
}

func (s *Server) deleteMessage(c *gin.Context) {
	owned := ownedFromContext(c)
	if !s.queue.remove(owned, domain.MessageUID(c.Param("uid"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) query(c *gin.Context) {
	var body relay.QueryRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.CorrelationID == "" || !body.Kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.Owned != "" && body.Owned != ownedFromContext(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your identity"})
		return
	}
	resp, err := s.cfg.Queries(body)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, relay.QueryResponse{Response: resp})
}

func (s *Server) registerPush(c *gin.Context) {
	var cfg domain.PushConfiguration
	if err := c.ShouldBindJSON(&cfg); err != nil || cfg.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if cfg.OwnedIdentity != ownedFromContext(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your identity"})
		return
	}
	s.pushMu.Lock()
	s.push[cfg.OwnedIdentity] = cfg
	s.pushMu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *Server) deliver(c *gin.Context) {
	var body relay.DeliverRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Owned == "" || len(body.EncryptedPayload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	msg := s.queue.deliver(body)
	if out, err := json.Marshal(relay.Notice{Type: relay.NoticeMessage, Owned: body.Owned, UID: msg.UID}); err == nil {
		s.hub.broadcast(body.Owned, out)
	}
	s.logger.Info("message queued",
		zap.String("owned", body.Owned.String()),
		zap.String("uid", msg.UID.String()),
		zap.Int("attachments", len(body.Attachments)),
	)
	c.JSON(http.StatusCreated, relay.DeliverResponse{UID: msg.UID})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter serialises writes; gorilla allows one concurrent writer.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (s *Server) serveWS(c *gin.Context) {
	claims, err := auth.VerifyToken(c.Query("token"), s.cfg.TokenConfig)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn := &connection{owned: domain.OwnedIdentity(claims.Owned), writer: &wsWriter{conn: ws}}
	s.hub.register(conn)
	defer func() {
		s.hub.unregister(conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(64 << 10)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) {
				s.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		var msg relay.Notice
		if json.Unmarshal(data, &msg) == nil && msg.Type == relay.NoticePing {
			out, _ := json.Marshal(relay.Notice{Type: relay.NoticePong})
			_ = conn.writer.Write(out)
		}
	}
}
