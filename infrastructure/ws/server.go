package ws

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"reef-chat/auth"
	"reef-chat/contract"
	"reef-chat/domain/chat"
	rooterrors "reef-chat/errors"
	"reef-chat/observability"
	"reef-chat/search"
	"reef-chat/storage"
)

type ServerConfig struct {
	ConnectionBufferSize int
	DeliveryTimeout      time.Duration
	DeepLinkWindow       time.Duration
	PageSize             int
	PublicRoomSuffix     string
	AuthSecret           []byte
}

// Server exposes the chat surface: the websocket endpoint, the pagination
// query, message search and the upload collaborator.
type Server struct {
	log          *slog.Logger
	orchestrator contract.IOrchestrator
	store        contract.IMessageStore
	index        *search.Index
	media        *storage.MediaStore
	monitoring   *observability.MonitoringManager
	upgrader     websocket.Upgrader
	cfg          ServerConfig
}

func NewServer(log *slog.Logger, orchestrator contract.IOrchestrator,
	store contract.IMessageStore, index *search.Index, media *storage.MediaStore,
	monitoring *observability.MonitoringManager, cfg ServerConfig) *Server {
	return &Server{
		log:          log,
		orchestrator: orchestrator,
		store:        store,
		index:        index,
		media:        media,
		monitoring:   monitoring,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		cfg: cfg,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	r.Get("/messages", s.handleMessages)
	r.Get("/messages/window", s.handleWindow)
	r.Get("/search", s.handleSearch)
	r.Post("/upload", s.handleUpload)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/media/*", http.StripPrefix("/media/",
		http.FileServer(http.Dir(s.media.Dir()))))
	return r
}

// handleWS authenticates the connection parameters, enforces the guest
// room policy once, upgrades and runs the session until disconnect.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	room := query.Get("room")
	if room == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}

	identity := chat.Identity{
		DisplayName: query.Get("displayName"),
		StableID:    query.Get("stableId"),
	}
	if token := query.Get("token"); token != "" {
		// A signed identity hand-off always wins over raw query params.
		verified, err := auth.ValidateToken(token, s.cfg.AuthSecret)
		if err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		identity = verified
	}

	if identity.IsGuest() && !chat.IsPublicRoom(room, s.cfg.PublicRoomSuffix) {
		s.log.Warn("Guest rejected from non-public room", "room", room, "name", identity.DisplayName)
		http.Error(w, rooterrors.ErrUnauthorized.Error(), http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Websocket upgrade failed", "error", err)
		return
	}

	s.monitoring.SessionOpened()
	defer s.monitoring.SessionClosed()

	session := NewSession(s.log, conn, s.orchestrator, s.store,
		identity, room, s.cfg.PublicRoomSuffix, s.cfg.ConnectionBufferSize,
		s.cfg.DeliveryTimeout, s.cfg.DeepLinkWindow)
	session.Run(r.Context())
}

// handleMessages is the pagination query: up to limit messages strictly
// older than the cursor, ascending.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	room := query.Get("room")
	if room == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}

	limit := s.cfg.PageSize
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var before *time.Time
	if raw := query.Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "invalid before cursor", http.StatusBadRequest)
			return
		}
		before = &parsed
	}

	messages, err := s.store.Query(room, before, limit)
	if err != nil {
		s.log.Error("Pagination query failed", "room", room, "error", err)
		http.Error(w, rooterrors.ErrStorage.Error(), http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, messages)
}

// handleWindow resolves a deep link over HTTP: the target message plus
// its temporal neighborhood, ascending.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}

	window := s.cfg.DeepLinkWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid window", http.StatusBadRequest)
			return
		}
		window = parsed
	}

	messages, err := s.store.FindWindow(id, window)
	if err != nil {
		if errors.Is(err, rooterrors.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.log.Error("Window query failed", "id", id, "error", err)
		http.Error(w, rooterrors.ErrStorage.Error(), http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, messages)
}

// handleSearch resolves a text query to messages whose ids can then be
// deep-linked.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	room := query.Get("room")
	text := query.Get("q")
	if room == "" || text == "" {
		http.Error(w, "room and q are required", http.StatusBadRequest)
		return
	}

	ids, err := s.index.Search(r.Context(), room, text, s.cfg.PageSize)
	if err != nil {
		s.log.Error("Search failed", "room", room, "error", err)
		http.Error(w, rooterrors.ErrStorage.Error(), http.StatusInternalServerError)
		return
	}

	messages := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		message, err := s.store.Get(id)
		if err != nil {
			// The index can briefly trail a deletion; skip the ghost.
			continue
		}
		messages = append(messages, message)
	}
	s.respondJSON(w, messages)
}

type uploadResponse struct {
	URL       string         `json:"url"`
	MediaKind chat.MediaKind `json:"media_kind"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	url, kind, err := s.media.Save(file)
	if err != nil {
		if errors.Is(err, rooterrors.ErrValidation) {
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		}
		s.log.Error("Upload failed", "error", err)
		http.Error(w, rooterrors.ErrStorage.Error(), http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, uploadResponse{URL: url, MediaKind: kind})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, map[string]any{"status": "ok", "stats": s.monitoring.GetLatest()})
}

func (s *Server) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}
