package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fredcamaral/bulletin/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

const (
	defaultNoticeLimit = 20
	maxNoticeLimit     = 100
	maxBodyBytes       = 1 << 10
	healthTimeout      = 2 * time.Second
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string    `json:"error"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// SlideResponse represents a single rotation slide in API responses
type SlideResponse struct {
	Index      int                `json:"index"`
	ProviderID string             `json:"providerId"`
	ID         string             `json:"id"`
	Kind       entities.SlideKind `json:"kind"`
	Title      string             `json:"title,omitempty"`
	HTML       string             `json:"html"`
	ImageURL   string             `json:"imageUrl,omitempty"`
	LinkURL    string             `json:"linkUrl,omitempty"`
	ValidUntil *time.Time         `json:"validUntil,omitempty"`
}

// RotationResponse is the schedule state with every slide in the rotation
type RotationResponse struct {
	State  entities.ScheduleState `json:"state"`
	Slides []SlideResponse        `json:"slides"`
}

// CurrentSlideResponse is the schedule state with the active slide
type CurrentSlideResponse struct {
	State entities.ScheduleState `json:"state"`
	Slide SlideResponse          `json:"slide"`
}

// JumpRequest is the body of a jump navigation
type JumpRequest struct {
	Index *int `json:"index"`
}

// NoticeResponse is a notice with its body rendered to HTML
type NoticeResponse struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	HTML        string     `json:"html"`
	Pinned      bool       `json:"pinned"`
	PublishedAt time.Time  `json:"publishedAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// ProviderStatus describes the latest snapshot of one provider
type ProviderStatus struct {
	ID        string    `json:"id"`
	Slides    int       `json:"slides"`
	FetchedAt time.Time `json:"fetchedAt"`
	Failed    bool      `json:"failed"`
}

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status   string                  `json:"status"`
	Phase    entities.SchedulerPhase `json:"phase"`
	Database string                  `json:"database,omitempty"`
	Clients  map[ClientMode]int      `json:"clients"`
	Time     time.Time               `json:"time"`
}

// handleDisplay serves the kiosk page with the current rotation pre-rendered
func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, rotation := s.presenter.View()

	slides := make([]renderer.DisplaySlide, 0, rotation.Len())
	for _, entry := range rotation.Entries() {
		rendered, err := s.slides.RenderSlide(entry.Slide)
		if err != nil {
			s.handleError(w, fmt.Errorf("rendering slide %s: %w", entry.Slide.ID, err), http.StatusInternalServerError)
			return
		}
		slides = append(slides, renderer.DisplaySlide{RenderedSlide: rendered, ProviderID: entry.ProviderID})
	}

	announcements, err := s.store.ActiveAnnouncements(ctx)
	if err != nil {
		// The ticker is optional, the slides still make a useful page
		s.logger.Warn("Loading announcements failed", slog.String("error", err.Error()))
		announcements = nil
	}

	html, err := s.display.RenderDisplay(ctx, renderer.DisplayPage{
		Slides:        slides,
		ActiveIndex:   state.ActiveIndex,
		TickInterval:  state.TickInterval,
		Announcements: announcements,
		GeneratedAt:   s.clock.Now(),
	})
	if err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(html); err != nil {
		s.logger.Error("Failed to write display response", slog.String("error", err.Error()))
	}
}

// handleRotation returns the schedule state and every slide in rotation order
func (s *Server) handleRotation(w http.ResponseWriter, r *http.Request) {
	state, rotation := s.presenter.View()

	slides := make([]SlideResponse, 0, rotation.Len())
	for i, entry := range rotation.Entries() {
		resp, err := s.slideToResponse(i, entry)
		if err != nil {
			s.handleError(w, err, http.StatusInternalServerError)
			return
		}
		slides = append(slides, resp)
	}

	s.writeJSON(w, RotationResponse{State: state, Slides: slides})
}

// handleCurrentSlide returns the active slide, or 204 when the rotation is empty
func (s *Server) handleCurrentSlide(w http.ResponseWriter, r *http.Request) {
	state, rotation := s.presenter.View()
	if !state.HasActiveSlide() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	entry, err := rotation.At(state.ActiveIndex)
	if err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}

	resp, err := s.slideToResponse(state.ActiveIndex, entry)
	if err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, CurrentSlideResponse{State: state, Slide: resp})
}

// handleNext advances the rotation. Navigation on an empty rotation is a no-op.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.presenter.Advance()
	s.writeJSON(w, s.presenter.State())
}

// handlePrev steps the rotation back
func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	s.presenter.Retreat()
	s.writeJSON(w, s.presenter.State())
}

// handleJump activates the slide at the requested index. Out-of-range indices leave the
// schedule unchanged.
func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	var req JumpRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.handleError(w, fmt.Errorf("decoding jump request: %w", err), http.StatusBadRequest)
		return
	}
	if req.Index == nil {
		s.handleError(w, errors.New("jump request without index"), http.StatusBadRequest)
		return
	}

	s.presenter.JumpTo(*req.Index)
	s.writeJSON(w, s.presenter.State())
}

// handleNotices lists visible notices, newest first
func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	limit := defaultNoticeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.handleError(w, fmt.Errorf("invalid limit %q", raw), http.StatusBadRequest)
			return
		}
		limit = min(parsed, maxNoticeLimit)
	}

	notices, err := s.store.ListNotices(r.Context(), s.clock.Now(), limit)
	if err != nil {
		s.handleError(w, fmt.Errorf("listing notices: %w", err), http.StatusInternalServerError)
		return
	}

	resp := make([]NoticeResponse, 0, len(notices))
	for i := range notices {
		notice, err := s.noticeToResponse(&notices[i])
		if err != nil {
			s.handleError(w, err, http.StatusInternalServerError)
			return
		}
		resp = append(resp, notice)
	}

	s.writeJSON(w, resp)
}

// handleNotice returns one visible notice
func (s *Server) handleNotice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		s.handleError(w, fmt.Errorf("invalid notice id: %w", err), http.StatusBadRequest)
		return
	}

	notice, err := s.store.GetNotice(r.Context(), uint(id))
	if errors.Is(err, ports.ErrNotFound) {
		s.handleError(w, err, http.StatusNotFound)
		return
	}
	if err != nil {
		s.handleError(w, fmt.Errorf("loading notice %d: %w", id, err), http.StatusInternalServerError)
		return
	}

	// Unpublished and expired notices are hidden from the public API
	if !notice.VisibleAt(s.clock.Now()) {
		s.handleError(w, fmt.Errorf("notice %d not visible", id), http.StatusNotFound)
		return
	}

	resp, err := s.noticeToResponse(notice)
	if err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, resp)
}

// handleAnnouncements returns the ticker lines by priority
func (s *Server) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	announcements, err := s.store.ActiveAnnouncements(r.Context())
	if err != nil {
		s.handleError(w, fmt.Errorf("listing announcements: %w", err), http.StatusInternalServerError)
		return
	}
	if announcements == nil {
		announcements = []entities.Announcement{}
	}

	s.writeJSON(w, announcements)
}

// handleProviders reports the latest snapshot of each provider in priority order
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	snapshots := s.providers.Snapshots()

	statuses := make([]ProviderStatus, 0, len(snapshots))
	for _, snap := range snapshots {
		statuses = append(statuses, ProviderStatus{
			ID:        snap.ProviderID,
			Slides:    snap.Len(),
			FetchedAt: snap.FetchedAt,
			Failed:    snap.Err != nil,
		})
	}

	s.writeJSON(w, statuses)
}

// handleDisplaySlide serves the active slide as an HTML fragment so displays can
// swap it in after a state event. 204 when the rotation is empty.
func (s *Server) handleDisplaySlide(w http.ResponseWriter, r *http.Request) {
	state, rotation := s.presenter.View()
	if !state.HasActiveSlide() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	entry, err := rotation.At(state.ActiveIndex)
	if err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}

	rendered, err := s.slides.RenderSlide(entry.Slide)
	if err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}

	body, err := s.display.RenderSlide(r.Context(), renderer.DisplaySlide{
		RenderedSlide: rendered,
		ProviderID:    entry.ProviderID,
	})
	if err != nil {
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(body); err != nil {
		s.logger.Error("Failed to write slide fragment", slog.String("error", err.Error()))
	}
}

// handleHealth reports 200 when the record store answers, 503 otherwise
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Phase:   s.presenter.State().Phase,
		Clients: s.connMgr.CountByMode(),
		Time:    s.clock.Now(),
	}
	status := http.StatusOK

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp.Database = "ok"
		if err := s.health.Ping(ctx); err != nil {
			s.logger.Warn("Health check failed", slog.String("error", err.Error()))
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to encode health response", slog.String("error", err.Error()))
	}
}

// handleError handles error responses with sanitized messages
func (s *Server) handleError(w http.ResponseWriter, err error, status int) {
	// Sanitize error message to prevent information disclosure
	var message string
	switch status {
	case http.StatusBadRequest:
		message = "Invalid request"
	case http.StatusNotFound:
		message = "Resource not found"
	case http.StatusMethodNotAllowed:
		message = "Method not allowed"
	case http.StatusTooManyRequests:
		message = "Too many requests"
	case http.StatusInternalServerError:
		message = "Internal server error"
	default:
		message = "An error occurred"
	}

	// The real error stays server-side
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, "HTTP error",
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)

	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Time:    s.clock.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		s.logger.Error("Failed to encode error response", slog.String("error", encodeErr.Error()))
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		s.handleError(w, fmt.Errorf("encoding response: %w", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(body, '\n')); err != nil {
		s.logger.Error("Failed to write JSON response", slog.String("error", err.Error()))
	}
}

// slideToResponse renders a rotation entry for the API
func (s *Server) slideToResponse(index int, entry entities.RotationEntry) (SlideResponse, error) {
	rendered, err := s.slides.RenderSlide(entry.Slide)
	if err != nil {
		return SlideResponse{}, fmt.Errorf("rendering slide %s: %w", entry.Slide.ID, err)
	}

	return SlideResponse{
		Index:      index,
		ProviderID: entry.ProviderID,
		ID:         entry.Slide.ID,
		Kind:       entry.Slide.Kind,
		Title:      entry.Slide.Title,
		HTML:       rendered.HTML,
		ImageURL:   entry.Slide.ImageURL,
		LinkURL:    entry.Slide.LinkURL,
		ValidUntil: entry.Slide.ValidUntil,
	}, nil
}

// noticeToResponse renders a notice body for the API
func (s *Server) noticeToResponse(n *entities.Notice) (NoticeResponse, error) {
	html, err := s.slides.RenderMarkdown(n.Body)
	if err != nil {
		return NoticeResponse{}, fmt.Errorf("rendering notice %d: %w", n.ID, err)
	}

	return NoticeResponse{
		ID:          n.ID,
		Title:       n.Title,
		HTML:        html,
		Pinned:      n.Pinned,
		PublishedAt: n.PublishedAt,
		ExpiresAt:   n.ExpiresAt,
	}, nil
}
