package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/voyagen/tvplayer/internal/cache"
	"github.com/voyagen/tvplayer/internal/models"
	"github.com/voyagen/tvplayer/internal/notify"
	"github.com/voyagen/tvplayer/internal/playback"
	"github.com/voyagen/tvplayer/internal/service"
)

// channelRow is one list entry as the API reports it.
type channelRow struct {
	Index      int    `json:"index"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Logo       string `json:"logo"`
	LogoLoaded bool   `json:"logo_loaded"`
}

type mutationResponse struct {
	Channel models.Channel `json:"channel"`
	Warning string         `json:"warning,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	out, err := s.Controller.Dispatch(r.Context(), service.Snapshot{})
	if err != nil {
		s.writeDispatchErr(w, err)
		return
	}
	loaded := map[string]bool{}
	if s.Rows != nil {
		for _, row := range s.Rows.Rows() {
			loaded[row.ChannelID] = row.Logo != nil
		}
	}
	rows := make([]channelRow, len(out.Channels))
	for i, ch := range out.Channels {
		rows[i] = channelRow{Index: i, ID: ch.ID, Name: ch.Name, URL: ch.URL, Logo: ch.Logo, LogoLoaded: loaded[ch.ID]}
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleAddChannel(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeEdit(w, r)
	if !ok {
		return
	}
	out, err := s.Controller.Dispatch(r.Context(), service.AddChannel{Result: models.EditResult{EditRequest: req, OK: true}})
	if err != nil {
		s.writeDispatchErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, mutationResponse{Channel: out.Channel, Warning: warning(out)})
}

func (s *Server) handleEditChannel(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeEdit(w, r)
	if !ok {
		return
	}
	cmd := service.EditChannel{ID: r.PathValue("id"), Result: models.EditResult{EditRequest: req, OK: true}}
	out, err := s.Controller.Dispatch(r.Context(), cmd)
	if err != nil {
		s.writeDispatchErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, mutationResponse{Channel: out.Channel, Warning: warning(out)})
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	out, err := s.Controller.Dispatch(r.Context(), service.DeleteChannel{ID: r.PathValue("id")})
	if err != nil {
		s.writeDispatchErr(w, err)
		return
	}
	if out.Warning != nil {
		w.Header().Set("X-Warning", out.Warning.Error())
	}
	w.WriteHeader(http.StatusNoContent)
}

type playResponse struct {
	Played  bool                    `json:"played"`
	State   playback.State          `json:"state"`
	Media   *models.MediaDescriptor `json:"media,omitempty"`
	Warning string                  `json:"warning,omitempty"`
}

func (s *Server) handlePlayChannel(w http.ResponseWriter, r *http.Request) {
	out, err := s.Controller.Dispatch(r.Context(), service.PlayChannel{ID: r.PathValue("id")})
	if err != nil {
		s.writeDispatchErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, playResponse{
		Played:  out.Applied,
		State:   out.Player.State,
		Media:   out.Media,
		Warning: warning(out),
	})
}

func (s *Server) handleChannelLogo(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.lookup(w, r)
	if !ok {
		return
	}
	lg := s.Logos.Fetch(r.Context(), ch.Logo)
	w.Header().Set("Content-Type", lg.ContentType)
	w.Header().Set("X-Logo-Placeholder", strconv.FormatBool(lg.Placeholder))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(lg.Data)
}

type importRequest struct {
	URL      string `json:"url"`
	UseTvgID bool   `json:"use_tvg_id"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.URL == "" {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("url is required"))
		return
	}
	if u, err := url.ParseRequestURI(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("url must be a valid http or https URL"))
		return
	}

	if s.Jobs != nil {
		if cache.IsLocked(r.Context(), s.Jobs, cache.ImportLockKey(req.URL)) {
			s.writeDispatchErr(w, cache.ErrLocked)
			return
		}
		job := cache.ImportJob{URL: req.URL, UseTvgID: req.UseTvgID, QueuedAt: time.Now().UTC()}
		if err := cache.Enqueue(r.Context(), s.Jobs, cache.ImportQueue, job); err != nil {
			s.writeErr(w, http.StatusInternalServerError, fmt.Errorf("enqueue: %w", err))
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "url": req.URL})
		return
	}

	out, err := s.Controller.Dispatch(r.Context(), service.ImportPlaylist{URL: req.URL, UseTvgID: req.UseTvgID})
	if err != nil {
		s.writeDispatchErr(w, err)
		return
	}
	res := service.ImportResult{}
	if out.Import != nil {
		res = *out.Import
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"added": res.Added, "skipped": res.Skipped, "warning": warning(out)})
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	out, err := s.Controller.Dispatch(r.Context(), service.Snapshot{})
	if err != nil {
		s.writeDispatchErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out.Player)
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	msgs := []notify.Message{}
	if s.Notes != nil {
		msgs = s.Notes.Recent()
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

// --- helpers ---

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (models.Channel, bool) {
	id := r.PathValue("id")
	out, err := s.Controller.Dispatch(r.Context(), service.Snapshot{})
	if err != nil {
		s.writeDispatchErr(w, err)
		return models.Channel{}, false
	}
	for _, ch := range out.Channels {
		if ch.ID == id {
			return ch, true
		}
	}
	s.writeErr(w, http.StatusNotFound, fmt.Errorf("channel %s not found", id))
	return models.Channel{}, false
}

func (s *Server) decodeEdit(w http.ResponseWriter, r *http.Request) (models.EditRequest, bool) {
	var req models.EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return req, false
	}
	if req.ChannelURL == "" {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("channel_url is required"))
		return req, false
	}
	return req, true
}

func warning(out service.Outcome) string {
	if out.Warning == nil {
		return ""
	}
	return out.Warning.Error()
}
