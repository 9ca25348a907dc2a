package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/activity"
	"github.com/JakeFAU/newsroom-edge/internal/apperr"
	"github.com/JakeFAU/newsroom-edge/internal/metrics"
	"github.com/JakeFAU/newsroom-edge/internal/prefetch"
	"github.com/JakeFAU/newsroom-edge/internal/site"
)

const videoDepth = 1

type incrementViewsResponse struct {
	Success   bool  `json:"success"`
	ViewCount int64 `json:"viewCount"`
}

type prefetchResponse struct {
	Slug   string      `json:"slug"`
	Signal site.Signal `json:"signal"`
	Queued bool        `json:"queued"`
}

func (s *Server) reverseGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat := strings.TrimSpace(q.Get("lat"))
	lon := strings.TrimSpace(q.Get("lon"))
	if lat == "" || lon == "" {
		s.writeAppError(w, r, apperr.Validation("Missing lat or lon parameter"))
		return
	}
	body, err := s.deps.Geocoder.Reverse(r.Context(), lat, lon)
	if err != nil {
		s.writeAppError(w, r, apperr.Upstream("Failed to fetch location data", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("write geocode body failed", zap.Error(err))
	}
}

func (s *Server) incrementViews(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		s.writeAppError(w, r, apperr.Validation("Video ID is required"))
		return
	}

	start := time.Now()
	views, err := s.deps.Videos.IncrementViews(r.Context(), id)
	switch {
	case errors.Is(err, site.ErrNotFound):
		metrics.ObserveViewIncrement("not_found")
		s.writeAppError(w, r, apperr.NotFound("video", id))
		return
	case err != nil:
		metrics.ObserveViewIncrement("error")
		s.writeAppError(w, r, err)
		return
	}
	metrics.ObserveViewIncrement("ok")
	s.emit(activity.Event{
		Kind:  activity.KindViewIncrement,
		Key:   id,
		Value: views,
		TS:    s.now(),
		Dur:   time.Since(start),
	})
	writeJSON(w, http.StatusOK, incrementViewsResponse{Success: true, ViewCount: views})
}

func (s *Server) getVideo(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		s.writeAppError(w, r, apperr.Validation("Video ID is required"))
		return
	}
	video, err := s.deps.Videos.GetVideo(r.Context(), id, videoDepth)
	if err != nil {
		if errors.Is(err, site.ErrNotFound) {
			err = apperr.NotFound("video", id)
		}
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderVideo(video, r.URL.Query().Get("variant")))
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	article, err := s.deps.Articles.Get(r.Context(), slug)
	if err != nil {
		if errors.Is(err, site.ErrNotFound) {
			err = apperr.NotFound("article", slug)
		}
		s.writeAppError(w, r, err)
		return
	}

	view := s.renderArticle(article, r.URL.Query().Get("variant"))
	body, err := json.Marshal(view)
	if err != nil {
		s.writeAppError(w, r, apperr.Internal(err))
		return
	}
	s.writeCacheable(w, r, body)
}

func (s *Server) getFooter(w http.ResponseWriter, r *http.Request) {
	footer := s.deps.Footer.Load(r.Context())
	body, err := json.Marshal(footer)
	if err != nil {
		s.writeAppError(w, r, apperr.Internal(err))
		return
	}
	s.writeCacheable(w, r, body)
}

func (s *Server) prefetch(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		s.writeAppError(w, r, apperr.Validation("article slug is required"))
		return
	}
	signal, err := prefetch.ParseSignal(r.URL.Query().Get("signal"))
	if err != nil {
		s.writeAppError(w, r, apperr.Validation(err.Error()))
		return
	}
	queued := s.deps.Prefetch.Intent(signal, slug)
	writeJSON(w, http.StatusAccepted, prefetchResponse{Slug: slug, Signal: signal, Queued: queued})
}

// writeCacheable writes a JSON body with an ETag and answers a matching
// If-None-Match with 304.
func (s *Server) writeCacheable(w http.ResponseWriter, r *http.Request, body []byte) {
	if s.deps.Hasher != nil {
		etag := s.deps.Hasher.ETag(body)
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("write body failed", zap.Error(err))
	}
}
