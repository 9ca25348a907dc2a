package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/activity"
	"github.com/JakeFAU/newsroom-edge/internal/articles"
	"github.com/JakeFAU/newsroom-edge/internal/cache"
	"github.com/JakeFAU/newsroom-edge/internal/clock/system"
	"github.com/JakeFAU/newsroom-edge/internal/config"
	"github.com/JakeFAU/newsroom-edge/internal/footer"
	"github.com/JakeFAU/newsroom-edge/internal/geocode"
	sha "github.com/JakeFAU/newsroom-edge/internal/hash/sha256"
	"github.com/JakeFAU/newsroom-edge/internal/media"
	"github.com/JakeFAU/newsroom-edge/internal/site"
	"github.com/JakeFAU/newsroom-edge/internal/store/memory"
)

type testEnv struct {
	server   *Server
	store    *memory.Store
	geocoder *fakeGeocoder
	prefetch *fakePrefetch
	events   *recordingEmitter
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	store := memory.New()
	width := 768
	require.NoError(t, store.PutVideo(site.Video{
		ID:    "v1",
		Title: "Storm footage",
		Views: 41,
		Thumbnail: media.Resolved(media.Object{
			ID:  "m1",
			URL: "/thumb.jpg",
			Sizes: map[string]media.Variant{
				"card": {URL: "/thumb-768.jpg", Width: &width},
			},
		}),
	}))
	require.NoError(t, store.PutArticle(site.Article{
		ID:          "a1",
		Slug:        "budget-vote",
		Title:       "Budget vote",
		Category:    "politics",
		PublishedAt: time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC),
		HeroImage: media.Resolved(media.Object{
			ID:      "m2",
			URL:     "/hero.jpg",
			Caption: "The chamber",
			Sizes: map[string]media.Variant{
				"card": {URL: "/hero-768.jpg", Width: &width},
			},
		}),
		Sections: []site.Section{
			{Heading: "What Happened?", Body: "The vote passed."},
			{Heading: "!!!", Body: "Reactions."},
			{Body: "Closing words."},
		},
	}))
	require.NoError(t, store.PutCategory(site.Category{ID: "c1", Name: "Politics"}))

	cfg := config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Media: config.MediaConfig{
			HeroVariant: "card",
			DateLayout:  "January 2, 2006",
			TimeZone:    "UTC",
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	clock := system.New()
	env := &testEnv{
		store:    store,
		geocoder: &fakeGeocoder{body: json.RawMessage(`{"display_name":"Main St"}`)},
		prefetch: &fakePrefetch{},
		events:   &recordingEmitter{},
	}
	env.server = NewServer(Deps{
		Videos:   store,
		Articles: articles.New(store, cache.New[site.Article]("articles", time.Minute, clock), 1, zap.NewNop()),
		Footer:   footer.New(store, nil, footer.Config{}, zap.NewNop()),
		Prefetch: env.prefetch,
		Geocoder: env.geocoder,
		Events:   env.events,
		Clock:    clock,
		Hasher:   sha.New(),
	}, cfg, zap.NewNop())
	return env
}

func (e *testEnv) do(method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/readyz", nil).Code)

	env.server.deps.Ready = fakePinger{err: errors.New("db down")}
	require.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodGet, "/readyz", nil).Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.do(http.MethodGet, "/healthz", nil)
	rec := env.do(http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "newsroom_http_requests_total")
}

func TestServer_IncrementViews_TwiceAddsTwo(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodPost, "/api/videos/v1/increment-views", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	video, err := env.store.GetVideo(context.Background(), "v1", 0)
	require.NoError(t, err)
	require.Equal(t, int64(43), video.Views)

	events := env.events.snapshot()
	require.Len(t, events, 2)
	require.Equal(t, activity.KindViewIncrement, events[1].Kind)
	require.Equal(t, int64(43), events[1].Value)
}

func TestServer_IncrementViews_ResponseShape(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/api/videos/v1/increment-views", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true,"viewCount":42}`, rec.Body.String())
}

func TestServer_IncrementViews_NotFoundLeavesState(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/api/videos/missing/increment-views", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, decodeBody(t, rec), "error")

	video, err := env.store.GetVideo(context.Background(), "v1", 0)
	require.NoError(t, err)
	require.Equal(t, int64(41), video.Views)
	require.Empty(t, env.events.snapshot())
}

func TestServer_IncrementViews_BlankID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/api/videos/%20/increment-views", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeBody(t, rec), "error")
}

func TestServer_IncrementViews_StoreFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.server.deps.Videos = failingVideos{err: errors.New("connection reset")}
	rec := env.do(http.MethodPost, "/api/videos/v1/increment-views", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal server error", decodeBody(t, rec)["error"])
}

func TestServer_IncrementViews_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	})

	rec := env.do(http.MethodPost, "/api/videos/v1/increment-views", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/videos/v1/increment-views", http.Header{"X-Api-Key": {"secret"}})
	require.Equal(t, http.StatusOK, rec.Code)

	// Reads stay public.
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/videos/v1", nil).Code)
}

func TestServer_ReverseGeocode_MissingParams(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		target string
	}{
		{"missing lat", "/api/geocode/reverse?lon=-0.12"},
		{"missing lon", "/api/geocode/reverse?lat=51.5"},
		{"blank lat", "/api/geocode/reverse?lat=%20&lon=-0.12"},
		{"no params", "/api/geocode/reverse"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, nil)
			rec := env.do(http.MethodGet, tc.target, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, decodeBody(t, rec), "error")
			require.Zero(t, env.geocoder.calls.Load())
		})
	}
}

func TestServer_ReverseGeocode_MissingLatNeverContactsUpstream(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(upstream.Close)

	client, err := geocode.New(geocode.Config{BaseURL: upstream.URL, Timeout: time.Second}, upstream.Client())
	require.NoError(t, err)

	env := newTestEnv(t, nil)
	env.server.deps.Geocoder = client

	rec := env.do(http.MethodGet, "/api/geocode/reverse?lon=2.35", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeBody(t, rec), "error")
	require.Zero(t, hits.Load())

	rec = env.do(http.MethodGet, "/api/geocode/reverse?lat=48.85&lon=2.35", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int32(1), hits.Load())
}

func TestServer_ReverseGeocode_PassesThrough(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/api/geocode/reverse?lat=51.5&lon=-0.12", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"display_name":"Main St"}`, rec.Body.String())
	require.Equal(t, [2]string{"51.5", "-0.12"}, env.geocoder.lastArgs())
}

func TestServer_ReverseGeocode_UpstreamFailureIsGeneric(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.geocoder.err = errors.New("dial tcp 10.0.0.1:443: connection refused")
	rec := env.do(http.MethodGet, "/api/geocode/reverse?lat=51.5&lon=-0.12", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "Failed to fetch location data", body["error"])
	require.NotContains(t, rec.Body.String(), "10.0.0.1")
}

func TestServer_GetArticle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/api/articles/budget-vote", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("ETag"))

	var view articleView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "Budget vote", view.Title)
	require.Equal(t, "March 4, 2025", view.PublishedLabel)
	require.Equal(t, 1, view.ReadingMinutes)
	require.NotNil(t, view.Hero)
	require.Equal(t, "/hero-768.jpg", view.Hero.URL)
	require.Equal(t, "/hero-768.jpg 768w", view.Hero.SrcSet)
	require.Equal(t, "The chamber", view.Hero.Alt)
	require.Equal(t, []tocEntry{
		{Anchor: "what-happened", Heading: "What Happened?"},
		{Anchor: "section-2", Heading: "!!!"},
	}, view.TOC)
	require.Len(t, view.Sections, 3)
	require.Equal(t, "section-3", view.Sections[2].Anchor)
}

func TestServer_GetArticle_AnchorsAreUnique(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	require.NoError(t, env.store.PutArticle(site.Article{
		ID:    "a2",
		Slug:  "repeats",
		Title: "Repeats",
		Sections: []site.Section{
			{Heading: "Section 2", Body: "One."},
			{Body: "Two."},
			{Heading: "Intro", Body: "Three."},
			{Heading: "Intro", Body: "Four."},
			{Heading: "Intro 2", Body: "Five."},
		},
	}))

	rec := env.do(http.MethodGet, "/api/articles/repeats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view articleView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))

	anchors := make([]string, 0, len(view.Sections))
	for _, sec := range view.Sections {
		anchors = append(anchors, sec.Anchor)
	}
	require.Equal(t, []string{"section-2", "section-2-2", "intro", "intro-2", "intro-2-2"}, anchors)
	require.Equal(t, []tocEntry{
		{Anchor: "section-2", Heading: "Section 2"},
		{Anchor: "intro", Heading: "Intro"},
		{Anchor: "intro-2", Heading: "Intro"},
		{Anchor: "intro-2-2", Heading: "Intro 2"},
	}, view.TOC)
}

func TestServer_GetArticle_VariantOverride(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/api/articles/budget-vote?variant=xl", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view articleView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "/hero.jpg", view.Hero.URL)
}

func TestServer_GetArticle_NotModified(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	first := env.do(http.MethodGet, "/api/articles/budget-vote", nil)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec := env.do(http.MethodGet, "/api/articles/budget-vote", http.Header{"If-None-Match": {etag}})
	require.Equal(t, http.StatusNotModified, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestServer_GetArticle_NotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/api/articles/nope", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, decodeBody(t, rec)["error"], "nope")
}

func TestServer_GetVideo(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/api/videos/v1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view videoView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, int64(41), view.Views)
	require.NotNil(t, view.Thumbnail)
	require.Equal(t, "/thumb-768.jpg", view.Thumbnail.URL)
	require.Equal(t, "Storm footage", view.Thumbnail.Alt)

	require.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/videos/v404", nil).Code)
}

func TestServer_GetFooter(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/api/footer", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got site.Footer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Categories, 1)
	require.Len(t, got.RecentArticles, 1)
	require.Equal(t, "budget-vote", got.RecentArticles[0].Slug)
}

func TestServer_Prefetch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/api/prefetch/budget-vote?signal=touch", nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"slug":"budget-vote","signal":"touch","queued":true}`, rec.Body.String())
	require.Equal(t, []string{"touch:budget-vote"}, env.prefetch.snapshot())
}

func TestServer_Prefetch_DefaultsToHover(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/api/prefetch/budget-vote", nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []string{"hover:budget-vote"}, env.prefetch.snapshot())
}

func TestServer_Prefetch_UnknownSignal(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/api/prefetch/budget-vote?signal=scroll", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.True(t, strings.Contains(decodeBody(t, rec)["error"].(string), "scroll"))
	require.Empty(t, env.prefetch.snapshot())
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.server.deps.Videos = panickingVideos{}
	rec := env.do(http.MethodGet, "/api/videos/v1", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fakeGeocoder struct {
	mu    sync.Mutex
	body  json.RawMessage
	err   error
	args  [2]string
	calls atomic.Int32
}

func (f *fakeGeocoder) Reverse(_ context.Context, lat, lon string) (json.RawMessage, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = [2]string{lat, lon}
	return f.body, f.err
}

func (f *fakeGeocoder) lastArgs() [2]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.args
}

type fakePrefetch struct {
	mu      sync.Mutex
	intents []string
}

func (f *fakePrefetch) Intent(signal site.Signal, slug string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, string(signal)+":"+slug)
	return true
}

func (f *fakePrefetch) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.intents...)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []activity.Event
}

func (r *recordingEmitter) Emit(evt activity.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) snapshot() []activity.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]activity.Event(nil), r.events...)
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

type failingVideos struct {
	err error
}

func (f failingVideos) GetVideo(context.Context, string, int) (site.Video, error) {
	return site.Video{}, f.err
}

func (f failingVideos) IncrementViews(context.Context, string) (int64, error) {
	return 0, f.err
}

type panickingVideos struct{}

func (panickingVideos) GetVideo(context.Context, string, int) (site.Video, error) {
	panic("boom")
}

func (panickingVideos) IncrementViews(context.Context, string) (int64, error) {
	panic("boom")
}
