package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/newsroom-edge/internal/format"
	"github.com/JakeFAU/newsroom-edge/internal/media"
	"github.com/JakeFAU/newsroom-edge/internal/site"
	"github.com/JakeFAU/newsroom-edge/internal/slug"
)

type imageView struct {
	URL    string `json:"url"`
	SrcSet string `json:"srcset,omitempty"`
	Alt    string `json:"alt"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

type tocEntry struct {
	Anchor  string `json:"anchor"`
	Heading string `json:"heading"`
}

type sectionView struct {
	Anchor  string `json:"anchor"`
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

type articleView struct {
	ID             string        `json:"id"`
	Slug           string        `json:"slug"`
	Title          string        `json:"title"`
	Excerpt        string        `json:"excerpt,omitempty"`
	Category       string        `json:"category,omitempty"`
	PublishedAt    time.Time     `json:"publishedAt"`
	PublishedLabel string        `json:"publishedLabel,omitempty"`
	ReadingMinutes int           `json:"readingMinutes"`
	Hero           *imageView    `json:"hero"`
	TOC            []tocEntry    `json:"toc"`
	Sections       []sectionView `json:"sections"`
}

type videoView struct {
	ID             string     `json:"id"`
	Slug           string     `json:"slug,omitempty"`
	Title          string     `json:"title"`
	Views          int64      `json:"views"`
	PublishedAt    time.Time  `json:"publishedAt"`
	PublishedLabel string     `json:"publishedLabel,omitempty"`
	Thumbnail      *imageView `json:"thumbnail"`
}

// renderImage returns nil when ref has nothing renderable.
func renderImage(ref media.Reference, variant, fallbackAlt string) *imageView {
	url, ok := media.ResolveURL(ref, variant)
	if !ok {
		return nil
	}
	dims := media.ResolveDimensions(ref)
	return &imageView{
		URL:    url,
		SrcSet: media.ResolveSrcSet(ref),
		Alt:    media.ResolveAlt(ref, fallbackAlt),
		Width:  dims.Width,
		Height: dims.Height,
	}
}

func (s *Server) variant(requested string) string {
	if v := strings.TrimSpace(requested); v != "" {
		return v
	}
	return s.cfg.Media.HeroVariant
}

func (s *Server) renderArticle(a site.Article, variant string) articleView {
	view := articleView{
		ID:             a.ID,
		Slug:           a.Slug,
		Title:          a.Title,
		Excerpt:        a.Excerpt,
		Category:       a.Category,
		PublishedAt:    a.PublishedAt,
		PublishedLabel: format.Date(a.PublishedAt, s.cfg.Media.DateLayout, s.cfg.Location()),
		Hero:           renderImage(a.HeroImage, s.variant(variant), a.Title),
		TOC:            make([]tocEntry, 0, len(a.Sections)),
		Sections:       make([]sectionView, 0, len(a.Sections)),
	}

	blocks := make([]string, 0, len(a.Sections)+1)
	blocks = append(blocks, a.Excerpt)
	seen := make(map[string]bool, len(a.Sections))
	for i, sec := range a.Sections {
		anchor := slug.AnchorOr(sec.Heading, fmt.Sprintf("section-%d", i+1))
		base := anchor
		for n := 2; seen[anchor]; n++ {
			anchor = fmt.Sprintf("%s-%d", base, n)
		}
		seen[anchor] = true
		if sec.Heading != "" {
			view.TOC = append(view.TOC, tocEntry{Anchor: anchor, Heading: sec.Heading})
		}
		view.Sections = append(view.Sections, sectionView{Anchor: anchor, Heading: sec.Heading, Body: sec.Body})
		blocks = append(blocks, sec.Body)
	}
	view.ReadingMinutes = format.ReadingMinutes(blocks...)
	return view
}

func (s *Server) renderVideo(v site.Video, variant string) videoView {
	return videoView{
		ID:             v.ID,
		Slug:           v.Slug,
		Title:          v.Title,
		Views:          v.Views,
		PublishedAt:    v.PublishedAt,
		PublishedLabel: format.Date(v.PublishedAt, s.cfg.Media.DateLayout, s.cfg.Location()),
		Thumbnail:      renderImage(v.Thumbnail, s.variant(variant), v.Title),
	}
}
