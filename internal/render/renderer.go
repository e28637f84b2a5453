// Package render produces the detail view markup shared by the overlay and
// the real detail page. One renderer serving both paths keeps the in-place
// presentation pixel-identical to a full navigation.
package render

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"

	"kinetic/pkg/kinetic"
)

// Option mutates renderer configuration.
type Option func(*Renderer)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(renderer *Renderer) {
		if logger != nil {
			renderer.logger = logger
		}
	}
}

// Renderer renders content documents with per-type detail templates.
type Renderer struct {
	logger    *slog.Logger
	templates *template.Template
}

// New parses the detail templates and returns a ready renderer.
func New(options ...Option) (*Renderer, error) {
	templates, err := template.New("detail").Funcs(template.FuncMap{
		"score": func(value float64) string {
			return fmt.Sprintf("%.1f", value)
		},
	}).Parse(detailTemplates)
	if err != nil {
		return nil, fmt.Errorf("parse detail templates: %w", err)
	}

	renderer := &Renderer{
		logger:    slog.Default(),
		templates: templates,
	}
	for _, option := range options {
		option(renderer)
	}

	return renderer, nil
}

// detailView is the template model for one document.
type detailView struct {
	Document kinetic.ContentDocument
	// Body is trusted markup; documents are sanitized before they enter the
	// cache, never at render time.
	Body     template.HTML
	Scope    kinetic.Scope
	HasScope bool
}

// RenderDetail writes the document's detail view to w.
//
// The template is selected by content type; shared-element transition IDs are
// emitted only when a scope pairing is active, so an unscoped render carries
// no transition markup at all.
func (r *Renderer) RenderDetail(ctx context.Context, w io.Writer, document kinetic.ContentDocument, scope kinetic.Scope) error {
	var name string
	switch document.Type {
	case kinetic.ContentTypeReview:
		name = "detail_review"
	case kinetic.ContentTypeArticle:
		name = "detail_article"
	case kinetic.ContentTypeNews:
		name = "detail_news"
	case kinetic.ContentTypeRelease:
		name = "detail_release"
	default:
		return fmt.Errorf("render detail %s: unsupported content type %q", document.Slug, document.Type)
	}

	view := detailView{
		Document: document,
		Body:     template.HTML(document.BodyHTML),
		Scope:    scope,
		HasScope: scope != kinetic.ScopeNone,
	}
	if err := r.templates.ExecuteTemplate(w, name, view); err != nil {
		return fmt.Errorf("render detail %s: %w", document.Slug, err)
	}

	r.logger.DebugContext(ctx, "detail rendered",
		"slug", document.Slug,
		"type", document.Type,
		"scoped", view.HasScope,
	)

	return nil
}

const detailTemplates = `
{{define "hero"}}{{with .Document.MainImage}}<figure class="detail-hero"{{if $.HasScope}} data-shared-element="{{$.Scope}}-hero"{{end}}><img src="{{.URL}}" alt="{{.Alt}}"{{if .Width}} width="{{.Width}}"{{end}}{{if .Height}} height="{{.Height}}"{{end}}></figure>{{end}}{{end}}

{{define "header"}}<header class="detail-header"><h1{{if .HasScope}} data-shared-element="{{.Scope}}-title"{{end}}>{{.Document.Title}}</h1>{{with .Document.Summary}}<p class="detail-summary">{{.}}</p>{{end}}</header>{{end}}

{{define "tags"}}{{if .Document.TagSlugs}}<ul class="detail-tags">{{range .Document.TagSlugs}}<li>{{.}}</li>{{end}}</ul>{{end}}{{end}}

{{define "detail_review"}}<article class="detail detail-review" data-slug="{{.Document.Slug}}">{{template "hero" .}}{{template "header" .}}<div class="review-score">{{score .Document.Score}}</div><div class="detail-body">{{.Body}}</div>{{template "tags" .}}</article>{{end}}

{{define "detail_article"}}<article class="detail detail-article" data-slug="{{.Document.Slug}}">{{template "hero" .}}{{template "header" .}}<div class="detail-body">{{.Body}}</div>{{template "tags" .}}</article>{{end}}

{{define "detail_news"}}<article class="detail detail-news" data-slug="{{.Document.Slug}}">{{template "header" .}}{{template "hero" .}}<div class="detail-body">{{.Body}}</div>{{template "tags" .}}</article>{{end}}

{{define "detail_release"}}<article class="detail detail-release" data-slug="{{.Document.Slug}}">{{template "hero" .}}{{template "header" .}}{{if not .Document.ReleaseDate.IsZero}}<time class="release-date" datetime="{{.Document.ReleaseDate.Format "2006-01-02"}}">{{.Document.ReleaseDate.Format "2 January 2006"}}</time>{{end}}<div class="detail-body">{{.Body}}</div>{{if .Document.LinkedSlugs}}<nav class="linked-coverage"><ul>{{range .Document.LinkedSlugs}}<li data-linked-slug="{{.}}"></li>{{end}}</ul></nav>{{end}}{{template "tags" .}}</article>{{end}}
`

var _ kinetic.DetailRenderer = (*Renderer)(nil)
