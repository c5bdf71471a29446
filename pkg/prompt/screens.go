package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-formsheet/pkg/section"
)

//go:embed screens/*.tpl
var embeddedScreens embed.FS

// Screen names understood by Screens.Render.
const (
	ScreenSection  = "section"
	ScreenIssues   = "issues"
	ScreenResume   = "resume"
	ScreenReview   = "review"
	ScreenFailed   = "failed"
	ScreenComplete = "complete"
)

// Screens renders the fixed text blocks shown between prompts from pongo2
// templates named "<screen>.tpl".
type Screens struct {
	mu        sync.RWMutex
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template
}

// ScreensFS exposes the built-in screen templates so callers can copy or
// override individual screens and load them with NewScreens.
func ScreensFS() (fs.FS, error) {
	sub, err := fs.Sub(embeddedScreens, "screens")
	if err != nil {
		return nil, fmt.Errorf("prompt: screens: %w", err)
	}
	return sub, nil
}

// DefaultScreens returns the built-in screen templates.
func DefaultScreens() (*Screens, error) {
	sub, err := ScreensFS()
	if err != nil {
		return nil, err
	}
	return NewScreens(sub), nil
}

// NewScreens loads screen templates from fsys.
func NewScreens(fsys fs.FS) *Screens {
	return &Screens{
		set:       pongo2.NewSet("formsheet-screens", pongo2.NewFSLoader(fsys)),
		templates: make(map[string]*pongo2.Template),
	}
}

// Render executes the named screen and trims surrounding whitespace.
func (s *Screens) Render(name string, data pongo2.Context) (string, error) {
	tmpl, err := s.template(name + ".tpl")
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(data, &buf); err != nil {
		return "", fmt.Errorf("prompt: render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Section renders the header shown before a section's prompts.
func (s *Screens) Section(sec section.Section, position, total int, resumed bool) (string, error) {
	return s.Render(ScreenSection, pongo2.Context{
		"index":       position + 1,
		"total":       total,
		"title":       sec.Title,
		"description": sec.Description,
		"resumed":     resumed,
	})
}

// Issues renders a validation failure.
func (s *Screens) Issues(verr *section.ValidationError) (string, error) {
	issues := make([]map[string]any, 0, len(verr.Issues))
	for _, issue := range verr.Issues {
		issues = append(issues, map[string]any{"path": issue.Path, "message": issue.Message})
	}
	return s.Render(ScreenIssues, pongo2.Context{"issues": issues})
}

func (s *Screens) template(path string) (*pongo2.Template, error) {
	s.mu.RLock()
	tmpl, ok := s.templates[path]
	s.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tmpl, ok := s.templates[path]; ok {
		return tmpl, nil
	}
	tmpl, err := s.set.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: load screen %q: %w", path, err)
	}
	s.templates[path] = tmpl
	return tmpl, nil
}
