package section

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue/*.yaml
var embeddedCatalogue embed.FS

var (
	defaultOnce sync.Once
	defaultCat  *Catalogue
	defaultErr  error
)

// Default returns the built-in investor profile catalogue.
func Default() (*Catalogue, error) {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embeddedCatalogue, "catalogue")
		if err != nil {
			defaultErr = err
			return
		}
		defaultCat, defaultErr = LoadFS(sub)
	})
	return defaultCat, defaultErr
}

type documentFile struct {
	Sections []Section `json:"sections" yaml:"sections"`
}

// LoadFS walks fsys and parses every JSON/YAML catalogue file in lexical
// path order. Sections from all files are merged and sorted by Order.
func LoadFS(fsys fs.FS) (*Catalogue, error) {
	if fsys == nil {
		return nil, fmt.Errorf("section: filesystem is nil")
	}

	var collected []Section
	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isCatalogueFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("section: read %s: %w", path, err)
		}
		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}
		collected = append(collected, doc.Sections...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return build(collected, "catalogue")
}

// Load parses a single catalogue document.
func Load(data []byte, source string) (*Catalogue, error) {
	doc, err := parseDocument(data, source)
	if err != nil {
		return nil, err
	}
	return build(doc.Sections, source)
}

func parseDocument(data []byte, source string) (documentFile, error) {
	var doc documentFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return documentFile{}, fmt.Errorf("section: file %s is empty", source)
	}
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return documentFile{}, fmt.Errorf("section: parse %s: %w", source, err)
	}
	return doc, nil
}

func build(sections []Section, source string) (*Catalogue, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("section: %s declares no sections", source)
	}

	orders := make(map[int]string, len(sections))
	prepared := make([]Section, 0, len(sections))
	for i, sec := range sections {
		sec.Title = strings.TrimSpace(sec.Title)
		sec.Key = strings.TrimSpace(sec.Key)
		if sec.Key == "" {
			sec.Key = KeyFor(sec.Title)
		}
		if sec.Key == "" {
			return nil, fmt.Errorf("section: %s section %d has neither key nor title", source, i)
		}
		if sec.Order == 0 {
			sec.Order = i + 1
		}
		if other, dup := orders[sec.Order]; dup {
			return nil, fmt.Errorf("section: %s sections %q and %q share order %d", source, other, sec.Key, sec.Order)
		}
		orders[sec.Order] = sec.Key

		fields, err := prepareFields(sec.Fields, sec.Key)
		if err != nil {
			return nil, err
		}
		sec.Fields = fields
		prepared = append(prepared, sec)
	}

	sort.SliceStable(prepared, func(i, j int) bool {
		return prepared[i].Order < prepared[j].Order
	})
	return NewCatalogue(prepared...)
}

func prepareFields(fields []Field, path string) ([]Field, error) {
	out := make([]Field, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		prepared, err := prepareField(field, path)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[prepared.Name]; dup {
			return nil, fmt.Errorf("section: %s defines duplicate field %q", path, prepared.Name)
		}
		seen[prepared.Name] = struct{}{}
		out = append(out, prepared)
	}
	return out, nil
}

func prepareField(field Field, parent string) (Field, error) {
	field.Name = strings.TrimSpace(field.Name)
	if field.Name == "" {
		return Field{}, fmt.Errorf("section: %s has a field without a name", parent)
	}
	path := parent + "." + field.Name

	if field.Type == "" {
		switch {
		case len(field.Nested) > 0:
			field.Type = FieldTypeObject
		case field.Items != nil:
			field.Type = FieldTypeArray
		default:
			field.Type = FieldTypeString
		}
	}
	if !field.Type.valid() {
		return Field{}, fmt.Errorf("section: %s has unknown type %q", path, field.Type)
	}

	if field.Pattern != "" {
		re, err := regexp.Compile(field.Pattern)
		if err != nil {
			return Field{}, fmt.Errorf("section: %s pattern: %w", path, err)
		}
		field.pattern = re
	}

	switch field.Type {
	case FieldTypeObject:
		nested, err := prepareFields(field.Nested, path)
		if err != nil {
			return Field{}, err
		}
		field.Nested = nested
	case FieldTypeArray:
		if field.Items == nil {
			return Field{}, fmt.Errorf("section: %s is an array without items", path)
		}
		items := *field.Items
		if items.Name == "" {
			items.Name = "items"
		}
		prepared, err := prepareField(items, path)
		if err != nil {
			return Field{}, err
		}
		field.Items = &prepared
	}
	return field, nil
}

func isCatalogueFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
