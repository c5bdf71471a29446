package prompt

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-formsheet/pkg/answers"
	"github.com/goliatone/go-formsheet/pkg/section"
)

type stubDriver struct {
	inputs       []string
	selectIdx    []int
	multiIdx     [][]int
	confirm      []bool
	textAreas    []string
	infoMessages []string

	inputConfigs   []InputConfig
	selectConfigs  []SelectConfig
	confirmConfigs []ConfirmConfig

	inputPos   int
	selectPos  int
	multiPos   int
	confirmPos int
	textPos    int
}

func exhausted(kind string) error {
	return fmt.Errorf("%w: no %s scripted", ErrAborted, kind)
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	s.inputConfigs = append(s.inputConfigs, cfg)
	if s.inputPos >= len(s.inputs) {
		return "", exhausted("input")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, cfg ConfirmConfig) (bool, error) {
	s.confirmConfigs = append(s.confirmConfigs, cfg)
	if s.confirmPos >= len(s.confirm) {
		return false, exhausted("confirm")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.selectConfigs = append(s.selectConfigs, cfg)
	if s.selectPos >= len(s.selectIdx) {
		return -1, exhausted("select")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) MultiSelect(_ context.Context, _ SelectConfig) ([]int, error) {
	if s.multiPos >= len(s.multiIdx) {
		return nil, exhausted("multiselect")
	}
	val := s.multiIdx[s.multiPos]
	s.multiPos++
	return val, nil
}

func (s *stubDriver) TextArea(_ context.Context, _ TextAreaConfig) (string, error) {
	if s.textPos >= len(s.textAreas) {
		return "", exhausted("textarea")
	}
	val := s.textAreas[s.textPos]
	s.textPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

const testCatalogue = `
sections:
  - title: About You
    required: true
    fields:
      - { name: name, label: Name, required: true }
      - { name: age, label: Age, required: true, options: ["<25", "25-35"] }
      - name: email
        label: Email
        pattern: '^[^@\s]+@[^@\s]+$'
        patternMessage: Please enter a valid email address
      - { name: address, label: Address, format: textarea }
  - title: Extras
    fields:
      - { name: income, label: Income, type: number, min: 0 }
      - { name: tags, label: Tags, type: array, items: { options: [red, blue] } }
      - name: goals
        label: Goals
        type: array
        items:
          label: Goal
          type: object
          fields:
            - { name: title, label: Title, required: true }
`

func loadCatalogue(t *testing.T) *section.Catalogue {
	t.Helper()
	cat, err := section.Load([]byte(testCatalogue), "test")
	if err != nil {
		t.Fatalf("load catalogue: %v", err)
	}
	return cat
}

func mustSection(t *testing.T, cat *section.Catalogue, key string) section.Section {
	t.Helper()
	sec, ok := cat.Lookup(key)
	if !ok {
		t.Fatalf("section %q missing", key)
	}
	return sec
}

func marshal(t *testing.T, v answers.Value) string {
	t.Helper()
	data, err := answers.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func parseMapping(t *testing.T, raw string) *answers.Mapping {
	t.Helper()
	m, err := answers.ParseMapping([]byte(raw))
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return m
}
