package draft_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/goliatone/go-formsheet/pkg/answers"
	"github.com/goliatone/go-formsheet/pkg/draft"
	"github.com/goliatone/go-formsheet/pkg/section"
	"github.com/goliatone/go-formsheet/pkg/submission"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const fiveSections = `
sections:
  - title: Step One
    required: true
    fields:
      - { name: name, required: true }
  - title: Step Two
    fields:
      - { name: note }
  - title: Step Three
    required: true
    fields:
      - { name: level, required: true, options: [low, high] }
  - title: Step Four
    fields:
      - name: items
        type: array
        items:
          type: object
          fields:
            - { name: label }
  - title: Step Five
    fields:
      - { name: amount, type: number, min: 0 }
`

func fiveSectionCatalogue(t *testing.T) *section.Catalogue {
	t.Helper()
	cat, err := section.Load([]byte(fiveSections), "test")
	if err != nil {
		t.Fatalf("load catalogue: %v", err)
	}
	return cat
}

func parse(t *testing.T, raw string) *answers.Mapping {
	t.Helper()
	m, err := answers.ParseMapping([]byte(raw))
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return m
}

type recordingSubmitter struct {
	calls []string
	err   error
}

func (r *recordingSubmitter) SubmitValue(_ context.Context, value answers.Value) error {
	data, _ := answers.Marshal(value)
	r.calls = append(r.calls, string(data))
	return r.err
}

type failingStore struct {
	draft.Store
	saveErr error
}

func (f failingStore) Save(ctx context.Context, value *answers.Mapping) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, value)
}

func newController(t *testing.T, store draft.Store, sub draft.Submitter, opts ...draft.Option) *draft.Controller {
	t.Helper()
	ctrl, err := draft.NewController(fiveSectionCatalogue(t), store, sub, opts...)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return ctrl
}

var sectionInputs = []string{
	`{"name":"Asha"}`,
	`{"note":""}`,
	`{"level":"low"}`,
	`{"items":[{"label":""}]}`,
	`{"amount":5}`,
}

func completeAll(t *testing.T, ctrl *draft.Controller, s draft.Session) draft.Session {
	t.Helper()
	for i, raw := range sectionInputs {
		var err error
		s, err = ctrl.Advance(context.Background(), s, parse(t, raw))
		if err != nil {
			t.Fatalf("advance section %d: %v", i, err)
		}
	}
	return s
}

func TestController_HappyPath(t *testing.T) {
	ctx := context.Background()
	store := draft.NewMemoryStore()
	sub := &recordingSubmitter{}
	ctrl := newController(t, store, sub)

	s, err := ctrl.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.String() != "AtSection(0)" || s.Answers.Len() != 0 {
		t.Fatalf("unexpected initial session %v with %d answers", s, s.Answers.Len())
	}

	s = completeAll(t, ctrl, s)
	if s.Phase != draft.PhaseSubmitting {
		t.Fatalf("expected submitting, got %v", s)
	}

	want := `{"stepone":{"name":"Asha"},"steptwo":{"note":null},"stepthree":{"level":"low"},"stepfour":{"items":[{"label":""}]},"stepfive":{"amount":5}}`
	got, _ := answers.Marshal(s.Answers)
	if string(got) != want {
		t.Fatalf("accumulated answers:\nwant %s\ngot  %s", want, got)
	}

	s, err = ctrl.Submit(ctx, s)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if s.Phase != draft.PhaseSubmitted {
		t.Fatalf("expected submitted, got %v", s)
	}
	if diff := cmp.Diff([]string{want}, sub.calls); diff != "" {
		t.Fatalf("submitted payloads mismatch (-want +got):\n%s", diff)
	}

	saved, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("draft should be retained by default: %v", err)
	}
	if !saved.Equal(s.Answers) {
		t.Fatalf("retained draft differs from submitted answers")
	}

	if _, err := ctrl.Submit(ctx, s); !errors.Is(err, draft.ErrNotReady) {
		t.Fatalf("second submit error = %v, want ErrNotReady", err)
	}
}

func TestController_ClearOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := draft.NewMemoryStore()
	ctrl := newController(t, store, &recordingSubmitter{}, draft.WithClearOnSuccess(true))

	s, _ := ctrl.Start(ctx)
	s = completeAll(t, ctrl, s)
	if _, err := ctrl.Submit(ctx, s); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, draft.ErrNoDraft) {
		t.Fatalf("expected cleared draft, got %v", err)
	}
}

func TestController_StartRehydrates(t *testing.T) {
	ctx := context.Background()
	store := draft.NewMemoryStore()
	if err := store.Save(ctx, parse(t, `{"stepone":{"name":"Ravi"}}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ctrl := newController(t, store, &recordingSubmitter{})

	s, err := ctrl.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Position != 0 || s.Phase != draft.PhaseEditing {
		t.Fatalf("resumed session should start at section 0, got %v", s)
	}
	prefill, ok := s.SectionAnswers("stepone")
	if !ok {
		t.Fatalf("expected prefill for stepone")
	}
	if v, _ := prefill.Get("name"); !answers.Equal(v, answers.String("Ravi")) {
		t.Fatalf("unexpected prefill %v", v)
	}
}

func TestController_RequiredSectionValidation(t *testing.T) {
	ctx := context.Background()
	store := draft.NewMemoryStore()
	ctrl := newController(t, store, &recordingSubmitter{})
	s, _ := ctrl.Start(ctx)

	next, err := ctrl.Advance(ctx, s, parse(t, `{"name":""}`))
	var verr *section.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if next.Position != 0 || next.Answers.Len() != 0 {
		t.Fatalf("session changed on validation failure: %v", next)
	}
	if _, err := store.Load(ctx); !errors.Is(err, draft.ErrNoDraft) {
		t.Fatalf("nothing should be persisted on validation failure, got %v", err)
	}

	s, _ = ctrl.Advance(ctx, s, parse(t, `{"name":"x"}`))
	// Step Two is optional: its field values are not validated.
	if _, err := ctrl.Advance(ctx, s, parse(t, `{"note":5}`)); err != nil {
		t.Fatalf("optional section should not be validated: %v", err)
	}
}

func TestController_OptionalSectionRejectsNonObject(t *testing.T) {
	ctx := context.Background()
	cat, err := section.Load([]byte(`
sections:
  - key: notes
    title: Notes
    fields:
      - { name: text }
`), "test")
	if err != nil {
		t.Fatalf("load catalogue: %v", err)
	}
	store := draft.NewMemoryStore()
	ctrl, err := draft.NewController(cat, store, &recordingSubmitter{})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	s, _ := ctrl.Start(ctx)

	inputs := []answers.Value{
		answers.String("oops"),
		answers.Number(3),
		answers.List{answers.String("a")},
	}
	for _, input := range inputs {
		next, err := ctrl.Advance(ctx, s, input)
		var verr *section.ValidationError
		if !errors.As(err, &verr) || !errors.Is(err, section.ErrInvalid) {
			t.Fatalf("Advance(%s) error = %v, want validation error", input.Kind(), err)
		}
		if verr.Section != "notes" || len(verr.Issues) != 1 {
			t.Fatalf("unexpected validation error %+v", verr)
		}
		if next.Phase != draft.PhaseEditing || next.Position != 0 || next.Answers.Len() != 0 {
			t.Fatalf("session changed on rejected input: %v", next)
		}
	}
	if _, err := store.Load(ctx); !errors.Is(err, draft.ErrNoDraft) {
		t.Fatalf("nothing should be persisted for non-object answers, got %v", err)
	}

	next, err := ctrl.Advance(ctx, s, answers.Null{})
	if err != nil {
		t.Fatalf("null answers should be accepted for an optional section: %v", err)
	}
	if next.Phase != draft.PhaseSubmitting {
		t.Fatalf("expected submitting phase, got %v", next.Phase)
	}
}

func TestController_AdvanceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ctrl := newController(t, draft.NewMemoryStore(), &recordingSubmitter{})
	s, _ := ctrl.Start(ctx)
	input := parse(t, `{"name":"Asha"}`)

	once, err := ctrl.Advance(ctx, s, input)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	back, _ := ctrl.Retreat(once)
	twice, err := ctrl.Advance(ctx, back, input)
	if err != nil {
		t.Fatalf("advance again: %v", err)
	}
	if !once.Answers.Equal(twice.Answers) {
		t.Fatalf("advancing twice changed the answers")
	}
}

func TestController_RetreatIsNonDestructive(t *testing.T) {
	ctx := context.Background()
	ctrl := newController(t, draft.NewMemoryStore(), &recordingSubmitter{})
	s, _ := ctrl.Start(ctx)

	s, _ = ctrl.Advance(ctx, s, parse(t, sectionInputs[0]))
	s, _ = ctrl.Advance(ctx, s, parse(t, sectionInputs[1]))
	before := s.Answers.Clone()

	back, err := ctrl.Retreat(s)
	if err != nil {
		t.Fatalf("retreat: %v", err)
	}
	if back.Position != 1 || !back.Answers.Equal(before) {
		t.Fatalf("retreat changed answers or position: %v", back)
	}
	again, err := ctrl.Advance(ctx, back, parse(t, sectionInputs[1]))
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !again.Answers.Equal(before) {
		t.Fatalf("retreat+advance did not reproduce the answers")
	}

	first, _ := ctrl.Start(ctx)
	if _, err := ctrl.Retreat(first); !errors.Is(err, draft.ErrCannotRetreat) {
		t.Fatalf("retreat from section 0 error = %v", err)
	}
}

func TestController_RevisitOnlyChangesThatSection(t *testing.T) {
	ctx := context.Background()
	ctrl := newController(t, draft.NewMemoryStore(), &recordingSubmitter{})
	s, _ := ctrl.Start(ctx)
	s = completeAll(t, ctrl, s)
	original := s.Answers.Clone()

	// back to section 3 (index 2): Submitting -> 4 -> 3 -> 2
	for i := 0; i < 3; i++ {
		var err error
		if s, err = ctrl.Retreat(s); err != nil {
			t.Fatalf("retreat %d: %v", i, err)
		}
	}
	if s.Position != 2 {
		t.Fatalf("expected position 2, got %v", s)
	}

	var err error
	s, err = ctrl.Advance(ctx, s, parse(t, `{"level":"high"}`))
	if err != nil {
		t.Fatalf("resubmit section 3: %v", err)
	}
	for _, key := range []string{"stepfour", "stepfive"} {
		prefill, _ := s.SectionAnswers(key)
		if s, err = ctrl.Advance(ctx, s, prefill); err != nil {
			t.Fatalf("advance %s: %v", key, err)
		}
	}

	for _, key := range []string{"stepone", "steptwo", "stepfour", "stepfive"} {
		want, _ := original.Get(key)
		got, _ := s.Answers.Get(key)
		if !answers.Equal(want, got) {
			t.Fatalf("section %s changed", key)
		}
	}
	got, _ := s.Answers.Get("stepthree")
	if !answers.Equal(parse(t, `{"level":"high"}`), got) {
		t.Fatalf("section stepthree not updated")
	}
	if diff := cmp.Diff(original.Keys(), s.Answers.Keys()); diff != "" {
		t.Fatalf("section order changed (-want +got):\n%s", diff)
	}
}

func TestController_SaveFailureLeavesSessionUnchanged(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	store := failingStore{Store: draft.NewMemoryStore(), saveErr: boom}
	ctrl := newController(t, store, &recordingSubmitter{})
	s, _ := ctrl.Start(ctx)

	next, err := ctrl.Advance(ctx, s, parse(t, `{"name":"Asha"}`))
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped save failure", err)
	}
	if next.Position != 0 || next.Answers.Len() != 0 {
		t.Fatalf("session advanced despite save failure: %v", next)
	}
}

func TestController_UnavailableStoreKeepsDraft(t *testing.T) {
	ctx := context.Background()
	store := draft.NewMemoryStore()
	sub := &recordingSubmitter{err: submission.Wrap(submission.CodeStoreUnavailable, "append row", errors.New("dial tcp: connection refused"))}
	ctrl := newController(t, store, sub, draft.WithClearOnSuccess(true))

	s, _ := ctrl.Start(ctx)
	s = completeAll(t, ctrl, s)
	saved, _ := store.Load(ctx)

	failed, err := ctrl.Submit(ctx, s)
	if !errors.Is(err, submission.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want store unavailable", err)
	}
	if failed.Phase != draft.PhaseFailed || !errors.Is(failed.Err, submission.ErrStoreUnavailable) {
		t.Fatalf("expected failed session with error, got %v (%v)", failed, failed.Err)
	}
	after, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("draft lost after failed submission: %v", err)
	}
	if !after.Equal(saved) {
		t.Fatalf("draft changed after failed submission")
	}

	sub.err = nil
	done, err := ctrl.Submit(ctx, failed)
	if err != nil || done.Phase != draft.PhaseSubmitted {
		t.Fatalf("retry should succeed, got %v (%v)", done, err)
	}
	if len(sub.calls) != 2 || sub.calls[0] != sub.calls[1] {
		t.Fatalf("retry should resend the same answers: %v", sub.calls)
	}
}

func TestController_TransitionsDoNotMutateInput(t *testing.T) {
	ctx := context.Background()
	ctrl := newController(t, draft.NewMemoryStore(), &recordingSubmitter{})
	s, _ := ctrl.Start(ctx)
	s, _ = ctrl.Advance(ctx, s, parse(t, `{"name":"Asha"}`))
	snapshot := s.Answers.Clone()

	if _, err := ctrl.Advance(ctx, s, parse(t, `{"note":"later"}`)); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !s.Answers.Equal(snapshot) || s.Position != 1 {
		t.Fatalf("input session mutated by Advance")
	}
}
