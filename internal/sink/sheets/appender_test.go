package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"

	"github.com/goliatone/go-formsheet/pkg/submission"
)

type appendCall struct {
	Path             string
	ValueInputOption string
	InsertDataOption string
	Values           [][]string
}

func newTestAppender(t *testing.T, status int, payload string, calls *[]appendCall) *Appender {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Values [][]string `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		*calls = append(*calls, appendCall{
			Path:             r.URL.Path,
			ValueInputOption: r.URL.Query().Get("valueInputOption"),
			InsertDataOption: r.URL.Query().Get("insertDataOption"),
			Values:           body.Values,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	appender, err := New(context.Background(), WithClientOptions(
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	))
	if err != nil {
		t.Fatalf("new appender: %v", err)
	}
	return appender
}

func TestAppend_SendsOneRow(t *testing.T) {
	var calls []appendCall
	appender := newTestAppender(t, http.StatusOK,
		`{"spreadsheetId":"sheet-id","updates":{"updatedRange":"Sheet1!A2:B2"}}`, &calls)

	row := submission.Row{"personalprofile.age: <25", "goals.goals: []"}
	if err := appender.Append(context.Background(), submission.Target{StoreID: "sheet-id"}, row); err != nil {
		t.Fatalf("append: %v", err)
	}

	want := []appendCall{{
		Path:             "/v4/spreadsheets/sheet-id/values/Sheet1:append",
		ValueInputOption: "USER_ENTERED",
		InsertDataOption: "INSERT_ROWS",
		Values:           [][]string{{"personalprofile.age: <25", "goals.goals: []"}},
	}}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Fatalf("append calls mismatch (-want +got):\n%s", diff)
	}
}

func TestAppend_ClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{name: "bad request", status: http.StatusBadRequest, want: submission.ErrStoreRejected},
		{name: "missing sheet", status: http.StatusNotFound, want: submission.ErrStoreRejected},
		{name: "forbidden", status: http.StatusForbidden, want: submission.ErrStoreUnavailable},
		{name: "throttled", status: http.StatusTooManyRequests, want: submission.ErrStoreUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls []appendCall
			appender := newTestAppender(t, tc.status, `{"error":{"message":"nope"}}`, &calls)

			err := appender.Append(context.Background(), submission.Target{StoreID: "sheet-id", Range: "Sheet1"}, submission.Row{"a: b"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("append error = %v, want %v", err, tc.want)
			}
			if len(calls) != 1 {
				t.Fatalf("expected exactly one request, got %d", len(calls))
			}
		})
	}
}

func TestAppend_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	appender, err := New(context.Background(), WithClientOptions(
		option.WithEndpoint(url+"/"),
		option.WithHTTPClient(http.DefaultClient),
	))
	if err != nil {
		t.Fatalf("new appender: %v", err)
	}
	err = appender.Append(context.Background(), submission.Target{StoreID: "sheet-id"}, submission.Row{"a: b"})
	if !errors.Is(err, submission.ErrStoreUnavailable) {
		t.Fatalf("append error = %v, want StoreUnavailable", err)
	}
}

func TestAppend_MissingSpreadsheetID(t *testing.T) {
	var calls []appendCall
	appender := newTestAppender(t, http.StatusOK, `{}`, &calls)
	err := appender.Append(context.Background(), submission.Target{}, submission.Row{"a: b"})
	if !errors.Is(err, submission.ErrStoreRejected) {
		t.Fatalf("append error = %v, want StoreRejected", err)
	}
	if len(calls) != 0 {
		t.Fatalf("no request should be sent without a spreadsheet id")
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatal("expected an error without credentials")
	}
	if _, err := New(context.Background(), WithCredentialsJSON([]byte("{}")), WithValueInputOption("formula")); err == nil {
		t.Fatal("expected an error for an unknown value input option")
	}
}
