// Package sheets appends flattened submission rows to a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/goliatone/go-formsheet/pkg/submission"
)

const (
	// ValueInputUserEntered parses cells as if typed into the sheet UI.
	ValueInputUserEntered = "USER_ENTERED"
	// ValueInputRaw stores cells verbatim.
	ValueInputRaw = "RAW"

	insertRows = "INSERT_ROWS"
)

// Appender implements submission.Appender on the Sheets values API.
type Appender struct {
	values     *sheetsapi.SpreadsheetsValuesService
	valueInput string
	logger     *zap.Logger
}

// Option configures an Appender.
type Option func(*config)

type config struct {
	credentials []byte
	clientOpts  []option.ClientOption
	valueInput  string
	logger      *zap.Logger
}

// WithCredentialsJSON authenticates with a service-account key blob.
func WithCredentialsJSON(data []byte) Option {
	return func(c *config) {
		c.credentials = data
	}
}

// WithClientOptions passes extra options to the Sheets client, for example
// an endpoint and HTTP client in tests.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *config) {
		c.clientOpts = append(c.clientOpts, opts...)
	}
}

// WithValueInputOption selects how cell text is interpreted.
func WithValueInputOption(mode string) Option {
	return func(c *config) {
		if mode = strings.ToUpper(strings.TrimSpace(mode)); mode != "" {
			c.valueInput = mode
		}
	}
}

// WithLogger sets the appender logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds an appender. Credentials are required unless client options
// supply their own transport.
func New(ctx context.Context, opts ...Option) (*Appender, error) {
	cfg := config{valueInput: ValueInputUserEntered, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.valueInput != ValueInputUserEntered && cfg.valueInput != ValueInputRaw {
		return nil, fmt.Errorf("sheets: unsupported value input option %q", cfg.valueInput)
	}

	clientOpts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	switch {
	case len(cfg.credentials) > 0:
		clientOpts = append(clientOpts, option.WithCredentialsJSON(cfg.credentials))
	case len(cfg.clientOpts) == 0:
		return nil, errors.New("sheets: credentials are required")
	}
	clientOpts = append(clientOpts, cfg.clientOpts...)

	svc, err := sheetsapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return &Appender{
		values:     svc.Spreadsheets.Values,
		valueInput: cfg.valueInput,
		logger:     cfg.logger,
	}, nil
}

// Append writes row as a single new row after the last row of target.Range.
func (a *Appender) Append(ctx context.Context, target submission.Target, row submission.Row) error {
	if strings.TrimSpace(target.StoreID) == "" {
		return submission.NewError(submission.CodeStoreRejected, "spreadsheet id is not configured")
	}
	rng := target.Range
	if rng == "" {
		rng = "Sheet1"
	}

	body := &sheetsapi.ValueRange{Values: [][]interface{}{row.Cells()}}
	resp, err := a.values.Append(target.StoreID, rng, body).
		ValueInputOption(a.valueInput).
		InsertDataOption(insertRows).
		Context(ctx).
		Do()
	if err != nil {
		return classify(err)
	}

	updated := ""
	if resp != nil && resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	a.logger.Debug("row appended",
		zap.String("range", rng),
		zap.String("updated_range", updated),
		zap.Int("cells", len(row)),
	)
	return nil
}

func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestEntityTooLarge:
			return submission.Wrap(submission.CodeStoreRejected, "sheets rejected row", errors.New(apiMessage(gerr)))
		default:
			return submission.Wrap(submission.CodeStoreUnavailable, "sheets unavailable", errors.New(apiMessage(gerr)))
		}
	}
	return submission.Wrap(submission.CodeStoreUnavailable, "sheets unavailable", err)
}

// apiMessage keeps the status and server message but drops request details.
func apiMessage(gerr *googleapi.Error) string {
	if gerr.Message != "" {
		return fmt.Sprintf("%d %s", gerr.Code, gerr.Message)
	}
	return fmt.Sprintf("%d %s", gerr.Code, http.StatusText(gerr.Code))
}
