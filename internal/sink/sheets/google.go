package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/syncsentinel/syncsentinel/internal/sink"
)

// GoogleAPI implements API on top of the Google Sheets v4 service.
type GoogleAPI struct {
	svc *gsheets.Service
}

// NewGoogleAPI builds a client from a credentials file. Service account keys
// and authorized-user credentials are both accepted.
func NewGoogleAPI(ctx context.Context, credentialsFile string) (*GoogleAPI, error) {
	// #nosec G304 - path is configured by the user
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := gsheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &GoogleAPI{svc: svc}, nil
}

// Sheets implements API.
func (g *GoogleAPI) Sheets(ctx context.Context, spreadsheetID string) ([]SheetInfo, error) {
	resp, err := g.svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties(sheetId,title,index)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	infos := make([]SheetInfo, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties == nil || sh.Properties.Title == "" {
			continue
		}
		infos = append(infos, SheetInfo{
			ID:    sh.Properties.SheetId,
			Title: sh.Properties.Title,
			Index: int(sh.Properties.Index),
		})
	}
	return infos, nil
}

// Read implements API.
func (g *GoogleAPI) Read(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	rows := make([][]string, len(resp.Values))
	for i, vals := range resp.Values {
		row := make([]string, len(vals))
		for j, v := range vals {
			row[j] = fmt.Sprint(v)
		}
		rows[i] = row
	}
	return rows, nil
}

// Write implements API.
func (g *GoogleAPI) Write(ctx context.Context, spreadsheetID, rng string, rows [][]string) error {
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		row := make([]interface{}, len(r))
		for j, v := range r {
			row[j] = v
		}
		values[i] = row
	}

	_, err := g.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// InsertRows implements API.
func (g *GoogleAPI) InsertRows(ctx context.Context, spreadsheetID string, sheetID int64, start, count int) error {
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			InsertDimension: &gsheets.InsertDimensionRequest{
				Range: &gsheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(start),
					EndIndex:   int64(start + count),
					// Zero is a valid sheet id and start index.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
				InheritFromBefore: false,
			},
		}},
	}
	_, err := g.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

// classify maps a spreadsheet service failure to a sink error kind.
func classify(err error) sink.Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return sink.KindRemoteQuotaOrTransport
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized, gerr.Code == http.StatusForbidden:
			return sink.KindPermissionDenied
		case gerr.Code == http.StatusNotFound:
			return sink.KindUnreachable
		case gerr.Code == http.StatusBadRequest:
			return sink.KindMalformedExisting
		case gerr.Code == http.StatusTooManyRequests, gerr.Code >= 500:
			return sink.KindRemoteQuotaOrTransport
		}
		return sink.KindUnreachable
	}

	// Transport failures.
	return sink.KindRemoteQuotaOrTransport
}
