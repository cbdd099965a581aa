package sink

// sheets.go implements Destination on top of the Google Sheets API.
//
// The configuration surface identifies the destination by document name, so
// opening resolves the name to a spreadsheet ID through the Drive API, then
// verifies the worksheet title exists. Everything after that uses only
// values.Clear and values.Append with RAW input.

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsDestination is an authorized handle on one worksheet of one Google
// Sheets document.
type SheetsDestination struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
}

// OpenSheets authorizes against the Sheets and Drive APIs with the service
// account key at credentialsFile, resolves document (by exact name) to a
// spreadsheet and verifies worksheet exists in it. All failures are
// *AuthError.
func OpenSheets(ctx context.Context, credentialsFile, document, worksheet string) (*SheetsDestination, error) {
	authErr := func(err error) error {
		return &AuthError{Document: document, Worksheet: worksheet, Err: err}
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope, drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, authErr(fmt.Errorf("sheets service: %w", err))
	}

	driveSvc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, authErr(fmt.Errorf("drive service: %w", err))
	}

	id, err := findSpreadsheet(ctx, driveSvc, document)
	if err != nil {
		return nil, authErr(err)
	}

	meta, err := svc.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, authErr(fmt.Errorf("get spreadsheet %s: %w", id, err))
	}
	found := false
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == worksheet {
			found = true
			break
		}
	}
	if !found {
		return nil, authErr(fmt.Errorf("worksheet %q not found in document %q", worksheet, document))
	}

	return &SheetsDestination{svc: svc, spreadsheetID: id, worksheet: worksheet}, nil
}

// findSpreadsheet looks the document up by exact name via the Drive API.
func findSpreadsheet(ctx context.Context, svc *drive.Service, name string) (string, error) {
	query := fmt.Sprintf(
		"name = '%s' and mimeType = 'application/vnd.google-apps.spreadsheet' and trashed = false",
		strings.ReplaceAll(name, "'", "\\'"),
	)
	list, err := svc.Files.List().Q(query).Fields("files(id, name)").PageSize(2).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive lookup for %q: %w", name, err)
	}
	switch len(list.Files) {
	case 0:
		return "", fmt.Errorf("document %q not found", name)
	case 1:
		return list.Files[0].Id, nil
	default:
		return "", fmt.Errorf("document name %q is ambiguous (%d matches)", name, len(list.Files))
	}
}

// Clear removes all values from the worksheet.
func (d *SheetsDestination) Clear(ctx context.Context) error {
	_, err := d.svc.Spreadsheets.Values.
		Clear(d.spreadsheetID, quoteRange(d.worksheet), &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %q: %w", d.worksheet, err)
	}
	return nil
}

// Append adds rows after the worksheet's current content. RAW keeps cell
// values literal instead of formula-evaluating them.
func (d *SheetsDestination) Append(ctx context.Context, rows [][]string) error {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}

	_, err := d.svc.Spreadsheets.Values.
		Append(d.spreadsheetID, quoteRange(d.worksheet), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %d rows to %q: %w", len(rows), d.worksheet, err)
	}
	return nil
}

// quoteRange wraps a worksheet title for use as an A1 range.
func quoteRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
