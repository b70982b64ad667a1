// Package sheets publishes capacity reports as Google spreadsheets.
package sheets

import (
	"context"
	"fmt"
	"log"

	"capacityreport/internal/config"
	"capacityreport/internal/report"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

type Publisher struct {
	drive    *drive.Service
	sheets   *gsheets.Service
	folderID string
	palette  Palette
}

// NewPublisher builds Drive and Sheets clients from the service account in
// cfg. Extra options are appended, which lets tests point at a fake server.
func NewPublisher(ctx context.Context, cfg config.Config, opts ...option.ClientOption) (*Publisher, error) {
	var base []option.ClientOption
	if cfg.GoogleCredentialsPath != "" {
		base = append(base, option.WithCredentialsFile(cfg.GoogleCredentialsPath))
	}
	base = append(base, option.WithScopes(drive.DriveScope, gsheets.SpreadsheetsScope))
	base = append(base, opts...)

	driveSvc, err := drive.NewService(ctx, base...)
	if err != nil {
		return nil, fmt.Errorf("creating drive client: %w", err)
	}
	sheetsSvc, err := gsheets.NewService(ctx, base...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}
	return &Publisher{
		drive:    driveSvc,
		sheets:   sheetsSvc,
		folderID: cfg.GoogleDriveFolderID,
		palette:  cfg.Color,
	}, nil
}

// Publish creates the spreadsheet, fills and formats it, and returns its URL.
// The file is removed again when any step after creation fails.
func (p *Publisher) Publish(ctx context.Context, doc report.Document) (string, error) {
	if len(doc.Sheets) == 0 {
		return "", fmt.Errorf("document %q has no sheets", doc.Title)
	}
	// Build every request up front so a bad document never creates a file.
	structure := structureRequests(doc)
	values := valueRanges(doc)
	formats, err := formatRequests(doc, p.palette)
	if err != nil {
		return "", fmt.Errorf("building sheet formats: %w", err)
	}

	file := &drive.File{Name: doc.Title, MimeType: spreadsheetMimeType}
	if p.folderID != "" {
		file.Parents = []string{p.folderID}
	}
	created, err := p.drive.Files.Create(file).
		SupportsAllDrives(true).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("creating spreadsheet: %w", err)
	}
	log.Printf("sheets created id=%s title=%q", created.Id, doc.Title)

	if err := p.fill(ctx, created.Id, doc, structure, values, formats); err != nil {
		if delErr := p.drive.Files.Delete(created.Id).SupportsAllDrives(true).Context(context.WithoutCancel(ctx)).Do(); delErr != nil {
			log.Printf("sheets cleanup failed id=%s: %v", created.Id, delErr)
		}
		return "", err
	}

	url := created.WebViewLink
	if url == "" {
		url = "https://docs.google.com/spreadsheets/d/" + created.Id
	}
	return url, nil
}

func (p *Publisher) fill(ctx context.Context, id string, doc report.Document,
	structure []*gsheets.Request, values []*gsheets.ValueRange, formats []*gsheets.Request) error {
	if _, err := p.sheets.Spreadsheets.BatchUpdate(id, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: structure,
	}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("creating worksheets: %w", err)
	}

	if _, err := p.sheets.Spreadsheets.Values.BatchUpdate(id, &gsheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInputOption,
		Data:             values,
	}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("writing values: %w", err)
	}

	if len(formats) > 0 {
		if _, err := p.sheets.Spreadsheets.BatchUpdate(id, &gsheets.BatchUpdateSpreadsheetRequest{
			Requests: formats,
		}).Context(ctx).Do(); err != nil {
			return fmt.Errorf("formatting worksheets: %w", err)
		}
	}
	log.Printf("sheets filled id=%s sheets=%d charts=%d", id, len(doc.Sheets), len(doc.Charts))
	return nil
}
