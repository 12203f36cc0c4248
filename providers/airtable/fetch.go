package airtable

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"pet-sync/config"
	"pet-sync/models"
	"pet-sync/providers"
	"pet-sync/secrets"
)

// Fetcher implementiert das Provider-Interface für die New-Digs-Tabelle in Airtable.
type Fetcher struct {
	Config  *config.Config
	Logger  *zap.Logger
	Secrets secrets.Store
	guard   *providers.Guard
}

// Credentials sind die beiden Secrets, die Airtable benötigt.
type Credentials struct {
	Token string
	Base  string
}

// NewFetcher erstellt einen neuen Airtable-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger, secretStore secrets.Store) *Fetcher {
	logger = logger.With(zap.String("source", string(models.SourceAirtable)))
	client := providers.NewHTTPClient(cfg.HTTPTimeout)
	return &Fetcher{
		Config:  cfg,
		Logger:  logger,
		Secrets: secretStore,
		guard:   providers.NewGuard(models.SourceAirtable, client, cfg.AirtableRequestsPerSecond, logger),
	}
}

// Source gibt die Quelle des Providers zurück.
func (f *Fetcher) Source() models.Source {
	return models.SourceAirtable
}

// FetchPets holt Token und Base, lädt alle Datensätze und normalisiert die veröffentlichten.
func (f *Fetcher) FetchPets(ctx context.Context) (*providers.Listing, error) {
	token, err := f.Secrets.GetSecret(ctx, f.Config.AirtableTokenSecretName)
	if err != nil {
		return nil, fmt.Errorf("airtable credentials: %w", err)
	}
	base, err := f.Secrets.GetSecret(ctx, f.Config.AirtableBaseSecretName)
	if err != nil {
		return nil, fmt.Errorf("airtable credentials: %w", err)
	}

	records, err := f.FetchRecords(ctx, Credentials{Token: token, Base: base})
	if err != nil {
		return nil, err
	}

	listing, filtered := normalizeAll(records, Options{
		FormURL:       f.Config.AirtableFormURL,
		PhotoBaseURL:  f.Config.AirtablePhotoBaseURL,
		SchemaVersion: models.SchemaVersion(f.Config.SchemaVersion),
	})
	for _, recErr := range listing.RecordErrors {
		f.Logger.Error("Error parsing airtable animal",
			zap.String("internal_id", recErr.RecordID),
			zap.ByteString("payload", recErr.Payload),
			zap.Error(recErr.Err))
	}
	f.Logger.Info("Airtable records normalized",
		zap.Int("pets", len(listing.Pets)),
		zap.Int("unpublished", filtered),
		zap.Int("failed", len(listing.RecordErrors)))
	return listing, nil
}

// FetchRecords blättert über den offset-Cursor durch die Tabelle, bis keiner mehr zurückkommt.
func (f *Fetcher) FetchRecords(ctx context.Context, creds Credentials) ([]json.RawMessage, error) {
	tableURL := fmt.Sprintf("%s/%s/%s", f.Config.AirtableBaseURL, url.PathEscape(creds.Base), url.PathEscape(f.Config.AirtableTable))

	var records []json.RawMessage
	cursor := ""
	for page := 0; ; page++ {
		if page >= f.Config.AirtableMaxPages {
			f.Logger.Error("Airtable keeps returning offsets, giving up", zap.Int("pages", page))
			return nil, &providers.UpstreamError{
				Source: models.SourceAirtable,
				Reason: fmt.Sprintf("more than %d pages", f.Config.AirtableMaxPages),
				Err:    providers.ErrPageLimit,
			}
		}

		resp, err := f.fetchPage(ctx, tableURL, creds.Token, cursor)
		if err != nil {
			return nil, err
		}
		records = append(records, resp.Records...)

		if resp.Offset == "" {
			break
		}
		cursor = resp.Offset
	}

	f.Logger.Info("Airtable fetch completed", zap.Int("records", len(records)))
	return records, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, tableURL, token, cursor string) (*ListResponse, error) {
	pageURL := tableURL
	if cursor != "" {
		pageURL += "?" + url.Values{"offset": {cursor}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &providers.TransportError{Source: models.SourceAirtable, Op: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := f.guard.Do(req)
	if err != nil {
		f.Logger.Error("Airtable request failed", zap.String("url", pageURL), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, &providers.TransportError{Source: models.SourceAirtable, Op: "read body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		// Token bewusst nicht loggen
		f.Logger.Error("Airtable response",
			zap.Int("status", resp.StatusCode),
			zap.String("url", pageURL),
			zap.String("cursor", cursor),
			zap.ByteString("body", body))
		return nil, &providers.UpstreamError{
			Source:     models.SourceAirtable,
			StatusCode: resp.StatusCode,
			Reason:     "invalid response code",
		}
	}

	var page ListResponse
	if err := json.Unmarshal(body, &page); err != nil {
		f.Logger.Error("Invalid response body from Airtable", zap.Error(err))
		return nil, &providers.UpstreamError{Source: models.SourceAirtable, Reason: "invalid response body", Err: err}
	}
	return &page, nil
}
