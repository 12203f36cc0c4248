package shelterluv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"pet-sync/config"
	"pet-sync/models"
	"pet-sync/providers"
	"pet-sync/secrets"
)

// Fetcher implementiert das Provider-Interface für Shelterluv.
type Fetcher struct {
	Config  *config.Config
	Logger  *zap.Logger
	Secrets secrets.Store
	guard   *providers.Guard
}

// NewFetcher erstellt einen neuen Shelterluv-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger, secretStore secrets.Store) *Fetcher {
	logger = logger.With(zap.String("source", string(models.SourceShelterluv)))
	client := providers.NewHTTPClient(cfg.HTTPTimeout)
	return &Fetcher{
		Config:  cfg,
		Logger:  logger,
		Secrets: secretStore,
		guard:   providers.NewGuard(models.SourceShelterluv, client, 0, logger),
	}
}

// Source gibt die Quelle des Providers zurück.
func (f *Fetcher) Source() models.Source {
	return models.SourceShelterluv
}

// FetchPets holt den API-Key, lädt alle veröffentlichbaren Tiere und normalisiert sie.
func (f *Fetcher) FetchPets(ctx context.Context) (*providers.Listing, error) {
	apiKey, err := f.Secrets.GetSecret(ctx, f.Config.ShelterluvSecretName)
	if err != nil {
		return nil, fmt.Errorf("shelterluv credentials: %w", err)
	}

	animals, err := f.FetchAnimals(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	listing := normalizeAll(animals, Options{
		AdoptURL:      f.Config.ShelterluvAdoptURL,
		SchemaVersion: models.SchemaVersion(f.Config.SchemaVersion),
	})
	for _, recErr := range listing.RecordErrors {
		f.Logger.Error("Error parsing shelterluv animal",
			zap.String("internal_id", recErr.RecordID),
			zap.ByteString("payload", recErr.Payload),
			zap.Error(recErr.Err))
	}
	f.Logger.Info("Shelterluv animals normalized",
		zap.Int("pets", len(listing.Pets)),
		zap.Int("failed", len(listing.RecordErrors)))
	return listing, nil
}

// FetchAnimals blättert durch /animals und sammelt die Rohdaten, de-dupliziert nach Upstream-ID.
func (f *Fetcher) FetchAnimals(ctx context.Context, apiKey string) (map[string]json.RawMessage, error) {
	animals := make(map[string]json.RawMessage)
	offset := 0
	var totalCount int

	for page := 0; ; page++ {
		if page >= f.Config.ShelterluvMaxPages {
			f.Logger.Error("Shelterluv keeps reporting more animals, giving up",
				zap.Int("pages", page), zap.Int("offset", offset))
			return nil, &providers.UpstreamError{
				Source: models.SourceShelterluv,
				Reason: fmt.Sprintf("more than %d pages", f.Config.ShelterluvMaxPages),
				Err:    providers.ErrPageLimit,
			}
		}

		resp, err := f.fetchPage(ctx, apiKey, offset)
		if err != nil {
			return nil, err
		}
		totalCount = int(resp.TotalCount)

		for _, raw := range resp.Animals {
			var key animalKey
			if err := json.Unmarshal(raw, &key); err != nil || key.ID == "" {
				f.Logger.Error("Shelterluv animal without usable ID, skipping", zap.ByteString("payload", raw))
				continue
			}
			id := string(key.ID)
			if _, exists := animals[id]; exists {
				continue
			}
			animals[id] = raw
		}

		if !resp.HasMore {
			break
		}
		offset += f.Config.ShelterluvPageSize
	}

	if len(animals) != totalCount {
		f.Logger.Warn("Something went wrong, missing animals from shelterluv",
			zap.Int("received", len(animals)), zap.Int("total_count", totalCount))
	}
	f.Logger.Info("Shelterluv fetch completed", zap.Int("animals", len(animals)))
	return animals, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, apiKey string, offset int) (*AnimalsResponse, error) {
	q := url.Values{}
	q.Set("status_type", "publishable")
	q.Set("offset", strconv.Itoa(offset))
	pageURL := f.Config.ShelterluvBaseURL + "/animals?" + q.Encode()
	log := f.Logger.With(zap.Int("offset", offset))
	log.Debug("Requesting shelterluv page", zap.String("url", pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &providers.TransportError{Source: models.SourceShelterluv, Op: "build request", Err: err}
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := f.guard.Do(req)
	if err != nil {
		log.Error("Shelterluv request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.TransportError{Source: models.SourceShelterluv, Op: "read body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("Invalid response code from Shelterluv", zap.Int("status", resp.StatusCode))
		return nil, &providers.UpstreamError{
			Source:     models.SourceShelterluv,
			StatusCode: resp.StatusCode,
			Reason:     "invalid response code",
		}
	}

	var page AnimalsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		log.Error("Invalid response body from Shelterluv", zap.Error(err))
		return nil, &providers.UpstreamError{Source: models.SourceShelterluv, Reason: "invalid response body", Err: err}
	}
	if page.Success != 1 {
		log.Error("Invalid response from Shelterluv", zap.ByteString("body", body))
		return nil, &providers.UpstreamError{Source: models.SourceShelterluv, Reason: "success flag not set"}
	}
	if page.TotalCount == 0 {
		log.Error("No animals found from Shelterluv")
		return nil, &providers.UpstreamError{Source: models.SourceShelterluv, Reason: "total count is zero"}
	}
	return &page, nil
}
