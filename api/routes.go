// Package api stellt die Pets-Tabelle als Read-API für die Website bereit.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pet-sync/config"
	"pet-sync/models"
	"pet-sync/services"
	"pet-sync/storage"
)

// Syncer startet einen vollständigen Lauf über alle Quellen.
type Syncer interface {
	RunAll(ctx context.Context) ([]services.PassResult, error)
}

// PublicPet ist die Feld-Teilmenge, die mit api_fields=true ausgeliefert wird.
type PublicPet struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Species    string   `json:"species"`
	Sex        string   `json:"sex"`
	Age        string   `json:"age"`
	Breed      *string  `json:"breed"`
	Color      *string  `json:"color"`
	Size       *string  `json:"size"`
	CoverPhoto string   `json:"coverPhoto"`
	Photos     []string `json:"photos"`
	Video      *string  `json:"video"`
	Location   string   `json:"location"`
	AdoptLink  string   `json:"adoptLink"`
}

func toPublic(p models.Pet) PublicPet {
	return PublicPet{
		ID:         p.ID,
		Name:       p.Name,
		Species:    p.Species,
		Sex:        p.Sex,
		Age:        p.Age,
		Breed:      p.Breed,
		Color:      p.Color,
		Size:       p.Size,
		CoverPhoto: p.CoverPhoto,
		Photos:     p.Photos,
		Video:      p.Video,
		Location:   p.Location,
		AdoptLink:  p.AdoptLink,
	}
}

// APIKeyAuthMiddleware schützt Routen über den Header X-API-KEY. Ohne konfigurierten Schlüssel ist alles offen.
func APIKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// NewRouter registriert alle Routen auf einer gin-Engine.
func NewRouter(cfg *config.Config, store storage.Store, syncer Syncer, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "pet-sync"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupPetRoutes(router, store, log)
	if syncer != nil {
		setupSyncRoutes(router, cfg, syncer, log)
	}
	return router
}

// NewHandler hängt permissive CORS-Header vor den Router.
func NewHandler(router http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-KEY"},
		MaxAge:         300,
	})(router)
}

func setupPetRoutes(router *gin.Engine, store storage.Store, log *zap.Logger) {
	router.GET("/pet/:id", func(c *gin.Context) {
		id := c.Param("id")
		pet, err := store.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Pet not found"})
				return
			}
			log.Error("Failed to get pet", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get pet"})
			return
		}
		c.JSON(http.StatusOK, pet)
	})

	router.GET("/pets", func(c *gin.Context) {
		publicOnly := false
		if raw := c.Query("api_fields"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "api_fields must be a boolean"})
				return
			}
			publicOnly = v
		}
		filter := storage.Filter{Species: strings.ToLower(strings.TrimSpace(c.Query("species")))}

		pets, err := storage.ListAll(c.Request.Context(), func(ctx context.Context, cursor string) (storage.Page, error) {
			return store.Scan(ctx, filter, cursor)
		})
		if err != nil {
			log.Error("Failed to list pets", zap.String("species", filter.Species), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list pets"})
			return
		}
		if len(pets) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "No pets found"})
			return
		}

		if publicOnly {
			out := make([]PublicPet, 0, len(pets))
			for _, p := range pets {
				out = append(out, toPublic(p))
			}
			c.JSON(http.StatusOK, out)
			return
		}
		c.JSON(http.StatusOK, pets)
	})
}

// setupSyncRoutes startet einen Lauf im Hintergrund. Läuft bereits einer, gibt es 409.
func setupSyncRoutes(router *gin.Engine, cfg *config.Config, syncer Syncer, log *zap.Logger) {
	var running atomic.Bool
	router.POST("/sync", APIKeyAuthMiddleware(cfg), func(c *gin.Context) {
		if !running.CompareAndSwap(false, true) {
			c.JSON(http.StatusConflict, gin.H{"error": "Sync already running"})
			return
		}
		go func() {
			defer running.Store(false)
			log.Info("Sync triggered via API")
			if _, err := syncer.RunAll(context.Background()); err != nil {
				log.Error("Triggered sync failed", zap.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "sync started"})
	})
}
