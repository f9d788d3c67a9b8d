package model

import (
	"context"
	"errors"
	"strings"

	"scribbly/internal/config"
	"scribbly/internal/entity"

	"gorm.io/gorm"
)

type providerSeed struct {
	Provider entity.DbProvider
	Models   []entity.DbModel
}

// SeedDefaultProviders ensures the built-in providers/models exist in the database.
// 环境变量里配了 key 的服务商会被自动激活。
func SeedDefaultProviders(ctx context.Context, repo Repository, cfg config.Config) error {
	if repo == nil {
		return nil
	}

	seeds := buildDefaultProviderSeeds(cfg)
	for _, seed := range seeds {
		existing, err := repo.GetProvider(ctx, seed.Provider.ID)
		switch {
		case err == nil:
			if err := syncExistingProvider(ctx, repo, existing, seed); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := createSeedProvider(ctx, repo, seed); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

func createSeedProvider(ctx context.Context, repo Repository, seed providerSeed) error {
	provider := seed.Provider
	provider.Models = nil

	if err := repo.CreateProvider(ctx, &provider); err != nil {
		return err
	}

	for _, modelSeed := range seed.Models {
		model := modelSeed
		model.ProviderID = provider.ID
		if err := repo.CreateModel(ctx, &model); err != nil {
			return err
		}
	}
	return nil
}

func syncExistingProvider(ctx context.Context, repo Repository, existing *entity.DbProvider, seed providerSeed) error {
	if existing == nil {
		return nil
	}

	var updates entity.ProviderUpdates
	envAPIKey := strings.TrimSpace(seed.Provider.APIKey)
	if envAPIKey != "" && strings.TrimSpace(existing.APIKey) == "" {
		updates.APIKey = &envAPIKey
		if !existing.IsActive {
			active := true
			updates.IsActive = &active
		}
	}
	if !updates.IsEmpty() {
		if err := repo.UpdateProvider(ctx, existing.ID, updates); err != nil {
			return err
		}
	}

	existingModelSet := make(map[string]struct{}, len(existing.Models))
	for _, model := range existing.Models {
		existingModelSet[strings.ToLower(strings.TrimSpace(model.ModelID))] = struct{}{}
	}

	for _, modelSeed := range seed.Models {
		key := strings.ToLower(strings.TrimSpace(modelSeed.ModelID))
		if _, ok := existingModelSet[key]; ok {
			continue
		}
		model := modelSeed
		model.ProviderID = existing.ID
		if err := repo.CreateModel(ctx, &model); err != nil {
			return err
		}
	}
	return nil
}

func buildDefaultProviderSeeds(cfg config.Config) []providerSeed {
	openRouterKey := strings.TrimSpace(cfg.OpenRouterAPIKey)
	geminiKey := strings.TrimSpace(cfg.GeminiAPIKey)
	falKey := strings.TrimSpace(cfg.FalAPIKey)
	volcengineKey := strings.TrimSpace(cfg.VolcengineAPIKey)

	return []providerSeed{
		{
			Provider: entity.DbProvider{
				ID:       "openrouter",
				Name:     "OpenRouter",
				Driver:   entity.ProviderDriverOpenRouter,
				BaseURL:  "https://openrouter.ai/api/v1/chat/completions",
				APIKey:   openRouterKey,
				IsActive: openRouterKey != "",
			},
			Models: []entity.DbModel{
				{
					ModelID:  "google/gemini-2.5-flash-image-preview",
					Name:     "Gemini 2.5 Flash Image Preview",
					IsActive: true,
				},
			},
		},
		{
			Provider: entity.DbProvider{
				ID:       "google",
				Name:     "Google Gemini",
				Driver:   entity.ProviderDriverGemini,
				APIKey:   geminiKey,
				IsActive: geminiKey != "",
			},
			Models: []entity.DbModel{
				{
					ModelID:  "gemini-2.5-flash-image-preview",
					Name:     "Gemini 2.5 Flash Image Preview",
					IsActive: true,
				},
			},
		},
		{
			Provider: entity.DbProvider{
				ID:       "fal",
				Name:     "fal.ai",
				Driver:   entity.ProviderDriverFal,
				APIKey:   falKey,
				IsActive: falKey != "",
			},
			Models: []entity.DbModel{
				{
					ModelID:  "fal-ai/hunyuan-image/v3/text-to-image",
					Name:     "Hunyuan Image v3",
					IsActive: true,
				},
			},
		},
		{
			Provider: entity.DbProvider{
				ID:       "volcengine",
				Name:     "Volcengine",
				Driver:   entity.ProviderDriverVolcengine,
				APIKey:   volcengineKey,
				IsActive: volcengineKey != "",
			},
			Models: []entity.DbModel{
				{
					ModelID:        "doubao-seedream-4-0-250828",
					Name:           "Doubao Seedream 4.0",
					SupportedSizes: entity.StringArray{"1K", "2K", "4K"},
					IsActive:       true,
				},
			},
		},
	}
}
