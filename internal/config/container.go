package config

import (
	"fmt"

	"pdf-annotation-sync/internal/domain"
	"pdf-annotation-sync/internal/repository"
	"pdf-annotation-sync/internal/service"
	"pdf-annotation-sync/internal/validation"
	"pdf-annotation-sync/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config           domain.Config
	Logger           domain.Logger
	SupabaseClient   domain.SupabaseClient
	AnnotationStore  domain.AnnotationStore
	Validator        *validation.Validator
	HighlightService domain.HighlightService
}

// NewContainer creates a new dependency injection container from the environment
func NewContainer() (*Container, error) {
	config := NewConfig()
	return NewContainerWithConfig(config, logger.NewLogger(config.GetLogLevel(), config.GetLogFormat()))
}

// NewContainerWithConfig wires the application around an explicit config and logger.
func NewContainerWithConfig(config domain.Config, appLogger domain.Logger) (*Container, error) {
	c := &Container{
		Config:    config,
		Logger:    appLogger,
		Validator: validation.New(),
	}

	store, err := c.openStore()
	if err != nil {
		return nil, err
	}
	c.AnnotationStore = store
	c.HighlightService = service.NewHighlightService(store, c.Validator, appLogger)

	appLogger.Info("Annotation store ready", "backend", config.GetStoreBackend())
	return c, nil
}

func (c *Container) openStore() (domain.AnnotationStore, error) {
	switch backend := c.Config.GetStoreBackend(); backend {
	case BackendFile, "":
		return repository.NewFileStore(c.Config.GetDataFile(), c.Logger)
	case BackendBadger:
		return repository.NewBadgerStore(c.Config.GetBadgerPath(), c.Logger)
	case BackendSupabase:
		supabaseClient := repository.NewSupabaseClient(c.Config, c.Logger)
		if err := supabaseClient.Initialize(); err != nil {
			return nil, fmt.Errorf("failed to initialize supabase: %w", err)
		}
		c.SupabaseClient = supabaseClient
		return repository.NewSupabaseStore(supabaseClient, c.Logger), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// Close releases the annotation store.
func (c *Container) Close() error {
	if c.AnnotationStore == nil {
		return nil
	}
	return c.AnnotationStore.Close()
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}

// GetSupabaseClient returns the Supabase client instance, nil unless the supabase backend is used
func (c *Container) GetSupabaseClient() domain.SupabaseClient {
	return c.SupabaseClient
}
