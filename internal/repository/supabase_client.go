package repository

import (
	"errors"
	"fmt"
	"net/url"

	"pdf-annotation-sync/internal/domain"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

var errSupabaseNotInitialized = errors.New("supabase client not initialized")

// SupabaseClient connects to the project configured by SUPABASE_URL and
// scopes every query to the annotations table.
type SupabaseClient struct {
	client *supabase.Client
	table  string
	config domain.Config
	logger domain.Logger
}

// NewSupabaseClient creates a client for the configured project and table.
// Nothing is contacted until Initialize.
func NewSupabaseClient(config domain.Config, logger domain.Logger) *SupabaseClient {
	return &SupabaseClient{
		table:  config.GetSupabaseTable(),
		config: config,
		logger: logger,
	}
}

// Initialize checks the credentials and builds the underlying client.
func (s *SupabaseClient) Initialize() error {
	supabaseURL := s.config.GetSupabaseURL()
	supabaseKey := s.config.GetSupabaseKey()

	if supabaseURL == "" || supabaseKey == "" {
		return fmt.Errorf("supabase URL and key must be provided")
	}
	if u, err := url.Parse(supabaseURL); err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("invalid supabase URL %q", supabaseURL)
	}
	if s.table == "" {
		return fmt.Errorf("supabase table must be provided")
	}

	client, err := supabase.NewClient(supabaseURL, supabaseKey, &supabase.ClientOptions{})
	if err != nil {
		return fmt.Errorf("failed to create Supabase client: %w", err)
	}

	s.client = client
	s.logger.Info("Supabase client initialized", "url", supabaseURL, "table", s.table)
	return nil
}

// Collections starts a query on the annotations table.
func (s *SupabaseClient) Collections() (*postgrest.QueryBuilder, error) {
	if s.client == nil {
		return nil, errSupabaseNotInitialized
	}
	return s.client.From(s.table), nil
}
