package domain

import "github.com/supabase-community/postgrest-go"

// SupabaseClient gives repositories access to the annotations table.
type SupabaseClient interface {
	Initialize() error
	// Collections starts a query on the table holding annotation collections.
	Collections() (*postgrest.QueryBuilder, error)
}
