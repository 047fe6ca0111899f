package repository

import (
	"testing"

	"pdf-annotation-sync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type supabaseConfig struct {
	domain.Config
	url, key, table string
}

func (c supabaseConfig) GetSupabaseURL() string   { return c.url }
func (c supabaseConfig) GetSupabaseKey() string   { return c.key }
func (c supabaseConfig) GetSupabaseTable() string { return c.table }

func TestSupabaseClient_Initialize(t *testing.T) {
	tests := []struct {
		name    string
		config  supabaseConfig
		wantErr bool
	}{
		{name: "valid", config: supabaseConfig{url: "http://localhost:54321", key: "anon", table: "annotations"}},
		{name: "missing key", config: supabaseConfig{url: "http://localhost:54321", table: "annotations"}, wantErr: true},
		{name: "not a url", config: supabaseConfig{url: "localhost", key: "anon", table: "annotations"}, wantErr: true},
		{name: "missing table", config: supabaseConfig{url: "https://project.supabase.co", key: "anon"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewSupabaseClient(tt.config, mockLogger{})

			_, err := client.Collections()
			require.ErrorIs(t, err, errSupabaseNotInitialized)

			err = client.Initialize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			query, err := client.Collections()
			require.NoError(t, err)
			assert.NotNil(t, query)
		})
	}
}
