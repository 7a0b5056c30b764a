package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/cuongbtq/pgjobqueue/internal/api/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	createdAt := time.Date(2024, 3, 9, 12, 30, 0, 123456789, time.UTC)

	encoded := EncodeJobCursor(&storage.JobCursor{CreatedAt: createdAt, ID: 42})
	decoded, err := DecodeJobCursor(encoded)
	require.NoError(t, err)

	assert.True(t, createdAt.Equal(decoded.CreatedAt))
	assert.Equal(t, int64(42), decoded.ID)
}

func TestDecodeJobCursor(t *testing.T) {
	encode := func(s string) string {
		return base64.URLEncoding.EncodeToString([]byte(s))
	}

	tests := []struct {
		name    string
		cursor  string
		wantNil bool
		wantErr string
	}{
		{name: "empty cursor means first page", cursor: "", wantNil: true},
		{name: "not base64", cursor: "%%%", wantErr: "illegal base64"},
		{name: "missing separator", cursor: encode("12345"), wantErr: "invalid cursor format"},
		{name: "bad timestamp", cursor: encode("yesterday|1"), wantErr: "invalid createdAt"},
		{name: "bad id", cursor: encode("12345|abc"), wantErr: "invalid id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor, err := DecodeJobCursor(tt.cursor)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, cursor)
			}
		})
	}
}
