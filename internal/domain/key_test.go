package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJobID = "0b7c4f52-8d9e-4a61-9f3a-2c1d5e6f7a8b"

func TestStorageKey_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		wantKey  string
	}{
		{"plain", "shoe.jpg", "images/v1/" + testJobID + "/shoe.jpg"},
		{"dashes in name", "red-running-shoe-2024.jpg", "images/v1/" + testJobID + "/red-running-shoe-2024.jpg"},
		{"path in name", "photos/2024/shoe.png", "images/v1/" + testJobID + "/shoe.png"},
		{"windows path", `C:\Users\me\shoe.png`, "images/v1/" + testJobID + "/shoe.png"},
		{"spaces", "my shoe.jpg", "images/v1/" + testJobID + "/my shoe.jpg"},
		{"dot dot", "..", "images/v1/" + testJobID + "/upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := StorageKey(testJobID, tt.fileName)
			assert.Equal(t, tt.wantKey, key)

			jobID, err := ParseStorageKey(key)
			require.NoError(t, err)
			assert.Equal(t, testJobID, jobID)
		})
	}
}

func TestParseStorageKey_Invalid(t *testing.T) {
	keys := []string{
		"",
		"images/" + testJobID + "-shoe.jpg",
		"images/v2/" + testJobID + "/shoe.jpg",
		"uploads/v1/" + testJobID + "/shoe.jpg",
		"images/v1/not-a-uuid/shoe.jpg",
		"images/v1/" + testJobID + "/",
		"images/v1/" + testJobID + "/nested/shoe.jpg",
	}

	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			_, err := ParseStorageKey(key)
			assert.ErrorIs(t, err, ErrInvalidStorageKey)
		})
	}
}
