package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example/settlements/a.json", PublicURL("https://cdn.example/", "/settlements/a.json"))
	assert.Equal(t, "https://cdn.example/settlements/a.json", PublicURL("https://cdn.example", "settlements/a.json"))
}
