package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keshav2232/viva/internal/config"
)

func TestCanListReports(t *testing.T) {
	c := config.Default()
	assert.NoError(t, canListReports(c))

	c.Storage.Archive = "Redis"
	err := canListReports(c)
	assert.ErrorContains(t, err, "sqlite archive")

	c.Storage.Archive = config.ArchiveNone
	assert.ErrorContains(t, canListReports(c), "disabled")
}
