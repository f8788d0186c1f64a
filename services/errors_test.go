package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(ErrInsufficientShares))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("trade: %w", ErrTradeInProgress)))
	assert.Equal(t, KindNotFound, KindOf(gorm.ErrRecordNotFound))
	assert.Equal(t, KindTransient, KindOf(Transient(errors.New("timeout"), "db")))
	assert.Equal(t, KindFatal, KindOf(errors.New("boom")))
}

func TestKindStatus(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, KindValidation.Status())
	assert.Equal(t, fiber.StatusNotFound, KindNotFound.Status())
	assert.Equal(t, fiber.StatusForbidden, KindForbidden.Status())
	assert.Equal(t, fiber.StatusConflict, KindConflict.Status())
	assert.Equal(t, fiber.StatusServiceUnavailable, KindTransient.Status())
	assert.Equal(t, fiber.StatusInternalServerError, KindFatal.Status())
}

func TestWrapDB(t *testing.T) {
	assert.NoError(t, wrapDB(nil, "portfolio"))

	err := wrapDB(gorm.ErrRecordNotFound, "portfolio")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.Equal(t, KindTransient, KindOf(wrapDB(errors.New("conn refused"), "portfolio")))
	assert.Same(t, ErrNotParticipant, wrapDB(ErrNotParticipant, "portfolio"))
}

func TestRespondErrorShape(t *testing.T) {
	app := fiber.New()
	app.Get("/conflict", func(c *fiber.Ctx) error { return respondError(c, ErrAlreadySettling) })
	app.Get("/transient", func(c *fiber.Ctx) error {
		return respondError(c, Transient(errors.New("dial tcp: refused"), "database unavailable"))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/conflict", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, "already settling", body["error"])
	assert.Equal(t, "conflict", body["kind"])

	resp, err = app.Test(httptest.NewRequest("GET", "/transient", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get(fiber.HeaderRetryAfter))
	body = decodeBody(t, resp.Body)
	assert.Equal(t, "database unavailable", body["error"])
	assert.Equal(t, "dial tcp: refused", body["cause"])
}

func decodeBody(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(r).Decode(&out))
	return out
}
