package handlers

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/merchantiq/catalog-service/internal/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridFromRequestCSV(t *testing.T) {
	csv := "Code EAN;Désignation;PAU HT\n3401579812345;Stylo bille;1,25\n"
	req := &StartImportRequest{
		SupplierID: "sup_1",
		UserID:     "usr_1",
		Filename:   "catalogue.csv",
		FileBase64: base64.StdEncoding.EncodeToString([]byte(csv)),
	}

	grid, raw, format, err := gridFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "csv", format)
	assert.NotNil(t, raw)
	assert.Equal(t, []string{"Code EAN", "Désignation", "PAU HT"}, grid.Headers)
	assert.Equal(t, 1, grid.RowCount())
}

func TestGridFromRequestPreParsed(t *testing.T) {
	req := &StartImportRequest{
		Headers: []string{"EAN", "Name"},
		Rows:    [][]string{{"4006381333931", "Pen"}},
	}

	grid, raw, format, err := gridFromRequest(req)
	require.NoError(t, err)
	assert.Nil(t, raw)
	assert.Empty(t, format)
	assert.Equal(t, 1, grid.RowCount())
}

func TestGridFromRequestRejectsEmpty(t *testing.T) {
	_, _, _, err := gridFromRequest(&StartImportRequest{})
	assert.Error(t, err)
}

func TestGridFromRequestRejectsBadBase64(t *testing.T) {
	_, _, _, err := gridFromRequest(&StartImportRequest{FileBase64: "not base64!!"})
	assert.Error(t, err)
}

func TestResolveMappingExplicitWins(t *testing.T) {
	req := &StartImportRequest{
		Mapping: map[string]int{"ean": 2, "product_name": 0},
	}

	m, err := resolveMapping(req, []string{"unrelated", "headers", "here"})
	require.NoError(t, err)

	col, ok := m.Column(mapping.FieldEAN)
	require.True(t, ok)
	assert.Equal(t, 2, col)
}

func TestResolveMappingAutoDetects(t *testing.T) {
	req := &StartImportRequest{}

	m, err := resolveMapping(req, []string{"Code EAN", "Désignation", "PAU HT"})
	require.NoError(t, err)
	assert.True(t, m.HasIdentifier())
}

func TestResolveMappingRejectsUnusableFile(t *testing.T) {
	req := &StartImportRequest{}

	_, err := resolveMapping(req, []string{"Couleur", "Poids"})
	assert.Error(t, err)
}

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=3&limit=10", nil)

	page, limit, offset := parsePagination(c, 50)
	assert.Equal(t, 3, page)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 20, offset)
}

func TestParsePaginationDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=0&limit=-5", nil)

	page, limit, offset := parsePagination(c, 50)
	assert.Equal(t, 1, page)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)
}

func TestHealthCheckWithoutDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
}
