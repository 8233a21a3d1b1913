package httporacle

import (
	"context"
	"image"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/illustag/pkg/oracle"
)

const endpoint = "http://oracle.test/estimate"

func setupMock(t *testing.T) *Client {
	t.Helper()

	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	client, err := NewClient("http://oracle.test/", 0)
	require.NoError(t, err)
	return client
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func TestClient_Estimate(t *testing.T) {
	client := setupMock(t)

	httpmock.RegisterResponder(http.MethodPost, endpoint,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "top", req.URL.Query().Get("strategy"))
			assert.Equal(t, "image/png", req.Header.Get("Content-Type"))
			return httpmock.NewStringResponse(http.StatusOK,
				`{"general": [["1girl", 0.97], ["solo", 0.88]], "rating": [["safe", 0.99]]}`), nil
		})

	res, err := client.Estimate(context.Background(), testImage(), oracle.StrategyTop)
	require.NoError(t, err)
	require.Len(t, res["general"], 2)
	assert.Equal(t, "1girl", res["general"][0].Tag)
	assert.InDelta(t, 0.99, res["rating"][0].Confidence, 1e-9)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestClient_EstimateErrors(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"server error", httpmock.NewStringResponder(http.StatusInternalServerError, "out of memory")},
		{"malformed body", httpmock.NewStringResponder(http.StatusOK, `{"general": "solo"}`)},
		{"not json", httpmock.NewStringResponder(http.StatusOK, `<html>`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupMock(t)
			httpmock.RegisterResponder(http.MethodPost, endpoint, tt.responder)

			res, err := client.Estimate(context.Background(), testImage(), oracle.StrategyPlausible)
			assert.Error(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestClient_RejectsUnknownStrategy(t *testing.T) {
	client := setupMock(t)

	_, err := client.Estimate(context.Background(), testImage(), oracle.Strategy("all"))
	assert.ErrorIs(t, err, oracle.ErrUnknownStrategy)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("ftp://oracle.test", 0)
	assert.Error(t, err)
}
