package trafficportal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trafficportal/linkshortener/apierror"
	"github.com/trafficportal/linkshortener/httpclient"
	"github.com/trafficportal/linkshortener/models"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	os.Exit(m.Run())
}

const recordJSON = `{
	"message": "Record created",
	"success": true,
	"source": {
		"mid": "314",
		"uid": "7",
		"tpKey": "launch",
		"domain": "trfc.link",
		"destination": "https://example.com/launch",
		"status": "active",
		"type": "redirect",
		"is_set": "0",
		"created_at": "2025-03-01 10:00:00",
		"usage": {"total": "12", "unique": "9", "qr": "2", "regular": "10"}
	}
}`

func jsonHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h
}

func TestCreateMaskedRecord(t *testing.T) {
	mock := httpclient.NewMock().Queue(http.StatusCreated, []byte(recordJSON), jsonHeaders())
	client := NewClient(Config{BaseURL: "https://tp.test/api/", APIKey: "tp-key"}, mock)

	resp, err := client.CreateMaskedRecord(context.Background(), models.NewCreateMapRequest(7, "launch", "trfc.link", "https://example.com/launch"))
	require.NoError(t, err)
	require.NotNil(t, resp.Source)
	assert.Equal(t, int64(314), resp.Source.MID.Int64())
	assert.Equal(t, models.FlexInt(12), resp.Source.Usage.Total)

	call, _ := mock.LastCall()
	assert.Equal(t, http.MethodPost, call.Method)
	assert.Equal(t, "https://tp.test/api/items", call.URL)
	assert.Equal(t, "tp-key", call.Options.Headers["X-API-Key"])

	var sent map[string]any
	require.NoError(t, json.Unmarshal(call.Options.Body, &sent))
	assert.Equal(t, "launch", sent["tpKey"])
	assert.Equal(t, "active", sent["status"])
	assert.Equal(t, "redirect", sent["type"])
	assert.Equal(t, float64(7), sent["uid"])
}

func TestCreateMaskedRecord_Validation(t *testing.T) {
	mock := httpclient.NewMock()
	client := NewClient(Config{BaseURL: "https://tp.test"}, mock)

	_, err := client.CreateMaskedRecord(context.Background(), models.NewCreateMapRequest(7, "bad key!", "trfc.link", "https://example.com"))
	assert.ErrorIs(t, err, apierror.ErrValidation)
	assert.Empty(t, mock.Calls())
}

func TestCreateMaskedRecord_ErrorKindPerStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   error
	}{
		{http.StatusBadRequest, apierror.ErrValidation},
		{http.StatusUnauthorized, apierror.ErrAuthentication},
		{http.StatusForbidden, apierror.ErrAuthentication},
		{http.StatusConflict, apierror.ErrConflict},
		{http.StatusTooManyRequests, apierror.ErrRateLimit},
		{http.StatusInternalServerError, apierror.ErrServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			mock := httpclient.NewMock().Queue(tt.status, []byte(`{"success":false,"message":"rejected"}`), jsonHeaders())
			client := NewClient(Config{BaseURL: "https://tp.test"}, mock)

			_, err := client.CreateMaskedRecord(context.Background(), models.NewCreateMapRequest(1, "k", "trfc.link", "https://example.com"))
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, apierror.ErrAPI)
		})
	}
}

func TestCreateMaskedRecord_MissingSource(t *testing.T) {
	mock := httpclient.NewMock().Queue(http.StatusOK, []byte(`{"success":true,"message":"ok"}`), jsonHeaders())
	client := NewClient(Config{BaseURL: "https://tp.test"}, mock)

	_, err := client.CreateMaskedRecord(context.Background(), models.NewCreateMapRequest(1, "k", "trfc.link", "https://example.com"))
	assert.ErrorIs(t, err, apierror.ErrAPI)
	assert.Contains(t, err.Error(), "did not include a record")
}

func TestUpdateMaskedRecord(t *testing.T) {
	mock := httpclient.NewMock().Queue(http.StatusOK, []byte(recordJSON), jsonHeaders())
	client := NewClient(Config{BaseURL: "https://tp.test"}, mock)

	record := models.MaskedRecord{MID: 314, UID: 7, TPKey: "launch", Domain: "trfc.link", Destination: "https://example.com/old", Status: "active", Type: "redirect"}
	update := models.UpdateFromRecord(record)
	update.Destination = "https://example.com/launch"

	resp, err := client.UpdateMaskedRecord(context.Background(), update)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/launch", resp.Source.Destination)

	call, _ := mock.LastCall()
	assert.Equal(t, http.MethodPut, call.Method)
	assert.Equal(t, "https://tp.test/items/314", call.URL)
}

func TestUpdateMaskedRecord_RequiresMID(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://tp.test"}, httpclient.NewMock())

	update := models.UpdateFromRecord(models.MaskedRecord{TPKey: "k", Domain: "trfc.link", Destination: "https://example.com", Status: "active", Type: "redirect"})
	_, err := client.UpdateMaskedRecord(context.Background(), update)
	assert.ErrorIs(t, err, apierror.ErrValidation)
}

func TestSearch(t *testing.T) {
	body := `{
		"message": "ok",
		"success": true,
		"source": {
			"records": [
				{"mid": 1, "tpKey": "a", "domain": "trfc.link", "destination": "https://a.example"},
				{"mid": "2", "tpKey": "b", "domain": "trfc.link", "destination": "https://b.example"}
			],
			"total": "2",
			"page": 1,
			"page_size": 20
		}
	}`
	mock := httpclient.NewMock().Queue(http.StatusOK, []byte(body), jsonHeaders())
	client := NewClient(Config{BaseURL: "https://tp.test"}, mock)

	resp, err := client.Search(context.Background(), models.SearchRequest{UID: 7, Domain: "trfc.link", Query: "example"})
	require.NoError(t, err)
	require.Len(t, resp.Source.Records, 2)
	assert.Equal(t, int64(2), resp.Source.Records[1].MID.Int64())
	assert.Equal(t, models.FlexInt(2), resp.Source.Total)

	call, _ := mock.LastCall()
	assert.Equal(t, http.MethodGet, call.Method)
	assert.Equal(t, "https://tp.test/items?domain=trfc.link&page=1&page_size=20&q=example&uid=7", call.URL)
	assert.Nil(t, call.Options.Body)
}

func TestLookupAndKeyAvailable(t *testing.T) {
	mock := httpclient.NewMock().
		Queue(http.StatusOK, []byte(recordJSON), jsonHeaders()).
		Queue(http.StatusNotFound, []byte(`{"success":false,"message":"no such key"}`), jsonHeaders()).
		Queue(http.StatusOK, []byte(recordJSON), jsonHeaders()).
		Queue(http.StatusBadGateway, nil, nil)
	client := NewClient(Config{BaseURL: "https://tp.test"}, mock)
	ctx := context.Background()

	record, err := client.Lookup(ctx, "trfc.link", "launch")
	require.NoError(t, err)
	assert.Equal(t, "launch", record.TPKey)

	call, _ := mock.LastCall()
	assert.Equal(t, "https://tp.test/items/lookup?domain=trfc.link&tpKey=launch", call.URL)

	free, err := client.KeyAvailable(ctx, "trfc.link", "fresh")
	require.NoError(t, err)
	assert.True(t, free)

	free, err = client.KeyAvailable(ctx, "trfc.link", "launch")
	require.NoError(t, err)
	assert.False(t, free)

	_, err = client.KeyAvailable(ctx, "trfc.link", "whatever")
	assert.ErrorIs(t, err, apierror.ErrServer)

	_, err = client.Lookup(ctx, "", "launch")
	assert.ErrorIs(t, err, apierror.ErrValidation)
}

func TestNetworkFailure(t *testing.T) {
	cause := errors.New("no route to host")
	client := NewClient(Config{BaseURL: "https://tp.test"}, httpclient.NewMock().QueueError(cause))

	_, err := client.Search(context.Background(), models.SearchRequest{UID: 1})
	assert.ErrorIs(t, err, apierror.ErrNetwork)
	assert.ErrorIs(t, err, cause)
}

func TestOversizedResponse(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://tp.test"}, httpclient.NewMock().QueueError(httpclient.ErrResponseTooLarge))

	_, err := client.Search(context.Background(), models.SearchRequest{UID: 1})
	assert.ErrorIs(t, err, apierror.ErrAPI)
	assert.ErrorIs(t, err, httpclient.ErrResponseTooLarge)
	assert.False(t, errors.Is(err, apierror.ErrNetwork))
}
