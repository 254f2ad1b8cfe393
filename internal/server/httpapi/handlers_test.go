package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"github.com/dmitrijs2005/drmkeeper/internal/logging"
	"github.com/dmitrijs2005/drmkeeper/internal/server/auth"
	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
	"github.com/dmitrijs2005/drmkeeper/internal/server/services"
)

// -------- test fakes --------

type fakeKeys struct {
	key        *models.ContentKey
	protectErr error
	rotateErr  error
}

func (f *fakeKeys) ProtectUpload(ctx context.Context, uploadID string) (*models.ContentKey, error) {
	if f.protectErr != nil {
		return nil, f.protectErr
	}
	return f.key, nil
}

func (f *fakeKeys) Rotate(ctx context.Context, uploadID string) (*models.ContentKey, error) {
	if f.rotateErr != nil {
		return nil, f.rotateErr
	}
	return f.key, nil
}

type fakeIssuer struct {
	res *services.IssueResult
	err error
	got *services.IssueRequest
}

func (f *fakeIssuer) Issue(ctx context.Context, req *services.IssueRequest) (*services.IssueResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeHeartbeater struct {
	sess *models.Session
	err  error
}

func (f *fakeHeartbeater) Heartbeat(ctx context.Context, token string) (*models.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sess, nil
}

type fakeRevoker struct {
	res *services.RevocationResult
	err error
}

func (f *fakeRevoker) Revoke(ctx context.Context, uploadID string) (*services.RevocationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeSubscriber struct {
	ch chan models.RevocationEvent
}

func (f *fakeSubscriber) Subscribe(userID string) (<-chan models.RevocationEvent, func()) {
	return f.ch, func() {}
}

type fakeDevices struct {
	list      []*models.Device
	listErr   error
	removed   [][2]string
	removeErr error
}

func (f *fakeDevices) List(ctx context.Context, userID string) ([]*models.Device, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeDevices) Remove(ctx context.Context, userID, deviceID string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, [2]string{userID, deviceID})
	return nil
}

// -------- helpers --------

const testSecret = "test-secret"

type testDeps struct {
	keys    *fakeKeys
	issuer  *fakeIssuer
	beats   *fakeHeartbeater
	revoker *fakeRevoker
	events  *fakeSubscriber
	devices *fakeDevices
}

func newTestServer(t *testing.T, d *testDeps) *httptest.Server {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := NewHandler(d.keys, d.issuer, d.beats, d.revoker, d.events, d.devices, logger)
	srv := httptest.NewServer(NewRouter(h, []byte(testSecret)))
	t.Cleanup(srv.Close)
	return srv
}

func newDeps() *testDeps {
	return &testDeps{
		keys:    &fakeKeys{},
		issuer:  &fakeIssuer{},
		beats:   &fakeHeartbeater{},
		revoker: &fakeRevoker{},
		events:  &fakeSubscriber{ch: make(chan models.RevocationEvent, 1)},
		devices: &fakeDevices{},
	}
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	tok, err := auth.GenerateToken("alice", []byte(testSecret), time.Hour)
	require.NoError(t, err)

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// -------- tests --------

func TestProtectUpload_Created(t *testing.T) {
	d := newDeps()
	d.keys.key = &models.ContentKey{ID: "key-1", StorageKey: "protected/u1/abc", Active: true}
	srv := newTestServer(t, d)

	resp := doRequest(t, srv, http.MethodPost, "/api/uploads/u1/protect", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body protectResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "key-1", body.KeyID)
	assert.Equal(t, "protected/u1/abc", body.StorageKey)
}

func TestProtectUpload_Conflict(t *testing.T) {
	d := newDeps()
	d.keys.protectErr = common.ErrKeyAlreadyActive
	srv := newTestServer(t, d)

	resp := doRequest(t, srv, http.MethodPost, "/api/uploads/u1/protect", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRotate_ConflictWhileActive(t *testing.T) {
	d := newDeps()
	d.keys.rotateErr = common.ErrKeyAlreadyActive
	srv := newTestServer(t, d)

	resp := doRequest(t, srv, http.MethodPost, "/api/uploads/u1/rotate", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIssueLicense_OK(t *testing.T) {
	d := newDeps()
	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	d.issuer.res = &services.IssueResult{
		LicenseID:        "lic-1",
		SessionToken:     "tok",
		DeviceWrappedKey: "d2s=",
		ExpiresAt:        expires,
	}
	srv := newTestServer(t, d)

	body := `{"upload_id":"u1","device_id":"dev-1","device_public_key":"pem","profile":"generic"}`
	resp := doRequest(t, srv, http.MethodPost, "/api/licenses", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got issueResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "lic-1", got.LicenseID)
	assert.Equal(t, "tok", got.SessionToken)
	assert.Equal(t, "d2s=", got.DeviceWrappedKey)
	assert.True(t, got.ExpiresAt.Equal(expires))

	// user comes from the token, not the body
	require.NotNil(t, d.issuer.got)
	assert.Equal(t, "alice", d.issuer.got.UserID)
	assert.Equal(t, "u1", d.issuer.got.UploadID)
}

func TestIssueLicense_BadProfile(t *testing.T) {
	d := newDeps()
	srv := newTestServer(t, d)

	body := `{"upload_id":"u1","device_id":"dev-1","device_public_key":"pem","profile":"quantum"}`
	resp := doRequest(t, srv, http.MethodPost, "/api/licenses", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIssueLicense_MissingFields(t *testing.T) {
	d := newDeps()
	srv := newTestServer(t, d)

	resp := doRequest(t, srv, http.MethodPost, "/api/licenses", `{"upload_id":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIssueLicense_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"access denied", common.ErrAccessDenied, http.StatusForbidden},
		{"device limit", common.ErrDeviceLimitExceeded, http.StatusConflict},
		{"no active key", common.ErrKeyNotFound, http.StatusNotFound},
		{"bad device key", common.ErrInvalidPublicKey, http.StatusBadRequest},
		{"internal", common.ErrorInternal, http.StatusInternalServerError},
	}

	body := `{"upload_id":"u1","device_id":"dev-1","device_public_key":"pem","profile":"generic"}`
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()
			d.issuer.err = tt.err
			srv := newTestServer(t, d)

			resp := doRequest(t, srv, http.MethodPost, "/api/licenses", body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHeartbeat_NoContent(t *testing.T) {
	d := newDeps()
	d.beats.sess = &models.Session{ID: "sess-1", Active: true}
	srv := newTestServer(t, d)

	resp := doRequest(t, srv, http.MethodPost, "/api/sessions/heartbeat", `{"session_token":"tok"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHeartbeat_RevokedIsGone(t *testing.T) {
	d := newDeps()
	d.beats.err = common.ErrLicenseRevoked
	srv := newTestServer(t, d)

	resp := doRequest(t, srv, http.MethodPost, "/api/sessions/heartbeat", `{"session_token":"tok"}`)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestHeartbeat_UnknownToken(t *testing.T) {
	d := newDeps()
	d.beats.err = common.ErrSessionNotFound
	srv := newTestServer(t, d)

	resp := doRequest(t, srv, http.MethodPost, "/api/sessions/heartbeat", `{"session_token":"gone"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHeartbeat_MalformedBody(t *testing.T) {
	d := newDeps()
	srv := newTestServer(t, d)

	resp := doRequest(t, srv, http.MethodPost, "/api/sessions/heartbeat", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRevoke_ReturnsCounts(t *testing.T) {
	d := newDeps()
	d.revoker.res = &services.RevocationResult{LicensesRevoked: 3, SessionsDeactivated: 2}
	srv := newTestServer(t, d)

	resp := doRequest(t, srv, http.MethodPost, "/api/uploads/u1/revoke", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body revokeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 3, body.LicensesRevoked)
	assert.Equal(t, 2, body.SessionsDeactivated)
}

func TestListDevices_OK(t *testing.T) {
	d := newDeps()
	now := time.Now().UTC().Truncate(time.Second)
	d.devices.list = []*models.Device{
		{UserID: "alice", DeviceID: "dev-1", RegisteredAt: now.Add(-time.Hour), LastSeen: now},
		{UserID: "alice", DeviceID: "dev-2", RegisteredAt: now, LastSeen: now},
	}
	srv := newTestServer(t, d)

	resp := doRequest(t, srv, http.MethodGet, "/api/devices", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body []deviceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 2)
	assert.Equal(t, "dev-1", body[0].DeviceID)
}

func TestRemoveDevice_NoContent(t *testing.T) {
	d := newDeps()
	srv := newTestServer(t, d)

	resp := doRequest(t, srv, http.MethodDelete, "/api/devices/dev-1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Len(t, d.devices.removed, 1)
	assert.Equal(t, [2]string{"alice", "dev-1"}, d.devices.removed[0])
}

func TestRemoveDevice_NotFound(t *testing.T) {
	d := newDeps()
	d.devices.removeErr = common.ErrorNotFound
	srv := newTestServer(t, d)

	resp := doRequest(t, srv, http.MethodDelete, "/api/devices/unknown", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEvents_StreamsRevocation(t *testing.T) {
	d := newDeps()
	d.events.ch <- models.RevocationEvent{Action: models.ActionRevoked, UploadID: "u1", SessionToken: "tok"}
	srv := newTestServer(t, d)

	tok, err := auth.GenerateToken("alice", []byte(testSecret), time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var eventLine, dataLine string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, "event: ") {
			eventLine = line
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = line
			break
		}
	}

	assert.Equal(t, "event: "+models.ActionRevoked, eventLine)

	var event models.RevocationEvent
	require.NoError(t, json.Unmarshal(bytes.TrimPrefix([]byte(dataLine), []byte("data: ")), &event))
	assert.Equal(t, "u1", event.UploadID)
	assert.Equal(t, "tok", event.SessionToken)
}
