package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-service/internal/storage"
)

type fakePresigner struct {
	err error
}

func (p fakePresigner) PresignPut(_ context.Context, key, _ string, _ int64, _ time.Duration) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "https://s3.example.com/bucket/" + key + "?X-Amz-Signature=abc", nil
}

func presign(t *testing.T, uploader *storage.Uploader, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/uploads/presign", NewUploadHandler(uploader, nil).Presign)

	req := httptest.NewRequest(http.MethodPost, "/uploads/presign", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPresignUpload(t *testing.T) {
	uploader := storage.NewUploader(fakePresigner{}, "https://cdn.example.com", 0, 0)

	rec := presign(t, uploader, `{"fileName":"cat.png","fileType":"image/png","fileSize":1024}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[storage.PresignedUpload](t, rec)
	assert.True(t, strings.HasPrefix(out.Key, storage.KeyPrefix+"/"))
	assert.True(t, strings.HasSuffix(out.Key, ".png"))
	assert.Equal(t, "https://cdn.example.com/"+out.Key, out.PublicURL)
	assert.Contains(t, out.UploadURL, out.Key)
	assert.Equal(t, "image", string(out.Kind))
}

func TestPresignUploadRejections(t *testing.T) {
	uploader := storage.NewUploader(fakePresigner{}, "https://cdn.example.com", 0, 0)

	assert.Equal(t, http.StatusBadRequest, presign(t, uploader, `{"fileName":"a.exe","fileType":"application/x-msdownload","fileSize":10}`).Code)
	assert.Equal(t, http.StatusBadRequest, presign(t, uploader, `{"fileName":"big.mp4","fileType":"video/mp4","fileSize":209715200}`).Code)
	assert.Equal(t, http.StatusBadRequest, presign(t, uploader, `{"fileName":"a.png"}`).Code)
}

func TestPresignUploadDisabledAndUpstreamFailure(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable,
		presign(t, storage.NewUploader(nil, "", 0, 0), `{"fileName":"a.png","fileType":"image/png","fileSize":1}`).Code)

	failing := storage.NewUploader(fakePresigner{err: errors.New("SignatureDoesNotMatch: secret key abc")}, "https://cdn.example.com", 0, 0)
	rec := presign(t, failing, `{"fileName":"a.png","fileType":"image/png","fileSize":1}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"upstream failure"}`, rec.Body.String())
}
