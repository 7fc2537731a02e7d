package bundle

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"panel-service/internal/repository/filestore"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newBundleRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := filestore.NewBundleStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	h := NewBundleHandler(store, zap.NewNop())

	r := gin.New()
	r.POST("/sessions/upload", h.Upload)
	r.GET("/sessions/download/:domainFile", h.Download)
	return r
}

func uploadBundle(t *testing.T, r *gin.Engine, field, fileName string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, fileName)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/sessions/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	r := newBundleRouter(t)

	payload := []byte(`{"domain":"example.com","cookies":[{"name":"auth","value":"1","domain":"example.com"}]}`)
	w := uploadBundle(t, r, "bundle", "example.com.json", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status: got %d, body %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/download/example.com.json", nil)
	got := httptest.NewRecorder()
	r.ServeHTTP(got, req)
	if got.Code != http.StatusOK {
		t.Fatalf("download status: got %d", got.Code)
	}
	if !bytes.Equal(got.Body.Bytes(), payload) {
		t.Fatalf("downloaded bytes differ: %s", got.Body.String())
	}
	if ct := got.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type: %s", ct)
	}
}

func TestUploadRejections(t *testing.T) {
	r := newBundleRouter(t)

	// Wrong multipart field name.
	w := uploadBundle(t, r, "file", "example.com.json", []byte(`{}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("wrong field: got %d, want 400", w.Code)
	}

	// Payload that does not parse as a bundle.
	w = uploadBundle(t, r, "bundle", "example.com.json", []byte("not json"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("garbage payload: got %d, want 400", w.Code)
	}
}

func TestDownloadMissingBundle(t *testing.T) {
	r := newBundleRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions/download/missing.com.json", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing bundle: got %d, want 404", w.Code)
	}
}
