// internal/bridge/remote.go
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"panel-service/internal/domain/bundle"
	xerrors "panel-service/internal/pkg/errors"
)

// RemoteStore talks to the panel server's bundle endpoints so credential
// bundles follow the operator across machines.
type RemoteStore struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewRemoteStore(baseURL, sessionID string) *RemoteStore {
	return &RemoteStore{
		baseURL:   baseURL,
		sessionID: sessionID,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Upload posts the bundle as a multipart file under the field name "bundle".
func (r *RemoteStore) Upload(ctx context.Context, b *bundle.CredentialBundle) error {
	payload, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("bundle", bundle.FileName(b.Domain))
	if err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/sessions/upload", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Session-Id", r.sessionID)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bundle upload failed: status %d", resp.StatusCode)
	}
	return nil
}

// Download fetches the bundle for a domain. ErrNotFound when the server has
// no bundle for it.
func (r *RemoteStore) Download(ctx context.Context, domain string) (*bundle.CredentialBundle, error) {
	url := r.baseURL + "/sessions/download/" + bundle.FileName(domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Session-Id", r.sessionID)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, xerrors.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bundle download failed: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var b bundle.CredentialBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse downloaded bundle: %w", err)
	}
	return &b, nil
}
