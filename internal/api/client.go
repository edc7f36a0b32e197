package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"carlot/internal/models"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "CARLOT_HTTP_TIMEOUT"
	defaultFileField   = "uploaded_files"
)

// Client is a simple HTTP client for the carlot API.
type Client struct {
	baseURL string
	http    *http.Client
	// stream has no overall timeout; uploads and downloads are bounded by ctx.
	stream *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
		stream:  &http.Client{},
	}
}

// UploadFile is one file sent in a multipart upload.
type UploadFile struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// OpenUploadFile opens path and guesses its content type from the extension.
func OpenUploadFile(path string) (UploadFile, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadFile{}, nil, err
	}
	name := filepath.Base(path)
	return UploadFile{
		Filename:    name,
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
		Body:        f,
	}, f, nil
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) UploadVehicle(ctx context.Context, fields map[string]string, files []UploadFile) (UploadResponse, error) {
	var resp UploadResponse
	err := c.upload(ctx, http.MethodPost, "/vehicles/upload", fields, files, &resp)
	return resp, err
}

func (c *Client) UploadAssets(ctx context.Context, name string, files []UploadFile) (UploadResponse, error) {
	var resp UploadResponse
	err := c.upload(ctx, http.MethodPost, "/assets/upload", map[string]string{"name": name}, files, &resp)
	return resp, err
}

// ReplaceVehiclePics keeps retained, appends files, and applies fields.
func (c *Client) ReplaceVehiclePics(ctx context.Context, id string, retained []string, fields map[string]string, files []UploadFile) (models.Vehicle, error) {
	var resp models.Vehicle
	if retained == nil {
		retained = []string{}
	}
	encoded, err := json.Marshal(retained)
	if err != nil {
		return resp, err
	}
	form := map[string]string{"pic_ids": string(encoded)}
	for k, v := range fields {
		form[k] = v
	}
	err = c.upload(ctx, http.MethodPatch, "/vehicles/"+url.PathEscape(id), form, files, &resp)
	return resp, err
}

func (c *Client) AttachVehiclePics(ctx context.Context, id string, files []UploadFile) (models.Vehicle, error) {
	var resp models.Vehicle
	err := c.upload(ctx, http.MethodPost, "/vehicles/"+url.PathEscape(id)+"/pics", nil, files, &resp)
	return resp, err
}

func (c *Client) GetVehicle(ctx context.Context, id string) (models.Vehicle, error) {
	var resp models.Vehicle
	err := c.do(ctx, http.MethodGet, "/vehicles/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) ListVehicles(ctx context.Context, limit, offset int) ([]models.Vehicle, error) {
	var resp []models.Vehicle
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	err := c.do(ctx, http.MethodGet, "/vehicles", query, nil, &resp)
	return resp, err
}

func (c *Client) DeleteVehicle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/vehicles/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) DetachVehiclePic(ctx context.Context, objectID, vehicleID string) (DetachVehicleResponse, error) {
	var resp DetachVehicleResponse
	err := c.do(ctx, http.MethodDelete, "/vehicles/pics/"+url.PathEscape(objectID), nil, DetachVehicleRequest{VehicleID: vehicleID}, &resp)
	return resp, err
}

func (c *Client) DetachAssetPic(ctx context.Context, objectID, assetID string) (DetachAssetResponse, error) {
	var resp DetachAssetResponse
	err := c.do(ctx, http.MethodDelete, "/assets/pics/"+url.PathEscape(objectID), nil, DetachAssetRequest{AssetID: assetID}, &resp)
	return resp, err
}

func (c *Client) ListAssetGroups(ctx context.Context, limit, offset int) ([]models.AssetGroup, error) {
	var resp []models.AssetGroup
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	err := c.do(ctx, http.MethodGet, "/assets", query, nil, &resp)
	return resp, err
}

func (c *Client) GetAssetGroup(ctx context.Context, id string) (models.AssetGroup, error) {
	var resp models.AssetGroup
	err := c.do(ctx, http.MethodGet, "/assets/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) AttachAssetPics(ctx context.Context, id string, files []UploadFile) (models.AssetGroup, error) {
	var resp models.AssetGroup
	err := c.upload(ctx, http.MethodPost, "/assets/"+url.PathEscape(id)+"/pics", nil, files, &resp)
	return resp, err
}

func (c *Client) DeleteAssetGroup(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/assets/"+url.PathEscape(id), nil, nil, nil)
}

// Fetch streams the object's bytes to w and returns the number written.
func (c *Client) Fetch(ctx context.Context, objectID string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/objects/"+url.PathEscape(objectID), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}

func (c *Client) Reconcile(ctx context.Context, apply bool) (ReconcileResponse, error) {
	var resp ReconcileResponse
	query := url.Values{}
	if apply {
		query.Set("apply", "true")
	}
	err := c.do(ctx, http.MethodPost, "/admin/reconcile", query, nil, &resp)
	return resp, err
}

// upload streams a multipart body; fields are written before files.
func (c *Client) upload(ctx context.Context, method, path string, fields map[string]string, files []UploadFile, out any) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, fields, files))
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, pr)
	if err != nil {
		_ = pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Unblock the writer if the server answered before reading everything.
	_ = pr.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func writeMultipart(mw *multipart.Writer, fields map[string]string, files []UploadFile) error {
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, defaultFileField, file.Filename))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, file.Body); err != nil {
			return err
		}
	}
	return mw.Close()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Reason = errResp.Reason
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("api error: %s", resp.Status)
	return apiErr
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
