package salesbot

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RemoteFile is one entry of a folder listing.
type RemoteFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
}

// FileLister enumerates the supported files of a remote folder.
type FileLister interface {
	ListFolder(ctx context.Context, folderID string) ([]RemoteFile, error)
}

// ContentDownloader retrieves the raw bytes of a remote file.
type ContentDownloader interface {
	DownloadBytes(ctx context.Context, fileID string) ([]byte, error)
}

// SheetReader reads native spreadsheet documents tab by tab.
type SheetReader interface {
	SheetTabs(ctx context.Context, spreadsheetID string) ([]string, error)
	SheetValues(ctx context.Context, spreadsheetID, tab string) ([][]string, error)
}

// RemoteStore is the full remote file-store contract the loader depends on.
type RemoteStore interface {
	FileLister
	ContentDownloader
	SheetReader
}

// Retry policy for remote calls. Delay before attempt k is
// min(5s, 1.5^k seconds); the last error is returned after exhaustion.
const (
	maxRetries        = 3
	retryBackoff      = 1.5
	retryDelayCap     = 5 * time.Second
	downloadChunkSize = 1 << 20
)

func retryDelay(attempt int) time.Duration {
	d := time.Second
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * retryBackoff)
		if d >= retryDelayCap {
			return retryDelayCap
		}
	}
	return d
}

// execWithRetries runs fn up to maxRetries times, sleeping between attempts
// and honoring context cancellation. sleep is injectable for tests.
func execWithRetries(ctx context.Context, sleep func(time.Duration), fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			sleep(retryDelay(attempt))
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

const (
	driveFilesURL   = "https://www.googleapis.com/drive/v3/files"
	sheetsBaseURL   = "https://sheets.googleapis.com/v4/spreadsheets"
	driveAuthScopes = "https://www.googleapis.com/auth/drive.readonly https://www.googleapis.com/auth/spreadsheets.readonly"
)

// tokenSource exchanges a service-account JWT assertion for a bearer token
// and caches it until shortly before expiry.
type tokenSource struct {
	account    *ServiceAccount
	httpClient *http.Client
	now        func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func newTokenSource(account *ServiceAccount, httpClient *http.Client) *tokenSource {
	return &tokenSource{account: account, httpClient: httpClient, now: time.Now}
}

func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.now().Add(time.Minute).Before(ts.expiry) {
		return ts.token, nil
	}

	assertion, err := ts.signAssertion()
	if err != nil {
		return "", fmt.Errorf("salesbot: sign token assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.account.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("salesbot: token exchange: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("salesbot: token exchange: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("salesbot: token exchange: %w", err)
	}

	ts.token = payload.AccessToken
	ts.expiry = ts.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return ts.token, nil
}

func (ts *tokenSource) signAssertion() (string, error) {
	now := ts.now()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	claims, err := json.Marshal(map[string]any{
		"iss":   ts.account.ClientEmail,
		"scope": driveAuthScopes,
		"aud":   ts.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	if err != nil {
		return "", err
	}
	signingInput := header + "." + base64.RawURLEncoding.EncodeToString(claims)

	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, ts.account.PrivateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// DriveClient talks to the Drive and Sheets REST APIs with retries. It
// implements RemoteStore.
type DriveClient struct {
	httpClient *http.Client
	tokens     *tokenSource
	logger     *zap.Logger

	// Overridable in tests.
	filesURL  string
	sheetsURL string
	sleep     func(time.Duration)
}

// NewDriveClient builds a read-only client authenticated as the given
// service account.
func NewDriveClient(account *ServiceAccount, logger *zap.Logger) *DriveClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: 60 * time.Second}
	return &DriveClient{
		httpClient: httpClient,
		tokens:     newTokenSource(account, httpClient),
		logger:     logger,
		filesURL:   driveFilesURL,
		sheetsURL:  sheetsBaseURL,
		sleep:      time.Sleep,
	}
}

func (c *DriveClient) getJSON(ctx context.Context, rawURL string, out any) error {
	return execWithRetries(ctx, c.sleep, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		if c.tokens != nil {
			token, err := c.tokens.Token(ctx)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

// ListFolder pages through the non-trashed children of the folder. Kind
// filtering happens in the loader, which knows the supported MIME and
// extension set; the query itself only scopes by parent.
func (c *DriveClient) ListFolder(ctx context.Context, folderID string) ([]RemoteFile, error) {
	var files []RemoteFile
	pageToken := ""
	for {
		q := url.Values{
			"q":        {fmt.Sprintf("'%s' in parents and trashed = false", folderID)},
			"fields":   {"nextPageToken, files(id, name, mimeType)"},
			"pageSize": {"100"},
		}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page struct {
			NextPageToken string       `json:"nextPageToken"`
			Files         []RemoteFile `json:"files"`
		}
		if err := c.getJSON(ctx, c.filesURL+"?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("salesbot: list folder %s: %w", folderID, err)
		}
		files = append(files, page.Files...)
		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

// DownloadBytes fetches a file's content in fixed-size ranged chunks,
// retrying each chunk independently, and returns the accumulated buffer.
func (c *DriveClient) DownloadBytes(ctx context.Context, fileID string) ([]byte, error) {
	var buf []byte
	offset := 0
	for {
		chunk, done, err := c.downloadChunk(ctx, fileID, offset)
		if err != nil {
			return nil, fmt.Errorf("salesbot: download %s at offset %d: %w", fileID, offset, err)
		}
		buf = append(buf, chunk...)
		offset += len(chunk)
		if done || len(chunk) == 0 {
			return buf, nil
		}
	}
}

func (c *DriveClient) downloadChunk(ctx context.Context, fileID string, offset int) (chunk []byte, done bool, err error) {
	err = execWithRetries(ctx, c.sleep, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/%s?alt=media", c.filesURL, url.PathEscape(fileID)), nil)
		if reqErr != nil {
			return reqErr
		}
		if c.tokens != nil {
			token, tokErr := c.tokens.Token(ctx)
			if tokErr != nil {
				return tokErr
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+downloadChunkSize-1))

		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return doErr
		}
		defer func() { _ = resp.Body.Close() }()

		switch resp.StatusCode {
		case http.StatusOK:
			// Server ignored the range and sent everything.
			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return readErr
			}
			chunk, done = body[min(offset, len(body)):], true
			return nil
		case http.StatusPartialContent:
			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return readErr
			}
			chunk = body
			done = len(body) < downloadChunkSize || rangeExhausted(resp.Header.Get("Content-Range"), offset+len(body))
			return nil
		case http.StatusRequestedRangeNotSatisfiable:
			chunk, done = nil, true
			return nil
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
	})
	return chunk, done, err
}

// rangeExhausted reports whether a Content-Range header like
// "bytes 0-1048575/2097152" shows the next offset reaching the total size.
func rangeExhausted(contentRange string, nextOffset int) bool {
	idx := strings.LastIndex(contentRange, "/")
	if idx < 0 {
		return false
	}
	total, err := strconv.Atoi(contentRange[idx+1:])
	if err != nil {
		return false
	}
	return nextOffset >= total
}

// SheetTabs returns the tab titles of a native spreadsheet in workbook order.
func (c *DriveClient) SheetTabs(ctx context.Context, spreadsheetID string) ([]string, error) {
	var payload struct {
		Sheets []struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	u := fmt.Sprintf("%s/%s?fields=sheets.properties.title", c.sheetsURL, url.PathEscape(spreadsheetID))
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("salesbot: list tabs of %s: %w", spreadsheetID, err)
	}
	tabs := make([]string, 0, len(payload.Sheets))
	for _, s := range payload.Sheets {
		tabs = append(tabs, s.Properties.Title)
	}
	return tabs, nil
}

// SheetValues returns the cell values of one tab as strings, rows in sheet
// order. Numeric cells are rendered without a trailing ".0".
func (c *DriveClient) SheetValues(ctx context.Context, spreadsheetID, tab string) ([][]string, error) {
	var payload struct {
		Values [][]any `json:"values"`
	}
	u := fmt.Sprintf("%s/%s/values/%s", c.sheetsURL, url.PathEscape(spreadsheetID), url.PathEscape("'"+tab+"'"))
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("salesbot: read tab %q of %s: %w", tab, spreadsheetID, err)
	}

	rows := make([][]string, len(payload.Values))
	for i, raw := range payload.Values {
		row := make([]string, len(raw))
		for j, cell := range raw {
			row[j] = renderCell(cell)
		}
		rows[i] = row
	}
	return rows, nil
}

func renderCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
