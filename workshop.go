package steamcmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/sirupsen/logrus"
)

// Steam Web API endpoints for workshop metadata
// https://steamapi.xpaw.me/#ISteamRemoteStorage
const (
	// DefaultCollectionDetailsURL resolves collection IDs to member file IDs
	DefaultCollectionDetailsURL = "https://api.steampowered.com/ISteamRemoteStorage/GetCollectionDetails/v1/"

	// DefaultFileDetailsURL resolves file IDs to name/size/mtime/URL
	DefaultFileDetailsURL = "https://api.steampowered.com/ISteamRemoteStorage/GetPublishedFileDetails/v1/"

	// DefaultWorkshopRetries is the number of attempts per API call
	DefaultWorkshopRetries = 5

	// DefaultWorkshopRetryDelay is the fixed pause between API attempts
	DefaultWorkshopRetryDelay = 5 * time.Second
)

// WorkshopFile is the subset of published-file metadata needed to decide
// whether a local copy is current
type WorkshopFile struct {
	// Name is the remote file name; only its extension is kept locally
	Name string
	// Size is the remote file size in bytes
	Size int64
	// Updated is the remote last-update time
	Updated time.Time
	// URL is the direct download URL
	URL string
}

// WorkshopClient fetches workshop collection metadata and content from the
// Steam Web API
type WorkshopClient struct {
	// HTTPClient performs all requests
	HTTPClient *http.Client
	// CollectionDetailsURL is the collection lookup endpoint
	CollectionDetailsURL string
	// FileDetailsURL is the file metadata endpoint
	FileDetailsURL string
	// Retries is the number of attempts per API call
	Retries int
	// RetryDelay is the fixed pause between attempts
	RetryDelay time.Duration
	// Log receives sync progress
	Log *logrus.Logger
}

// NewWorkshopClient creates a WorkshopClient with default settings
func NewWorkshopClient() *WorkshopClient {
	return &WorkshopClient{
		HTTPClient:           &http.Client{Timeout: time.Minute},
		CollectionDetailsURL: DefaultCollectionDetailsURL,
		FileDetailsURL:       DefaultFileDetailsURL,
		Retries:              DefaultWorkshopRetries,
		RetryDelay:           DefaultWorkshopRetryDelay,
		Log:                  discardLogger(),
	}
}

// WithWorkshopLogger sets the logger sync progress is reported to
func (c *WorkshopClient) WithWorkshopLogger(log *logrus.Logger) *WorkshopClient {
	if log != nil {
		c.Log = log
	}
	return c
}

// postForm POSTs values to endpoint with bounded fixed-delay retries and
// returns the response body. Non-200 responses count as attempts.
func (c *WorkshopClient) postForm(ctx context.Context, endpoint string, values url.Values) ([]byte, error) {
	var lastStatus int
	var lastBody []byte

	for attempt := 0; attempt < c.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.RetryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastStatus = 0
			lastBody = []byte(err.Error())
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastStatus = resp.StatusCode
			lastBody = []byte(err.Error())
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}
		lastStatus = resp.StatusCode
		lastBody = body
	}

	return nil, fmt.Errorf("after %d attempts against %s: status %d, body %q",
		c.Retries, endpoint, lastStatus, truncate(lastBody, 200))
}

// CollectionFileIDs resolves collection IDs to a de-duplicated, order-
// preserving list of member file IDs
func (c *WorkshopClient) CollectionFileIDs(ctx context.Context, collectionIDs []string) ([]string, error) {
	values := url.Values{}
	values.Set("collectioncount", strconv.Itoa(len(collectionIDs)))
	for n, id := range collectionIDs {
		values.Set(fmt.Sprintf("publishedfileids[%d]", n), id)
	}

	body, err := c.postForm(ctx, c.CollectionDetailsURL, values)
	if err != nil {
		return nil, &OpError{Op: OpWorkshop, Path: c.CollectionDetailsURL, Err: err}
	}

	var decoded struct {
		Response struct {
			CollectionDetails []struct {
				Children []struct {
					PublishedFileID string `json:"publishedfileid"`
				} `json:"children"`
			} `json:"collectiondetails"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &OpError{Op: OpWorkshop, Path: c.CollectionDetailsURL, Err: err}
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, detail := range decoded.Response.CollectionDetails {
		for _, child := range detail.Children {
			if _, ok := seen[child.PublishedFileID]; ok {
				continue
			}
			seen[child.PublishedFileID] = struct{}{}
			ids = append(ids, child.PublishedFileID)
		}
	}

	return ids, nil
}

// FileDetails resolves file IDs to their workshop metadata, keyed by file ID
func (c *WorkshopClient) FileDetails(ctx context.Context, fileIDs []string) (map[string]WorkshopFile, error) {
	values := url.Values{}
	values.Set("itemcount", strconv.Itoa(len(fileIDs)))
	for n, id := range fileIDs {
		values.Set(fmt.Sprintf("publishedfileids[%d]", n), id)
	}

	body, err := c.postForm(ctx, c.FileDetailsURL, values)
	if err != nil {
		return nil, &OpError{Op: OpWorkshop, Path: c.FileDetailsURL, Err: err}
	}

	var decoded struct {
		Response struct {
			PublishedFileDetails []struct {
				PublishedFileID string `json:"publishedfileid"`
				Filename        string `json:"filename"`
				FileSize        int64  `json:"file_size"`
				TimeUpdated     int64  `json:"time_updated"`
				FileURL         string `json:"file_url"`
			} `json:"publishedfiledetails"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &OpError{Op: OpWorkshop, Path: c.FileDetailsURL, Err: err}
	}

	result := make(map[string]WorkshopFile, len(decoded.Response.PublishedFileDetails))
	for _, detail := range decoded.Response.PublishedFileDetails {
		if _, ok := result[detail.PublishedFileID]; ok {
			continue
		}
		result[detail.PublishedFileID] = WorkshopFile{
			Name:    detail.Filename,
			Size:    detail.FileSize,
			Updated: time.Unix(detail.TimeUpdated, 0),
			URL:     detail.FileURL,
		}
	}

	return result, nil
}

// SyncCollections downloads the content of the given collections into dir.
// Files whose local copy matches the remote size, or is newer than the
// remote update time, are skipped. Per-file failures are collected so one
// broken download doesn't abort the rest of the sync.
func (c *WorkshopClient) SyncCollections(ctx context.Context, collectionIDs []string, dir string) error {
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return &OpError{Op: OpWorkshop, Path: dir, Err: err}
	}

	ids, err := c.CollectionFileIDs(ctx, collectionIDs)
	if err != nil {
		return err
	}
	c.Log.WithField("files", len(ids)).Debug("resolved collection members")

	details, err := c.FileDetails(ctx, ids)
	if err != nil {
		return err
	}

	merr := &MultiError{}
	for _, id := range ids {
		detail, ok := details[id]
		if !ok {
			continue
		}

		target := filepath.Join(dir, id+filepath.Ext(detail.Name))
		if info, err := os.Stat(target); err == nil {
			if info.Size() == detail.Size || info.ModTime().After(detail.Updated) {
				c.Log.WithField("file", detail.Name).Info("already current, skipping")
				continue
			}
		}

		c.Log.WithField("file", detail.Name).Info("downloading")
		if err := c.downloadFile(ctx, detail.URL, target); err != nil {
			merr.Add(&OpError{Op: OpWorkshop, Path: target, Err: err})
		}
	}

	return merr.Err()
}

// downloadFile streams url into path, replacing it atomically on success
func (c *WorkshopClient) downloadFile(ctx context.Context, fileURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status %d", resp.StatusCode)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(FileMode))
	if err != nil {
		return err
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := io.Copy(pending, resp.Body); err != nil {
		return err
	}

	return pending.CloseAtomicallyReplace()
}

// truncate clips b for inclusion in error messages
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
