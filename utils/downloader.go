package utils

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/logger"
)

const maxInlineImageBytes = 5 << 20

var imageClient = &http.Client{Timeout: 30 * time.Second}

// InlineImages downloads remote images and returns a map of
// Original URL -> data URI. Images that fail to download are left out so
// callers keep the original URL.
func InlineImages(ctx context.Context, urls []string) map[string]string {
	urlToData := make(map[string]string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Limit concurrency
	semaphore := make(chan struct{}, 5)

	seen := make(map[string]bool)
	for _, url := range urls {
		if url == "" || seen[url] || !strings.HasPrefix(url, "http") {
			continue
		}
		seen[url] = true
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			dataURI, err := download(ctx, url)
			if err != nil {
				logger.Warn("Failed to inline image", zap.String("url", url), zap.Error(err))
				return
			}

			mu.Lock()
			urlToData[url] = dataURI
			mu.Unlock()
		}(url)
	}

	wg.Wait()
	return urlToData
}

func download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (macOS) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36")

	resp, err := imageClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineImageBytes+1))
	if err != nil {
		return "", err
	}
	if len(body) > maxInlineImageBytes {
		return "", fmt.Errorf("image larger than %d bytes", maxInlineImageBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("unexpected content type %q", contentType)
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}
