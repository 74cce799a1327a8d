package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/mealforge/backend/config"
)

// fallbackImages is served whenever the search path fails for any reason.
// Image quality is cosmetic; some image must always come back.
var fallbackImages = []string{
	"https://images.unsplash.com/photo-1546069901-ba9599a7e63c?w=800",
	"https://images.unsplash.com/photo-1555939594-58d7cb561ad1?w=800",
	"https://images.unsplash.com/photo-1565299624946-b28f40a0ae38?w=800",
	"https://images.unsplash.com/photo-1567620905732-2d1ec7ab7445?w=800",
}

// ImageService resolves a text query into a displayable image URL. It never
// fails outward: credentials missing, search errors, timeouts and dead links
// all degrade to a random member of the fallback pool.
type ImageService struct {
	apiKey   string
	apiURL   string
	s3Config *config.S3Config
	client   *http.Client
	pick     func(n int) int
}

// NewImageService creates a new ImageService instance. s3Config may be nil,
// in which case resolved images are not mirrored.
func NewImageService(cfg *config.Config, s3Config *config.S3Config) *ImageService {
	apiURL := cfg.ImageSearchURL
	if apiURL == "" {
		apiURL = "https://api.pexels.com/v1/search"
	}

	return &ImageService{
		apiKey:   cfg.ImageSearchKey,
		apiURL:   apiURL,
		s3Config: s3Config,
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
		pick: rand.Intn,
	}
}

// ResolveImage returns a usable image URL for the query. At most one search
// request and one reachability check go out per call.
func (s *ImageService) ResolveImage(ctx context.Context, query string) string {
	if s.apiKey == "" {
		return s.fallback()
	}

	imageURL, err := s.search(ctx, query)
	if err != nil {
		log.Printf("[ImageService] search failed for %q, using fallback: %v", query, err)
		return s.fallback()
	}

	if err := s.checkReachable(ctx, imageURL); err != nil {
		log.Printf("[ImageService] %s unreachable, using fallback: %v", imageURL, err)
		return s.fallback()
	}

	if s.s3Config != nil {
		if mirrored, err := s.mirrorToS3(ctx, imageURL); err == nil {
			return mirrored
		} else {
			log.Printf("[ImageService] failed to mirror to S3, returning source URL: %v", err)
		}
	}

	return imageURL
}

func (s *ImageService) fallback() string {
	return fallbackImages[s.pick(len(fallbackImages))]
}

// search asks the photo search service for the top result for query.
func (s *ImageService) search(ctx context.Context, query string) (string, error) {
	reqURL := fmt.Sprintf("%s?query=%s&per_page=1", s.apiURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search request failed with status %d", resp.StatusCode)
	}

	var result struct {
		Photos []struct {
			Src struct {
				Large  string `json:"large"`
				Medium string `json:"medium"`
			} `json:"src"`
		} `json:"photos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode search response: %w", err)
	}

	if len(result.Photos) == 0 {
		return "", fmt.Errorf("no photos for query %q", query)
	}

	src := result.Photos[0].Src
	if src.Large != "" {
		return src.Large, nil
	}
	if src.Medium != "" {
		return src.Medium, nil
	}
	return "", fmt.Errorf("empty photo URL in search response")
}

// checkReachable issues a HEAD request to verify the image target exists.
func (s *ImageService) checkReachable(ctx context.Context, imageURL string) error {
	req, err := http.NewRequestWithContext(ctx, "HEAD", imageURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("image target returned status %d", resp.StatusCode)
	}
	return nil
}

// mirrorToS3 downloads the image and re-hosts it in the configured bucket so
// recipes keep working after the search provider expires the URL.
func (s *ImageService) mirrorToS3(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download image, status: %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image data: %w", err)
	}

	fileName := fmt.Sprintf("recipe-images/%s.jpg", uuid.New().String())
	_, err = s.s3Config.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Config.BucketName),
		Key:         aws.String(fileName),
		Body:        bytes.NewReader(imageData),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.s3Config.BucketName, fileName), nil
}
