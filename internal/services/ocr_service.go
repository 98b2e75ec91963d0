package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/payper/backend/internal/config"
	"github.com/payper/backend/internal/models"
)

// OCRService extracts receipt details from an image via an external
// optical-text-extraction API. Results are best-effort form prefill
// only; nothing downstream depends on their correctness.
type OCRService struct {
	cfg    *config.OCRConfig
	client *http.Client
}

func NewOCRService(cfg *config.OCRConfig) *OCRService {
	return &OCRService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type ocrResponse struct {
	OCRExitCode   int    `json:"OCRExitCode"`
	ErrorMessage  any    `json:"ErrorMessage"`
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
}

// Scan posts the image to the OCR API and parses the returned text
// into a receipt prefill.
func (s *OCRService) Scan(ctx context.Context, filename string, image io.Reader) (*models.ReceiptScan, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, err
	}
	mw.WriteField("apikey", s.cfg.APIKey)
	mw.WriteField("language", s.cfg.Language)
	mw.WriteField("isOverlayRequired", "false")
	mw.WriteField("detectOrientation", "true")
	mw.WriteField("scale", "true")
	mw.WriteField("OCREngine", "2")
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[OCR] Request failed: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR API returned status %d", resp.StatusCode)
	}

	var result ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.OCRExitCode != 1 || len(result.ParsedResults) == 0 {
		return nil, fmt.Errorf("OCR processing failed: %v", result.ErrorMessage)
	}

	text := result.ParsedResults[0].ParsedText
	return ParseReceiptText(text), nil
}

var (
	totalPattern = regexp.MustCompile(`(?i)(?:total|amount|sum)[:\s]*(?:R|ZAR)?\s*(\d+[.,]\d{2})`)
	datePattern  = regexp.MustCompile(`\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}`)
	itemPattern  = regexp.MustCompile(`(?i)(.+?)\s+(?:R|ZAR)?\s*(\d+[.,]\d{2})`)
)

// ParseReceiptText applies the receipt heuristics to raw OCR text:
// merchant name from the first line, a "total"-labelled amount, the
// first date-looking token, and item/price line pairs.
func ParseReceiptText(text string) *models.ReceiptScan {
	scan := &models.ReceiptScan{
		RawText:   text,
		LineItems: []models.LineItem{},
	}

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			scan.MerchantName = trimmed
			break
		}
	}

	if m := totalPattern.FindStringSubmatch(text); m != nil {
		if amount, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64); err == nil {
			scan.Amount = &amount
		}
	}

	if m := datePattern.FindString(text); m != "" {
		scan.Date = m
	}

	for _, line := range lines {
		m := itemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		price, err := strconv.ParseFloat(strings.Replace(m[2], ",", ".", 1), 64)
		if err != nil {
			continue
		}
		desc := strings.TrimSpace(m[1])
		if desc == "" || totalPattern.MatchString(line) {
			continue
		}
		scan.LineItems = append(scan.LineItems, models.LineItem{Description: desc, Price: price})
	}

	return scan
}
