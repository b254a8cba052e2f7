// Package integration handles external service interactions
package integration

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abelzeko/flood-bot/internal/entities"
	"github.com/abelzeko/flood-bot/internal/metrics"
)

var issuedRe = regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4})\.?\s+(\d{1,2}:\d{2})`)

// BulletinScraper reads rainfall outlooks from a published HTML bulletin.
//
// The bulletin carries an "Issued:" heading and a table whose rows are
// period, intensity in mm/h and duration in hours.
type BulletinScraper struct {
	sourceURL string
	client    *http.Client
	location  *time.Location
}

// NewBulletinScraper creates a scraper for the bulletin at url
func NewBulletinScraper(url string) *BulletinScraper {
	return &BulletinScraper{
		sourceURL: url,
		client:    &http.Client{Timeout: 30 * time.Second},
		location:  time.Local,
	}
}

// FetchOutlook downloads the bulletin and returns its rainfall outlooks in table order
func (bs *BulletinScraper) FetchOutlook(ctx context.Context) ([]entities.RainfallOutlook, error) {
	log.Printf("Sending HTTP request to rainfall bulletin")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bs.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build bulletin request: %w", err)
	}

	res, err := bs.client.Do(req)
	if err != nil {
		log.Printf("Error fetching bulletin: %v", err)
		return nil, fmt.Errorf("failed to fetch the bulletin: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Printf("Received unexpected status code: %d %s", res.StatusCode, res.Status)
		return nil, fmt.Errorf("unexpected status code: %d %s", res.StatusCode, res.Status)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		log.Printf("Error parsing HTML: %v", err)
		return nil, fmt.Errorf("failed to parse the bulletin: %w", err)
	}

	return bs.ParseOutlook(doc), nil
}

// ParseOutlook extracts the outlook rows of a bulletin document. Rows that
// do not hold a usable intensity and duration are skipped.
func (bs *BulletinScraper) ParseOutlook(doc *goquery.Document) []entities.RainfallOutlook {
	issued := bs.ExtractIssuedAt(doc)

	var data []entities.RainfallOutlook
	rowCount, skipped := 0, 0

	doc.Find("table tbody tr").Each(func(index int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return // header row
		}
		rowCount++
		if cells.Length() < 3 {
			skipped++
			return
		}

		period := strings.TrimSpace(cells.Eq(0).Text())
		intensity, err1 := parseDecimal(cells.Eq(1).Text())
		duration, err2 := parseDecimal(cells.Eq(2).Text())
		if err1 != nil || err2 != nil || intensity < 0 || duration <= 0 {
			log.Printf("Skipping bulletin row %q: intensity=%q duration=%q",
				period, strings.TrimSpace(cells.Eq(1).Text()), strings.TrimSpace(cells.Eq(2).Text()))
			skipped++
			return
		}

		data = append(data, entities.RainfallOutlook{
			Period:             period,
			IntensityMMPerHour: intensity,
			DurationHours:      duration,
			IssuedAt:           issued,
		})
	})

	if skipped > 0 {
		metrics.BulletinRowsSkipped.Add(float64(skipped))
	}
	log.Printf("Parsed %d bulletin rows, extracted %d outlooks", rowCount, len(data))
	return data
}

// ExtractIssuedAt finds the "Issued:" heading and parses its date and time.
// It falls back to the current time when the heading is missing.
func (bs *BulletinScraper) ExtractIssuedAt(doc *goquery.Document) time.Time {
	var text string
	doc.Find("h1, h2, h3, h4, p, div").EachWithBreak(func(i int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		if strings.Contains(t, "Issued:") {
			text = t
			return false
		}
		return true
	})

	if text == "" {
		log.Printf("Issue time not found in bulletin, using current time")
		return time.Now()
	}

	m := issuedRe.FindStringSubmatch(text)
	if m == nil {
		log.Printf("Failed to parse issue time from: %s", text)
		return time.Now()
	}
	issued, err := time.ParseInLocation("02.01.2006 15:04", m[1]+" "+m[2], bs.location)
	if err != nil {
		log.Printf("Failed to parse issue time from: %s", text)
		return time.Now()
	}
	return issued
}

// parseDecimal accepts both "12.5" and "12,5", with an optional unit suffix.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "mm/h")
	s = strings.TrimSuffix(s, "h")
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	return strconv.ParseFloat(s, 64)
}
