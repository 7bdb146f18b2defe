package fetcher

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// StackFetcher retrieves the stack-variant page behind a ?stack=1 link.
type StackFetcher interface {
	FetchStack(ctx context.Context, base *url.URL, href string) (*goquery.Document, error)
}

var (
	stackBadgeRe = regexp.MustCompile(`(?i)\bx(\d+)\b`)
	stackStripRe = regexp.MustCompile(`(?i)\s*x\d+\s*`)
	noAuctionRe  = regexp.MustCompile(`(?i)\bno\s*auction\b`)
	noSaleRe     = regexp.MustCompile(`(?i)\bno\s*sale\b`)
)

// Extractor turns a parsed item page into a typed ItemRecord. It holds
// no concurrency or persistence knowledge; its only side effect is the
// optional stack-page fetch through the StackFetcher.
type Extractor struct {
	stacks StackFetcher
	logger zerolog.Logger
}

// NewExtractor constructs a record extractor.
func NewExtractor(stacks StackFetcher, logger zerolog.Logger) *Extractor {
	return &Extractor{
		stacks: stacks,
		logger: logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract reads one item's facts out of its server-scoped page. base is
// the page's final URL, used to resolve a relative stack link.
//
// A record with SkipReason set is a terminal exclusion: the item is
// structurally non-sellable and carries only name and flags.
func (e *Extractor) Extract(ctx context.Context, doc *goquery.Document, base *url.URL, itemID int) *ItemRecord {
	rec := &ItemRecord{
		ItemID:   itemID,
		Name:     UnknownName,
		Category: UnknownName,
	}

	// Name plus inline stack-size badge ("Alexandrite x99" means the
	// page already shows the stack variant).
	if name := cleanText(doc.Find("span.item-name").First().Text()); name != "" {
		rec.Name = name
		if m := stackBadgeRe.FindStringSubmatch(name); m != nil {
			if size, err := strconv.Atoi(m[1]); err == nil && size > 0 {
				rec.StackSize = StackSize(size)
				rec.StackPriceIsPrimary = true
				rec.Name = strings.TrimSpace(stackStripRe.ReplaceAllString(name, " "))
			}
		}
	}

	rec.Category = extractCategory(doc)
	rec.Flags = extractFlags(doc)

	// Exclusive / No Auction / No Sale items never reach the auction
	// house; stop before any pricing work.
	if rec.HasFlag("Exclusive") || rec.HasFlag("No Auction") || rec.HasFlag("No Sale") {
		rec.SkipReason = ReasonNonSellable
		return rec
	}

	if rec.StackSize == StackNone {
		e.extractStackView(ctx, doc, base, rec)
	}

	rec.SoldPerDay = extractSalesPerDay(doc)
	rec.Price = extractPrice(doc)

	return rec
}

// extractStackView follows the ?stack=1 link, if any, and fills the
// stack size, price, and velocity from the stack page. A failed fetch
// or a stack page without a size badge degrades to "stackable, size
// unknown" with zero stack price and velocity.
func (e *Extractor) extractStackView(ctx context.Context, doc *goquery.Document, base *url.URL, rec *ItemRecord) {
	link := doc.Find(`a[href*="?stack=1"]`).First()
	if link.Length() == 0 {
		return
	}
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return
	}

	stackDoc, err := e.stacks.FetchStack(ctx, base, href)
	if err != nil {
		e.logger.Error().Err(err).Int("itemid", rec.ItemID).Msg("failed to fetch stack page")
		rec.StackSize = StackUnknown
		return
	}

	stackName := cleanText(stackDoc.Find("span.item-name").First().Text())
	m := stackBadgeRe.FindStringSubmatch(stackName)
	if m == nil {
		// Stack page exists but carries no size badge.
		rec.StackSize = StackUnknown
		return
	}

	size, err := strconv.Atoi(m[1])
	if err != nil || size <= 0 {
		rec.StackSize = StackUnknown
		return
	}

	rec.StackSize = StackSize(size)
	rec.StackPrice = extractPrice(stackDoc)
	rec.StackSoldPerDay = extractSalesPerDay(stackDoc)
}

func extractCategory(doc *goquery.Document) string {
	var cats []string
	seen := map[string]bool{}
	doc.Find(`a[href*="/browse/"]`).Each(func(_ int, s *goquery.Selection) {
		txt := strings.TrimSpace(s.Text())
		if txt == "" || strings.EqualFold(txt, "root") || seen[txt] {
			return
		}
		seen[txt] = true
		cats = append(cats, txt)
	})
	if len(cats) == 0 {
		return UnknownName
	}
	return strings.Join(cats, " > ")
}

func extractFlags(doc *goquery.Document) []string {
	var flags []string
	if doc.Find("span.ex").Length() > 0 {
		flags = append(flags, "Exclusive")
	}
	if doc.Find("span.rare").Length() > 0 {
		flags = append(flags, "Rare")
	}

	var stats []string
	doc.Find("span.item-stats").Each(func(_ int, s *goquery.Selection) {
		stats = append(stats, cleanText(s.Text()))
	})
	statsText := strings.ToLower(strings.Join(stats, " "))
	pageText := doc.Text()

	if strings.Contains(statsText, "no auction") || noAuctionRe.MatchString(pageText) {
		flags = append(flags, "No Auction")
	}
	if strings.Contains(statsText, "no sale") || noSaleRe.MatchString(pageText) {
		flags = append(flags, "No Sale")
	}
	if strings.Contains(statsText, "cursed") {
		flags = append(flags, "Cursed")
	}
	if strings.Contains(statsText, "temporary") {
		flags = append(flags, "Temporary")
	}
	return flags
}

// extractSalesPerDay reads the "(X sold/day)" indicator. The numeric
// value sits as the first token of the indicator's grandparent row.
func extractSalesPerDay(doc *goquery.Document) float64 {
	el := doc.Find("span#sales-per-day").First()
	if el.Length() == 0 {
		return 0
	}
	row := el.Parent().Parent()
	if row.Length() == 0 {
		return 0
	}
	fields := strings.Fields(cleanText(row.Text()))
	if len(fields) == 0 {
		return 0
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}

// extractPrice picks a best-guess price from the page tables in strict
// priority: the Median row, the Last row, then the first plausible
// integer from the sales history table. Thousands separators are
// stripped; a non-digit cell is skipped, never treated as zero.
func extractPrice(doc *goquery.Document) int64 {
	for _, label := range []string{"Median", "Last"} {
		if price, ok := priceFromLabeledRow(doc, label); ok {
			return price
		}
	}
	return priceFromSalesHistory(doc)
}

func priceFromLabeledRow(doc *goquery.Document, label string) (int64, bool) {
	var price int64
	var found bool
	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return true
		}
		if !rowHasLabel(row, label) {
			return true
		}
		span := cells.Eq(1).Find("span").First()
		if span.Length() == 0 {
			return true
		}
		text := strings.ReplaceAll(strings.TrimSpace(span.Text()), ",", "")
		value, err := strconv.ParseInt(text, 10, 64)
		if err != nil || value < 0 {
			return true
		}
		price = value
		found = true
		return false
	})
	return price, found
}

func rowHasLabel(row *goquery.Selection, label string) bool {
	var has bool
	row.Find("td,th").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if strings.TrimSpace(cell.Text()) == label {
			has = true
			return false
		}
		return true
	})
	return has
}

func priceFromSalesHistory(doc *goquery.Document) int64 {
	var price int64
	doc.Find("table.tbl-sales td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		text := strings.ReplaceAll(strings.TrimSpace(cell.Text()), ",", "")
		if len(text) < 2 || !isDigits(text) {
			return true
		}
		value, err := strconv.ParseInt(text, 10, 64)
		if err != nil || value < 10 {
			return true
		}
		price = value
		return false
	})
	return price
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(s)
}
