package fetcher

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

// stubStacks serves a canned stack page, or fails.
type stubStacks struct {
	html string
	err  error

	calls []string
}

func (s *stubStacks) FetchStack(ctx context.Context, base *url.URL, href string) (*goquery.Document, error) {
	s.calls = append(s.calls, href)
	if s.err != nil {
		return nil, s.err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(s.html))
}

const simpleItemPage = `<html><body>
<span class="item-name">Mythril Ore</span>
<a href="/browse/0/">Root</a>
<a href="/browse/49/">Materials</a>
<a href="/browse/49/1/">Goldsmithing</a>
<a href="/browse/49/1/">Goldsmithing</a>
<span class="item-stats">A chunk of mythril ore.</span>
<table>
<tr><td>Median</td><td><span>12,000</span></td></tr>
<tr><td>Last</td><td><span>11,500</span></td></tr>
</table>
<table><tr><td>3.25 sold per day <b><span id="sales-per-day"></span></b></td></tr></table>
</body></html>`

func TestExtractSimpleItem(t *testing.T) {
	e := NewExtractor(&stubStacks{}, noopLogger())
	rec := e.Extract(context.Background(), mustDoc(t, simpleItemPage), nil, 644)

	if rec.Name != "Mythril Ore" {
		t.Fatalf("name = %q", rec.Name)
	}
	if rec.Category != "Materials > Goldsmithing" {
		t.Fatalf("category = %q (root 应被剔除且去重)", rec.Category)
	}
	if rec.Price != 12000 {
		t.Fatalf("price = %d, Median 行应优先", rec.Price)
	}
	if rec.SoldPerDay != 3.25 {
		t.Fatalf("sold/day = %v", rec.SoldPerDay)
	}
	if rec.StackSize != StackNone {
		t.Fatalf("stack size = %v, 无堆叠链接应为 No", rec.StackSize)
	}
	if rec.Excluded() {
		t.Fatalf("普通物品不应被排除: %q", rec.SkipReason)
	}
	if rec.Rarity() != "Common" {
		t.Fatalf("rarity = %q", rec.Rarity())
	}
}

func TestExtractInlineStackBadge(t *testing.T) {
	page := `<html><body><span class="item-name">Alexandrite&nbsp;x99</span></body></html>`
	e := NewExtractor(&stubStacks{}, noopLogger())
	rec := e.Extract(context.Background(), mustDoc(t, page), nil, 2955)

	if rec.Name != "Alexandrite" {
		t.Fatalf("name = %q, 应剥离 x99 标记", rec.Name)
	}
	if rec.StackSize != 99 {
		t.Fatalf("stack size = %v", rec.StackSize)
	}
	if !rec.StackPriceIsPrimary {
		t.Fatal("当前页面已是堆叠视图, StackPriceIsPrimary 应为 true")
	}
}

func TestExtractExclusionShortCircuits(t *testing.T) {
	page := `<html><body>
<span class="item-name">Hermes' Sandals</span>
<span class="ex"></span><span class="rare"></span>
<table><tr><td>Median</td><td><span>55,000</span></td></tr></table>
</body></html>`
	e := NewExtractor(&stubStacks{}, noopLogger())
	rec := e.Extract(context.Background(), mustDoc(t, page), nil, 14084)

	if !rec.Excluded() {
		t.Fatal("Exclusive 物品应被排除")
	}
	if rec.SkipReason != ReasonNonSellable {
		t.Fatalf("skip reason = %q", rec.SkipReason)
	}
	if rec.Price != 0 {
		t.Fatalf("排除后不应再提取价格, got %d", rec.Price)
	}
	if !rec.HasFlag("Exclusive") || !rec.HasFlag("Rare") {
		t.Fatalf("flags = %v", rec.Flags)
	}
}

func TestExtractNoAuctionFromStatsText(t *testing.T) {
	page := `<html><body>
<span class="item-name">Kraken Club</span>
<span class="item-stats">DMG:11 Delay:264 No Auction</span>
</body></html>`
	e := NewExtractor(&stubStacks{}, noopLogger())
	rec := e.Extract(context.Background(), mustDoc(t, page), nil, 17440)

	if rec.SkipReason != ReasonNonSellable {
		t.Fatalf("No Auction 应触发排除, reason = %q", rec.SkipReason)
	}
}

func TestExtractPriceFallbackPriority(t *testing.T) {
	// No Median row: the Last row wins.
	lastOnly := `<html><body><span class="item-name">Beehive Chip</span>
<table><tr><td>Last</td><td><span>150</span></td></tr></table></body></html>`
	e := NewExtractor(&stubStacks{}, noopLogger())
	rec := e.Extract(context.Background(), mustDoc(t, lastOnly), nil, 912)
	if rec.Price != 150 {
		t.Fatalf("price = %d, 应回退到 Last 行", rec.Price)
	}

	// Neither label: first plausible integer from the sales history.
	historyOnly := `<html><body><span class="item-name">Beehive Chip</span>
<table class="tbl-sales"><tr><td>Seller</td><td>5</td><td>1,234</td></tr></table></body></html>`
	rec = e.Extract(context.Background(), mustDoc(t, historyOnly), nil, 912)
	if rec.Price != 1234 {
		t.Fatalf("price = %d, 应取销售历史中首个 >=10 的两位数", rec.Price)
	}

	// Nothing at all: zero, not an error.
	bare := `<html><body><span class="item-name">Beehive Chip</span></body></html>`
	rec = e.Extract(context.Background(), mustDoc(t, bare), nil, 912)
	if rec.Price != 0 {
		t.Fatalf("price = %d", rec.Price)
	}
	if rec.Excluded() {
		t.Fatal("无价格不是终局排除, 由调用方分类")
	}
}

func TestExtractStackViewFetched(t *testing.T) {
	page := `<html><body>
<span class="item-name">Arrowwood Log</span>
<a href="?stack=1">stack</a>
</body></html>`
	stackPage := `<html><body>
<span class="item-name">Arrowwood Log x12</span>
<table><tr><td>Median</td><td><span>240</span></td></tr></table>
<table><tr><td>1.5 sold per day <b><span id="sales-per-day"></span></b></td></tr></table>
</body></html>`

	stacks := &stubStacks{html: stackPage}
	e := NewExtractor(stacks, noopLogger())
	rec := e.Extract(context.Background(), mustDoc(t, page), nil, 688)

	if len(stacks.calls) != 1 || stacks.calls[0] != "?stack=1" {
		t.Fatalf("stack fetch calls = %v", stacks.calls)
	}
	if rec.StackSize != 12 {
		t.Fatalf("stack size = %v", rec.StackSize)
	}
	if rec.StackPrice != 240 {
		t.Fatalf("stack price = %d", rec.StackPrice)
	}
	if rec.StackSoldPerDay != 1.5 {
		t.Fatalf("stack sold/day = %v", rec.StackSoldPerDay)
	}
	if rec.StackPriceIsPrimary {
		t.Fatal("主页面是单件视图, StackPriceIsPrimary 应为 false")
	}
}

func TestExtractStackViewFetchFailure(t *testing.T) {
	page := `<html><body>
<span class="item-name">Arrowwood Log</span>
<a href="?stack=1">stack</a>
</body></html>`

	stacks := &stubStacks{err: context.DeadlineExceeded}
	e := NewExtractor(stacks, noopLogger())
	rec := e.Extract(context.Background(), mustDoc(t, page), nil, 688)

	if rec.StackSize != StackUnknown {
		t.Fatalf("stack size = %v, 拉取失败应降级为 Yes", rec.StackSize)
	}
	if rec.StackPrice != 0 || rec.StackSoldPerDay != 0 {
		t.Fatalf("拉取失败后堆叠价格/销量应为 0: %d %v", rec.StackPrice, rec.StackSoldPerDay)
	}
}

func TestStackSizeRendering(t *testing.T) {
	if StackNone.String() != "No" || StackUnknown.String() != "Yes" || StackSize(12).String() != "12" {
		t.Fatal("StackSize 渲染不符合 CSV 约定")
	}
	if ParseStackSize("12") != StackSize(12) || ParseStackSize("Yes") != StackUnknown || ParseStackSize("No") != StackNone {
		t.Fatal("ParseStackSize 应与 String 互逆")
	}
}
