package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-miner/internal/fetcher"
	"market-miner/internal/skipcache"
)

// fakeFetcher returns canned records keyed by (item, server id) and
// counts every call. Safe for concurrent workers.
type fakeFetcher struct {
	mu      sync.Mutex
	records map[string]*fetcher.ItemRecord
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		records: map[string]*fetcher.ItemRecord{},
		calls:   map[string]int{},
	}
}

func key(itemID, serverID int) string {
	return fmt.Sprintf("%d/%d", itemID, serverID)
}

func (f *fakeFetcher) set(itemID, serverID int, rec *fetcher.ItemRecord) {
	f.records[key(itemID, serverID)] = rec
}

func (f *fakeFetcher) GetItemData(ctx context.Context, itemID, serverID int) *fetcher.ItemRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key(itemID, serverID)]++
	return f.records[key(itemID, serverID)]
}

func (f *fakeFetcher) callCount(itemID, serverID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key(itemID, serverID)]
}

// memCache is an in-memory skipcache.Cache for tests.
type memCache struct {
	mu      sync.Mutex
	entries map[int]skipcache.Entry
}

func newMemCache() *memCache {
	return &memCache{entries: map[int]skipcache.Entry{}}
}

func (c *memCache) Load(ctx context.Context) (map[int]skipcache.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]skipcache.Entry, len(c.entries))
	for id, e := range c.entries {
		out[id] = e
	}
	return out, nil
}

func (c *memCache) RecordExclusion(ctx context.Context, itemID int, name, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.entries[itemID]
	if entry.ItemID == 0 {
		entry.ItemID = itemID
	}
	if entry.Name == "" || entry.Name == fetcher.UnknownName {
		entry.Name = name
	}
	for _, r := range entry.Reasons {
		if r == reason {
			c.entries[itemID] = entry
			return nil
		}
	}
	entry.Reasons = append(entry.Reasons, reason)
	c.entries[itemID] = entry
	return nil
}

func (c *memCache) Close() error { return nil }

// collectSink records every emitted event (all sink calls happen on the
// consumer goroutine, so no locking is needed).
type collectSink struct {
	results  []JobResult
	finished []Summary
}

func (s *collectSink) JobCompleted(r JobResult) { s.results = append(s.results, r) }
func (s *collectSink) Progress(Progress)        {}
func (s *collectSink) RunFinished(sum Summary)  { s.finished = append(s.finished, sum) }

func priced(itemID int, name string, price, stackPrice int64) *fetcher.ItemRecord {
	return &fetcher.ItemRecord{ItemID: itemID, Name: name, Price: price, StackPrice: stackPrice, Category: "Materials"}
}

func testOptions(servers map[string]int, from, to int) Options {
	return Options{
		FromID:  from,
		ToID:    to,
		Servers: servers,
		Workers: 2,
		Delay:   time.Millisecond,
	}
}

func TestRunSingleServerTaxonomy(t *testing.T) {
	fake := newFakeFetcher()
	fake.set(1, 28, priced(1, "Fire Crystal", 100, 0))
	// item 2: no canned record, GetItemData returns nil (fetch failure)
	fake.set(3, 28, &fetcher.ItemRecord{ItemID: 3, Name: "Hermes' Sandals", SkipReason: fetcher.ReasonNonSellable})
	fake.set(4, 28, &fetcher.ItemRecord{ItemID: 4, Name: "Chocobo Bedding", Category: "Materials"})
	fake.set(5, 28, &fetcher.ItemRecord{ItemID: 5, Name: fetcher.UnknownName})

	cache := newMemCache()
	sink := &collectSink{}
	r := New(fake, cache, sink, zerolog.Nop())

	sum, err := r.Run(context.Background(), testOptions(map[string]int{"Asura": 28}, 1, 5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Processed != 5 || sum.Found != 1 || sum.Excluded != 3 || sum.PreSkipped != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sum.Items) != 2 {
		t.Fatalf("items = %d, 有价与无价记录都应产出行", len(sum.Items))
	}
	if len(sum.Comparisons) != 0 {
		t.Fatalf("单服务器运行不应产生比较行: %v", sum.Comparisons)
	}
	if sum.Cancelled {
		t.Fatal("run 未取消")
	}

	outcomes := map[int]Outcome{}
	for _, res := range sink.results {
		outcomes[res.Job.ItemID] = res.Outcome
	}
	if outcomes[1] != OutcomeFound || outcomes[2] != OutcomeFailed || outcomes[3] != OutcomeExcluded || outcomes[4] != OutcomeNoPrice || outcomes[5] != OutcomeNoName {
		t.Fatalf("outcomes = %v", outcomes)
	}

	entries, _ := cache.Load(context.Background())
	if got := entries[2].Reason(); got != "failed to fetch or parse" {
		t.Fatalf("item 2 reason = %q", got)
	}
	if got := entries[3].Reason(); got != fetcher.ReasonNonSellable {
		t.Fatalf("item 3 reason = %q", got)
	}
	if got := entries[4].Reason(); got != "no price found" {
		t.Fatalf("item 4 reason = %q", got)
	}
	if got := entries[5].Reason(); got != "no item name" {
		t.Fatalf("item 5 reason = %q", got)
	}
	if entries[4].Name != "Chocobo Bedding" {
		t.Fatalf("item 4 name = %q", entries[4].Name)
	}
	if _, ok := entries[1]; ok {
		t.Fatal("成功的物品不应写入 skip cache")
	}
	if len(sink.finished) != 1 {
		t.Fatalf("RunFinished emitted %d times", len(sink.finished))
	}
}

func TestRunPrunesPreviouslySkipped(t *testing.T) {
	fake := newFakeFetcher()
	fake.set(1, 28, priced(1, "Fire Crystal", 100, 0))
	fake.set(3, 28, priced(3, "Ice Crystal", 110, 0))

	cache := newMemCache()
	if err := cache.RecordExclusion(context.Background(), 2, "Kraken Club", fetcher.ReasonNonSellable); err != nil {
		t.Fatal(err)
	}

	r := New(fake, cache, nil, zerolog.Nop())
	sum, err := r.Run(context.Background(), testOptions(map[string]int{"Asura": 28}, 1, 3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.PreSkipped != 1 {
		t.Fatalf("preskipped = %d", sum.PreSkipped)
	}
	if sum.Processed != 2 {
		t.Fatalf("processed = %d, 已缓存的排除项不应重新抓取", sum.Processed)
	}
	if fake.callCount(2, 28) != 0 {
		t.Fatal("item 2 不应被抓取")
	}
}

func TestRunMultiServerValidationGate(t *testing.T) {
	servers := map[string]int{"Asura": 28, "Bahamut": 1}

	fake := newFakeFetcher()
	// Item 1 sells on both servers; item 2 is excluded on the validation
	// server (lexicographically first: Asura) and must never be expanded.
	fake.set(1, 28, priced(1, "Alexandrite", 100, 9500))
	fake.set(1, 1, priced(1, "Alexandrite", 150, 14000))
	fake.set(2, 28, &fetcher.ItemRecord{ItemID: 2, Name: "Kraken Club", SkipReason: fetcher.ReasonNonSellable})

	cache := newMemCache()
	r := New(fake, cache, nil, zerolog.Nop())
	sum, err := r.Run(context.Background(), testOptions(servers, 1, 2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fake.callCount(2, 1) != 0 {
		t.Fatal("验证失败的物品不应扩展到其他服务器")
	}
	if fake.callCount(1, 28) != 1 || fake.callCount(1, 1) != 1 {
		t.Fatalf("item 1 calls = %d/%d", fake.callCount(1, 28), fake.callCount(1, 1))
	}

	// Validation pass (2 jobs) plus one expansion job.
	if sum.Processed != 3 {
		t.Fatalf("processed = %d", sum.Processed)
	}
	if len(sum.Items) != 2 {
		t.Fatalf("items = %d, item 1 在两台服务器各一行", len(sum.Items))
	}

	if len(sum.Comparisons) != 2 {
		t.Fatalf("comparisons = %d, 单价与堆叠价各一行", len(sum.Comparisons))
	}
	unit := sum.Comparisons[0]
	if unit.Scope != "unit" || unit.LowestServer != "Asura" || unit.HighestServer != "Bahamut" || unit.PriceDifference != 50 {
		t.Fatalf("unit comparison = %+v", unit)
	}
	stack := sum.Comparisons[1]
	if stack.Scope != "stack" || stack.PriceDifference != 4500 {
		t.Fatalf("stack comparison = %+v", stack)
	}
}

func TestRunNoPriceStillPassesValidation(t *testing.T) {
	servers := map[string]int{"Asura": 28, "Bahamut": 1}

	fake := newFakeFetcher()
	// Named but unpriced on the validation server: the record exists, so
	// the item still expands — other servers may have prices.
	fake.set(1, 28, &fetcher.ItemRecord{ItemID: 1, Name: "Beehive Chip", Category: "Materials"})
	fake.set(1, 1, priced(1, "Beehive Chip", 150, 0))

	r := New(fake, newMemCache(), nil, zerolog.Nop())
	sum, err := r.Run(context.Background(), testOptions(servers, 1, 2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fake.callCount(1, 1) != 1 {
		t.Fatal("无价但有名的物品应通过验证并扩展")
	}
	if len(sum.Items) != 2 {
		t.Fatalf("items = %d", len(sum.Items))
	}
	// Only one server has a positive price: no comparison row.
	if len(sum.Comparisons) != 0 {
		t.Fatalf("comparisons = %v", sum.Comparisons)
	}
}

func TestRunValidatesOptions(t *testing.T) {
	r := New(newFakeFetcher(), nil, nil, zerolog.Nop())

	cases := []Options{
		{FromID: 5, ToID: 5, Servers: map[string]int{"Asura": 28}, Workers: 2},
		{FromID: 1, ToID: 5, Servers: map[string]int{"Asura": 28}, Workers: 0},
		{FromID: 1, ToID: 5, Servers: map[string]int{"Asura": 28}, Workers: 11},
		{FromID: 1, ToID: 5, Workers: 2},
	}
	for i, opts := range cases {
		if _, err := r.Run(context.Background(), opts); err == nil {
			t.Fatalf("case %d: 非法参数应报错", i)
		}
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := newFakeFetcher()
	r := New(fake, newMemCache(), nil, zerolog.Nop())
	sum, err := r.Run(ctx, testOptions(map[string]int{"Asura": 28}, 1, 3))
	if err == nil {
		t.Fatal("已取消的 context 应返回错误")
	}
	if !sum.Cancelled {
		t.Fatal("summary 应标记取消")
	}
	if sum.Processed != 0 {
		t.Fatalf("processed = %d", sum.Processed)
	}
	if fake.callCount(1, 28) != 0 {
		t.Fatal("取消后不应调度任何抓取")
	}
}
