package catalog

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"livemon/internal/config"
	"livemon/internal/textutil"
)

func addresses[T interface{ *Channel | *Platform }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := any(item).(type) {
		case *Channel:
			out = append(out, v.Address)
		case *Platform:
			out = append(out, v.Address)
		}
	}
	return out
}

func TestReconcileComputesDiffAndKeepsIdentity(t *testing.T) {
	a := &Channel{Address: "rtmp://h/a", Name: "A", Extra: map[string]any{"local": "kept"}}
	b := &Channel{Address: "rtmp://h/b", Name: "B"}
	c := &Channel{Address: "rtmp://h/c", Name: "C"}
	old := []*Channel{a, b, c}

	fresh := []*Channel{
		{Address: "rtmp://h/d", Name: "D"},
		{Address: "rtmp://h/a", Name: "A", Extra: map[string]any{"local": "kept"}},
		{Address: "rtmp://h/c", Name: "C renamed"},
	}

	diff := Reconcile(old, fresh, ChannelKeys)

	if d := cmp.Diff([]string{"rtmp://h/a", "rtmp://h/c", "rtmp://h/d"}, addresses(diff.Merged)); d != "" {
		t.Fatalf("merged order (-want +got):\n%s", d)
	}
	if got := addresses(diff.Added); len(got) != 1 || got[0] != "rtmp://h/d" {
		t.Fatalf("added = %v", got)
	}
	if got := addresses(diff.Removed); len(got) != 1 || got[0] != "rtmp://h/b" {
		t.Fatalf("removed = %v", got)
	}
	if len(diff.Updated) != 1 || diff.Updated[0] != c {
		t.Fatalf("expected c updated in place, got %v", addresses(diff.Updated))
	}
	if diff.Merged[1] != c || c.Name != "C renamed" {
		t.Fatalf("update should mutate the existing record, got %+v", diff.Merged[1])
	}
	if diff.Merged[0] != a {
		t.Fatal("unchanged record should keep its identity")
	}
	if !diff.Changed() {
		t.Fatal("expected Changed")
	}
}

func TestReconcileIdempotent(t *testing.T) {
	fresh := func() []*Channel {
		return []*Channel{{Address: "x", Name: "X"}, {Address: "y", Name: "Y"}}
	}
	first := Reconcile(nil, fresh(), ChannelKeys)
	second := Reconcile(first.Merged, fresh(), ChannelKeys)
	if second.Changed() {
		t.Fatalf("second pass should be empty, got %+v", second.Counts())
	}
	if first.Merged[0] != second.Merged[0] {
		t.Fatal("second pass should keep the same records")
	}
}

func TestReconcileDedupesAddresses(t *testing.T) {
	fresh := []*Channel{
		{Address: "x", Name: "first"},
		{Address: "x", Name: "second"},
		{Address: "", Name: "no address"},
		{Address: "y", Name: "Y"},
	}
	diff := Reconcile([]*Channel{{Address: "y", Name: "Y"}, {Address: "y", Name: "dup"}}, fresh, ChannelKeys)
	if d := cmp.Diff([]string{"y", "x"}, addresses(diff.Merged)); d != "" {
		t.Fatalf("merged (-want +got):\n%s", d)
	}
	if diff.Merged[1].Name != "first" {
		t.Fatalf("first occurrence should win, got %q", diff.Merged[1].Name)
	}
}

func TestPlatformReconcileKeepsLocalState(t *testing.T) {
	existing := &Platform{
		Address:  "http://s/p1.json",
		Result:   1,
		Channels: []*Channel{{Address: "rtmp://h/a"}},
		Extra:    map[string]any{"title": "old"},
	}
	fresh := []*Platform{{Address: "http://s/p1.json", Extra: map[string]any{"title": "new"}}}
	diff := Reconcile([]*Platform{existing}, fresh, PlatformKeys)
	if len(diff.Updated) != 1 || diff.Merged[0] != existing {
		t.Fatalf("expected in-place update, got %+v", diff.Counts())
	}
	if existing.Result != 1 || len(existing.Channels) != 1 || existing.Extra["title"] != "new" {
		t.Fatalf("unexpected platform after update: %+v", existing)
	}
}

func TestJoinSourceIdempotent(t *testing.T) {
	src := "http://feeds.example/live/"
	cases := map[string]string{
		"douyu.json":                  "http://feeds.example/live/douyu.json",
		"/huya.json":                  "http://feeds.example/live/huya.json",
		"http://feeds.example/live/x": "http://feeds.example/live/x",
		"https://other.example/y":     "https://other.example/y",
	}
	for in, want := range cases {
		got := JoinSource(src, in)
		if got != want {
			t.Errorf("JoinSource(%q) = %q, want %q", in, got, want)
		}
		if again := JoinSource(src, got); again != got {
			t.Errorf("JoinSource not idempotent: %q -> %q", got, again)
		}
	}
}

func TestResolveChannel(t *testing.T) {
	base := "http://feeds.example/live/douyu.json"
	if got := ResolveChannel(base, "streams/a.flv"); got != "http://feeds.example/live/streams/a.flv" {
		t.Fatalf("relative resolve = %q", got)
	}
	if got := ResolveChannel(base, "rtmp://h:1935/app/s"); got != "rtmp://h:1935/app/s" {
		t.Fatalf("absolute should be unchanged, got %q", got)
	}
	if got := ResolveChannel(base, ResolveChannel(base, "a.mp4")); got != "http://feeds.example/live/a.mp4" {
		t.Fatalf("resolve should be idempotent, got %q", got)
	}
}

func TestIgnoreSetMatchesAddressOrLastSegment(t *testing.T) {
	set := NewIgnoreSet([]string{"jsonlongzhu.txt", "rtmp://blocked/app/s", " "})
	if set.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", set.Len())
	}
	if !set.Match("jsonlongzhu.txt") {
		t.Fatal("raw address should match")
	}
	if !set.Match("", "http://feeds.example/live/jsonlongzhu.txt") {
		t.Fatal("last segment should match")
	}
	if !set.Match("rtmp://blocked/app/s") {
		t.Fatal("full address should match")
	}
	if set.Match("http://feeds.example/live/jsonhuya.txt") {
		t.Fatal("unrelated address matched")
	}
	if (IgnoreSet{}).Match("anything") {
		t.Fatal("empty set should never match")
	}
}

func TestNextResultWraps(t *testing.T) {
	if NextResult(1) != 2 || NextResult(98) != 99 || NextResult(99) != 0 || NextResult(-3) != 1 {
		t.Fatal("unexpected counter progression")
	}
}

func TestSyncRoots(t *testing.T) {
	kept := &Source{Address: "http://b/", Result: 7}
	sources := []*Source{{Address: "http://a/"}, kept, {Address: "http://b/"}}
	synced, added, removed := SyncRoots(sources, []string{"http://b/", "http://c/"})
	if diff := cmp.Diff([]string{"http://c/"}, added); diff != "" {
		t.Fatalf("added (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"http://a/"}, removed); diff != "" {
		t.Fatalf("removed (-want +got):\n%s", diff)
	}
	if len(synced) != 2 || synced[0] != kept || synced[1].Address != "http://c/" || synced[1].Result != 0 {
		t.Fatalf("unexpected synced tree: %+v", synced)
	}
}

func TestProbeCandidatesSkipsDeadSubtrees(t *testing.T) {
	live := &Channel{Address: "rtmp://h/live"}
	sources := []*Source{
		{Address: "s1", Result: 3, Platforms: []*Platform{
			{Result: 1, Channels: []*Channel{live}},
			{Result: 0, Channels: []*Channel{{Address: "rtmp://h/platform-dead"}}},
		}},
		{Address: "s2", Result: 0, Platforms: []*Platform{
			{Result: 1, Channels: []*Channel{{Address: "rtmp://h/source-dead"}}},
		}},
	}
	got := ProbeCandidates(sources)
	if len(got) != 1 || got[0] != live {
		t.Fatalf("unexpected candidates: %v", addresses(got))
	}
	if CountChannels(sources) != 3 {
		t.Fatalf("CountChannels = %d", CountChannels(sources))
	}
}

func TestSortChannelsIgnoresDigits(t *testing.T) {
	channels := []*Channel{
		{Address: "1", Name: "湖南卫视"},
		{Address: "2", Name: "CCTV13"},
		{Address: "3", Name: "北京卫视"},
		{Address: "4", Name: "CCTV1"},
	}
	SortChannels(textutil.NewCollator(textutil.DefaultTag), channels)
	got := addresses(channels)
	pos := make(map[string]int, len(got))
	for i, addr := range got {
		pos[addr] = i
	}
	if pos["4"] != pos["2"]+1 {
		t.Fatalf("CCTV entries should tie and keep input order, got %v", got)
	}
	if pos["3"] > pos["1"] {
		t.Fatalf("expected 北京 before 湖南, got %v", got)
	}
}

func TestCodecRoundTripPreservesExtraAndUnicode(t *testing.T) {
	codec := NewCodec(config.Default().Keys)
	input := `[
  {
    "address": "http://feeds.example/live/",
    "result": 4,
    "note": "local",
    "pingtai": [
      {
        "address": "http://feeds.example/live/douyu.json",
        "result": 1,
        "title": "斗鱼",
        "zhubo": [
          {"address": "rtmp://h/app/s1", "title": "主播一", "logo": "x.png"}
        ]
      }
    ]
  }
]`
	sources, err := codec.DecodeTree([]byte(input))
	if err != nil {
		t.Fatalf("DecodeTree: %v", err)
	}
	src := sources[0]
	if src.Result != 4 || src.Extra["note"] != "local" {
		t.Fatalf("unexpected source: %+v", src)
	}
	pf := src.Platforms[0]
	if pf.Extra["title"] != "斗鱼" || pf.Channels[0].Name != "主播一" || pf.Channels[0].Extra["logo"] != "x.png" {
		t.Fatalf("unexpected platform: %+v", pf)
	}

	out, err := codec.EncodeTree(sources)
	if err != nil {
		t.Fatalf("EncodeTree: %v", err)
	}
	if !strings.Contains(string(out), "主播一") {
		t.Fatalf("non-ASCII should be preserved, got %s", out)
	}
	again, err := codec.DecodeTree(out)
	if err != nil {
		t.Fatalf("DecodeTree again: %v", err)
	}
	if diff := cmp.Diff(sources, again); diff != "" {
		t.Fatalf("round trip changed tree (-want +got):\n%s", diff)
	}
}

func TestCodecPayloadShapes(t *testing.T) {
	codec := NewCodec(config.Default().Keys)

	platforms, err := codec.DecodePlatformIndex([]byte(`{"pingtai":[{"address":"a.json","title":"A"},{"title":"no address"}]}`))
	if err != nil {
		t.Fatalf("DecodePlatformIndex: %v", err)
	}
	if len(platforms) != 1 || platforms[0].Address != "a.json" || platforms[0].Extra["title"] != "A" {
		t.Fatalf("unexpected platforms: %+v", platforms)
	}

	if _, err := codec.DecodePlatformIndex([]byte(`{"other":[]}`)); err == nil || !strings.Contains(err.Error(), "pingtai") {
		t.Fatalf("expected schema error, got %v", err)
	}
	if _, err := codec.DecodeChannelList([]byte(`{"zhubo": 5}`)); err == nil {
		t.Fatal("expected error for non-array channel list")
	}
	if _, err := codec.DecodeChannelList([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}

	channels, err := codec.DecodeChannelList([]byte(`[{"address":"rtmp://h/x","title":"X"}]`))
	if err != nil || len(channels) != 1 || channels[0].Name != "X" {
		t.Fatalf("bare array: %+v %v", channels, err)
	}
}
