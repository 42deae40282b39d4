package cdp

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/anchorstack/pkg/errors"
)

func TestSelectorFor(t *testing.T) {
	tests := []struct {
		tmpl, id, want string
	}{
		{`[data-anchor-id="%s"]`, "c1", `[data-anchor-id="c1"]`},
		{`#comment-%s .card`, "42", `#comment-42 .card`},
	}
	for _, tt := range tests {
		if got := selectorFor(tt.tmpl, tt.id); got != tt.want {
			t.Errorf("selectorFor(%q, %q) = %q, want %q", tt.tmpl, tt.id, got, tt.want)
		}
	}
	if got := attrSelector("data-x"); got != `[data-x="%s"]` {
		t.Errorf("attrSelector() = %q", got)
	}
}

func TestJSString(t *testing.T) {
	got := jsString(`a"b</script>`)
	var back string
	if err := json.Unmarshal([]byte(got), &back); err != nil || back != `a"b</script>` {
		t.Errorf("jsString round trip = %q, %v", back, err)
	}
}

func TestScriptsEmbedArguments(t *testing.T) {
	if s := boundsScript(`[data-anchor-id="a"]`); !strings.Contains(s, `"[data-anchor-id=\"a\"]"`) {
		t.Errorf("boundsScript should embed the quoted selector:\n%s", s)
	}
	if s := discoverScript("data-anchor-id"); !strings.Contains(s, `"data-anchor-id"`) {
		t.Errorf("discoverScript should embed the attribute:\n%s", s)
	}
	s := applyScript([]applyEntry{{Selector: "#a", Top: -12.5, Stacked: true}})
	if !strings.Contains(s, `{"selector":"#a","top":-12.5,"stacked":true}`) {
		t.Errorf("applyScript should embed the entries:\n%s", s)
	}
	if s := heightsScript([]string{"#a", "#b"}); !strings.Contains(s, `["#a","#b"]`) {
		t.Errorf("heightsScript should embed the selectors:\n%s", s)
	}
}

func TestScriptsTolerateBadSelectors(t *testing.T) {
	scripts := map[string]string{
		"bounds":  boundsScript(`[data-anchor-id="a"]`),
		"heights": heightsScript([]string{"#a"}),
		"apply":   applyScript([]applyEntry{{Selector: "#a"}}),
	}
	for name, s := range scripts {
		if !strings.Contains(s, queryFn) || strings.Count(s, "document.querySelector(") != 1 {
			t.Errorf("%s script should query through queryFn:\n%s", name, s)
		}
	}
}

func TestUsableIDs(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		want    []string
		skipped int
	}{
		{"all valid", []string{"a", "b-2", "c 3"}, []string{"a", "b-2", "c 3"}, 0},
		{"quote", []string{"a", `x"y`, "b"}, []string{"a", "b"}, 1},
		{"backslash and control", []string{`p\q`, "r\ts", "t"}, []string{"t"}, 2},
		{"none", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			got := usableIDs(tt.ids, log.New(&buf))
			if len(got) == 0 && len(tt.want) == 0 {
				got = nil
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("usableIDs() = %q, want %q", got, tt.want)
			}
			if n := strings.Count(buf.String(), "skipping anchor"); n != tt.skipped {
				t.Errorf("logged %d skipped anchors, want %d:\n%s", n, tt.skipped, buf.String())
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	if c.AnchorSelector != `[data-anchor-id="%s"]` || c.CardSelector != `[data-card-id="%s"]` {
		t.Errorf("selectors = %q, %q", c.AnchorSelector, c.CardSelector)
	}
	if c.FrameInterval != DefaultFrameInterval || c.PollInterval != DefaultPollInterval || c.Timeout != DefaultTimeout {
		t.Errorf("intervals = %v %v %v", c.FrameInterval, c.PollInterval, c.Timeout)
	}
	if c.Logger == nil {
		t.Error("Logger should default")
	}

	custom := Config{AnchorAttr: "data-ref", FrameInterval: time.Second}.withDefaults()
	if custom.AnchorSelector != `[data-ref="%s"]` || custom.FrameInterval != time.Second {
		t.Errorf("custom = %+v", custom)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"custom templates", Config{AnchorSelector: "#a-%s", CardSelector: "#c-%s"}, false},
		{"missing verb", Config{AnchorSelector: "#anchor"}, true},
		{"two verbs", Config{CardSelector: "#%s-%s"}, true},
		{"other verb", Config{CardSelector: "#%d-%s"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errs.Is(err, errs.ErrCodeInvalidSelector) {
				t.Errorf("Validate() error = %v, want INVALID_SELECTOR", err)
			}
		})
	}
}

func TestNewRequiresChromedpContext(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("New() error = %v, want INVALID_INPUT", err)
	}
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, _, err := Open(context.Background(), "ftp://example.com", BrowserOptions{})
	if !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("Open() error = %v, want INVALID_INPUT", err)
	}
}

type tabKey struct{}

func TestJoinContext(t *testing.T) {
	base := context.WithValue(context.Background(), tabKey{}, "tab")
	op, cancelOp := context.WithCancel(context.Background())

	ctx, cancel := joinContext(base, op)
	defer cancel()
	if ctx.Value(tabKey{}) != "tab" {
		t.Error("joined context should carry base values")
	}

	cancelOp()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("joined context should be cancelled with op")
	}
}

func TestAwaitQuiet(t *testing.T) {
	settled := make(chan struct{})
	published := make(chan struct{}, 1)
	done := make(chan error, 1)

	go func() {
		done <- awaitQuiet(context.Background(), settled, published, 20*time.Millisecond, 5*time.Second)
	}()

	published <- struct{}{}
	select {
	case <-done:
		t.Fatal("returned before the page settled")
	case <-time.After(60 * time.Millisecond):
	}

	close(settled)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("awaitQuiet: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("did not return after settling")
	}
}

func TestAwaitQuietLimit(t *testing.T) {
	start := time.Now()
	err := awaitQuiet(context.Background(), make(chan struct{}), make(chan struct{}), 10*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Errorf("awaitQuiet: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("limit not honoured")
	}
}

func TestAwaitQuietCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := awaitQuiet(ctx, nil, make(chan struct{}), time.Second, time.Minute); err != context.Canceled {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
