package rodpage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/hazyhaar/composer/transport"
)

const testPage = `<!doctype html><html><body><script>
window.focusTextEditor = function () {
	window.ReactNativeWebView.postMessage(JSON.stringify({type: "onFocus", data: true}));
};
window.ReactNativeWebView.postMessage(JSON.stringify({type: "isMounted", data: true}));
</script></body></html>`

func openTestPage(t *testing.T, url string) *Page {
	t.Helper()
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("rodpage: no Chrome on this machine")
	}
	b, stop, err := Launch(true, "", nil)
	if err != nil {
		t.Skipf("rodpage: launch: %v", err)
	}
	t.Cleanup(stop)
	p, err := Open(b, url, WithLoadTimeout(10*time.Second))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func nextData(t *testing.T, events <-chan transport.Event) string {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Detached {
				continue
			}
			return string(ev.Data)
		case <-deadline:
			t.Fatal("timeout waiting for binding call")
		}
	}
}

func TestPage_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(testPage))
	}))
	defer srv.Close()

	p := openTestPage(t, srv.URL)
	ctx := context.Background()

	if err := p.Inject(ctx, "1;"); !errors.Is(err, transport.ErrNotAttached) {
		t.Fatalf("Inject before load: got %v, want ErrNotAttached", err)
	}

	events := p.Listen(ctx)
	if err := p.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := nextData(t, events); got != `{"type":"isMounted","data":true}` {
		t.Fatalf("first frame: got %s", got)
	}

	if err := p.Inject(ctx, "window.focusTextEditor();true;"); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if got := nextData(t, events); got != `{"type":"onFocus","data":true}` {
		t.Fatalf("reply: got %s", got)
	}
}

func TestPage_LoadError(t *testing.T) {
	p := openTestPage(t, "http://127.0.0.1:1/missing")
	err := p.Load(context.Background())
	var le *transport.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("Load: got %v, want LoadError", err)
	}
}
