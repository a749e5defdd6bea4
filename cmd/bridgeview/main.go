// Command bridgeview opens a desktop webview and registers it with an
// in-process bridge, so a page can be checked against the delivered payloads
// without a mobile host.
//
// Usage:
//
//	go run ./cmd/bridgeview -url https://example.test/ad.html
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"runtime"

	webview "github.com/webview/webview_go"

	"github.com/couchcryptid/adcontext-bridge/internal/adapter/viewconsumer"
	"github.com/couchcryptid/adcontext-bridge/internal/app"
	"github.com/couchcryptid/adcontext-bridge/internal/config"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
)

func main() {
	url := flag.String("url", "", "page to load; a built-in page is shown when empty")
	inject := flag.Bool("inject", false, "inject the basic mobile payload instead of registering for full delivery")
	debug := flag.Bool("devtools", false, "enable the webview developer tools")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg)

	a, err := app.New(cfg, logger, observability.NewMetrics())
	if err != nil {
		logger.Error("failed to start bridge", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	// Webview requires main thread
	runtime.LockOSThread()

	w := webview.New(*debug)
	defer w.Destroy()
	w.SetTitle("adcontext bridge")
	w.SetSize(430, 932, webview.HintNone)

	consumer, err := viewconsumer.New(w, logger)
	if err != nil {
		logger.Error("failed to attach consumer", "error", err)
		os.Exit(1)
	}

	if *inject {
		consumer.OnLoadFinished(func() {
			if err := a.Bridge.Inject(ctx, consumer); err != nil {
				logger.Error("inject failed", "error", err)
			}
		})
	} else if _, err := a.Bridge.Register(ctx, consumer); err != nil {
		logger.Error("register failed", "error", err)
		os.Exit(1)
	}

	if *url != "" {
		w.Navigate(*url)
	} else {
		w.SetHtml(defaultPage)
	}
	w.Run()
}

const defaultPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>adcontext bridge</title></head>
<body style="font-family: sans-serif">
<h3 id="status">waiting for data</h3>
<pre id="payload"></pre>
<script>
window.onSdkDataReady = function (mobile, geo, device, sdk) {
  document.getElementById('status').textContent = 'data ready';
  document.getElementById('payload').textContent =
    JSON.stringify({ mobile: mobile, geo: geo, device: device, sdk: sdk }, null, 2);
};
</script>
</body>
</html>`
