package collector

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const browserExtractTimeout = 20 * time.Second

// BrowserExtractor pulls readable body text out of JS-rendered article
// pages. One headless instance is reused for the whole process.
type BrowserExtractor struct {
	browserCtx context.Context
	cancel     context.CancelFunc
}

func NewBrowserExtractor(parent context.Context) (*BrowserExtractor, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, chromedp.DefaultExecAllocatorOptions[:]...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Warm up so the first extraction does not pay browser startup.
	if err := chromedp.Run(browserCtx); err != nil {
		log.Printf("browser: warmup failed: %v", err)
	}

	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}
	return &BrowserExtractor{browserCtx: browserCtx, cancel: cancel}, nil
}

func (b *BrowserExtractor) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// ExtractText navigates to url and evaluates the extraction script,
// truncating the result to maxChars runes.
func (b *BrowserExtractor) ExtractText(ctx context.Context, url string, maxChars int) (string, error) {
	if maxChars <= 0 || maxChars > 8000 {
		maxChars = 2000
	}

	runCtx, cancel := context.WithTimeout(b.browserCtx, browserExtractTimeout)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		runCtx, dcancel = context.WithDeadline(runCtx, deadline)
		defer dcancel()
	}

	var text string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(extractJS, &text),
	)
	if err != nil {
		return "", err
	}

	text = collapseBlankLines(text)
	if text == "" {
		return "", errors.New("empty content")
	}

	rs := []rune(text)
	if len(rs) > maxChars {
		text = string(rs[:maxChars]) + "…"
	}
	return text, nil
}

func collapseBlankLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}

// extractJS prefers common article containers, falling back to the longer
// paragraphs of the whole page.
const extractJS = `(function () {
  function getTextFromSelector(selector) {
    var el = document.querySelector(selector);
    if (!el) return "";
    return el.innerText || "";
  }

  var selectors = [
    "article",
    "div.article-content",
    "div#article-content",
    "div#content",
    "div.main-content",
    "div.content",
    "div.article"
  ];

  var text = "";
  for (var i = 0; i < selectors.length; i++) {
    text = getTextFromSelector(selectors[i]).trim();
    if (text && text.length > 200) {
      break;
    }
  }

  if (!text || text.length < 200) {
    var nodes = Array.prototype.slice.call(document.querySelectorAll("p, div"));
    var pieces = [];
    for (var j = 0; j < nodes.length; j++) {
      var t = (nodes[j].innerText || "").trim();
      if (t.length >= 40) {
        pieces.push(t);
      }
      if (pieces.join("\n\n").length > 4000) break;
    }
    text = pieces.join("\n\n");
  }

  return (text || "").replace(/\s+\n/g, "\n").trim();
})();`
