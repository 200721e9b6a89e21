// File: internal/session/interaction.go

// High-level user interaction methods for a Session: navigate, click, type,
// and read element state. Clicks are followed by an interaction gate wait so
// successive actions keep a human-looking minimum spacing; typing is not
// gated (callers pace it themselves when needed).
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// clickFirstDisplayedScript clicks the first match that is actually rendered.
// Hidden matches are skipped entirely, so a selector whose every match is
// hidden reports no element found.
const clickFirstDisplayedScript = `(() => {
	const matches = document.querySelectorAll(%s);
	for (const el of matches) {
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') continue;
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 && rect.height === 0) continue;
		el.click();
		return true;
	}
	return false;
})()`

const elementsTextScript = `Array.from(document.querySelectorAll(%s)).map((el) => el.textContent.trim())`

const elementsAttrScript = `Array.from(document.querySelectorAll(%s)).map((el) => el.getAttribute(%s) || '')`

const optionPairsScript = `Array.from(document.querySelectorAll(%s)).map((el) => ({text: el.textContent.trim(), value: el.getAttribute(%s) || ''}))`

// jsQuote encodes a Go string as a JavaScript string literal.
func jsQuote(s string) string {
	quoted, err := json.MarshalToString(s)
	if err != nil {
		// Marshalling a string cannot fail; keep a safe fallback anyway.
		return `""`
	}
	return quoted
}

// OpenURL navigates to url and blocks until an element matching
// awaitSelector exists in the DOM, or the session timeout elapses
// (ErrTimeout). Configures the session lazily if needed.
func (s *Session) OpenURL(ctx context.Context, url, awaitSelector string) error {
	if err := s.ensureConfigured(ctx); err != nil {
		return err
	}

	s.logger.Info("Opening URL.", zap.String("url", url), zap.String("await_selector", awaitSelector))

	if err := s.run(ctx, s.timeout(), chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %q failed: %w", url, err)
	}
	return s.waitForSelector(ctx, awaitSelector)
}

// waitForSelector blocks until selector is present in the DOM, converting
// deadline expiry into ErrTimeout.
func (s *Session) waitForSelector(ctx context.Context, selector string) error {
	err := s.run(ctx, s.timeout(), chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("selector %q did not appear within %s: %w", selector, s.timeout(), ErrTimeout)
		}
		return fmt.Errorf("wait for selector %q failed: %w", selector, err)
	}
	return nil
}

// clickFirstDisplayed dispatches a click on the first displayed match of
// selector, or fails with ErrElementNotFound when every match is hidden or
// nothing matches.
func (s *Session) clickFirstDisplayed(ctx context.Context, selector string) error {
	script := fmt.Sprintf(clickFirstDisplayedScript, jsQuote(selector))

	var clicked bool
	if err := s.run(ctx, s.timeout(), chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("click evaluation failed for selector %q: %w", selector, err)
	}
	if !clicked {
		return fmt.Errorf("click %q: %w", selector, ErrElementNotFound)
	}
	return nil
}

// ClickElement clicks the first displayed element matching selector, then
// applies the interaction gate wait.
func (s *Session) ClickElement(ctx context.Context, selector string) error {
	s.logger.Info("Clicking element.", zap.String("selector", selector))

	if err := s.clickFirstDisplayed(ctx, selector); err != nil {
		return err
	}
	return s.gate.WaitSome(ctx)
}

// ClickElementAndWaitForSelector clicks, waits for awaitSelector to appear,
// then applies the gate wait, in that order.
func (s *Session) ClickElementAndWaitForSelector(ctx context.Context, selector, awaitSelector string) error {
	s.logger.Info("Clicking element and awaiting selector.",
		zap.String("selector", selector), zap.String("await_selector", awaitSelector))

	if err := s.clickFirstDisplayed(ctx, selector); err != nil {
		return err
	}
	if err := s.waitForSelector(ctx, awaitSelector); err != nil {
		return err
	}
	return s.gate.WaitSome(ctx)
}

// EnterInput sends keystrokes to the first element matching selector,
// regardless of visibility. No gate wait: pacing around typing is the
// caller's responsibility.
func (s *Session) EnterInput(ctx context.Context, selector, text string) error {
	s.logger.Info("Entering input.", zap.String("selector", selector), zap.Int("text_length", len(text)))

	if err := s.run(ctx, s.timeout(), chromedp.SendKeys(selector, text, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("typing into %q failed: %w", selector, err)
	}
	return nil
}

// GetElementText returns the text content of the first element matching
// selector. Absence of a match surfaces as the driver's wait failure.
func (s *Session) GetElementText(ctx context.Context, selector string) (string, error) {
	var text string
	if err := s.run(ctx, s.timeout(), chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading text of %q failed: %w", selector, err)
	}
	return text, nil
}

// GetElementAttributeValue returns the named attribute of the first element
// matching selector. A present element with an absent attribute yields "".
func (s *Session) GetElementAttributeValue(ctx context.Context, selector, attr string) (string, error) {
	var value string
	var ok bool
	if err := s.run(ctx, s.timeout(), chromedp.AttributeValue(selector, attr, &value, &ok, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading attribute %q of %q failed: %w", attr, selector, err)
	}
	if !ok {
		s.logger.Debug("Attribute absent on matched element.",
			zap.String("selector", selector), zap.String("attribute", attr))
	}
	return value, nil
}

// GetElementsText returns the text content of every element matching
// selector in DOM order. No matches yields an empty slice, never an error.
func (s *Session) GetElementsText(ctx context.Context, selector string) ([]string, error) {
	script := fmt.Sprintf(elementsTextScript, jsQuote(selector))

	var texts []string
	if err := s.run(ctx, s.timeout(), chromedp.Evaluate(script, &texts)); err != nil {
		return nil, fmt.Errorf("collecting texts for %q failed: %w", selector, err)
	}
	return texts, nil
}

// GetElementsAttributeValue returns the named attribute of every element
// matching selector in DOM order; elements without the attribute contribute
// an empty string. No matches yields an empty slice, never an error.
func (s *Session) GetElementsAttributeValue(ctx context.Context, selector, attr string) ([]string, error) {
	script := fmt.Sprintf(elementsAttrScript, jsQuote(selector), jsQuote(attr))

	var values []string
	if err := s.run(ctx, s.timeout(), chromedp.Evaluate(script, &values)); err != nil {
		return nil, fmt.Errorf("collecting attribute %q for %q failed: %w", attr, selector, err)
	}
	return values, nil
}

// optionPair is one matched element's text content and mapped attribute.
type optionPair struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

// EnumerateSelect maps each matching element's text content to its attr
// value. Elements whose attr is empty or absent are skipped. Duplicate text
// keys resolve first-wins: the earliest matched element keeps the entry.
func (s *Session) EnumerateSelect(ctx context.Context, selector, attr string) (map[string]string, error) {
	script := fmt.Sprintf(optionPairsScript, jsQuote(selector), jsQuote(attr))

	var pairs []optionPair
	if err := s.run(ctx, s.timeout(), chromedp.Evaluate(script, &pairs)); err != nil {
		return nil, fmt.Errorf("enumerating %q failed: %w", selector, err)
	}
	return buildSelectIndex(pairs), nil
}

// buildSelectIndex folds option pairs into a text-to-value mapping, skipping
// empty values and keeping the first entry on duplicate text.
func buildSelectIndex(pairs []optionPair) map[string]string {
	index := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p.Value == "" {
			continue
		}
		if _, exists := index[p.Text]; exists {
			continue
		}
		index[p.Text] = p.Value
	}
	return index
}

// CurrentURL returns the address of the current page.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, s.timeout(), chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("reading current URL failed: %w", err)
	}
	return location, nil
}

// PageSource returns the serialized HTML of the current page.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	var source string
	if err := s.run(ctx, s.timeout(), chromedp.OuterHTML("html", &source, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page source failed: %w", err)
	}
	return source, nil
}
