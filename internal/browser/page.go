package browser

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// The case table is an antd table; the page's fixed structure is the whole
// point of this bot.
const (
	checkboxSelector  = "input[type='checkbox']"
	uncheckedSelector = "input[type='checkbox']:not(:checked)"
	switchSelector    = "button[role='switch']"
)

var confirmSelectors = []string{
	"button.ant-btn.ant-btn-primary.Confirm_bottom",
	"button.Confirm_bottom",
	"button.ant-btn-primary",
	"input[value='Confirm']",
}

// OpenForum navigates to the case table page.
func (s *Session) OpenForum(ctx context.Context) error {
	return s.navigate(ctx, s.cfg.BaseURL)
}

// CountCases returns the number of case checkboxes currently on the page.
func (s *Session) CountCases(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tctx, cancel, err := s.op()
	if err != nil {
		return 0, err
	}
	defer cancel()
	var nodes []*cdp.Node
	if err := chromedp.Run(tctx, chromedp.Nodes(checkboxSelector, &nodes, chromedp.AtLeast(0))); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// EnableIntakeSwitch flips the case-intake switch on if the page has one and
// it is off. A missing switch is not an error; not every deploy shows it.
func (s *Session) EnableIntakeSwitch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel, err := s.op()
	if err != nil {
		return err
	}
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(tctx, chromedp.Nodes(switchSelector, &nodes, chromedp.AtLeast(0))); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}

	var checked string
	var ok bool
	if err := chromedp.Run(tctx, chromedp.AttributeValue(switchSelector, "aria-checked", &checked, &ok)); err != nil {
		return err
	}
	if ok && checked == "true" {
		return nil
	}
	return s.click(switchSelector)
}

// SelectFirstCase ticks the first unselected case checkbox. It returns false
// when every checkbox is already selected or none exist.
func (s *Session) SelectFirstCase(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	tctx, cancel, err := s.op()
	if err != nil {
		return false, err
	}
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(tctx, chromedp.Nodes(uncheckedSelector, &nodes, chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	if len(nodes) == 0 {
		return false, nil
	}
	if err := s.click(uncheckedSelector); err != nil {
		return false, err
	}
	return true, nil
}

// ClickConfirm presses the confirmation control under the table.
func (s *Session) ClickConfirm(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sel, err := s.firstMatch(confirmSelectors)
	if err != nil {
		return fmt.Errorf("browser: confirm button: %w", err)
	}
	return s.click(sel)
}

// click scrolls the element into view and clicks it, retrying once and
// falling back to a JavaScript click for elements chromedp cannot hit (antd
// overlays its checkboxes with styled spans).
func (s *Session) click(sel string) error {
	tctx, cancel, err := s.op()
	if err != nil {
		return err
	}
	defer cancel()

	err = retry.Do(
		func() error {
			return chromedp.Run(tctx,
				chromedp.ScrollIntoView(sel, chromedp.NodeVisible),
				chromedp.Click(sel, chromedp.NodeVisible),
			)
		},
		retry.Attempts(2),
		retry.Context(tctx),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return nil
	}
	return chromedp.Run(tctx,
		chromedp.Evaluate(fmt.Sprintf("document.querySelector(%q).click()", sel), nil),
	)
}
