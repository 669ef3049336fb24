package auth

import (
	"github.com/chromedp/chromedp"

	"github.com/omtx/go-extract-orders/config"
)

// Selectors for the vendor login form and the authenticated shell.
const (
	loginEmailSelector    = `input[name="email"]`
	loginPasswordSelector = `input[name="password"]`
	loginSubmitSelector   = `button[type="submit"]`
	authenticatedSelector = `.nk-sidebar`
)

// BrowserLoginTasks returns the chromedp actions that perform the vendor
// login inside a browser context. The final wait asserts the
// authenticated shell rendered; a timeout there means the credentials
// were rejected or the login page shape changed.
func BrowserLoginTasks(cfg *config.Config) chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.Navigate(cfg.LoginURL),
		chromedp.WaitVisible(loginEmailSelector, chromedp.ByQuery),
		chromedp.SendKeys(loginEmailSelector, cfg.Email, chromedp.ByQuery),
		chromedp.SendKeys(loginPasswordSelector, cfg.Password, chromedp.ByQuery),
		chromedp.Click(loginSubmitSelector, chromedp.ByQuery),
		chromedp.WaitVisible(authenticatedSelector, chromedp.ByQuery),
	}
}
