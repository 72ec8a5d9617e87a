// Package ottoneu scrapes Ottoneu fantasy football pages. Parsing is pure
// goquery over an HTML document; Scraper drives a browser.Tab to load the
// pages and hands their HTML to the parsers.
package ottoneu
