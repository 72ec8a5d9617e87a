// Package browser owns the headless browser session shared by the jobs of
// one worker run.
//
// A [Manager] launches the browser on the first call to [Manager.Session]
// and keeps it alive until [Manager.Close]. Every task opens its own [Tab]
// so navigation state never leaks between jobs, even when several jobs use
// the session concurrently. The default [Launcher] drives Chrome through
// chromedp; tests substitute their own.
package browser
