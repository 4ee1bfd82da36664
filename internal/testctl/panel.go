package testctl

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Panel is what the control panel page exposes for one lesson.
type Panel struct {
	CreateAction string
	CreateMethod string

	// Active is false when the lesson has no test config yet, in which case the URLs
	// below are empty.
	Active    bool
	StartURL  string
	DeleteURL string

	// EndAt is zero until the active test has been started.
	EndAt time.Time
}

// parsePanel reads the panel's forms, resolving every URL against baseURL.
func parsePanel(r io.Reader, baseURL *url.URL) (Panel, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Panel{}, fmt.Errorf("parse control panel: %w", err)
	}

	var panel Panel
	var endAt string
	var found bool

	var visitNode func(*html.Node)
	visitNode = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch attr(n, "id") {
			case "create-test-form":
				found = true
				panel.CreateAction = resolve(baseURL, attr(n, "action"))
				panel.CreateMethod = strings.ToUpper(attr(n, "method"))
				if panel.CreateMethod == "" {
					panel.CreateMethod = "POST"
				}
			case "active-info":
				panel.Active = true
				panel.StartURL = resolve(baseURL, attr(n, "data-start-url"))
				panel.DeleteURL = resolve(baseURL, attr(n, "data-delete-url"))
			case "test-remaining":
				endAt = attr(n, "data-end-at")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visitNode(c)
		}
	}

	visitNode(doc)

	if !found {
		return Panel{}, fmt.Errorf("control panel has no create-test-form")
	}
	if endAt != "" {
		if panel.EndAt, err = ParseTime(endAt); err != nil {
			return Panel{}, fmt.Errorf("parse data-end-at: %w", err)
		}
	}
	return panel, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolve(baseURL *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(parsed).String()
}
