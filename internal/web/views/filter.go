// Package views renders the storefront HTML as templ components.
package views

//go:generate templ generate

import "net/url"

// Filter is the catalog selection a page was rendered for.
type Filter struct {
	Category string
	Query    string
}

// Values encodes the non-empty fields as category and q.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Category != "" {
		v.Set("category", f.Category)
	}
	if f.Query != "" {
		v.Set("q", f.Query)
	}
	return v
}

// HomeURL links back to the shop page with f applied.
func (f Filter) HomeURL() string {
	if enc := f.Values().Encode(); enc != "" {
		return "/?" + enc
	}
	return "/"
}
