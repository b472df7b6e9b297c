// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import "github.com/gin-gonic/gin"

const (
	PageCreateAccount = "create-account"
	PageSignIn        = "sign-in"
)

// Page is one navigation entry and the view it renders.
type Page struct {
	Label  string
	Slug   string
	Render func(c *gin.Context, data *PageData)
}

// NavItem is a rendered navigation link.
type NavItem struct {
	Label  string
	Slug   string
	Active bool
}

// Navigation is the fixed, ordered page menu. The first page is the default.
type Navigation struct {
	pages []Page
}

func NewNavigation(pages ...Page) *Navigation {
	if len(pages) == 0 {
		panic("navigation needs at least one page")
	}
	return &Navigation{pages: pages}
}

// Select returns the page for slug, falling back to the default page, so
// exactly one page renders per request.
func (n *Navigation) Select(slug string) Page {
	for _, p := range n.pages {
		if p.Slug == slug {
			return p
		}
	}
	return n.pages[0]
}

func (n *Navigation) Items(active string) []NavItem {
	items := make([]NavItem, 0, len(n.pages))
	for _, p := range n.pages {
		items = append(items, NavItem{Label: p.Label, Slug: p.Slug, Active: p.Slug == active})
	}
	return items
}
