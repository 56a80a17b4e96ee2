// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Selectors for the step-by-step block layout:
//
//	<section>            step-by-step block (has the header image)
//	  <header/>
//	  <section/>
//	  <div/>             placeholder wrapping the solution image
//	  <section/>         upsell footer (links to /pro/)
//	  <button/>
//	</section>
//
// The placeholder and footer may be added on their own, or together as
// part of a newly added block. Either is touched only when the block's
// solution image is in the marker set.
const (
	headerSelector = `img[alt="SBS_HEADER"]`
	footerSelector = `a[href*="/pro/"]`
	imageSelector  = `img[src*="Calculate/MSP"]`

	unwrappedImageMargin = "margin: 20px"
)

// Mutation is one batch of structural changes: the nodes added to the
// tree.
type Mutation struct {
	Added []*html.Node
}

// Stats counts what one Observe call did.
type Stats struct {
	FootersRemoved  int
	ImagesUnwrapped int

	// Unmarked counts placeholders and whole blocks left alone because
	// their image was not patched in the stream.
	Unmarked int
}

// Observer applies the cosmetic restructuring to added nodes.
type Observer struct {
	markers *MarkerSet
	logger  *slog.Logger
}

// New creates an observer consulting markers.
func New(markers *MarkerSet, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{markers: markers, logger: logger}
}

// Observe processes every added node of every mutation in order. Nodes
// must already be attached to their parents.
func (o *Observer) Observe(mutations []Mutation) Stats {
	var stats Stats
	for _, mutation := range mutations {
		for _, node := range mutation.Added {
			o.visit(node, &stats)
		}
	}
	if stats.FootersRemoved > 0 || stats.ImagesUnwrapped > 0 {
		o.logger.Debug("reconciled step-by-step output",
			"footers_removed", stats.FootersRemoved,
			"images_unwrapped", stats.ImagesUnwrapped,
			"unmarked", stats.Unmarked,
		)
	}
	return stats
}

func (o *Observer) visit(node *html.Node, stats *Stats) {
	if node == nil || node.Type != html.ElementNode {
		return
	}

	switch node.DataAtom {
	case atom.Section:
		if isStepByStep(node) {
			// A whole block was added; process its children as if each
			// had been added on its own, but only once its image has
			// been patched.
			if !hasChildElement(node, atom.Div) {
				return
			}
			if !o.patched(node) {
				stats.Unmarked++
				return
			}
			var children []*html.Node
			for child := node.FirstChild; child != nil; child = child.NextSibling {
				children = append(children, child)
			}
			for _, child := range children {
				o.visit(child, stats)
			}
			return
		}

		if !isStepByStep(node.Parent) || !contains(node, footerSelector) {
			return
		}
		if !o.patched(node.Parent) {
			return
		}
		goquery.NewDocumentFromNode(node).Remove()
		stats.FootersRemoved++

	case atom.Div:
		if !isStepByStep(node.Parent) {
			return
		}
		image := goquery.NewDocumentFromNode(node).Find(imageSelector).First()
		if image.Length() == 0 {
			return
		}
		source, _ := image.Attr("src")
		if !o.markers.Contains(source) {
			stats.Unmarked++
			return
		}
		unwrap(node, image.Nodes[0])
		stats.ImagesUnwrapped++
	}
}

// patched reports whether the solution image inside block is in the
// marker set. The image may still sit in its placeholder or may
// already have been unwrapped into the block.
func (o *Observer) patched(block *html.Node) bool {
	image := goquery.NewDocumentFromNode(block).Find(imageSelector).First()
	if image.Length() == 0 {
		return false
	}
	source, _ := image.Attr("src")
	return o.markers.Contains(source)
}

// unwrap replaces container with image, carrying over the container's
// class and adding a margin to the image.
func unwrap(container, image *html.Node) {
	if class, ok := attr(container, "class"); ok {
		setAttr(image, "class", class)
	} else {
		removeAttr(image, "class")
	}
	style, _ := attr(image, "style")
	style = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(style), ";"))
	if style == "" {
		style = unwrappedImageMargin
	} else {
		style += "; " + unwrappedImageMargin
	}
	setAttr(image, "style", style)

	image.Parent.RemoveChild(image)
	parent := container.Parent
	parent.InsertBefore(image, container)
	parent.RemoveChild(container)
}

func isStepByStep(node *html.Node) bool {
	return node != nil && contains(node, headerSelector)
}

// contains reports whether a descendant of node matches selector.
func contains(node *html.Node, selector string) bool {
	return goquery.NewDocumentFromNode(node).Find(selector).Length() > 0
}

func hasChildElement(node *html.Node, element atom.Atom) bool {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.DataAtom == element {
			return true
		}
	}
	return false
}

func attr(node *html.Node, key string) (string, bool) {
	for _, attribute := range node.Attr {
		if attribute.Key == key {
			return attribute.Val, true
		}
	}
	return "", false
}

func setAttr(node *html.Node, key, value string) {
	for index := range node.Attr {
		if node.Attr[index].Key == key {
			node.Attr[index].Val = value
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: key, Val: value})
}

func removeAttr(node *html.Node, key string) {
	kept := node.Attr[:0]
	for _, attribute := range node.Attr {
		if attribute.Key != key {
			kept = append(kept, attribute)
		}
	}
	node.Attr = kept
}
