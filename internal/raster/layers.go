package raster

import (
	"math"

	"golang.org/x/net/html"

	"github.com/pwnholic/slidecap/internal/svgdoc"
)

// Subtrees that only define things referenced elsewhere. They are copied
// into every layer untouched.
var definitionElements = map[string]bool{
	"defs":           true,
	"clipPath":       true,
	"mask":           true,
	"pattern":        true,
	"linearGradient": true,
	"radialGradient": true,
	"symbol":         true,
	"marker":         true,
	"filter":         true,
	"style":          true,
	"title":          true,
	"desc":           true,
	"metadata":       true,
}

// Elements that only group their children.
var containerElements = map[string]bool{
	"svg":    true,
	"g":      true,
	"a":      true,
	"switch": true,
}

type layer struct {
	doc       *svgdoc.Document
	drawables int
}

type plan struct {
	// layers[i] is drawn before images[i]; there is always one more layer
	// than there are images.
	layers []layer
	images []*html.Node
}

// planLayers cuts doc at every <image> element. Layer i keeps the drawable
// elements that sit between image i-1 and image i in document order, plus
// all containers and definitions so references still resolve.
func planLayers(doc *svgdoc.Document) plan {
	order := make(map[*html.Node]int)
	var (
		images    []*html.Node
		positions []int
		seq       int
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			if ch.Type != html.ElementNode || definitionElements[ch.Data] {
				continue
			}
			seq++
			switch {
			case ch.Data == "image":
				images = append(images, ch)
				positions = append(positions, seq)
			case containerElements[ch.Data]:
				walk(ch)
			default:
				order[ch] = seq
			}
		}
	}
	walk(doc.Root())

	if len(images) == 0 {
		return plan{layers: []layer{{doc: doc, drawables: len(order)}}}
	}

	isImage := make(map[*html.Node]bool, len(images))
	for _, img := range images {
		isImage[img] = true
	}

	p := plan{images: images}
	for i := 0; i <= len(images); i++ {
		lo, hi := 0, math.MaxInt
		if i > 0 {
			lo = positions[i-1]
		}
		if i < len(images) {
			hi = positions[i]
		}

		count := 0
		root := svgdoc.CloneNode(doc.Root(), func(n *html.Node) bool {
			if isImage[n] {
				return false
			}
			pos, drawable := order[n]
			if !drawable {
				return true
			}
			if pos > lo && pos < hi {
				count++
				return true
			}
			return false
		})

		layerDoc, _ := svgdoc.New(root, doc.BaseURL)
		p.layers = append(p.layers, layer{doc: layerDoc, drawables: count})
	}
	return p
}
