package epub

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"go.uber.org/zap"

	"brc/utils/images"
)

// RewriteImages replaces img src attributes with data URLs built from the
// book's own resources, making the chapter markup self contained. An
// image that cannot be resolved or embedded keeps its original reference
// and never fails the chapter. Runs before Inject so alt text does not
// pick up emphasis markup positions.
func RewriteImages(doc *html.Node, b *Book, opts images.EmbedOptions, log *zap.Logger) {

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Img || strings.EqualFold(n.Data, "img")) {
			rewriteImg(n, b, opts, log)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

func rewriteImg(n *html.Node, b *Book, opts images.EmbedOptions, log *zap.Logger) {

	for i, attr := range n.Attr {
		if attr.Key != "src" || attr.Val == "" || strings.HasPrefix(attr.Val, "data:") {
			continue
		}

		data, name, err := b.ImageData(attr.Val)
		if err != nil {
			log.Warn("Unable to resolve image reference", zap.String("src", attr.Val), zap.Error(err))
			return
		}
		url, err := images.DataURL(data, name, opts)
		if err != nil {
			log.Warn("Unable to embed image", zap.String("name", name), zap.Error(err))
			return
		}
		n.Attr[i].Val = url
		return
	}
}
