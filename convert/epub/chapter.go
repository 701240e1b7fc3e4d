package epub

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"brc/utils/images"
)

// sanitizer strips scripting and event handlers from chapter markup
// before it leaves the process. Data URLs stay allowed because image
// rewriting depends on them.
var sanitizer = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	p.AllowAttrs("class", "id").Globally()
	return p
}()

// ChapterHTML renders one chapter with emphasis applied and images
// embedded: the markup is parsed, images become data URLs, prose gets the
// bionic treatment, and the body content is serialized and sanitized for
// direct serving.
func (b *Book) ChapterHTML(index int, ratio float64, opts images.EmbedOptions) (string, error) {

	raw, name, err := b.RawChapter(index)
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("unable to parse chapter markup (%s): %w", name, err)
	}

	RewriteImages(doc, b, opts, b.log)
	Inject(doc, ratio)

	body := findBody(doc)
	if body == nil {
		return "", fmt.Errorf("chapter has no body (%s)", name)
	}

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("unable to render chapter markup (%s): %w", name, err)
		}
	}
	return sanitizer.Sanitize(buf.String()), nil
}
