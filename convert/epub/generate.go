package epub

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	fixzip "github.com/hidez8891/zip"
	"golang.org/x/net/html"
	"go.uber.org/zap"
)

// Generate writes a complete bionic variant of an EPUB container:
// every spine document gets emphasis injected, every other entry
// (mimetype, OPF, styles, images, fonts) is copied through untouched so
// the result stays a valid EPUB.
func Generate(ctx context.Context, data []byte, ratio float64, out io.Writer, log *zap.Logger) error {

	book, err := Open(data, log)
	if err != nil {
		return err
	}

	docNames := make(map[string]bool, len(book.docs))
	for _, d := range book.docs {
		docNames[d.href] = true
	}

	r, err := fixzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("unable to read epub archive: %w", err)
	}

	w := fixzip.NewWriter(out)

	for _, file := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !docNames[path.Clean(file.Name)] {
			// unset data descriptor flag.
			file.Flags &= ^fixzip.FlagDataDescriptor

			// copy zip entry
			if err := w.CopyFile(file); err != nil {
				return fmt.Errorf("unable to copy archive entry (%s): %w", file.Name, err)
			}
			continue
		}

		markup, err := readZipFile(file)
		if err != nil {
			return err
		}
		transformed, err := transformDocument(markup, ratio)
		if err != nil {
			// A chapter that does not parse goes through untouched
			// rather than dropping the whole book.
			log.Warn("Unable to transform chapter, keeping original", zap.String("name", file.Name), zap.Error(err))
			transformed = markup
		}

		fw, err := w.CreateHeader(&fixzip.FileHeader{
			Name:   file.Name,
			Method: fixzip.Deflate,
		})
		if err != nil {
			return fmt.Errorf("unable to create archive entry (%s): %w", file.Name, err)
		}
		if _, err := fw.Write(transformed); err != nil {
			return fmt.Errorf("unable to write archive entry (%s): %w", file.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("unable to finalize epub archive: %w", err)
	}
	return nil
}

func readZipFile(file *fixzip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open archive entry (%s): %w", file.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("unable to read archive entry (%s): %w", file.Name, err)
	}
	return data, nil
}

// transformDocument injects emphasis into a single chapter and
// serializes it back.
func transformDocument(markup []byte, ratio float64) ([]byte, error) {

	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, err
	}
	Inject(doc, ratio)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
