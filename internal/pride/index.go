package pride

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mmproteo/internal/services"
)

// listIndex scrapes an HTTP directory index, such as the PRIDE FTP mirror
// served over HTTPS, and turns every file link into a File.
func (c *Client) listIndex(ctx context.Context, project string) ([]File, error) {
	if c.indexURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "pride", "list files", "index url not configured", nil)
	}
	pageURL := fmt.Sprintf(c.indexURL, url.PathEscape(project))
	body, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return parseIndex(body, pageURL)
}

func parseIndex(html []byte, pageURL string) ([]File, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	dir := base.Path
	if !strings.HasSuffix(dir, "/") {
		dir = path.Dir(dir) + "/"
	}

	var files []File
	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "?") || strings.HasPrefix(href, "#") || strings.HasSuffix(href, "/") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		link := base.ResolveReference(ref)
		if !strings.HasPrefix(link.Path, dir) {
			return
		}
		name := path.Base(link.Path)
		if name == "" || name == "." || name == "/" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		files = append(files, File{Fields: map[string]string{
			FileNameField:     name,
			DownloadLinkField: link.String(),
		}})
	})
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "pride", "list files", "index page lists no files", nil)
	}
	return files, nil
}
