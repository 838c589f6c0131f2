package bridge

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/url"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"promptbridge/internal/gateway/repository/artifact"
)

// ImagesPath is the path segment, relative to the request base URL, that
// materialized images are served under.
const ImagesPath = "images/"

// Materializer re-encodes worker output as PNG and stores it.
type Materializer struct {
	store artifact.Store
}

func NewMaterializer(store artifact.Store) *Materializer {
	return &Materializer{store: store}
}

// Materialize decodes data (any registered format, sniffed from content),
// stores it as "{clientID}-{stepID}.png" and returns its URL. An existing
// artifact with the same name is replaced.
func (m *Materializer) Materialize(ctx context.Context, stepID string, data []byte, clientID string, baseURL *url.URL) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", newError(KindMaterialize, "decode", fmt.Errorf("step %s: %w", stepID, err))
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", newError(KindMaterialize, "encode", fmt.Errorf("step %s: %w", stepID, err))
	}

	name := ArtifactName(clientID, stepID)
	if err := m.store.Put(ctx, name, buf.Bytes()); err != nil {
		return "", newError(KindMaterialize, "store", fmt.Errorf("%s: %w", name, err))
	}
	storeURL, err := m.store.GetURL(ctx, name)
	if err != nil {
		return "", newError(KindMaterialize, "url", fmt.Errorf("%s: %w", name, err))
	}
	if storeURL != "" {
		return storeURL, nil
	}
	if baseURL == nil {
		return "", newError(KindMaterialize, "url", fmt.Errorf("%s: no base url", name))
	}
	return PublicURL(baseURL, name), nil
}

// ArtifactName builds the stored file name. Characters outside
// [A-Za-z0-9_-] are replaced so node ids cannot escape the image dir.
func ArtifactName(clientID, stepID string) string {
	return sanitize(clientID) + "-" + sanitize(stepID) + ".png"
}

// PublicURL resolves "images/{name}" against base the way a browser
// resolves a relative link.
func PublicURL(base *url.URL, name string) string {
	return base.ResolveReference(&url.URL{Path: ImagesPath + name}).String()
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
