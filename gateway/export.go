package gateway

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Export writes endpoint lists to the cf_domains_{token}.{ext} /
// cf_all_domains.{ext} file templates. It is a thin, boundary-only writer:
// the format is sketched by spec.md, not specified, since the DNS-management
// API client these files would feed is explicitly out of scope.
type Export struct {
	dir string
}

// NewExport roots an Export at dir, where export files are written.
func NewExport(dir string) *Export {
	return &Export{dir: dir}
}

// WriteTokenScoped writes cf_domains_{token}.{ext} for a single vault token,
// scoped to the endpoints the caller has already resolved for that token.
func (e *Export) WriteTokenScoped(token, ext string, endpoints []string) (string, error) {
	name := fmt.Sprintf("cf_domains_%s.%s", token, ext)
	return e.write(name, ext, endpoints)
}

// WriteAll writes cf_all_domains.{ext} for the full endpoint set.
func (e *Export) WriteAll(ext string, endpoints []string) (string, error) {
	return e.write("cf_all_domains."+ext, ext, endpoints)
}

func (e *Export) write(name, ext string, endpoints []string) (string, error) {
	path := filepath.Join(e.dir, name)

	var data []byte
	var err error
	switch strings.ToLower(ext) {
	case "json":
		data, err = json.MarshalIndent(endpoints, "", "  ")
	case "csv":
		data, err = csvEncode(endpoints)
	default:
		return "", fmt.Errorf("gateway: unsupported export extension %q", ext)
	}
	if err != nil {
		return "", fmt.Errorf("gateway: encode export: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("gateway: write export %s: %w", path, err)
	}
	return path, nil
}

func csvEncode(endpoints []string) ([]byte, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write([]string{"domain"}); err != nil {
		return nil, err
	}
	for _, ep := range endpoints {
		if err := w.Write([]string{ep}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}
