package importer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"go.uber.org/zap"
)

// specFileNames are basenames that almost always hold an API definition.
var specFileNames = map[string]bool{
	"openapi.json":  true,
	"openapi.yaml":  true,
	"openapi.yml":   true,
	"swagger.json":  true,
	"swagger.yaml":  true,
	"swagger.yml":   true,
	"asyncapi.json": true,
	"asyncapi.yaml": true,
	"asyncapi.yml":  true,
	"api.raml":      true,
}

var specExtensions = map[string]bool{
	".raml": true,
	".wsdl": true,
	".wadl": true,
	".har":  true,
}

// maxGitSpecBytes caps how large a candidate file may be. Repositories hold
// plenty of big YAML that is not an API definition.
const maxGitSpecBytes = 8 << 20

// GitImporter clones a repository into memory and collects the files that
// look like API specifications. Nothing touches disk.
type GitImporter struct {
	log *zap.Logger
}

func NewGitImporter(logger *zap.Logger) *GitImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitImporter{log: logger.Named("importer.git")}
}

// Clone performs a shallow in-memory clone of url at ref (empty means the
// remote default branch) and returns the specification candidates found,
// sorted by path.
func (g *GitImporter) Clone(ctx context.Context, url, ref string) ([]Source, error) {
	opts := &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
	}
	if ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref)
	}

	fs := memfs.New()
	if _, err := git.CloneContext(ctx, memory.NewStorage(), fs, opts); err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	var sources []Source
	if err := g.collect(fs, "/", &sources); err != nil {
		return nil, err
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	g.log.Info("Collected specification candidates from repository.",
		zap.String("url", url),
		zap.Int("candidates", len(sources)))
	return sources, nil
}

func (g *GitImporter) collect(fs billy.Filesystem, dir string, out *[]Source) error {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read repository dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if entry.Name() == ".git" || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			if err := g.collect(fs, path, out); err != nil {
				return err
			}
			continue
		}
		if !isSpecCandidate(entry.Name()) {
			continue
		}
		if entry.Size() > maxGitSpecBytes {
			g.log.Warn("Skipping oversized candidate.", zap.String("path", path))
			continue
		}
		content, err := readBillyFile(fs, path)
		if err != nil {
			g.log.Warn("Failed to read candidate.", zap.String("path", path), zap.Error(err))
			continue
		}
		*out = append(*out, Source{Name: strings.TrimPrefix(path, "/"), Content: content})
	}
	return nil
}

func isSpecCandidate(name string) bool {
	lower := strings.ToLower(name)
	if specFileNames[lower] {
		return true
	}
	// Postman exports carry a compound suffix that filepath.Ext misses.
	if strings.HasSuffix(lower, ".postman_collection.json") {
		return true
	}
	return specExtensions[filepath.Ext(lower)]
}

func readBillyFile(fs billy.Filesystem, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
