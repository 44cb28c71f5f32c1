package validator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/citemark/internal/models"
)

// resolution is where a cross-document target was found.
type resolution struct {
	path       string
	isDir      bool
	conversion *models.PathConversion
}

// resolveTarget tries, in order: the parsed absolute path, the same path
// with ".md" appended, the URL-decoded path, the vault-absolute path, and
// finally a unique file-name match within the search scope.
func (v *Validator) resolveTarget(ctx context.Context, link *models.Link) (resolution, *models.Validation) {
	raw := link.Target.Path.Raw
	sourceDir := filepath.Dir(link.Source.Path)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}

	candidates := []string{link.Target.Path.Absolute}
	if filepath.Ext(raw) == "" {
		candidates = append(candidates, link.Target.Path.Absolute+".md")
	}
	if decoded != raw {
		candidates = append(candidates, filepath.Join(sourceDir, filepath.FromSlash(decoded)))
	}
	if v.vaultRoot != "" && !strings.HasPrefix(decoded, ".") {
		candidates = append(candidates, filepath.Join(v.vaultRoot, filepath.FromSlash(strings.TrimPrefix(decoded, "/"))))
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil {
			return resolution{path: c, isDir: info.IsDir()}, nil
		}
	}

	if v.finder != nil {
		name := filepath.Base(filepath.FromSlash(decoded))
		matches, err := v.finder.FindByName(ctx, name)
		if err != nil {
			v.logger.Warn("validator: scope search failed",
				slog.String("name", name),
				slog.String("error", err.Error()))
		}
		switch {
		case len(matches) == 1:
			return resolution{path: matches[0], conversion: pathConversion(link, matches[0])}, nil
		case len(matches) > 1:
			val := models.Failed(models.KindAmbiguousTarget,
				fmt.Sprintf("File not found: %s (%d files named %s exist in scope)", raw, len(matches), name))
			for _, m := range matches {
				val.Candidates = append(val.Candidates, relativeTo(sourceDir, m))
			}
			val.Suggestion = "Use an explicit relative path to one of the candidates"
			return resolution{}, val
		}
	}

	return resolution{}, models.Failed(models.KindTargetMissing, fmt.Sprintf("File not found: %s", raw))
}

// pathConversion computes the shortest relative path from the link's source
// to found, keeping the anchor fragment verbatim.
func pathConversion(link *models.Link, found string) *models.PathConversion {
	original := link.Target.Path.Raw
	recommended := relativeTo(filepath.Dir(link.Source.Path), found)
	if link.Target.Anchor != nil {
		original += "#" + *link.Target.Anchor
		recommended += "#" + *link.Target.Anchor
	}
	return &models.PathConversion{
		Type:        "path-conversion",
		Original:    original,
		Recommended: recommended,
	}
}

func relativeTo(dir, target string) string {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}

func fallbackWarning(link *models.Link, res resolution) *models.Validation {
	val := models.Warn(models.KindScopeFallback,
		fmt.Sprintf("Target not found at %s; resolved by file name to %s",
			link.Target.Path.Raw, relativeTo(filepath.Dir(link.Source.Path), res.path)))
	val.Suggestion = fmt.Sprintf("Update the link path to %s", res.conversion.Recommended)
	val.PathConversion = res.conversion
	val.ResolvedPath = res.path
	return val
}
