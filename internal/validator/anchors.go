package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/citemark/internal/anchor"
	"github.com/starford/citemark/internal/models"
)

// checkAnchor verifies the link anchor exists in the document at target.
// res is nil for internal links.
func (v *Validator) checkAnchor(ctx context.Context, link *models.Link, target string, res *resolution) *models.Validation {
	if !link.HasAnchor() {
		return models.Valid(target)
	}

	pf, err := v.cache.Resolve(ctx, target)
	if err != nil {
		val := models.Failed(models.KindUnreadable, fmt.Sprintf("Failed to read target: %v", err))
		val.ResolvedPath = target
		return val
	}

	raw := link.AnchorValue()
	var found *models.Anchor
	if link.AnchorType == models.AnchorBlock {
		id := strings.TrimPrefix(raw, "^")
		if !anchor.ValidBlockID(id) {
			val := models.Failed(models.KindInvalidAnchor, fmt.Sprintf("Invalid block reference: #%s", raw))
			val.Suggestion = "Block ids may only contain letters, digits and hyphens"
			val.ResolvedPath = target
			return val
		}
		found = anchor.Find(pf.Anchors, models.AnchorBlock, id)
	} else {
		found = anchor.Find(pf.Anchors, models.AnchorHeader, raw)
	}

	if found == nil {
		val := models.Failed(models.KindAnchorMissing, fmt.Sprintf("Anchor not found: #%s", raw))
		val.Candidates = anchor.Similar(pf.Anchors, raw, maxSuggestions)
		if len(val.Candidates) > 0 {
			val.Suggestion = "Did you mean one of: #" + strings.Join(val.Candidates, ", #")
		}
		val.ResolvedPath = target
		if res != nil {
			val.PathConversion = res.conversion
		}
		return val
	}

	if res != nil && res.conversion != nil {
		return fallbackWarning(link, *res)
	}
	return models.Valid(target)
}
