// Package validate gates candidate duplicate groups before consolidation.
// Validation is pure: it inspects the proposed batch and the run config,
// touches no storage, and reports machine-readable rejection reasons so
// callers can distinguish "too risky" from "malformed".
package validate

import (
	"fmt"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

// Rejection reason codes.
const (
	CodeGroupTooSmall        = "group_too_small"
	CodeConfidenceBelowFloor = "confidence_below_floor"
	CodeGroupOverlap         = "group_overlap"
	CodeGroupTooLarge        = "group_too_large"
	CodeBatchTooLarge        = "batch_too_large"
)

// Rejection explains why a group (or the whole batch) was refused.
// GroupID is empty for batch-level rejections.
type Rejection struct {
	GroupID string `json:"group_id,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail"`
}

// Result partitions a batch into accepted groups and rejections.
type Result struct {
	Accepted  []models.DuplicateGroup
	Rejection []Rejection
}

// Batch validates the proposed groups against the run config. Groups are
// checked in input order; an overlap rejects the later group, never the
// earlier one, so the outcome does not depend on map iteration.
func Batch(groups []models.DuplicateGroup, cfg models.DeduplicationConfig) Result {
	var res Result

	if len(groups) > cfg.MaxBatchSize {
		res.Rejection = append(res.Rejection, Rejection{
			Code:   CodeBatchTooLarge,
			Detail: fmt.Sprintf("batch has %d groups, limit is %d", len(groups), cfg.MaxBatchSize),
		})
		return res
	}

	claimed := make(map[string]string) // memory id -> group id that claimed it

	for _, g := range groups {
		if rej, ok := checkGroup(g, cfg, claimed); !ok {
			res.Rejection = append(res.Rejection, rej)
			continue
		}
		for _, id := range g.MemberIDs {
			claimed[id] = g.ID
		}
		res.Accepted = append(res.Accepted, g)
	}
	return res
}

func checkGroup(g models.DuplicateGroup, cfg models.DeduplicationConfig, claimed map[string]string) (Rejection, bool) {
	if g.Size() < 2 {
		return Rejection{
			GroupID: g.ID,
			Code:    CodeGroupTooSmall,
			Detail:  fmt.Sprintf("group has %d members, need at least 2", g.Size()),
		}, false
	}
	if g.Size() > cfg.MaxGroupSize {
		return Rejection{
			GroupID: g.ID,
			Code:    CodeGroupTooLarge,
			Detail:  fmt.Sprintf("group has %d members, limit is %d", g.Size(), cfg.MaxGroupSize),
		}, false
	}
	if g.Confidence < cfg.GroupConfidenceFloor {
		return Rejection{
			GroupID: g.ID,
			Code:    CodeConfidenceBelowFloor,
			Detail:  fmt.Sprintf("confidence %.3f is below floor %.3f", g.Confidence, cfg.GroupConfidenceFloor),
		}, false
	}
	for _, id := range g.MemberIDs {
		if other, ok := claimed[id]; ok {
			return Rejection{
				GroupID: g.ID,
				Code:    CodeGroupOverlap,
				Detail:  fmt.Sprintf("memory %s already belongs to group %s", id, other),
			}, false
		}
	}
	return Rejection{}, true
}
