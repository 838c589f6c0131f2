package bridge

import (
	"context"
	"fmt"

	"promptbridge/internal/comfy"
)

// ArtifactSource is the read side of the worker.
type ArtifactSource interface {
	History(ctx context.Context, promptID string) (comfy.History, error)
	View(ctx context.Context, ref comfy.ImageRef) ([]byte, error)
}

// StepArtifacts holds the raw images one node produced, in output order.
type StepArtifacts struct {
	StepID string
	Blobs  [][]byte
}

// FetchArtifacts downloads every image listed in the history of promptID.
// Nodes without images are skipped; the first failed download aborts.
func FetchArtifacts(ctx context.Context, src ArtifactSource, promptID string) ([]StepArtifacts, error) {
	hist, err := src.History(ctx, promptID)
	if err != nil {
		return nil, newError(KindFetch, "history", err)
	}
	entry, ok := hist[promptID]
	if !ok {
		return nil, newError(KindHistoryNotFound, "history", fmt.Errorf("no history for prompt %s", promptID))
	}

	out := make([]StepArtifacts, 0, len(entry.Outputs))
	for _, node := range entry.Outputs {
		if len(node.Images) == 0 {
			continue
		}
		blobs := make([][]byte, 0, len(node.Images))
		for _, ref := range node.Images {
			raw, err := src.View(ctx, ref)
			if err != nil {
				return nil, newError(KindFetch, "view", fmt.Errorf("node %s image %q: %w", node.NodeID, ref.Filename, err))
			}
			blobs = append(blobs, raw)
		}
		out = append(out, StepArtifacts{StepID: node.NodeID, Blobs: blobs})
	}
	return out, nil
}

// Count returns the total number of blobs across steps.
func Count(steps []StepArtifacts) int {
	n := 0
	for _, s := range steps {
		n += len(s.Blobs)
	}
	return n
}
