package syncer

import (
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// Phase is the direction of a step.
type Phase int

const (
	PhasePush Phase = iota
	PhasePull
	PhaseAssets
)

func (p Phase) String() string {
	switch p {
	case PhasePush:
		return "push"
	case PhasePull:
		return "pull"
	}
	return "assets"
}

// Step is one unit of a sync cycle.
type Step struct {
	Phase Phase
	Table entity.Table
}

func (s Step) String() string {
	if s.Table == "" {
		return s.Phase.String()
	}
	return fmt.Sprintf("%s:%s", s.Phase, s.Table)
}

// Steps returns the cycle in execution order.
func Steps(withAssets bool) []Step {
	steps := make([]Step, 0, len(entity.PushOrder)+len(entity.PullOrder)+3)
	for _, t := range entity.PushOrder {
		steps = append(steps, Step{Phase: PhasePush, Table: t})
	}
	steps = append(steps, Step{Phase: PhasePush, Table: entity.TableDeleted})
	for _, t := range entity.PullOrder {
		steps = append(steps, Step{Phase: PhasePull, Table: t})
	}
	steps = append(steps, Step{Phase: PhasePull, Table: entity.TableDeleted})
	if withAssets {
		steps = append(steps, Step{Phase: PhaseAssets})
	}
	return steps
}

// Result summarizes one step.
type Result struct {
	Step Step
	// Sent counts pushed rows; Received counts pulled rows.
	Sent     int
	Received int
	// Applied counts rows acknowledged by the server (push) or written
	// locally (pull).
	Applied   int
	Conflicts int
	// Skipped counts pulled rows left alone because the local copy is dirty.
	Skipped int
	// Failed counts rows dropped because they could not be decoded or stored.
	Failed int
	Cursor int64
}
